package replicate

import (
	"encoding/json"
	"fmt"

	"github.com/erauner12/hubmirror/internal/payload"
)

// MissingDataError reports a payload that lacks the key identifying its
// entity. It carries a snippet of the offending payload for the logs.
type MissingDataError struct {
	Entity  string
	Key     string
	Payload payload.Object
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s payload missing %q: %s", e.Entity, e.Key, snippet(e.Payload))
}

func missing(entity, key string, obj payload.Object) error {
	return &MissingDataError{Entity: entity, Key: key, Payload: obj}
}

// snippet renders a bounded view of the payload so webhook bodies cannot
// flood log lines.
func snippet(obj payload.Object) string {
	b, err := json.Marshal(obj)
	if err != nil {
		return "<unrenderable>"
	}
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
