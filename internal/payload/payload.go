// Package payload extracts typed fields from decoded upstream JSON.
//
// Extraction is tri-state: a key can be absent, present-but-null, or
// present with a value. Processors treat these differently (leave a column
// untouched, clear it, or set it), so every accessor reports presence and
// nullness explicitly rather than collapsing them to a zero value.
package payload

import (
	"time"
)

// Object is one decoded JSON object from the upstream.
type Object map[string]any

// Lookup returns the raw value and whether the key is present at all.
func (o Object) Lookup(key string) (any, bool) {
	v, ok := o[key]
	return v, ok
}

// Has reports whether the key is present (null counts as present).
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// IsNull reports whether the key is present with an explicit null.
func (o Object) IsNull(key string) bool {
	v, ok := o[key]
	return ok && v == nil
}

// String returns the value when present, non-null and a string.
func (o Object) String(key string) (string, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int64 returns the value when present, non-null and numeric. JSON decoding
// yields float64; int and int64 are accepted for payloads built in tests.
func (o Object) Int64(key string) (int64, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// Int is Int64 narrowed to int.
func (o Object) Int(key string) (int, bool) {
	n, ok := o.Int64(key)
	return int(n), ok
}

// Bool returns the value when present, non-null and boolean.
func (o Object) Bool(key string) (bool, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Time parses a timestamp field. The upstream sends ISO-8601 strings on
// most objects and POSIX epoch seconds on a few legacy webhook shapes;
// both normalize to UTC.
func (o Object) Time(key string) (time.Time, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	case int:
		return time.Unix(int64(t), 0).UTC(), true
	}
	return time.Time{}, false
}

// Sub returns a nested object when present and non-null.
func (o Object) Sub(key string) (Object, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, false
	}
	switch m := v.(type) {
	case map[string]any:
		return Object(m), true
	case Object:
		return m, true
	}
	return nil, false
}

// List returns a nested array when present and non-null.
func (o Object) List(key string) ([]any, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

// Strings returns a nested array coerced to strings; non-string elements
// are dropped.
func (o Object) Strings(key string) ([]string, bool) {
	l, ok := o.List(key)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(l))
	for _, v := range l {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// Objects returns a nested array of objects; non-object elements are
// dropped. Used for label lists and file listings.
func (o Object) Objects(key string) ([]Object, bool) {
	l, ok := o.List(key)
	if !ok {
		return nil, false
	}
	out := make([]Object, 0, len(l))
	for _, v := range l {
		if m, ok := v.(map[string]any); ok {
			out = append(out, Object(m))
		}
	}
	return out, true
}

// Map returns a nested object as a plain map for opaque storage (hook
// config, last_response).
func (o Object) Map(key string) (map[string]any, bool) {
	sub, ok := o.Sub(key)
	if !ok {
		return nil, false
	}
	return map[string]any(sub), true
}
