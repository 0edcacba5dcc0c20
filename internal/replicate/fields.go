package replicate

import (
	"time"

	"github.com/erauner12/hubmirror/internal/payload"
)

// Tri-state setters back the per-entity field maps: an absent key leaves
// the column untouched, an explicit null clears it, a typed value sets it.
// A present value of the wrong type is ignored like an absent key.

func setString(obj payload.Object, key string, dst **string) {
	if !obj.Has(key) {
		return
	}
	if obj.IsNull(key) {
		*dst = nil
		return
	}
	if v, ok := obj.String(key); ok {
		*dst = &v
	}
}

func setInt(obj payload.Object, key string, dst **int) {
	if !obj.Has(key) {
		return
	}
	if obj.IsNull(key) {
		*dst = nil
		return
	}
	if v, ok := obj.Int(key); ok {
		*dst = &v
	}
}

func setInt64(obj payload.Object, key string, dst **int64) {
	if !obj.Has(key) {
		return
	}
	if obj.IsNull(key) {
		*dst = nil
		return
	}
	if v, ok := obj.Int64(key); ok {
		*dst = &v
	}
}

func setBool(obj payload.Object, key string, dst **bool) {
	if !obj.Has(key) {
		return
	}
	if obj.IsNull(key) {
		*dst = nil
		return
	}
	if v, ok := obj.Bool(key); ok {
		*dst = &v
	}
}

func setTime(obj payload.Object, key string, dst **time.Time) {
	if !obj.Has(key) {
		return
	}
	if obj.IsNull(key) {
		*dst = nil
		return
	}
	if v, ok := obj.Time(key); ok {
		*dst = &v
	}
}
