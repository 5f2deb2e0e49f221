package query

import (
	"math"
	"strconv"
)

// Fielder exposes record fields by their JSON name.
type Fielder interface {
	Field(name string) (any, bool)
}

// Projection is a record reduced to a subset of fields.
type Projection map[string]any

// Field implements Fielder.
func (p Projection) Field(name string) (any, bool) {
	v, ok := p[name]
	return v, ok
}

// Project keeps only the named fields that are present and truthy on r.
// Absent, null, zero, empty-string and false values are all omitted.
// With no fields, r itself is returned and must not be mutated by callers.
func Project(r Fielder, fields []string) any {
	if len(fields) == 0 {
		return r
	}
	out := make(Projection, len(fields))
	for _, name := range fields {
		if v, ok := r.Field(name); ok && truthy(v) {
			out[name] = v
		}
	}
	return out
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case int:
		return x != 0
	case int64:
		return x != 0
	case ID:
		if x.IsZero() || x.text == "" {
			return false
		}
		if x.numeric {
			f, err := strconv.ParseFloat(x.text, 64)
			return err != nil || f != 0
		}
		return true
	default:
		// arrays and objects are truthy even when empty
		return true
	}
}
