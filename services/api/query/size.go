package query

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
)

// Approximate in-memory costs. Strings are counted as UTF-16 code units.
const (
	boolBytes   = 4
	numberBytes = 8
	charBytes   = 2
)

// EstimateBytes approximates the size of a record graph made of booleans,
// numbers, strings, markers, reports, maps and slices. Containers reached
// twice within one call are only counted once.
func EstimateBytes(v any) (int64, error) {
	s := sizer{seen: make(map[visit]struct{})}
	return s.size(v)
}

type visit struct {
	ptr  uintptr
	kind reflect.Kind
}

type sizer struct {
	seen map[visit]struct{}
}

// enter marks a container as visited. It returns false when the container
// was already counted.
func (s *sizer) enter(v any) bool {
	rv := reflect.ValueOf(v)
	key := visit{ptr: rv.Pointer(), kind: rv.Kind()}
	if key.ptr == 0 {
		return true
	}
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

func (s *sizer) size(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case bool:
		return boolBytes, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return numberBytes, nil
	case string:
		return textBytes(x), nil
	case *string:
		if x == nil {
			return 0, nil
		}
		return textBytes(*x), nil
	case *float64:
		if x == nil {
			return 0, nil
		}
		return numberBytes, nil
	case ID:
		if x.numeric {
			return numberBytes, nil
		}
		return textBytes(x.text), nil
	case *Marker:
		if x == nil || !s.enter(x) {
			return 0, nil
		}
		return s.marker(x)
	case Marker:
		return s.marker(&x)
	case Report:
		return s.report(&x)
	case []Report:
		if len(x) == 0 || !s.enter(x) {
			return 0, nil
		}
		var total int64
		for i := range x {
			n, err := s.report(&x[i])
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	case Projection:
		return s.object(x)
	case map[string]any:
		return s.object(x)
	case []any:
		if len(x) == 0 || !s.enter(x) {
			return 0, nil
		}
		var total int64
		for _, item := range x {
			n, err := s.size(item)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	case []string:
		var total int64
		for _, item := range x {
			total += textBytes(item)
		}
		return total, nil
	default:
		return 0, fmt.Errorf("estimate size: unsupported value of type %T", v)
	}
}

func (s *sizer) object(m map[string]any) (int64, error) {
	if len(m) == 0 || !s.enter(m) {
		return 0, nil
	}
	var total int64
	for k, v := range m {
		n, err := s.size(v)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", k, err)
		}
		total += textBytes(k) + n
	}
	return total, nil
}

func (s *sizer) marker(m *Marker) (int64, error) {
	var total int64
	if !m.ID.IsZero() {
		n, _ := s.size(m.ID)
		total += textBytes("id") + n
	}
	if m.Description != nil {
		total += textBytes("description") + textBytes(*m.Description)
	}
	if m.Lat != nil {
		total += textBytes("lat") + numberBytes
	}
	if m.Long != nil {
		total += textBytes("long") + numberBytes
	}
	if m.History != nil {
		n, err := s.size(m.History)
		if err != nil {
			return 0, err
		}
		total += textBytes("history") + n
	}
	n, err := s.object(m.Extra)
	if err != nil {
		return 0, err
	}
	return total + n, nil
}

func (s *sizer) report(r *Report) (int64, error) {
	var total int64
	if r.Reporter != "" {
		total += textBytes("reporter") + textBytes(r.Reporter)
	}
	if r.Condition != "" {
		total += textBytes("condition") + textBytes(r.Condition)
	}
	n, err := s.object(r.Extra)
	if err != nil {
		return 0, err
	}
	return total + n, nil
}

func textBytes(s string) int64 {
	units := 0
	for _, r := range s {
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	return int64(units * charBytes)
}
