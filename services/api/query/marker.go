package query

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// errWrongType marks a value that cannot populate its typed field.
var errWrongType = errors.New("wrong type")

// ID is a marker identifier as it appears in the dataset: either a JSON
// string or a JSON number. Comparison is by exact text.
type ID struct {
	text    string
	numeric bool
}

// NewID returns a string identifier.
func NewID(s string) ID {
	return ID{text: s}
}

// String returns the identifier text (the number literal for numeric ids).
func (id ID) String() string {
	return id.text
}

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool {
	return id.text == "" && !id.numeric
}

// Numeric reports whether the identifier was a JSON number.
func (id ID) Numeric() bool {
	return id.numeric
}

// Equal reports whether the identifier equals a query value. Numeric ids
// compare by value, so 1.0 equals "1"; string ids compare by exact text.
func (id ID) Equal(text string) bool {
	if !id.numeric {
		return id.text == text
	}
	want, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return false
	}
	have, err := strconv.ParseFloat(id.text, 64)
	return err == nil && have == want
}

// MarshalJSON writes the identifier back in its original JSON kind.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.text), nil
	}
	return json.Marshal(id.text)
}

// UnmarshalJSON accepts a string, a number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case isNull(data):
		*id = ID{}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID{text: s}
	default:
		text := string(data)
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return fmt.Errorf("id must be a string or number, got %s", text)
		}
		*id = ID{text: text, numeric: true}
	}
	return nil
}

// Report is one observation of a marker's state.
type Report struct {
	Reporter  string
	Condition string
	// Extra holds pass-through fields such as the report date.
	Extra map[string]any
}

// MarshalJSON flattens Extra next to the known fields.
func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+2)
	for k, v := range r.Extra {
		out[k] = v
	}
	if r.Reporter != "" {
		out["reporter"] = r.Reporter
	}
	if r.Condition != "" {
		out["condition"] = r.Condition
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits known fields from pass-through data.
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Report{}
	for key, val := range raw {
		var err error
		switch key {
		case "reporter":
			r.Reporter, err = decodeText(val)
		case "condition":
			r.Condition, err = decodeText(val)
		default:
			err = r.setExtra(key, val)
		}
		if errors.Is(err, errWrongType) {
			err = r.setExtra(key, val)
		}
		if err != nil {
			return fmt.Errorf("report field %q: %w", key, err)
		}
	}
	return nil
}

func (r *Report) setExtra(key string, val json.RawMessage) error {
	var v any
	if err := json.Unmarshal(val, &v); err != nil {
		return err
	}
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = v
	return nil
}

// Marker is one surveyed physical reference point.
type Marker struct {
	ID          ID
	Description *string
	Lat         *float64
	Long        *float64
	// History is chronological. nil means the dataset had no history key.
	History []Report
	// Extra holds every other key of the source record.
	Extra map[string]any
}

// CurrentCondition returns the condition of the last report.
func (m *Marker) CurrentCondition() (string, bool) {
	if len(m.History) == 0 {
		return "", false
	}
	return m.History[len(m.History)-1].Condition, true
}

// ReportedByAny reports whether any report in the history was filed by one
// of the given reporter codes (case-insensitive).
func (m *Marker) ReportedByAny(reporters []string) bool {
	for _, want := range reporters {
		for _, rep := range m.History {
			if strings.EqualFold(rep.Reporter, want) {
				return true
			}
		}
	}
	return false
}

// Field returns the value stored under a JSON field name.
func (m *Marker) Field(name string) (any, bool) {
	switch name {
	case "id":
		if !m.ID.IsZero() {
			return m.ID, true
		}
	case "description":
		if m.Description != nil {
			return *m.Description, true
		}
	case "lat":
		if m.Lat != nil {
			return *m.Lat, true
		}
	case "long":
		if m.Long != nil {
			return *m.Long, true
		}
	case "history":
		if m.History != nil {
			return m.History, true
		}
	}
	// Known fields with an unusable type are kept verbatim in Extra.
	v, ok := m.Extra[name]
	return v, ok
}

// MarshalJSON flattens Extra next to the known fields.
func (m *Marker) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+5)
	for k, v := range m.Extra {
		out[k] = v
	}
	for _, name := range []string{"id", "description", "lat", "long", "history"} {
		if v, ok := m.Field(name); ok {
			out[name] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits known fields from pass-through data. Coordinates
// may be JSON numbers or numeric strings. A known field whose value has an
// unusable type is treated as absent and kept in Extra.
func (m *Marker) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Marker{}
	for key, val := range raw {
		var err error
		switch key {
		case "id":
			if m.ID.UnmarshalJSON(val) != nil {
				m.ID, err = ID{}, errWrongType
			}
		case "description":
			m.Description, err = decodeOptionalText(val)
		case "lat":
			m.Lat, err = decodeCoord(val)
		case "long":
			m.Long, err = decodeCoord(val)
		case "history":
			err = m.decodeHistory(val)
		default:
			err = m.setExtra(key, val)
		}
		if errors.Is(err, errWrongType) {
			err = m.setExtra(key, val)
		}
		if err != nil {
			return fmt.Errorf("marker field %q: %w", key, err)
		}
	}
	return nil
}

func (m *Marker) setExtra(key string, val json.RawMessage) error {
	var v any
	if err := json.Unmarshal(val, &v); err != nil {
		return err
	}
	if m.Extra == nil {
		m.Extra = make(map[string]any)
	}
	m.Extra[key] = v
	return nil
}

func (m *Marker) decodeHistory(val json.RawMessage) error {
	if isNull(val) {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(val, &entries); err != nil {
		return errWrongType
	}
	history := make([]Report, 0, len(entries))
	for _, entry := range entries {
		var rep Report
		if err := json.Unmarshal(entry, &rep); err != nil {
			return errWrongType
		}
		history = append(history, rep)
	}
	m.History = history
	return nil
}

// DecodeDataset parses a JSON array of markers.
func DecodeDataset(data []byte) ([]Marker, error) {
	var markers []Marker
	if err := json.Unmarshal(data, &markers); err != nil {
		return nil, err
	}
	if markers == nil {
		markers = []Marker{}
	}
	return markers, nil
}

// EncodeDataset writes markers as a JSON array.
func EncodeDataset(markers []Marker) ([]byte, error) {
	ptrs := make([]*Marker, len(markers))
	for i := range markers {
		ptrs[i] = &markers[i]
	}
	return json.Marshal(ptrs)
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func decodeText(val json.RawMessage) (string, error) {
	s, err := decodeOptionalText(val)
	if err != nil || s == nil {
		return "", err
	}
	return *s, nil
}

func decodeOptionalText(val json.RawMessage) (*string, error) {
	if isNull(val) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, errWrongType
	}
	return &s, nil
}

func decodeCoord(val json.RawMessage) (*float64, error) {
	if isNull(val) {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(val, &f); err == nil {
		return &f, nil
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, errWrongType
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errWrongType
	}
	return &f, nil
}
