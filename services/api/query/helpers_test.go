package query

import "fmt"

func ptr[T any](v T) *T { return &v }

func newMarker(id, description string, lat, long float64, history ...Report) Marker {
	return Marker{
		ID:          NewID(id),
		Description: ptr(description),
		Lat:         ptr(lat),
		Long:        ptr(long),
		History:     history,
	}
}

// uniformDataset returns n markers of identical estimated size.
func uniformDataset(n int) []Marker {
	out := make([]Marker, n)
	for i := range out {
		out[i] = newMarker(fmt.Sprintf("m%02d", i), "brass disk", 10, 10, Report{Reporter: "AB", Condition: "GOOD"})
	}
	return out
}

func markerIDs(records []any) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		v, _ := r.(Fielder).Field("id")
		ids = append(ids, v.(ID).String())
	}
	return ids
}
