package normalize

import (
	"strings"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/query"
)

// Stats summarizes a normalized dataset for the catalog.
type Stats struct {
	MarkerCount   int
	ReportedCount int
	Dropped       int
	MinLat        *float64
	MinLong       *float64
	MaxLat        *float64
	MaxLong       *float64
}

// Markers cleans raw feed records in place and returns the kept ones.
// Records without an id are dropped; string ids are trimmed; reporter and
// condition codes are upper-cased; coordinates outside the valid range are
// cleared as a pair.
func Markers(in []query.Marker) ([]query.Marker, Stats) {
	out := make([]query.Marker, 0, len(in))
	var stats Stats
	for _, m := range in {
		if !m.ID.Numeric() {
			m.ID = query.NewID(strings.TrimSpace(m.ID.String()))
		}
		if m.ID.IsZero() {
			stats.Dropped++
			continue
		}

		if m.Description != nil {
			desc := strings.TrimSpace(*m.Description)
			m.Description = &desc
		}

		if !ValidCoordinates(m.Lat, m.Long) {
			m.Lat, m.Long = nil, nil
		}

		if m.History != nil {
			history := make([]query.Report, len(m.History))
			for i, rep := range m.History {
				rep.Reporter = NormalizeCode(rep.Reporter)
				rep.Condition = NormalizeCode(rep.Condition)
				history[i] = rep
			}
			m.History = history
		}

		out = append(out, m)
		stats.add(&out[len(out)-1])
	}
	return out, stats
}

// NormalizeCode trims and upper-cases a reporter or condition code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCoordinates reports whether both coordinates are present and in range.
func ValidCoordinates(lat, long *float64) bool {
	if lat == nil || long == nil {
		return false
	}
	return *lat >= -90 && *lat <= 90 && *long >= -180 && *long <= 180
}

func (s *Stats) add(m *query.Marker) {
	s.MarkerCount++
	if len(m.History) > 0 {
		s.ReportedCount++
	}
	if m.Lat == nil || m.Long == nil {
		return
	}
	s.MinLat = minPtr(s.MinLat, *m.Lat)
	s.MaxLat = maxPtr(s.MaxLat, *m.Lat)
	s.MinLong = minPtr(s.MinLong, *m.Long)
	s.MaxLong = maxPtr(s.MaxLong, *m.Long)
}

func minPtr(cur *float64, v float64) *float64 {
	if cur == nil || v < *cur {
		return &v
	}
	return cur
}

func maxPtr(cur *float64, v float64) *float64 {
	if cur == nil || v > *cur {
		return &v
	}
	return cur
}
