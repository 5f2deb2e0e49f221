package query

import (
	"fmt"
	"strings"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/apperr"
)

// DefaultByteBudget keeps responses under the hosting platform's 32 MiB
// response ceiling.
const DefaultByteBudget int64 = 33554432

// Config tunes a Planner.
type Config struct {
	// ByteBudget caps the estimated size of one result set.
	ByteBudget int64 `validate:"gt=0"`
	// EarthRadiusKm is the sphere radius used by the geospatial filter.
	EarthRadiusKm float64 `validate:"gt=0"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{ByteBudget: DefaultByteBudget, EarthRadiusKm: EarthRadiusKm}
}

// Result is one page of a marker query.
type Result struct {
	// Markers holds *Marker values, or Projection values when fields were
	// requested.
	Markers []any
	// Truncated is set when the byte budget stopped the scan.
	Truncated bool
	// NextIndex is the dataset index to resume scanning from.
	NextIndex int
	// Total is the dataset length, independent of filtering.
	Total int
}

// Planner scans a dataset snapshot for one Spec at a time. It holds no
// per-query state and is safe for concurrent use.
type Planner struct {
	cfg Config
}

// NewPlanner returns a planner; zero config values fall back to defaults.
func NewPlanner(cfg Config) *Planner {
	def := DefaultConfig()
	if cfg.ByteBudget <= 0 {
		cfg.ByteBudget = def.ByteBudget
	}
	if cfg.EarthRadiusKm <= 0 {
		cfg.EarthRadiusKm = def.EarthRadiusKm
	}
	return &Planner{cfg: cfg}
}

// Config returns the effective configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// Matches reports whether m passes every active filter of s. Checks run
// cheapest first and stop at the first failure.
func (p *Planner) Matches(m *Marker, s *Spec) bool {
	if s.ID != "" && !m.ID.Equal(s.ID) {
		return false
	}
	if s.Search != nil {
		if m.Description == nil || !s.Search.MatchString(*m.Description) {
			return false
		}
	}
	if s.Condition != "" {
		cond, ok := m.CurrentCondition()
		if !ok || !strings.EqualFold(cond, s.Condition) {
			return false
		}
	}
	if len(s.Reporters) > 0 && !m.ReportedByAny(s.Reporters) {
		return false
	}
	if s.Geo != nil {
		if m.Lat == nil || m.Long == nil {
			return false
		}
		d := Haversine(*m.Lat, *m.Long, s.Geo.Center.Lat, s.Geo.Center.Long, p.cfg.EarthRadiusKm)
		if d > s.Geo.RadiusKm {
			return false
		}
	}
	return true
}

// Matches evaluates m against s with the default Earth radius.
func Matches(m *Marker, s *Spec) bool {
	return defaultPlanner.Matches(m, s)
}

var defaultPlanner = NewPlanner(DefaultConfig())

// Execute scans dataset from s.Offset and collects projected matches until
// s.Limit matches are found, the byte budget is used up, or the dataset
// ends. A record that alone exceeds the budget is still returned when it is
// the first match, so paging always makes progress.
func (p *Planner) Execute(dataset []Marker, s *Spec) (Result, error) {
	res := Result{
		Markers:   []any{},
		NextIndex: s.Offset,
		Total:     len(dataset),
	}
	if s.Limit == 0 || s.Offset >= len(dataset) {
		return res, nil
	}

	var used int64
	i := s.Offset
	for ; i < len(dataset); i++ {
		if s.Limit > 0 && len(res.Markers) >= s.Limit {
			break
		}
		if used >= p.cfg.ByteBudget {
			res.Truncated = true
			break
		}

		m := &dataset[i]
		if !p.Matches(m, s) {
			continue
		}

		rec := Project(m, s.Fields)
		n, err := EstimateBytes(rec)
		if err != nil {
			return Result{}, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("estimate size of record %d", i), err).
				WithOp("query.Execute")
		}
		if used+n > p.cfg.ByteBudget && len(res.Markers) > 0 {
			res.Truncated = true
			break
		}
		res.Markers = append(res.Markers, rec)
		used += n
	}
	res.NextIndex = i
	return res, nil
}
