package query

import (
	"errors"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/apperr"
)

// NoLimit disables the match-count ceiling.
const NoLimit = -1

// Params carries the raw query-string values of a marker query.
type Params struct {
	ID        string `form:"id" validate:"max=256"`
	Search    string `form:"search" validate:"max=512"`
	Condition string `form:"condition" validate:"max=64"`
	Reporter  string `form:"reporter" validate:"max=1024"`
	Location  string `form:"location"`
	Radius    string `form:"radius" validate:"max=64"`
	Data      string `form:"data" validate:"max=1024"`
	Offset    string `form:"offset" validate:"omitempty,number"`
	Limit     string `form:"limit" validate:"omitempty,number"`
}

// Point is a coordinate in decimal degrees.
type Point struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// GeoFilter keeps markers within RadiusKm of Center.
type GeoFilter struct {
	Center   Point
	RadiusKm float64
}

// Spec is a validated marker query.
type Spec struct {
	// ID is an exact identifier match; empty disables it.
	ID string
	// Search is matched case-insensitively against descriptions.
	Search *regexp.Regexp
	// Condition is compared against the last report's condition.
	Condition string
	// Reporters matches markers with at least one report by any code.
	Reporters []string
	Geo       *GeoFilter
	// Fields selects the projected fields; empty returns whole markers.
	Fields []string
	Offset int
	// Limit is the maximum number of matches; NoLimit disables it.
	Limit int
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}

// ParseSpec validates raw parameters and builds a Spec. Failures are
// KindValidation errors whose details name the offending parameter.
func ParseSpec(p Params) (*Spec, error) {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, invalid(verrs[0].Field(), "invalid "+verrs[0].Field()+" parameter")
		}
		return nil, invalid("", err.Error())
	}

	s := &Spec{
		ID:        strings.TrimSpace(p.ID),
		Condition: strings.ToUpper(strings.TrimSpace(p.Condition)),
		Reporters: splitList(strings.ToUpper(p.Reporter)),
		Fields:    splitList(p.Data),
		Limit:     NoLimit,
	}

	if p.Search != "" {
		re, err := regexp.Compile("(?im)" + p.Search)
		if err != nil {
			return nil, invalid("search", "invalid search pattern: "+err.Error())
		}
		s.Search = re
	}

	if p.Offset != "" {
		n, err := strconv.Atoi(p.Offset)
		if err != nil || n < 0 {
			return nil, invalid("offset", "offset must be a non-negative integer")
		}
		s.Offset = n
	}
	if p.Limit != "" {
		n, err := strconv.Atoi(p.Limit)
		if err != nil || n < 0 {
			return nil, invalid("limit", "limit must be a non-negative integer")
		}
		s.Limit = n
	}

	location := strings.TrimSpace(p.Location)
	radius := strings.TrimSpace(p.Radius)
	switch {
	case location == "" && radius == "":
	case location == "":
		return nil, invalid("location", "radius requires location")
	case radius == "":
		return nil, invalid("radius", "location requires radius")
	default:
		center, err := parsePoint(location)
		if err != nil {
			return nil, invalid("location", err.Error())
		}
		r, err := strconv.ParseFloat(radius, 64)
		if err != nil || r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, invalid("radius", "radius must be a non-negative number of kilometers")
		}
		s.Geo = &GeoFilter{Center: center, RadiusKm: r}
	}

	return s, nil
}

func parsePoint(raw string) (Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Point{}, errors.New("location must be \"lat,long\"")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return Point{}, errors.New("location latitude must be between -90 and 90")
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || long < -180 || long > 180 {
		return Point{}, errors.New("location longitude must be between -180 and 180")
	}
	return Point{Lat: lat, Long: long}, nil
}

// splitList splits a comma list, dropping blanks and duplicates.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func invalid(param, message string) error {
	err := apperr.Validation(message).WithOp("query.ParseSpec")
	if param != "" {
		err = err.WithDetails(map[string]string{"param": param})
	}
	return err
}
