package query

import "math"

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

const degToRad = math.Pi / 180

// DistanceKm returns the great-circle distance in kilometers between two
// points given in decimal degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	return Haversine(lat1, lon1, lat2, lon2, EarthRadiusKm)
}

// Haversine is DistanceKm on a sphere of the given radius.
func Haversine(lat1, lon1, lat2, lon2, radiusKm float64) float64 {
	sinLat := math.Sin((lat2 - lat1) * degToRad / 2)
	sinLon := math.Sin((lon2 - lon1) * degToRad / 2)
	a := sinLat*sinLat + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*sinLon*sinLon
	// rounding can push a just outside [0, 1]
	a = math.Min(1, math.Max(0, a))
	return radiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
