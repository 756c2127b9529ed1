package geo

import "math"

const (
	// EarthRadiusMeters is the mean Earth radius used for every great-circle
	// computation in this package.
	EarthRadiusMeters = 6371000.0

	defaultCyclingSpeedKmh = 20.0
)

// toRadians converts degrees to radians.
func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// haversineMeters returns the great-circle distance in meters between two
// coordinates given in degrees.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// HaversineMeters returns the unrounded great-circle distance in meters
// between two route points.
func HaversineMeters(from, to RoutePoint) float64 {
	return haversineMeters(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
}

// Haversine calculates the great-circle distance in kilometres between two
// coordinates. The result is rounded to two decimal places.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return RoundKm(haversineMeters(lat1, lon1, lat2, lon2) / 1000)
}

// RoundKm rounds a kilometre value to two decimal places.
//
// math.Round rounds half away from zero, and it is applied to the binary
// value of km*100. A decimal literal such as 1.005 is stored slightly below
// its written value and therefore rounds to 1.00.
func RoundKm(km float64) float64 {
	return math.Round(km*100) / 100
}

// EstimateDuration returns the estimated riding time in minutes for a given
// distance in kilometres. A non-positive speed falls back to 20 km/h.
func EstimateDuration(distanceKm, avgSpeedKmh float64) int {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = defaultCyclingSpeedKmh
	}
	return int(math.Round((distanceKm / avgSpeedKmh) * 60))
}
