package geo

import "sort"

// RoutePoint is a single GPS sample along a route.
type RoutePoint struct {
	ID        string  `json:"id"`
	Sequence  int     `json:"sequence"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// AnnotatedRoutePoint is a RoutePoint carrying the cumulative distance in
// kilometres travelled from the first point of the route.
type AnnotatedRoutePoint struct {
	RoutePoint
	Distance float64 `json:"distance"`
}

// SortBySequence returns a copy of points ordered by Sequence. Points sharing
// a sequence keep their input order.
func SortBySequence(points []RoutePoint) []RoutePoint {
	sorted := make([]RoutePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sequence < sorted[j].Sequence
	})
	return sorted
}

// AnnotateDistances orders points by sequence and attaches the cumulative
// haversine distance to each one, rounded with RoundKm. The input slice is
// not modified.
func AnnotateDistances(points []RoutePoint) []AnnotatedRoutePoint {
	sorted := SortBySequence(points)
	annotated := make([]AnnotatedRoutePoint, len(sorted))

	cumulativeMeters := 0.0
	for i, point := range sorted {
		if i > 0 {
			cumulativeMeters += HaversineMeters(sorted[i-1], point)
		}
		annotated[i] = AnnotatedRoutePoint{
			RoutePoint: point,
			Distance:   RoundKm(cumulativeMeters / 1000),
		}
	}

	return annotated
}

// TotalDistanceKm returns the rounded along-route length of points.
func TotalDistanceKm(points []RoutePoint) float64 {
	annotated := AnnotateDistances(points)
	if len(annotated) == 0 {
		return 0
	}
	return annotated[len(annotated)-1].Distance
}
