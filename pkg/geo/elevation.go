package geo

import "math"

// ElevationStats summarises the climbing profile of a route.
type ElevationStats struct {
	AscentM  float64 `json:"ascent_m"`
	DescentM float64 `json:"descent_m"`
	MinM     float64 `json:"min_m"`
	MaxM     float64 `json:"max_m"`
}

// ElevationSummary walks the sequence-ordered points and accumulates total
// ascent and descent along with the elevation extremes. Values are rounded
// to one decimal place. An empty input yields the zero value.
func ElevationSummary(points []RoutePoint) ElevationStats {
	sorted := SortBySequence(points)
	if len(sorted) == 0 {
		return ElevationStats{}
	}

	stats := ElevationStats{
		MinM: sorted[0].Elevation,
		MaxM: sorted[0].Elevation,
	}

	for i := 1; i < len(sorted); i++ {
		delta := sorted[i].Elevation - sorted[i-1].Elevation
		if delta > 0 {
			stats.AscentM += delta
		} else {
			stats.DescentM -= delta
		}
		stats.MinM = math.Min(stats.MinM, sorted[i].Elevation)
		stats.MaxM = math.Max(stats.MaxM, sorted[i].Elevation)
	}

	stats.AscentM = roundTenth(stats.AscentM)
	stats.DescentM = roundTenth(stats.DescentM)
	return stats
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
