package geo

import (
	"github.com/uber/h3-go/v4"
)

// H3 resolution levels used for route lookup.
// See: https://h3geo.org/docs/core-library/restable
const (
	// H3ResolutionRouteStart indexes route start points (~460m edge, ~0.74 km²).
	H3ResolutionRouteStart = 8

	// H3KRingNearby is the k-ring radius for nearby route search.
	// At resolution 8, k=3 covers roughly a 2.5 km radius.
	H3KRingNearby = 3
)

// LatLngToCell converts latitude/longitude to an H3 cell index at the given resolution.
// Returns the zero cell for coordinates H3 rejects.
func LatLngToCell(lat, lng float64, resolution int) h3.Cell {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), resolution)
	if err != nil {
		return 0
	}
	return cell
}

// StartCell returns the hex cell string a route starting at lat/lng is indexed under.
func StartCell(lat, lng float64) string {
	return LatLngToCell(lat, lng, H3ResolutionRouteStart).String()
}

// KRingCellStrings returns the cells within k rings of the point as hex strings.
func KRingCellStrings(lat, lng float64, resolution, k int) []string {
	origin := LatLngToCell(lat, lng, resolution)
	cells, err := origin.GridDisk(k)
	if err != nil {
		return []string{origin.String()}
	}

	result := make([]string, len(cells))
	for i, cell := range cells {
		result[i] = cell.String()
	}
	return result
}

// NearbyStartCells returns the start cells searched for routes near lat/lng.
func NearbyStartCells(lat, lng float64) []string {
	return KRingCellStrings(lat, lng, H3ResolutionRouteStart, H3KRingNearby)
}
