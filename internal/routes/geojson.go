package routes

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/taiso/routes-service/pkg/geo"
)

// BuildFeatureCollection renders a route as a single LineString feature.
// GeoJSON positions carry lon/lat only; per-vertex elevations and cumulative
// distances travel as parallel arrays in the feature properties.
func BuildFeatureCollection(route *Route, points []geo.AnnotatedRoutePoint) *geojson.FeatureCollection {
	line := make(orb.LineString, len(points))
	elevations := make([]float64, len(points))
	distances := make([]float64, len(points))
	for i, p := range points {
		line[i] = orb.Point{p.Longitude, p.Latitude}
		elevations[i] = p.Elevation
		distances[i] = p.Distance
	}

	feature := geojson.NewFeature(line)
	feature.ID = route.ID.String()
	if len(line) > 0 {
		feature.BBox = geojson.NewBBox(line.Bound())
	}
	feature.Properties["name"] = route.Name
	feature.Properties["description"] = route.Description
	feature.Properties["owner_id"] = route.OwnerID.String()
	feature.Properties["distance_km"] = route.DistanceKm
	feature.Properties["elevation_gain_m"] = route.ElevationGainM
	feature.Properties["elevation_loss_m"] = route.ElevationLossM
	feature.Properties["estimated_minutes"] = route.EstimatedMinutes
	feature.Properties["elevations"] = elevations
	feature.Properties["distances_km"] = distances

	fc := geojson.NewFeatureCollection()
	fc.Append(feature)
	return fc
}
