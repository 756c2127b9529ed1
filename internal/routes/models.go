package routes

import (
	"time"

	"github.com/google/uuid"
	"github.com/taiso/routes-service/pkg/geo"
)

// Route is a stored cycling route. Geometry lives in route_points.
type Route struct {
	ID               uuid.UUID `json:"id"`
	OwnerID          uuid.UUID `json:"owner_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	DistanceKm       float64   `json:"distance_km"`
	ElevationGainM   float64   `json:"elevation_gain_m"`
	ElevationLossM   float64   `json:"elevation_loss_m"`
	StartLatitude    float64   `json:"start_latitude"`
	StartLongitude   float64   `json:"start_longitude"`
	StartCell        string    `json:"start_cell"`
	PointCount       int       `json:"point_count"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	HasArchive       bool      `json:"has_archive"`
	ArchiveKey       string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ElevationProfile is the chart payload for a route. It is rebuilt from the
// stored points on every request.
type ElevationProfile struct {
	RouteID         uuid.UUID                 `json:"route_id"`
	Points          []geo.AnnotatedRoutePoint `json:"points"`
	TotalDistanceKm float64                   `json:"total_distance_km"`
	Ascent          float64                   `json:"ascent"`
	Descent         float64                   `json:"descent"`
	MinElevation    float64                   `json:"min_elevation"`
	MaxElevation    float64                   `json:"max_elevation"`
}

// NearbyRoute is a route with the distance from the search point to its start
type NearbyRoute struct {
	*Route
	StartDistanceKm float64 `json:"start_distance_km"`
}

// ListParams filters and pages the route list
type ListParams struct {
	Limit   int
	Offset  int
	OwnerID *uuid.UUID
	Search  string
}

// ParsedGPX is the geometry and metadata read from an uploaded file
type ParsedGPX struct {
	Name        string
	Description string
	Points      []geo.RoutePoint
}
