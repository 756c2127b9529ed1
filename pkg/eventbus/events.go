package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// RouteImportedData is emitted after a GPX file has been stored as a route.
type RouteImportedData struct {
	RouteID        uuid.UUID `json:"route_id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Name           string    `json:"name"`
	DistanceKm     float64   `json:"distance_km"`
	ElevationGainM float64   `json:"elevation_gain_m"`
	StartCell      string    `json:"start_cell"`
	PointCount     int       `json:"point_count"`
	ArchiveKey     string    `json:"archive_key,omitempty"`
	ImportedAt     time.Time `json:"imported_at"`
}

// RouteDeletedData is emitted when an owner removes a route.
// ArchiveKey names the stored GPX original, if one was archived.
type RouteDeletedData struct {
	RouteID    uuid.UUID `json:"route_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	DeletedAt  time.Time `json:"deleted_at"`
}
