package routes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taiso/routes-service/pkg/geo"
)

// RepositoryInterface defines the persistence operations the service needs.
// This enables mocking in tests
type RepositoryInterface interface {
	CreateRoute(ctx context.Context, route *Route, points []geo.RoutePoint) error
	GetRouteByID(ctx context.Context, id uuid.UUID) (*Route, error)
	GetRoutePoints(ctx context.Context, routeID uuid.UUID) ([]geo.RoutePoint, error)
	ListRoutes(ctx context.Context, params ListParams) ([]*Route, int64, error)
	FindRoutesByStartCells(ctx context.Context, cells []string, lat, lng float64, limit int) ([]*Route, error)
	DeleteRoute(ctx context.Context, id uuid.UUID) error
}

// Cache is the subset of the cache manager used for route reads
type Cache interface {
	GetOrSet(ctx context.Context, key string, ttl time.Duration, result interface{}, fn func() (interface{}, error)) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Invalidate(ctx context.Context, pattern string) error
}
