package routes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taiso/routes-service/pkg/database"
	"github.com/taiso/routes-service/pkg/geo"
	"github.com/taiso/routes-service/pkg/tracing"
)

const tracerName = "taiso-routes/routes"

const routeColumns = `id, owner_id, name, description, distance_km, elevation_gain_m, elevation_loss_m,
		start_latitude, start_longitude, start_cell, point_count, archive_key, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Repository handles database operations for routes
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new routes repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateRoute inserts the route row and its points in one transaction
func (r *Repository) CreateRoute(ctx context.Context, route *Route, points []geo.RoutePoint) error {
	query := `
		INSERT INTO routes (` + routeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	now := time.Now()
	route.CreatedAt = now
	route.UpdatedAt = now

	var archiveKey *string
	if route.ArchiveKey != "" {
		archiveKey = &route.ArchiveKey
	}

	return tracing.TraceDBQuery(ctx, tracerName, "insert_route", query, func(ctx context.Context) error {
		err := database.RetryableTransaction(ctx, r.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, query,
				route.ID,
				route.OwnerID,
				route.Name,
				route.Description,
				route.DistanceKm,
				route.ElevationGainM,
				route.ElevationLossM,
				route.StartLatitude,
				route.StartLongitude,
				route.StartCell,
				route.PointCount,
				archiveKey,
				route.CreatedAt,
				route.UpdatedAt,
			); err != nil {
				return err
			}

			_, err := tx.CopyFrom(ctx,
				pgx.Identifier{"route_points"},
				[]string{"route_id", "sequence", "latitude", "longitude", "elevation"},
				pgx.CopyFromSlice(len(points), func(i int) ([]interface{}, error) {
					p := points[i]
					return []interface{}{route.ID, p.Sequence, p.Latitude, p.Longitude, p.Elevation}, nil
				}),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to create route: %w", err)
		}
		return nil
	})
}

// GetRouteByID retrieves a route by ID
func (r *Repository) GetRouteByID(ctx context.Context, id uuid.UUID) (*Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE id = $1`

	var route *Route
	err := tracing.TraceDBQuery(ctx, tracerName, "get_route", query, func(ctx context.Context) error {
		var err error
		route, err = database.RetryableQueryRow(ctx, r.db, query, []interface{}{id}, func(row pgx.Row) (*Route, error) {
			return scanRoute(row)
		})
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	return route, nil
}

// GetRoutePoints returns the stored points of a route in sequence order
func (r *Repository) GetRoutePoints(ctx context.Context, routeID uuid.UUID) ([]geo.RoutePoint, error) {
	query := `
		SELECT sequence, latitude, longitude, elevation
		FROM route_points
		WHERE route_id = $1
		ORDER BY sequence ASC
	`

	var points []geo.RoutePoint
	err := tracing.TraceDBQuery(ctx, tracerName, "get_route_points", query, func(ctx context.Context) error {
		var err error
		points, err = database.RetryableQuery(ctx, r.db, query, []interface{}{routeID}, func(rows pgx.Rows) ([]geo.RoutePoint, error) {
			result := make([]geo.RoutePoint, 0)
			for rows.Next() {
				var p geo.RoutePoint
				if err := rows.Scan(&p.Sequence, &p.Latitude, &p.Longitude, &p.Elevation); err != nil {
					return nil, err
				}
				p.ID = strconv.Itoa(p.Sequence)
				result = append(result, p)
			}
			return result, rows.Err()
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get route points: %w", err)
	}
	return points, nil
}

// ListRoutes returns one page of routes and the total matching count
func (r *Repository) ListRoutes(ctx context.Context, params ListParams) ([]*Route, int64, error) {
	query, countQuery, args := buildListQuery(params)
	filterArgs := args[:len(args)-2]

	var total int64
	err := tracing.TraceDBQuery(ctx, tracerName, "count_routes", countQuery, func(ctx context.Context) error {
		var err error
		total, err = database.RetryableQueryRow(ctx, r.db, countQuery, filterArgs, func(row pgx.Row) (int64, error) {
			var n int64
			err := row.Scan(&n)
			return n, err
		})
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count routes: %w", err)
	}

	var routes []*Route
	err = tracing.TraceDBQuery(ctx, tracerName, "list_routes", query, func(ctx context.Context) error {
		var err error
		routes, err = database.RetryableQuery(ctx, r.db, query, args, scanRoutes)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list routes: %w", err)
	}

	return routes, total, nil
}

// nearbyRoutesQuery ranks by an equirectangular approximation of the start
// distance so LIMIT keeps the closest routes, not the newest.
var nearbyRoutesQuery = `
		SELECT ` + routeColumns + `
		FROM routes
		WHERE start_cell = ANY($1)
		ORDER BY power(start_latitude - $2, 2) + power((start_longitude - $3) * cos(radians($2)), 2) ASC,
			created_at DESC
		LIMIT $4
	`

// FindRoutesByStartCells returns up to limit routes starting in any of cells,
// closest to lat/lng first
func (r *Repository) FindRoutesByStartCells(ctx context.Context, cells []string, lat, lng float64, limit int) ([]*Route, error) {
	query := nearbyRoutesQuery

	var routes []*Route
	err := tracing.TraceDBQuery(ctx, tracerName, "find_routes_by_start_cells", query, func(ctx context.Context) error {
		var err error
		routes, err = database.RetryableQuery(ctx, r.db, query, []interface{}{cells, lat, lng, limit}, scanRoutes)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby routes: %w", err)
	}
	return routes, nil
}

// DeleteRoute removes a route; its points go with it through the foreign key
func (r *Repository) DeleteRoute(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM routes WHERE id = $1`

	return tracing.TraceDBQuery(ctx, tracerName, "delete_route", query, func(ctx context.Context) error {
		result, err := database.RetryableExec(ctx, r.db, query, id)
		if err != nil {
			return fmt.Errorf("failed to delete route: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrRouteNotFound
		}
		return nil
	})
}

// buildListQuery returns the page query, the count query and the page query
// arguments. The count query uses every argument but the trailing limit and
// offset.
func buildListQuery(params ListParams) (string, string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)

	if params.OwnerID != nil {
		args = append(args, *params.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM routes" + where

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf("SELECT %s FROM routes%s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d",
		routeColumns, where, len(args)-1, len(args))

	return query, countQuery, args
}

func scanRoutes(rows pgx.Rows) ([]*Route, error) {
	routes := make([]*Route, 0)
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

func scanRoute(row pgx.Row) (*Route, error) {
	route := &Route{}
	var archiveKey *string
	err := row.Scan(
		&route.ID,
		&route.OwnerID,
		&route.Name,
		&route.Description,
		&route.DistanceKm,
		&route.ElevationGainM,
		&route.ElevationLossM,
		&route.StartLatitude,
		&route.StartLongitude,
		&route.StartCell,
		&route.PointCount,
		&archiveKey,
		&route.CreatedAt,
		&route.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if archiveKey != nil {
		route.ArchiveKey = *archiveKey
		route.HasArchive = true
	}
	route.EstimatedMinutes = geo.EstimateDuration(route.DistanceKm, 0)
	return route, nil
}
