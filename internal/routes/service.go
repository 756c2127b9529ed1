package routes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/taiso/routes-service/pkg/async"
	"github.com/taiso/routes-service/pkg/cache"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/eventbus"
	"github.com/taiso/routes-service/pkg/geo"
	"github.com/taiso/routes-service/pkg/logger"
	"github.com/taiso/routes-service/pkg/pagination"
	"github.com/taiso/routes-service/pkg/security"
	"github.com/taiso/routes-service/pkg/storage"
	"github.com/taiso/routes-service/pkg/tracing"
	"github.com/taiso/routes-service/pkg/validation"
	"go.uber.org/zap"
)

const (
	eventSource = "routes-service"

	maxNameLength        = 120
	maxDescriptionLength = 2000
	minRoutePoints       = 2

	defaultNearbyLimit  = 10
	maxNearbyLimit      = 50
	maxNearbyCandidates = 200

	gpxContentType    = "application/gpx+xml"
	archiveURLExpiry  = 15 * time.Minute
	defaultPublishTTL = 5 * time.Second
)

// Service handles business logic for routes
type Service struct {
	repo           RepositoryInterface
	cache          Cache
	archive        storage.Storage
	events         eventbus.Publisher
	publishTimeout time.Duration
}

// Option configures optional collaborators of the service
type Option func(*Service)

// WithCache enables read-through caching of route reads
func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithArchive stores the original GPX upload of every imported route
func WithArchive(archive storage.Storage) Option {
	return func(s *Service) {
		s.archive = archive
	}
}

// WithEvents publishes route lifecycle events
func WithEvents(publisher eventbus.Publisher) Option {
	return func(s *Service) {
		s.events = publisher
	}
}

// NewService creates a new routes service
func NewService(repo RepositoryInterface, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		publishTimeout: defaultPublishTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRoute returns route metadata, served from cache when possible
func (s *Service) GetRoute(ctx context.Context, id uuid.UUID) (*Route, error) {
	if s.cache == nil {
		route, err := s.repo.GetRouteByID(ctx, id)
		if err != nil {
			return nil, routeLookupError(err)
		}
		return route, nil
	}

	var route Route
	hit, err := s.cache.GetOrSet(ctx, cache.Keys.Route(id), cache.TTL.RouteDetail(), &route, func() (interface{}, error) {
		return s.repo.GetRouteByID(ctx, id)
	})
	if err != nil {
		return nil, routeLookupError(err)
	}

	logger.DebugContext(ctx, "route loaded", zap.String("route_id", id.String()), zap.Bool("cache_hit", hit))
	return &route, nil
}

// GetElevationProfile annotates the stored points of a route with cumulative
// distance and summarises its climbing.
func (s *Service) GetElevationProfile(ctx context.Context, id uuid.UUID) (*ElevationProfile, error) {
	if _, err := s.GetRoute(ctx, id); err != nil {
		return nil, err
	}

	points, err := s.repo.GetRoutePoints(ctx, id)
	if err != nil {
		return nil, common.NewInternalError("failed to load route points", err)
	}

	annotated := geo.AnnotateDistances(points)
	stats := geo.ElevationSummary(points)

	profile := &ElevationProfile{
		RouteID:      id,
		Points:       annotated,
		Ascent:       stats.AscentM,
		Descent:      stats.DescentM,
		MinElevation: stats.MinM,
		MaxElevation: stats.MaxM,
	}
	if len(annotated) > 0 {
		profile.TotalDistanceKm = annotated[len(annotated)-1].Distance
	}
	return profile, nil
}

type routePage struct {
	Routes []*Route `json:"routes"`
	Total  int64    `json:"total"`
}

// ListRoutes returns one page of routes, newest first
func (s *Service) ListRoutes(ctx context.Context, params ListParams) ([]*Route, int64, error) {
	page := pagination.Params{Limit: params.Limit, Offset: params.Offset}.Normalize()
	params.Limit = page.Limit
	params.Offset = page.Offset
	params.Search = security.SanitizeText(strings.TrimSpace(params.Search), maxNameLength)

	load := func() (interface{}, error) {
		routes, total, err := s.repo.ListRoutes(ctx, params)
		if err != nil {
			return nil, err
		}
		return &routePage{Routes: routes, Total: total}, nil
	}

	var result routePage
	if s.cache == nil {
		loaded, err := load()
		if err != nil {
			return nil, 0, common.NewInternalError("failed to list routes", err)
		}
		result = *loaded.(*routePage)
	} else {
		key := cache.Keys.RouteList(params.OwnerID, params.Search, params.Limit, params.Offset)
		if _, err := s.cache.GetOrSet(ctx, key, cache.TTL.Short(), &result, load); err != nil {
			return nil, 0, common.NewInternalError("failed to list routes", err)
		}
	}

	if result.Routes == nil {
		result.Routes = make([]*Route, 0)
	}
	return result.Routes, result.Total, nil
}

// ImportGPX stores the track of a GPX upload as a new route owned by ownerID.
// An empty name falls back to the name inside the file.
func (s *Service) ImportGPX(ctx context.Context, ownerID uuid.UUID, name, description string, data []byte) (*Route, error) {
	var route *Route
	err := tracing.TraceBusinessLogic(ctx, tracerName, "routes.import_gpx",
		tracing.RouteAttributes("", ownerID.String()),
		func(ctx context.Context) error {
			var err error
			route, err = s.importGPX(ctx, ownerID, name, description, data)
			return err
		})
	return route, err
}

func (s *Service) importGPX(ctx context.Context, ownerID uuid.UUID, name, description string, data []byte) (*Route, error) {
	parsed, err := ParseGPX(data)
	if err != nil {
		return nil, common.NewBadRequestError("invalid GPX file", err).WithCode(common.CodeInvalidGPX)
	}
	if len(parsed.Points) < minRoutePoints {
		return nil, common.NewBadRequestError(
			fmt.Sprintf("GPX file must contain at least %d points", minRoutePoints), nil,
		).WithCode(common.CodeInvalidGPX)
	}
	for _, p := range parsed.Points {
		if err := validation.ValidateCoordinates(p.Latitude, p.Longitude); err != nil {
			return nil, common.NewBadRequestError("GPX file contains invalid coordinates", err).WithCode(common.CodeInvalidGPX)
		}
	}

	name = security.SanitizeText(name, maxNameLength)
	if name == "" {
		name = security.SanitizeText(parsed.Name, maxNameLength)
	}
	if name == "" {
		return nil, common.NewValidationError("route name is required")
	}
	description = security.SanitizeText(description, maxDescriptionLength)
	if description == "" {
		description = security.SanitizeText(parsed.Description, maxDescriptionLength)
	}

	stats := geo.ElevationSummary(parsed.Points)
	start := parsed.Points[0]
	route := &Route{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Name:           name,
		Description:    description,
		DistanceKm:     geo.TotalDistanceKm(parsed.Points),
		ElevationGainM: stats.AscentM,
		ElevationLossM: stats.DescentM,
		StartLatitude:  start.Latitude,
		StartLongitude: start.Longitude,
		StartCell:      geo.StartCell(start.Latitude, start.Longitude),
		PointCount:     len(parsed.Points),
	}
	route.EstimatedMinutes = geo.EstimateDuration(route.DistanceKm, 0)

	s.archiveUpload(ctx, route, data)

	if err := s.repo.CreateRoute(ctx, route, parsed.Points); err != nil {
		s.discardArchive(ctx, route.ArchiveKey)
		return nil, common.NewInternalError("failed to save route", err)
	}

	s.invalidateLists(ctx)

	logger.InfoContext(ctx, "route imported",
		zap.String("route_id", route.ID.String()),
		zap.Int("points", route.PointCount),
		zap.Float64("distance_km", route.DistanceKm),
	)

	s.publish(ctx, eventbus.SubjectRouteImported, eventbus.RouteImportedData{
		RouteID:        route.ID,
		OwnerID:        route.OwnerID,
		Name:           route.Name,
		DistanceKm:     route.DistanceKm,
		ElevationGainM: route.ElevationGainM,
		StartCell:      route.StartCell,
		PointCount:     route.PointCount,
		ArchiveKey:     route.ArchiveKey,
		ImportedAt:     route.CreatedAt,
	})

	return route, nil
}

// ExportGeoJSON renders the route geometry as a GeoJSON FeatureCollection
func (s *Service) ExportGeoJSON(ctx context.Context, id uuid.UUID) (*geojson.FeatureCollection, error) {
	route, err := s.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}

	points, err := s.repo.GetRoutePoints(ctx, id)
	if err != nil {
		return nil, common.NewInternalError("failed to load route points", err)
	}

	return BuildFeatureCollection(route, geo.AnnotateDistances(points)), nil
}

// NearbyRoutes finds routes starting close to lat/lng, nearest first.
// A non-positive limit uses the default; larger limits are capped.
func (s *Service) NearbyRoutes(ctx context.Context, lat, lng float64, limit int) ([]NearbyRoute, error) {
	if err := validation.ValidateCoordinates(lat, lng); err != nil {
		return nil, common.NewValidationError(err.Error())
	}
	if limit <= 0 {
		limit = defaultNearbyLimit
	}
	if limit > maxNearbyLimit {
		limit = maxNearbyLimit
	}

	candidates, err := s.repo.FindRoutesByStartCells(ctx, geo.NearbyStartCells(lat, lng), lat, lng, maxNearbyCandidates)
	if err != nil {
		return nil, common.NewInternalError("failed to search nearby routes", err)
	}

	nearby := make([]NearbyRoute, 0, len(candidates))
	for _, route := range candidates {
		nearby = append(nearby, NearbyRoute{
			Route:           route,
			StartDistanceKm: geo.Haversine(lat, lng, route.StartLatitude, route.StartLongitude),
		})
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].StartDistanceKm < nearby[j].StartDistanceKm
	})

	if len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby, nil
}

// DeleteRoute removes a route. Only its owner may delete it.
func (s *Service) DeleteRoute(ctx context.Context, id, requesterID uuid.UUID) error {
	route, err := s.repo.GetRouteByID(ctx, id)
	if err != nil {
		return routeLookupError(err)
	}
	if route.OwnerID != requesterID {
		return common.NewForbiddenError("only the route owner can delete this route").WithCode(common.CodeNotRouteOwner)
	}

	if err := s.repo.DeleteRoute(ctx, id); err != nil {
		return routeLookupError(err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.Keys.Route(id)); err != nil {
			logger.WarnContext(ctx, "failed to evict route from cache", zap.String("route_id", id.String()), zap.Error(err))
		}
	}
	s.invalidateLists(ctx)

	logger.InfoContext(ctx, "route deleted", zap.String("route_id", id.String()))

	s.publish(ctx, eventbus.SubjectRouteDeleted, eventbus.RouteDeletedData{
		RouteID:    route.ID,
		OwnerID:    route.OwnerID,
		ArchiveKey: route.ArchiveKey,
		DeletedAt:  time.Now().UTC(),
	})
	return nil
}

// GetArchiveURL returns a short-lived download link for the original GPX file
func (s *Service) GetArchiveURL(ctx context.Context, id uuid.UUID) (*storage.PresignedURLResult, error) {
	route, err := s.repo.GetRouteByID(ctx, id)
	if err != nil {
		return nil, routeLookupError(err)
	}
	if s.archive == nil || route.ArchiveKey == "" {
		return nil, common.NewNotFoundError("no GPX file is archived for this route", nil)
	}

	exists, err := s.archive.Exists(ctx, route.ArchiveKey)
	if err != nil {
		return nil, common.NewInternalError("failed to look up archived GPX", err)
	}
	if !exists {
		return nil, common.NewNotFoundError("archived GPX file is no longer available", nil)
	}

	result, err := s.archive.GetPresignedDownloadURL(ctx, route.ArchiveKey, archiveURLExpiry)
	if err != nil {
		return nil, common.NewInternalError("failed to create download link", err)
	}
	return result, nil
}

func (s *Service) archiveUpload(ctx context.Context, route *Route, data []byte) {
	if s.archive == nil {
		return
	}

	key := archiveKey(route.OwnerID, route.ID)
	if _, err := s.archive.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), gpxContentType); err != nil {
		logger.WarnContext(ctx, "failed to archive GPX upload, continuing without it",
			zap.String("route_id", route.ID.String()),
			zap.Error(err),
		)
		return
	}
	route.ArchiveKey = key
	route.HasArchive = true
}

func (s *Service) discardArchive(ctx context.Context, key string) {
	if s.archive == nil || key == "" {
		return
	}
	if err := s.archive.Delete(ctx, key); err != nil {
		logger.WarnContext(ctx, "failed to remove orphaned GPX archive", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) invalidateLists(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.Keys.RouteListPattern()); err != nil {
		logger.WarnContext(ctx, "failed to invalidate route lists", zap.Error(err))
	}
}

// publish sends an event in the background. Delivery failures are logged
// and never fail the request that caused them.
func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	if s.events == nil {
		return
	}

	event, err := eventbus.NewEvent(subject, eventSource, data)
	if err != nil {
		logger.ErrorContext(ctx, "failed to build event", zap.String("subject", subject), zap.Error(err))
		return
	}

	async.GoWithTimeout(ctx, "publish "+subject, s.publishTimeout, func(ctx context.Context) {
		if err := s.events.Publish(ctx, subject, event); err != nil {
			logger.WarnContext(ctx, "failed to publish event",
				zap.String("subject", subject),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	})
}

func archiveKey(ownerID, routeID uuid.UUID) string {
	return fmt.Sprintf("gpx/%s/%s.gpx", ownerID, routeID)
}

func routeLookupError(err error) error {
	if errors.Is(err, ErrRouteNotFound) {
		return common.NewNotFoundError("route not found", err).WithCode(common.CodeRouteNotFound)
	}
	if _, ok := common.AsAppError(err); ok {
		return err
	}
	return common.NewInternalError("failed to get route", err)
}
