package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/taiso/routes-service/pkg/cache"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/config"
	"github.com/taiso/routes-service/pkg/httpclient"
	"github.com/taiso/routes-service/pkg/logger"
	"github.com/taiso/routes-service/pkg/tracing"
	"github.com/taiso/routes-service/pkg/validation"
	"go.uber.org/zap"
)

var forecastCacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "weather_forecast_cache_lookups_total",
		Help: "Hourly forecast cache lookups by result",
	},
	[]string{"result"},
)

// Cache is the subset of the cache manager used for forecast feeds
type Cache interface {
	GetOrSet(ctx context.Context, key string, ttl time.Duration, result interface{}, fn func() (interface{}, error)) (bool, error)
}

// Service answers forecast lookups for a point in time
type Service struct {
	provider Provider
	cache    Cache
	location *time.Location
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService creates a forecast service. store may be nil.
func NewService(provider Provider, store Cache, cfg config.WeatherConfig) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load forecast timezone %q: %w", cfg.Timezone, err)
	}

	ttl := cfg.CacheTTL()
	if ttl <= 0 {
		ttl = cache.TTL.Long()
	}

	return &Service{
		provider: provider,
		cache:    store,
		location: loc,
		cacheTTL: ttl,
		now:      time.Now,
	}, nil
}

// Location returns the timezone forecasts are resolved in
func (s *Service) Location() *time.Location {
	return s.location
}

// Today returns midnight of the current date in the forecast timezone
func (s *Service) Today(ctx context.Context) time.Time {
	return startOfDay(s.now().In(s.location))
}

// ForecastAt returns the hourly entry nearest to at for the given location.
// The day's feed is cached per rounded coordinate and local date.
func (s *Service) ForecastAt(ctx context.Context, lat, lng float64, at time.Time) (*HourlyForecast, error) {
	if err := validation.ValidateCoordinates(lat, lng); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	local := at.In(s.location)
	day := startOfDay(local)

	var forecast Forecast
	err := tracing.TraceBusinessLogic(ctx, tracerName, "weather.forecast_at", tracing.LocationAttributes(lat, lng),
		func(ctx context.Context) error {
			return s.loadDay(ctx, lat, lng, day, &forecast)
		})
	if err != nil {
		return nil, s.providerError(ctx, err)
	}

	hour, ok := NearestHour(forecast.Hours, local)
	if !ok {
		return nil, common.NewNotFoundError("no forecast is available for this time", nil).WithCode(common.CodeForecastNotFound)
	}
	return &hour, nil
}

func (s *Service) loadDay(ctx context.Context, lat, lng float64, day time.Time, out *Forecast) error {
	fetch := func() (interface{}, error) {
		return s.provider.HourlyForecast(ctx, lat, lng, day)
	}

	if s.cache == nil {
		result, err := fetch()
		if err != nil {
			return err
		}
		*out = *result.(*Forecast)
		return nil
	}

	hit, err := s.cache.GetOrSet(ctx, cache.Keys.Weather(lat, lng, day), s.cacheTTL, out, fetch)
	if err != nil {
		return err
	}
	if hit {
		forecastCacheLookups.WithLabelValues("hit").Inc()
	} else {
		forecastCacheLookups.WithLabelValues("miss").Inc()
	}
	return nil
}

func (s *Service) providerError(ctx context.Context, err error) error {
	if appErr, ok := common.AsAppError(err); ok {
		return appErr
	}

	kind := httpclient.Classify(err)
	logger.WarnContext(ctx, "forecast provider call failed",
		zap.String("kind", kind.String()),
		zap.Error(err),
	)

	switch kind {
	case httpclient.KindCircuitOpen:
		return common.NewServiceUnavailableError("forecast provider is temporarily unavailable", err)
	case httpclient.KindUnauthorized, httpclient.KindForbidden, httpclient.KindNotFound,
		httpclient.KindClientError, httpclient.KindDecodeError:
		return common.NewBadGatewayError("forecast provider rejected the request", err).WithCode(common.CodeUpstreamRejected)
	default:
		return common.NewBadGatewayError("forecast provider unavailable", err)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
