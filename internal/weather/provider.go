package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/taiso/routes-service/pkg/config"
	"github.com/taiso/routes-service/pkg/httpclient"
	"github.com/taiso/routes-service/pkg/resilience"
	"github.com/taiso/routes-service/pkg/tracing"
)

const (
	// ProviderName identifies the forecast upstream in breaker settings and metrics
	ProviderName = "weather-provider"

	tracerName      = "taiso-routes/weather"
	providerTimeout = 10 * time.Second
	forecastPath    = "/v1/forecast"
	hourlyFields    = "temperature_2m,precipitation_probability,precipitation,wind_speed_10m,weather_code"
	openMeteoLayout = "2006-01-02T15:04"
)

// Provider fetches the hourly forecast for one calendar day
type Provider interface {
	HourlyForecast(ctx context.Context, lat, lng float64, day time.Time) (*Forecast, error)
}

// OpenMeteoProvider reads forecasts from the Open-Meteo API
type OpenMeteoProvider struct {
	client   *httpclient.Client
	breaker  *resilience.CircuitBreaker
	location *time.Location
}

// NewOpenMeteoProvider creates a provider whose hourly times are read in loc.
// A nil breaker disables circuit breaking.
func NewOpenMeteoProvider(client *httpclient.Client, breaker *resilience.CircuitBreaker, loc *time.Location) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		client:   client,
		breaker:  breaker,
		location: loc,
	}
}

// NewProviderClient builds the retrying HTTP client for the forecast API
func NewProviderClient(baseURL string) *httpclient.Client {
	return httpclient.NewClient(baseURL, providerTimeout,
		httpclient.WithName(ProviderName),
		httpclient.WithDefaultRetry(),
	)
}

// NewProviderBreaker returns the forecast breaker, or nil when breaking is
// disabled. Client-side rejections such as an unknown location do not count
// as upstream failures.
func NewProviderBreaker(cfg config.CircuitBreakerConfig) *resilience.CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	settings := resilience.BuildSettings(cfg, ProviderName)
	settings.Benign = httpclient.IsClientFault
	return resilience.NewCircuitBreaker(settings, resilience.GracefulDegradation(ProviderName))
}

type openMeteoResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Hourly    struct {
		Time                     []string  `json:"time"`
		Temperature2m            []float64 `json:"temperature_2m"`
		PrecipitationProbability []int     `json:"precipitation_probability"`
		Precipitation            []float64 `json:"precipitation"`
		WindSpeed10m             []float64 `json:"wind_speed_10m"`
		WeatherCode              []int     `json:"weather_code"`
	} `json:"hourly"`
}

// HourlyForecast implements Provider
func (p *OpenMeteoProvider) HourlyForecast(ctx context.Context, lat, lng float64, day time.Time) (*Forecast, error) {
	date := day.In(p.location).Format("2006-01-02")
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(lng, 'f', 4, 64))
	query.Set("hourly", hourlyFields)
	query.Set("timezone", p.location.String())
	query.Set("start_date", date)
	query.Set("end_date", date)

	var resp openMeteoResponse
	_, err := p.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, tracing.TraceExternalAPI(ctx, tracerName, ProviderName, "hourly_forecast", func(ctx context.Context) error {
			return p.client.GetJSON(ctx, forecastPath, query, &resp)
		})
	})
	if err != nil {
		return nil, err
	}

	return resp.toForecast(p.location)
}

func (r *openMeteoResponse) toForecast(loc *time.Location) (*Forecast, error) {
	forecast := &Forecast{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timezone:  loc.String(),
		Hours:     make([]HourlyForecast, 0, len(r.Hourly.Time)),
	}

	for i, raw := range r.Hourly.Time {
		t, err := time.ParseInLocation(openMeteoLayout, raw, loc)
		if err != nil {
			return nil, &httpclient.DecodeError{Err: fmt.Errorf("hourly time %q: %w", raw, err)}
		}
		forecast.Hours = append(forecast.Hours, HourlyForecast{
			Time:                     t,
			TemperatureC:             floatAt(r.Hourly.Temperature2m, i),
			PrecipitationProbability: intAt(r.Hourly.PrecipitationProbability, i),
			PrecipitationMm:          floatAt(r.Hourly.Precipitation, i),
			WindSpeedKmh:             floatAt(r.Hourly.WindSpeed10m, i),
			WeatherCode:              intAt(r.Hourly.WeatherCode, i),
		})
	}
	return forecast, nil
}

func floatAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func intAt(values []int, i int) int {
	if i < len(values) {
		return values[i]
	}
	return 0
}
