package weather

import "time"

// HourlyForecast is one hour of the provider's forecast feed
type HourlyForecast struct {
	Time                     time.Time `json:"time"`
	TemperatureC             float64   `json:"temperature_c"`
	PrecipitationProbability int       `json:"precipitation_probability"`
	PrecipitationMm          float64   `json:"precipitation_mm"`
	WindSpeedKmh             float64   `json:"wind_speed_kmh"`
	WeatherCode              int       `json:"weather_code"`
}

// Forecast is the hourly feed for a single day at one location
type Forecast struct {
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Timezone  string           `json:"timezone"`
	Hours     []HourlyForecast `json:"hours"`
}

// NearestHour returns the entry closest to at. When two entries are equally
// close the earlier one wins. ok is false when hours is empty.
func NearestHour(hours []HourlyForecast, at time.Time) (HourlyForecast, bool) {
	if len(hours) == 0 {
		return HourlyForecast{}, false
	}

	best := hours[0]
	bestDiff := absDuration(best.Time.Sub(at))
	for _, hour := range hours[1:] {
		diff := absDuration(hour.Time.Sub(at))
		if diff < bestDiff || (diff == bestDiff && hour.Time.Before(best.Time)) {
			best = hour
			bestDiff = diff
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
