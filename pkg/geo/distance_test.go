package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name     string
		lat1     float64
		lon1     float64
		lat2     float64
		lon2     float64
		expected float64
		delta    float64
	}{
		{
			name: "same point",
			lat1: 37.5665, lon1: 126.9780,
			lat2: 37.5665, lon2: 126.9780,
			expected: 0,
		},
		{
			name: "city hall to euljiro",
			lat1: 37.5665, lon1: 126.9780,
			lat2: 37.5651, lon2: 126.9895,
			expected: 1.03,
			delta:    0.02,
		},
		{
			name: "seoul to busan",
			lat1: 37.5665, lon1: 126.9780,
			lat2: 35.1796, lon2: 129.0756,
			expected: 325,
			delta:    2,
		},
		{
			name: "one degree of latitude",
			lat1: 0, lon1: 0,
			lat2: 1, lon2: 0,
			expected: 111.19,
			delta:    0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2), tt.delta)
		})
	}
}

func TestHaversineMeters_Symmetric(t *testing.T) {
	a := RoutePoint{Latitude: 37.5665, Longitude: 126.9780}
	b := RoutePoint{Latitude: 37.5700, Longitude: 126.9920}

	assert.Equal(t, HaversineMeters(a, b), HaversineMeters(b, a))
	assert.Greater(t, HaversineMeters(a, b), 0.0)
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 1.03, RoundKm(1.0254))
	assert.Equal(t, 1.02, RoundKm(1.0249))
	assert.Equal(t, 0.0, RoundKm(0.004))
	assert.Equal(t, 12.35, RoundKm(12.345001))

	// halves are judged on the binary value: 1.005 is stored just below it
	assert.Equal(t, 1.0, RoundKm(1.005))
	assert.Equal(t, 2.68, RoundKm(2.675))
}

func TestHaversine_CityHallToEuljiroExact(t *testing.T) {
	from := RoutePoint{Latitude: 37.5665, Longitude: 126.9780}
	to := RoutePoint{Sequence: 1, Latitude: 37.5651, Longitude: 126.9895}

	assert.InDelta(t, 1025.484, HaversineMeters(from, to), 0.01)
	assert.Equal(t, 1.03, Haversine(from.Latitude, from.Longitude, to.Latitude, to.Longitude))

	annotated := AnnotateDistances([]RoutePoint{to, from})
	assert.Equal(t, 0.0, annotated[0].Distance)
	assert.Equal(t, 1.03, annotated[1].Distance)
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 60, EstimateDuration(20, 20))
	assert.Equal(t, 30, EstimateDuration(15, 30))
	assert.Equal(t, 90, EstimateDuration(30, 0))
	assert.Equal(t, 0, EstimateDuration(0, 25))
}
