package weather

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taiso/routes-service/pkg/httpclient"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T, provider Provider) *gin.Engine {
	t.Helper()
	router := gin.New()
	NewHandler(newTestService(t, provider, newFakeCache())).RegisterRoutes(router, nil)
	return router
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGetForecast(t *testing.T) {
	loc := seoul(t)
	router := setupRouter(t, &fakeProvider{forecast: dayForecast(loc)})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather?lat=37.55&lng=126.99&at=2026-05-03T06:20:00%2B09:00", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := parseResponse(t, w)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Asia/Seoul", data["timezone"])
	assert.Equal(t, "2026-05-03T06:20:00+09:00", data["requested_at"])

	forecast := data["forecast"].(map[string]interface{})
	assert.Equal(t, 16.0, forecast["temperature_c"])
	at, err := time.Parse(time.RFC3339, forecast["time"].(string))
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 5, 3, 6, 0, 0, 0, loc).Equal(at))
}

func TestGetForecastBadRequests(t *testing.T) {
	router := setupRouter(t, &fakeProvider{})

	tests := []struct {
		name  string
		query string
	}{
		{"missing lat", "?lng=126.99"},
		{"missing lng", "?lat=37.55"},
		{"non-numeric lat", "?lat=north&lng=126.99"},
		{"invalid at", "?lat=37.55&lng=126.99&at=tomorrow"},
		{"lat out of range", "?lat=95&lng=126.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/weather"+tt.query, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, parseResponse(t, w)["success"])
		})
	}
}

func TestGetForecastProviderFailure(t *testing.T) {
	router := setupRouter(t, &fakeProvider{err: &httpclient.HTTPError{StatusCode: http.StatusServiceUnavailable}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/weather?lat=37.55&lng=126.99", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
