package weather

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/middleware"
	"github.com/taiso/routes-service/pkg/ratelimit"
)

// Handler handles HTTP requests for forecasts
type Handler struct {
	service *Service
}

// NewHandler creates a new weather handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the forecast endpoint. limiter may be nil.
func (h *Handler) RegisterRoutes(r *gin.Engine, limiter *ratelimit.Limiter) {
	r.GET("/api/v1/weather", middleware.RateLimit(limiter), h.GetForecast)
}

// GetForecast handles GET /api/v1/weather?lat=&lng=&at=
// at is RFC3339 and defaults to now.
func (h *Handler) GetForecast(c *gin.Context) {
	lat, ok := common.ParseFloatQuery(c, "lat")
	if !ok {
		return
	}
	lng, ok := common.ParseFloatQuery(c, "lng")
	if !ok {
		return
	}

	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "at must be an RFC3339 timestamp")
			return
		}
		at = parsed
	}

	forecast, err := h.service.ForecastAt(c.Request.Context(), lat, lng, at)
	if common.HandleServiceError(c, err, "failed to get forecast") {
		return
	}

	common.SuccessResponse(c, gin.H{
		"requested_at": at.In(h.service.Location()).Format(time.RFC3339),
		"timezone":     h.service.Location().String(),
		"forecast":     forecast,
	})
}
