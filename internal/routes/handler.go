package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/logger"
	"github.com/taiso/routes-service/pkg/middleware"
	"github.com/taiso/routes-service/pkg/pagination"
	"github.com/taiso/routes-service/pkg/ratelimit"
	"github.com/taiso/routes-service/pkg/security"
	"github.com/taiso/routes-service/pkg/validation"
	"go.uber.org/zap"
)

const maxUploadBytes = 10 << 20

// Handler handles HTTP requests for routes
type Handler struct {
	service *Service
}

// NewHandler creates a new routes handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the route endpoints under /api/v1/routes.
// limiter may be nil.
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string, limiter *ratelimit.Limiter) {
	routes := r.Group("/api/v1/routes")
	routes.Use(middleware.RateLimit(limiter))
	{
		routes.GET("", h.ListRoutes)
		routes.GET("/nearby", h.NearbyRoutes)
		routes.GET("/:id", h.GetRoute)
		routes.GET("/:id/elevation", h.GetElevationProfile)
		routes.GET("/:id/geojson", h.ExportGeoJSON)
		routes.GET("/:id/gpx", h.GetGPXDownload)
	}

	authenticated := r.Group("/api/v1/routes")
	authenticated.Use(middleware.AuthMiddleware(jwtSecret), middleware.RateLimit(limiter))
	{
		authenticated.POST("/import", h.ImportGPX)
		authenticated.DELETE("/:id", h.DeleteRoute)
	}
}

// ListRoutes handles GET /api/v1/routes
func (h *Handler) ListRoutes(c *gin.Context) {
	page := pagination.ParseParams(c)

	ownerID, ok := common.ParseUUIDQuery(c, "owner_id", "owner ID", false)
	if !ok {
		return
	}

	params := ListParams{
		Limit:  page.Limit,
		Offset: page.Offset,
		Search: c.Query("search"),
	}
	if ownerID != uuid.Nil {
		params.OwnerID = &ownerID
	}

	routes, total, err := h.service.ListRoutes(c.Request.Context(), params)
	if common.HandleServiceError(c, err, "failed to list routes") {
		return
	}

	common.SuccessResponseWithMeta(c, routes, pagination.BuildMeta(page.Limit, page.Offset, total))
}

type nearbyQuery struct {
	Latitude  *float64 `form:"lat" validate:"required,latitude"`
	Longitude *float64 `form:"lng" validate:"required,longitude"`
	Limit     int      `form:"limit" validate:"omitempty,min=1"`
}

// NearbyRoutes handles GET /api/v1/routes/nearby?lat=&lng=&limit=
func (h *Handler) NearbyRoutes(c *gin.Context) {
	var query nearbyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "lat, lng and limit must be numbers")
		return
	}
	if err := validation.ValidateStruct(query); err != nil {
		common.AppErrorResponse(c, common.NewValidationError(err.Error()))
		return
	}

	routes, err := h.service.NearbyRoutes(c.Request.Context(), *query.Latitude, *query.Longitude, query.Limit)
	if common.HandleServiceError(c, err, "failed to search nearby routes") {
		return
	}

	common.SuccessResponse(c, routes)
}

// GetRoute handles GET /api/v1/routes/:id
func (h *Handler) GetRoute(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id", "route ID")
	if !ok {
		return
	}

	route, err := h.service.GetRoute(c.Request.Context(), id)
	if common.HandleServiceError(c, err, "failed to get route") {
		return
	}

	common.SuccessResponse(c, route)
}

// GetElevationProfile handles GET /api/v1/routes/:id/elevation
func (h *Handler) GetElevationProfile(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id", "route ID")
	if !ok {
		return
	}

	profile, err := h.service.GetElevationProfile(c.Request.Context(), id)
	if common.HandleServiceError(c, err, "failed to build elevation profile") {
		return
	}

	common.SuccessResponse(c, profile)
}

// ExportGeoJSON handles GET /api/v1/routes/:id/geojson. The body is a bare
// FeatureCollection so map clients can load it directly.
func (h *Handler) ExportGeoJSON(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id", "route ID")
	if !ok {
		return
	}

	fc, err := h.service.ExportGeoJSON(c.Request.Context(), id)
	if common.HandleServiceError(c, err, "failed to export route") {
		return
	}

	body, err := fc.MarshalJSON()
	if common.HandleServiceError(c, err, "failed to encode route") {
		return
	}

	c.Data(http.StatusOK, "application/geo+json", body)
}

// GetGPXDownload handles GET /api/v1/routes/:id/gpx
func (h *Handler) GetGPXDownload(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id", "route ID")
	if !ok {
		return
	}

	link, err := h.service.GetArchiveURL(c.Request.Context(), id)
	if common.HandleServiceError(c, err, "failed to create download link") {
		return
	}

	common.SuccessResponse(c, link)
}

// ImportGPX handles POST /api/v1/routes/import (multipart: file, name, description)
func (h *Handler) ImportGPX(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.ErrorResponse(c, http.StatusRequestEntityTooLarge, "GPX file exceeds the 10 MB limit")
			return
		}
		common.ErrorResponse(c, http.StatusBadRequest, "a GPX file is required in the 'file' field")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	defer file.Close()

	logger.DebugContext(c.Request.Context(), "reading GPX upload",
		zap.String("filename", security.SanitizeFilename(fileHeader.Filename)),
		zap.Int64("size", fileHeader.Size),
	)

	data, err := io.ReadAll(file)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	route, err := h.service.ImportGPX(c.Request.Context(), userID, c.PostForm("name"), c.PostForm("description"), data)
	if common.HandleServiceError(c, err, "failed to import route") {
		return
	}

	common.CreatedResponse(c, route)
}

// DeleteRoute handles DELETE /api/v1/routes/:id
func (h *Handler) DeleteRoute(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	id, ok := common.ParseUUIDParam(c, "id", "route ID")
	if !ok {
		return
	}

	err := h.service.DeleteRoute(c.Request.Context(), id, userID)
	if common.HandleServiceError(c, err, "failed to delete route") {
		return
	}

	common.SuccessResponse(c, gin.H{"message": "route deleted"})
}
