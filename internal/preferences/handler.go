package preferences

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/auth"
)

// Handler handles HTTP requests for preference records
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new preferences handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers preference routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	prefs := router.Group("/preferences")
	{
		prefs.GET("", h.getPreferences)
		prefs.PATCH("", h.patchPreferences)
		prefs.GET("/completeness", h.getCompleteness)
	}
}

type preferencesResponse struct {
	Record     *PreferenceRecord `json:"record"`
	Incomplete Categories        `json:"incomplete"`
}

// getPreferences handles GET /api/v1/preferences
func (h *Handler) getPreferences(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}

	rec, err := h.service.Get(c.Request.Context(), id.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to get preferences", err)
		return
	}

	c.JSON(http.StatusOK, preferencesResponse{Record: rec, Incomplete: Evaluate(rec)})
}

// patchPreferences handles PATCH /api/v1/preferences
func (h *Handler) patchPreferences(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.service.Merge(c.Request.Context(), id.UserID, CoercePatch(body))
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to update preferences", err)
		return
	}

	c.JSON(http.StatusOK, preferencesResponse{Record: rec, Incomplete: Evaluate(rec)})
}

// getCompleteness handles GET /api/v1/preferences/completeness
func (h *Handler) getCompleteness(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}

	incomplete, err := h.service.Completeness(c.Request.Context(), id.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to evaluate completeness", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"incomplete": incomplete})
}
