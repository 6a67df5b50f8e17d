package roadmap

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/auth"
	"dealscout/investor-portal/portal-backend/internal/roadmap/export"
)

// Handler handles HTTP requests for roadmaps
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new roadmap handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers roadmap routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	roadmaps := router.Group("/roadmaps")
	{
		roadmaps.GET("/current", h.getCurrent)
		roadmaps.GET("/:id", h.getPlan)
		roadmaps.PUT("/:id/phases/:phase/steps/:step", h.toggleStep)
		roadmaps.GET("/:id/export", h.exportPlan)
	}
}

type toggleRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

func (h *Handler) getCurrent(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	plan, err := h.service.Current(c.Request.Context(), id.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to get roadmap", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) getPlan(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID"})
		return
	}
	plan, err := h.service.Get(c.Request.Context(), id.UserID, planID)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to get roadmap", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// toggleStep handles PUT /api/v1/roadmaps/:id/phases/:phase/steps/:step
func (h *Handler) toggleStep(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID"})
		return
	}
	phase, err1 := strconv.Atoi(c.Param("phase"))
	step, err2 := strconv.Atoi(c.Param("step"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phase or step index"})
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.service.ToggleStep(c.Request.Context(), id.UserID, planID, phase, step, *req.Completed)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to update roadmap step", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// exportPlan handles GET /api/v1/roadmaps/:id/export?format=pdf|xlsx|csv
func (h *Handler) exportPlan(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID"})
		return
	}
	format, err := export.ParseFormat(c.DefaultQuery("format", "pdf"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := h.service.Export(c.Request.Context(), id.UserID, planID, format)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to export roadmap", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=roadmap-%s.%s", planID, format))
	c.Data(http.StatusOK, format.ContentType(), data)
}
