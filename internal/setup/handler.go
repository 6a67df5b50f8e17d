package setup

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/auth"
	"dealscout/investor-portal/portal-backend/internal/preferences"
)

// Handler handles HTTP requests for prompts and setup modals
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new setup handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers setup routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	setup := router.Group("/setup")
	{
		setup.GET("/state", h.getState)
		setup.POST("/trigger", h.trigger)
		setup.POST("/prompt/dismiss", h.dismiss)
		setup.POST("/prompt/accept", h.accept)
		setup.POST("/modal/open", h.open)
		setup.PUT("/modal/draft", h.draft)
		setup.POST("/modal/skip", h.skip)
		setup.POST("/modal/complete", h.complete)
	}
}

type triggerRequest struct {
	Feature string `json:"feature" binding:"required"`
}

type modalRequest struct {
	Category string   `json:"category" binding:"required"`
	Values   []string `json:"values"`
}

func (h *Handler) getState(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	view, err := h.service.State(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to load setup state", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) trigger(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.service.Trigger(c.Request.Context(), id, req.Feature)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to evaluate prompt", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) dismiss(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.service.Dismiss(id))
}

func (h *Handler) accept(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	snap, err := h.service.Accept(id)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to accept prompt", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) open(c *gin.Context) {
	id, _, cat, ok := h.bindModal(c)
	if !ok {
		return
	}
	snap, err := h.service.Open(id, cat)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to open modal", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) draft(c *gin.Context) {
	id, req, cat, ok := h.bindModal(c)
	if !ok {
		return
	}
	snap, err := h.service.Draft(id, cat, req.Values)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to save draft", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) skip(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.service.Skip(id))
}

func (h *Handler) complete(c *gin.Context) {
	id, req, cat, ok := h.bindModal(c)
	if !ok {
		return
	}
	view, err := h.service.Complete(c.Request.Context(), id, cat, req.Values)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to complete setup modal", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) bindModal(c *gin.Context) (auth.Identity, modalRequest, preferences.SetupCategory, bool) {
	id, ok := auth.Require(c)
	if !ok {
		return auth.Identity{}, modalRequest{}, "", false
	}
	var req modalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return auth.Identity{}, modalRequest{}, "", false
	}
	cat, err := preferences.ParseCategory(req.Category)
	if err != nil {
		apperr.Respond(c, h.logger, "Invalid setup category", err)
		return auth.Identity{}, modalRequest{}, "", false
	}
	return id, req, cat, true
}
