package onboarding

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/auth"
)

// Handler handles HTTP requests for the onboarding wizard
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new onboarding handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers onboarding routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	onboarding := router.Group("/onboarding")
	{
		onboarding.POST("/start", h.start)
		onboarding.GET("/state", h.getState)
		onboarding.PATCH("/answers", h.setAnswers)
		onboarding.POST("/next", h.step((*Service).Next, "Failed to advance onboarding"))
		onboarding.POST("/back", h.step((*Service).Back, "Failed to go back"))
		onboarding.POST("/submit", h.submit)
		onboarding.POST("/retry", h.retry)
		onboarding.POST("/finish", h.step((*Service).Finish, "Failed to finish onboarding"))
		onboarding.POST("/close", h.step((*Service).Close, "Failed to close onboarding"))
	}
}

func (h *Handler) start(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	st, err := h.service.Start(c.Request.Context(), id.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to start onboarding", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) getState(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	st, err := h.service.State(id.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, "Failed to load onboarding", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) setAnswers(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	var req AnswersUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.service.SetAnswers(id.UserID, req)
	if err != nil {
		respondWithState(c, h.logger, "Failed to update answers", st, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) step(fn func(*Service, string) (State, error), msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.Require(c)
		if !ok {
			return
		}
		st, err := fn(h.service, id.UserID)
		if err != nil {
			respondWithState(c, h.logger, msg, st, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func (h *Handler) submit(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	st, err := h.service.Submit(c.Request.Context(), id.UserID)
	if err != nil {
		respondWithState(c, h.logger, "Onboarding submit failed", st, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) retry(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	st, err := h.service.Retry(c.Request.Context(), id.UserID)
	if err != nil {
		respondWithState(c, h.logger, "Onboarding retry failed", st, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// respondWithState is apperr.Respond plus the run's state, so clients can
// render the failed phase without a second request.
func respondWithState(c *gin.Context, logger *zap.Logger, msg string, st State, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	if status >= 500 {
		logger.Error(msg, zap.Error(err), zap.String("code", string(code)))
	}
	body := gin.H{"error": err.Error(), "code": code}
	if st.RunID != uuid.Nil {
		body["state"] = st
	}
	c.JSON(status, body)
}
