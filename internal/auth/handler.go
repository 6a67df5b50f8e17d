package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

// Me returns the identity resolved from the caller's token.
func (h *Handler) Me(c *gin.Context) {
	id, ok := Require(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, id)
}
