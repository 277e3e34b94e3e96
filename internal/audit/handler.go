package audit

import (
	"github.com/gin-gonic/gin"

	"github.com/lumen-support/backend/pkg/response"
)

// Handler handles audit HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates an audit handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListBySession handles GET /sessions/:code/audit (technician).
func (h *Handler) ListBySession(c *gin.Context) {
	code := c.Param("code")
	list, err := h.repo.ListByCode(c.Request.Context(), code)
	if err != nil {
		response.Internal(c, "failed to list audit events")
		return
	}
	response.OK(c, gin.H{"session_code": code, "events": list})
}
