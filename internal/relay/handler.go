package relay

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumen-support/backend/internal/models"
	"github.com/lumen-support/backend/pkg/response"
)

// Handler exposes the relay over HTTP.
type Handler struct {
	controller *Controller
	logger     *zap.Logger
}

// NewHandler creates a relay HTTP handler.
func NewHandler(controller *Controller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{controller: controller, logger: logger}
}

// writeError maps the relay error taxonomy onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "session not found")
	case errors.Is(err, ErrExpired):
		response.Gone(c, "session expired")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "not authorized for this session")
	case errors.Is(err, ErrInvalidState):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("relay operation failed", zap.Error(err))
		response.Internal(c, "relay failure")
	}
}

// CreateSession handles POST /sessions. Called by the customer's device; the
// response carries the session code and the host secret only. The viewer
// secret is handed out through the join endpoint, never alongside this one.
func (h *Handler) CreateSession(c *gin.Context) {
	s, err := h.controller.CreateSession()
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, gin.H{
		"code":        s.Code,
		"host_secret": s.HostSecret,
		"expires_at":  s.ExpiresAt,
	})
}

// JoinSession handles POST /sessions/:code/join (technician, JWT-guarded in
// the router). The viewer secret is claimable exactly once.
func (h *Handler) JoinSession(c *gin.Context) {
	secret, expiresAt, err := h.controller.ClaimViewer(c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{
		"viewer_secret": secret,
		"expires_at":    expiresAt,
	})
}

// SubmitRequest is the body for POST /sessions/:code/signals.
type SubmitRequest struct {
	Secret string `json:"secret" binding:"required"`
	Signal struct {
		From      models.Role       `json:"from" binding:"required"`
		Type      models.SignalType `json:"type" binding:"required"`
		Data      json.RawMessage   `json:"data" binding:"required"`
		Timestamp int64             `json:"timestamp"`
	} `json:"signal" binding:"required"`
}

// SubmitSignal handles POST /sessions/:code/signals.
func (h *Handler) SubmitSignal(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sig := models.Signal{
		From:      req.Signal.From,
		Type:      req.Signal.Type,
		Data:      req.Signal.Data,
		Timestamp: req.Signal.Timestamp,
	}
	if err := h.controller.SubmitSignal(c.Param("code"), req.Secret, sig); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"accepted": true})
}

// PollSignals handles GET /sessions/:code/signals?role=&secret=&after=.
// An empty signal list is a normal response, not an error.
func (h *Handler) PollSignals(c *gin.Context) {
	role := models.Role(c.Query("role"))
	secret := c.Query("secret")
	if secret == "" {
		response.BadRequest(c, "secret is required")
		return
	}
	var after int64
	if raw := c.Query("after"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			response.BadRequest(c, "invalid after cursor")
			return
		}
		after = n
	}
	result, err := h.controller.PollSignals(c.Param("code"), role, secret, after)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if result.Signals == nil {
		result.Signals = []models.Signal{}
	}
	response.OK(c, result)
}

// ControlRequest is the body for POST /sessions/:code/control.
type ControlRequest struct {
	Secret  string `json:"secret" binding:"required"`
	Enabled *bool  `json:"enabled" binding:"required"`
}

// SetRemoteControl handles POST /sessions/:code/control (host secret only).
func (h *Handler) SetRemoteControl(c *gin.Context) {
	var req ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	enabled, err := h.controller.SetRemoteControl(c.Param("code"), req.Secret, *req.Enabled)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"remote_control_enabled": enabled})
}

// EndRequest is the body for POST /sessions/:code/end.
type EndRequest struct {
	Role   models.Role `json:"role" binding:"required"`
	Secret string      `json:"secret" binding:"required"`
}

// EndSession handles POST /sessions/:code/end. Either role may end the
// session; ending an already-ended session succeeds.
func (h *Handler) EndSession(c *gin.Context) {
	var req EndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.controller.EndSession(c.Param("code"), req.Role, req.Secret); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"session_status": models.StatusDisconnected})
}
