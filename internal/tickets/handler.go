package tickets

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-support/backend/internal/middleware"
	"github.com/lumen-support/backend/internal/models"
	"github.com/lumen-support/backend/pkg/response"
)

// CreateRequest is the body for POST /tickets (public, customer-facing).
type CreateRequest struct {
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
	Subject       string `json:"subject" binding:"required"`
	Description   string `json:"description"`
}

// AttachSessionRequest is the body for PATCH /tickets/:id/session.
type AttachSessionRequest struct {
	SessionCode string `json:"session_code" binding:"required"`
}

// Handler handles ticket HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a ticket handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /tickets (public; customers file support requests).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t := &models.Ticket{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Subject:       req.Subject,
		Description:   req.Description,
	}
	if err := h.repo.Create(c.Request.Context(), t); err != nil {
		h.logger.Error("create ticket", zap.Error(err))
		response.Internal(c, "failed to create ticket")
		return
	}
	response.Created(c, t)
}

// List handles GET /tickets. Query ?status= filters by status; ?mine=1
// returns only tickets assigned to the current technician.
func (h *Handler) List(c *gin.Context) {
	var status *models.TicketStatus
	if s := c.Query("status"); s != "" {
		st := models.TicketStatus(s)
		switch st {
		case models.TicketOpen, models.TicketClaimed, models.TicketResolved:
			status = &st
		default:
			response.BadRequest(c, "invalid status")
			return
		}
	}
	var assignedTo *uuid.UUID
	if c.Query("mine") == "1" {
		uid := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		assignedTo = &uid
	}
	list, err := h.repo.List(c.Request.Context(), status, assignedTo)
	if err != nil {
		response.Internal(c, "failed to list tickets")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /tickets/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ticket id")
		return
	}
	t, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "ticket not found")
		return
	}
	response.OK(c, t)
}

// Claim handles POST /tickets/:id/claim. Assigns the ticket to the calling
// technician; only open tickets can be claimed.
func (h *Handler) Claim(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ticket id")
		return
	}
	technicianID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ok, err := h.repo.Claim(c.Request.Context(), id, technicianID)
	if err != nil {
		response.Internal(c, "failed to claim ticket")
		return
	}
	if !ok {
		response.Conflict(c, "ticket is not open")
		return
	}
	t, _ := h.repo.GetByID(c.Request.Context(), id)
	response.OK(c, t)
}

// AttachSession handles PATCH /tickets/:id/session. Links the relay session
// code so the ticket history points at the session's audit trail.
func (h *Handler) AttachSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ticket id")
		return
	}
	var req AttachSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.repo.AttachSession(c.Request.Context(), id, req.SessionCode); err != nil {
		response.Internal(c, "failed to attach session")
		return
	}
	t, _ := h.repo.GetByID(c.Request.Context(), id)
	response.OK(c, t)
}

// Resolve handles POST /tickets/:id/resolve.
func (h *Handler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ticket id")
		return
	}
	if err := h.repo.Resolve(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to resolve ticket")
		return
	}
	response.OK(c, gin.H{"id": id, "status": models.TicketResolved})
}
