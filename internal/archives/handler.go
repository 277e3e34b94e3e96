package archives

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumen-support/backend/pkg/response"
	"github.com/lumen-support/backend/pkg/storage"
)

// Handler handles archive HTTP endpoints (technician only).
type Handler struct {
	repo *Repository
	s3   *storage.S3
}

// NewHandler creates an archive handler. s3 may be nil when object storage is
// not configured; transcript downloads are then unavailable.
func NewHandler(repo *Repository, s3 *storage.S3) *Handler {
	return &Handler{repo: repo, s3: s3}
}

// ListBySession handles GET /sessions/:code/archives.
func (h *Handler) ListBySession(c *gin.Context) {
	code := c.Param("code")
	list, err := h.repo.ListBySession(c.Request.Context(), code)
	if err != nil {
		response.Internal(c, "failed to list archives")
		return
	}
	response.OK(c, gin.H{"session_code": code, "archives": list})
}

// Transcript handles GET /archives/:id/transcript. Returns a pre-signed S3
// URL for the transcript JSON.
func (h *Handler) Transcript(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid archive id")
		return
	}
	archive, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "archive not found")
		return
	}
	if h.s3 == nil || archive.TranscriptS3Key == nil {
		response.NotFound(c, "transcript not available")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.TranscriptsBucket(), *archive.TranscriptS3Key, h.s3.PresignExpire())
	if err != nil {
		response.Internal(c, "failed to generate transcript url")
		return
	}
	response.OK(c, gin.H{
		"archive":        archive,
		"transcript_url": url,
		"expires_in":     int(h.s3.PresignExpire().Seconds()),
	})
}
