package artifacts

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-support/backend/internal/models"
	"github.com/lumen-support/backend/internal/relay"
	"github.com/lumen-support/backend/pkg/response"
	"github.com/lumen-support/backend/pkg/storage"
)

// Handler handles diagnostic artifact endpoints. Uploads are gated on the
// session's relay secret; listing and downloads require a technician JWT.
type Handler struct {
	repo       *Repository
	controller *relay.Controller
	s3         *storage.S3
	logger     *zap.Logger
}

// NewHandler creates an artifact handler.
func NewHandler(repo *Repository, controller *relay.Controller, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, controller: controller, s3: s3, logger: logger}
}

// Upload handles POST /sessions/:code/artifacts. Multipart form with fields
// role, secret and file. Either side of the session may upload.
func (h *Handler) Upload(c *gin.Context) {
	code := c.Param("code")
	role := models.Role(c.PostForm("role"))
	secret := c.PostForm("secret")

	if err := h.controller.Authorize(code, role, secret); err != nil {
		writeRelayError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fileHeader.Size > storage.MaxArtifactFileSize {
		response.BadRequest(c, fmt.Sprintf("file exceeds %dMB limit", storage.MaxArtifactFileSize/(1024*1024)))
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidateArtifactFileType(contentType, fileHeader.Filename) {
		response.BadRequest(c, "file type not allowed")
		return
	}
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(fileHeader.Filename)
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer file.Close()

	artifact := &models.Artifact{
		ID:          uuid.New(),
		SessionCode: code,
		FileName:    fileHeader.Filename,
		ContentType: contentType,
		SizeBytes:   fileHeader.Size,
	}
	artifact.S3Key = storage.ArtifactKey(code, artifact.ID.String(), fileHeader.Filename)

	if _, err := h.s3.Upload(c.Request.Context(), h.s3.ArtifactsBucket(), artifact.S3Key, contentType, file, fileHeader.Size); err != nil {
		h.logger.Error("artifact upload", zap.String("code", code), zap.Error(err))
		response.Internal(c, "failed to store artifact")
		return
	}

	if err := h.repo.Create(c.Request.Context(), artifact); err != nil {
		h.logger.Error("artifact metadata insert", zap.String("code", code), zap.Error(err))
		// Best effort: don't leave an orphan object behind.
		_ = h.s3.DeleteObject(c.Request.Context(), h.s3.ArtifactsBucket(), artifact.S3Key)
		response.Internal(c, "failed to record artifact")
		return
	}

	h.logger.Info("artifact uploaded",
		zap.String("code", code),
		zap.String("file", artifact.FileName),
		zap.Int64("size", artifact.SizeBytes))
	response.Created(c, artifact)
}

// ListBySession handles GET /sessions/:code/artifacts (technician).
func (h *Handler) ListBySession(c *gin.Context) {
	code := c.Param("code")
	list, err := h.repo.ListBySession(c.Request.Context(), code)
	if err != nil {
		response.Internal(c, "failed to list artifacts")
		return
	}
	response.OK(c, gin.H{"session_code": code, "artifacts": list})
}

// Download handles GET /artifacts/:id/download (technician). Returns a
// pre-signed S3 URL rather than proxying the blob.
func (h *Handler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid artifact id")
		return
	}
	artifact, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "artifact not found")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.ArtifactsBucket(), artifact.S3Key, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("artifact presign", zap.String("id", id.String()), zap.Error(err))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, gin.H{
		"artifact":     artifact,
		"download_url": url,
		"expires_in":   int(h.s3.PresignExpire().Seconds()),
	})
}

func writeRelayError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, relay.ErrNotFound):
		response.NotFound(c, "session not found")
	case errors.Is(err, relay.ErrExpired):
		response.Gone(c, "session expired")
	case errors.Is(err, relay.ErrForbidden):
		response.Forbidden(c, "invalid credentials")
	default:
		response.Internal(c, "internal error")
	}
}
