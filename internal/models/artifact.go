package models

import (
	"time"

	"github.com/google/uuid"
)

// Artifact is a diagnostic file a customer uploaded for a support session.
// The blob lives in S3; this is the metadata row.
type Artifact struct {
	ID          uuid.UUID `json:"id"`
	SessionCode string    `json:"session_code"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	S3Key       string    `json:"s3_key"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
