package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionArchive is the persisted record of a finished support session.
// The full signal transcript is stored in S3 under TranscriptS3Key.
type SessionArchive struct {
	ID              uuid.UUID `json:"id"`
	SessionCode     string    `json:"session_code"`
	FinalStatus     string    `json:"final_status"`
	SignalCount     int       `json:"signal_count"`
	TranscriptS3Key *string   `json:"transcript_s3_key,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	ArchivedAt      time.Time `json:"archived_at"`
}
