package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is one persisted session lifecycle event.
type AuditEvent struct {
	ID          uuid.UUID `json:"id"`
	SessionCode string    `json:"session_code"`
	Event       string    `json:"event"`
	OccurredAt  time.Time `json:"occurred_at"`
}
