package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-support/backend/internal/models"
)

// Repository handles session_audit_events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one lifecycle event for a session.
func (r *Repository) Record(ctx context.Context, sessionCode, event string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_audit_events (session_code, event) VALUES ($1, $2)`,
		sessionCode, event)
	return err
}

// ListByCode returns all events for a session, oldest first.
func (r *Repository) ListByCode(ctx context.Context, sessionCode string) ([]models.AuditEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_code, event, occurred_at
		 FROM session_audit_events WHERE session_code = $1 ORDER BY occurred_at ASC`,
		sessionCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		if err := rows.Scan(&e.ID, &e.SessionCode, &e.Event, &e.OccurredAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
