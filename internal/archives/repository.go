package archives

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-support/backend/internal/models"
)

// Repository handles session archive persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an archive repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an archive row for a finished session.
func (r *Repository) Create(ctx context.Context, a *models.SessionArchive) error {
	const q = `INSERT INTO session_archives (id, session_code, final_status, signal_count, transcript_s3_key, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING archived_at`
	return r.pool.QueryRow(ctx, q, a.ID, a.SessionCode, a.FinalStatus, a.SignalCount, a.TranscriptS3Key, a.StartedAt, a.EndedAt).
		Scan(&a.ArchivedAt)
}

// GetByID returns one archive by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.SessionArchive, error) {
	const q = `SELECT id, session_code, final_status, signal_count, transcript_s3_key, started_at, ended_at, archived_at
		FROM session_archives WHERE id = $1`
	var a models.SessionArchive
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&a.ID, &a.SessionCode, &a.FinalStatus, &a.SignalCount, &a.TranscriptS3Key, &a.StartedAt, &a.EndedAt, &a.ArchivedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListBySession returns archives for a session code, newest first. A code can
// have at most one archive in practice, but expiry races make this a list.
func (r *Repository) ListBySession(ctx context.Context, sessionCode string) ([]models.SessionArchive, error) {
	const q = `SELECT id, session_code, final_status, signal_count, transcript_s3_key, started_at, ended_at, archived_at
		FROM session_archives WHERE session_code = $1 ORDER BY archived_at DESC`
	rows, err := r.pool.Query(ctx, q, sessionCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.SessionArchive
	for rows.Next() {
		var a models.SessionArchive
		if err := rows.Scan(&a.ID, &a.SessionCode, &a.FinalStatus, &a.SignalCount, &a.TranscriptS3Key, &a.StartedAt, &a.EndedAt, &a.ArchivedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
