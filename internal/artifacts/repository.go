package artifacts

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-support/backend/internal/models"
)

// Repository handles artifact metadata persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an artifact repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an artifact metadata row.
func (r *Repository) Create(ctx context.Context, a *models.Artifact) error {
	const q = `INSERT INTO artifacts (id, session_code, file_name, content_type, size_bytes, s3_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING uploaded_at`
	return r.pool.QueryRow(ctx, q, a.ID, a.SessionCode, a.FileName, a.ContentType, a.SizeBytes, a.S3Key).
		Scan(&a.UploadedAt)
}

// GetByID returns one artifact by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	const q = `SELECT id, session_code, file_name, content_type, size_bytes, s3_key, uploaded_at
		FROM artifacts WHERE id = $1`
	var a models.Artifact
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&a.ID, &a.SessionCode, &a.FileName, &a.ContentType, &a.SizeBytes, &a.S3Key, &a.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListBySession returns all artifacts for a session, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionCode string) ([]models.Artifact, error) {
	const q = `SELECT id, session_code, file_name, content_type, size_bytes, s3_key, uploaded_at
		FROM artifacts WHERE session_code = $1 ORDER BY uploaded_at DESC`
	rows, err := r.pool.Query(ctx, q, sessionCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Artifact
	for rows.Next() {
		var a models.Artifact
		if err := rows.Scan(&a.ID, &a.SessionCode, &a.FileName, &a.ContentType, &a.SizeBytes, &a.S3Key, &a.UploadedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
