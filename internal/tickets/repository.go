package tickets

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-support/backend/internal/models"
)

// Repository handles ticket persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a ticket repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ticketColumns = `id, customer_name, customer_email, subject, description, status, assigned_to, session_code, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(&t.ID, &t.CustomerName, &t.CustomerEmail, &t.Subject, &t.Description, &t.Status,
		&t.AssignedTo, &t.SessionCode, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new open ticket.
func (r *Repository) Create(ctx context.Context, t *models.Ticket) error {
	const q = `INSERT INTO tickets (customer_name, customer_email, subject, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, status, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.CustomerName, t.CustomerEmail, t.Subject, t.Description).
		Scan(&t.ID, &t.Status, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID returns a ticket by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return scanTicket(r.pool.QueryRow(ctx, q, id))
}

// List returns tickets, optionally filtered by status or assignee.
func (r *Repository) List(ctx context.Context, status *models.TicketStatus, assignedTo *uuid.UUID) ([]models.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	var args []interface{}
	var cond string
	if status != nil {
		cond = " WHERE status = $1"
		args = append(args, string(*status))
	}
	if assignedTo != nil {
		if cond == "" {
			cond = " WHERE assigned_to = $1"
		} else {
			cond += " AND assigned_to = $2"
		}
		args = append(args, *assignedTo)
	}
	rows, err := r.pool.Query(ctx, base+cond+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// Claim assigns an open ticket to a technician. Returns false when the
// ticket was not open (already claimed or resolved).
func (r *Repository) Claim(ctx context.Context, id, technicianID uuid.UUID) (bool, error) {
	const q = `UPDATE tickets SET status = 'claimed', assigned_to = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'open'`
	tag, err := r.pool.Exec(ctx, q, id, technicianID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AttachSession links a relay session code to a ticket.
func (r *Repository) AttachSession(ctx context.Context, id uuid.UUID, sessionCode string) error {
	const q = `UPDATE tickets SET session_code = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, sessionCode)
	return err
}

// Resolve marks a ticket resolved.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE tickets SET status = 'resolved', updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}
