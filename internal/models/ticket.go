package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketClaimed  TicketStatus = "claimed"
	TicketResolved TicketStatus = "resolved"
)

// Ticket is a customer's support request. A ticket may have a relay session
// code attached once a technician starts a screen-sharing session for it.
type Ticket struct {
	ID            uuid.UUID    `json:"id"`
	CustomerName  string       `json:"customer_name"`
	CustomerEmail string       `json:"customer_email"`
	Subject       string       `json:"subject"`
	Description   string       `json:"description"`
	Status        TicketStatus `json:"status"`
	AssignedTo    *uuid.UUID   `json:"assigned_to,omitempty"`
	SessionCode   *string      `json:"session_code,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
