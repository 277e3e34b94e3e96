package relay

import "errors"

// Error taxonomy for relay operations. The HTTP layer maps these to status
// codes; nothing inside the relay retries on any of them.
var (
	// ErrValidation means the request shape was malformed (missing or bad fields).
	ErrValidation = errors.New("invalid request")
	// ErrNotFound means no session with the given code exists.
	ErrNotFound = errors.New("session not found")
	// ErrExpired means the session existed but its TTL has elapsed.
	ErrExpired = errors.New("session expired")
	// ErrForbidden means the secret or role does not match the session.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState means the operation is not allowed in the session's current status.
	ErrInvalidState = errors.New("invalid session state")
	// ErrInternal means a storage fault unrelated to caller input.
	ErrInternal = errors.New("internal relay error")
)
