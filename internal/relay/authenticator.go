package relay

import (
	"crypto/subtle"
	"time"

	"github.com/lumen-support/backend/internal/models"
)

// Authenticator gates every signal operation on a (code, role, secret)
// triple. Validation never mutates session state.
type Authenticator struct {
	registry *Registry
	now      func() time.Time
}

// NewAuthenticator creates an authenticator over the given registry.
func NewAuthenticator(registry *Registry, now func() time.Time) *Authenticator {
	if now == nil {
		now = time.Now
	}
	return &Authenticator{registry: registry, now: now}
}

// Validate checks that the caller is authorized to act as role for the
// session. Errors, in precedence order: ErrNotFound for an unknown code,
// ErrExpired once the TTL has elapsed (even with a correct secret),
// ErrForbidden for a bad role or secret. On success the live record is
// returned for the caller's subsequent locked access.
func (a *Authenticator) Validate(code string, role models.Role, secret string) (*liveSession, error) {
	s, ok := a.registry.get(code)
	if !ok {
		return nil, ErrNotFound
	}
	if a.now().After(s.expiresAt) {
		return nil, ErrExpired
	}
	s.mu.Lock()
	expired := s.status == models.StatusExpired
	s.mu.Unlock()
	if expired {
		return nil, ErrExpired
	}
	if !role.Valid() {
		return nil, ErrForbidden
	}
	expected := s.hostSecret
	if role == models.RoleViewer {
		expected = s.viewerSecret
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) != 1 {
		return nil, ErrForbidden
	}
	return s, nil
}
