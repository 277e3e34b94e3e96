package relay

import (
	"errors"
	"testing"
	"time"

	"github.com/lumen-support/backend/internal/models"
)

func TestAuthenticator_Validate(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(Config{TTL: 10 * time.Minute}, clk.Now, nil)
	a := NewAuthenticator(r, clk.Now)

	s, err := r.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := a.Validate(s.Code, models.RoleHost, s.HostSecret); err != nil {
		t.Fatalf("expected host secret to validate, got %v", err)
	}
	if _, err := a.Validate(s.Code, models.RoleViewer, s.ViewerSecret); err != nil {
		t.Fatalf("expected viewer secret to validate, got %v", err)
	}

	if _, err := a.Validate("000000000", models.RoleHost, s.HostSecret); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}
	if _, err := a.Validate(s.Code, models.RoleHost, "wrong"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for bad secret, got %v", err)
	}
	if _, err := a.Validate(s.Code, models.RoleHost, s.ViewerSecret); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for cross-role secret, got %v", err)
	}
	if _, err := a.Validate(s.Code, models.Role("admin"), s.HostSecret); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unknown role, got %v", err)
	}
}

func TestAuthenticator_ExpiredBeatsForbidden(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(Config{TTL: 10 * time.Minute}, clk.Now, nil)
	a := NewAuthenticator(r, clk.Now)

	s, err := r.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clk.Advance(11 * time.Minute)

	if _, err := a.Validate(s.Code, models.RoleHost, s.HostSecret); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired with correct secret, got %v", err)
	}
	if _, err := a.Validate(s.Code, models.RoleHost, "wrong"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired to win over bad secret, got %v", err)
	}
}
