package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/lumen-support/backend/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestRegistry_CreateUniqueCodesAndDistinctSecrets(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(Config{TTL: 30 * time.Minute}, clk.Now, nil)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := r.Create()
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if len(s.Code) != 9 {
			t.Fatalf("expected 9-digit code, got %q", s.Code)
		}
		for _, ch := range s.Code {
			if ch < '0' || ch > '9' {
				t.Fatalf("expected numeric code, got %q", s.Code)
			}
		}
		if seen[s.Code] {
			t.Fatalf("duplicate code %q", s.Code)
		}
		seen[s.Code] = true
		if s.HostSecret == "" || s.ViewerSecret == "" {
			t.Fatalf("expected both secrets to be set")
		}
		if s.HostSecret == s.ViewerSecret {
			t.Fatalf("expected distinct secrets")
		}
		if s.Status != models.StatusPending {
			t.Fatalf("expected pending status, got %q", s.Status)
		}
		if got := s.ExpiresAt.Sub(s.CreatedAt); got != 30*time.Minute {
			t.Fatalf("expected 30m lifetime, got %v", got)
		}
	}
	if r.Len() != 50 {
		t.Fatalf("expected 50 sessions, got %d", r.Len())
	}
}

func TestRegistry_ConfigDefaults(t *testing.T) {
	r := NewRegistry(Config{CodeLength: 6, SecretBytes: 16}, nil, nil)
	s, err := r.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(s.Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", s.Code)
	}
	if len(s.HostSecret) != 32 { // 16 bytes hex encoded
		t.Fatalf("expected 32-char secret, got %d chars", len(s.HostSecret))
	}
}

func TestRegistry_SweepMarksThenReaps(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(Config{TTL: 10 * time.Minute}, clk.Now, nil)

	s, err := r.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var expired []string
	onExpire := func(snap models.Session) {
		if snap.Status != models.StatusExpired {
			t.Fatalf("expected expired snapshot, got %q", snap.Status)
		}
		expired = append(expired, snap.Code)
	}

	r.SweepExpired(onExpire)
	if len(expired) != 0 {
		t.Fatalf("expected no expiry before TTL")
	}

	clk.Advance(11 * time.Minute)
	r.SweepExpired(onExpire)
	if len(expired) != 1 || expired[0] != s.Code {
		t.Fatalf("expected one expiry for %q, got %v", s.Code, expired)
	}
	if r.Len() != 1 {
		t.Fatalf("expected session held during reap grace, got %d", r.Len())
	}

	// A second sweep within the grace window must not re-fire the hook.
	r.SweepExpired(onExpire)
	if len(expired) != 1 {
		t.Fatalf("expected expiry hook to fire once, got %d", len(expired))
	}

	clk.Advance(reapGrace + time.Minute)
	r.SweepExpired(onExpire)
	if r.Len() != 0 {
		t.Fatalf("expected session reaped after grace, got %d", r.Len())
	}
}
