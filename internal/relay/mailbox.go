package relay

import (
	"fmt"
	"sort"
	"time"

	"github.com/lumen-support/backend/internal/models"
)

// Mailbox stores relayed signals in two append-only per-session streams,
// one per originating role. A role only ever reads the stream produced by
// the other role.
type Mailbox struct {
	registry *Registry
	now      func() time.Time
}

// NewMailbox creates a mailbox over the given registry.
func NewMailbox(registry *Registry, now func() time.Time) *Mailbox {
	if now == nil {
		now = time.Now
	}
	return &Mailbox{registry: registry, now: now}
}

// Add appends a signal to the stream of its originating role. Authorization
// is the Authenticator's job and is not re-derived here; failure means the
// session vanished mid-operation. When the client supplies no timestamp the
// server assigns one, bumped past the stream's last timestamp so the cursor
// contract holds even within a single millisecond.
func (m *Mailbox) Add(code string, sig models.Signal) (models.Signal, error) {
	s, ok := m.registry.get(code)
	if !ok {
		return models.Signal{}, fmt.Errorf("%w: session %s vanished", ErrInternal, code)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.addLocked(s, sig), nil
}

// addLocked appends a signal to the stream of its originating role. Caller
// must hold s.mu, so status checks made under the same lock stay true for
// the append.
func (m *Mailbox) addLocked(s *liveSession, sig models.Signal) models.Signal {
	stream := &s.fromHost
	if sig.From == models.RoleViewer {
		stream = &s.fromViewer
	}
	if sig.Timestamp == 0 {
		sig.Timestamp = m.now().UnixMilli()
		if n := len(*stream); n > 0 && sig.Timestamp <= (*stream)[n-1].Timestamp {
			sig.Timestamp = (*stream)[n-1].Timestamp + 1
		}
	}
	*stream = append(*stream, sig)
	return sig
}

// Signals returns a snapshot of the stream the given role reads: every
// signal from the opposite role with timestamp strictly greater than after,
// ordered by timestamp ascending with ties broken by insertion order. An
// after of 0 returns the whole stream.
func (m *Mailbox) Signals(code string, forRole models.Role, after int64) ([]models.Signal, error) {
	s, ok := m.registry.get(code)
	if !ok {
		return nil, fmt.Errorf("%w: session %s vanished", ErrInternal, code)
	}
	s.mu.Lock()
	stream := s.fromHost
	if forRole == models.RoleHost {
		stream = s.fromViewer
	}
	out := make([]models.Signal, 0, len(stream))
	for _, sig := range stream {
		if sig.Timestamp > after {
			out = append(out, sig)
		}
	}
	s.mu.Unlock()

	// Client-supplied timestamps may arrive out of order; stable sort keeps
	// insertion order for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// transcript merges both streams of a session into one timestamp-ordered
// slice, for archiving. Caller must hold s.mu.
func transcript(s *liveSession) []models.Signal {
	out := make([]models.Signal, 0, len(s.fromHost)+len(s.fromViewer))
	out = append(out, s.fromHost...)
	out = append(out, s.fromViewer...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
