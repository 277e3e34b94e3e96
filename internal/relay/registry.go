package relay

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-support/backend/internal/models"
)

const (
	// codeAttempts bounds the collision-retry loop for session code generation.
	codeAttempts = 10
	// reapGrace is how long an expired session stays in the map after its TTL
	// so in-flight requests and late polls see ErrExpired instead of ErrNotFound.
	reapGrace = 2 * time.Minute
)

// Config holds relay tuning loaded from the environment.
type Config struct {
	TTL           time.Duration
	CodeLength    int
	SecretBytes   int
	SweepInterval time.Duration
}

// liveSession is the mutable in-memory record for one session. The registry
// map is guarded by the registry lock; everything inside a liveSession is
// guarded by its own mutex so unrelated sessions never serialize each other.
// Code, secrets, CreatedAt and ExpiresAt are immutable after creation and may
// be read without the lock.
type liveSession struct {
	mu sync.Mutex

	code         string
	hostSecret   string
	viewerSecret string
	createdAt    time.Time
	expiresAt    time.Time

	status        models.SessionStatus
	remoteControl bool
	viewerClaimed bool
	hostSeen      bool
	viewerSeen    bool

	fromHost   []models.Signal
	fromViewer []models.Signal
}

// snapshot returns a consistent copy of the session metadata. Caller must
// hold s.mu.
func (s *liveSession) snapshot() models.Session {
	return models.Session{
		Code:                 s.code,
		HostSecret:           s.hostSecret,
		ViewerSecret:         s.viewerSecret,
		Status:               s.status,
		RemoteControlEnabled: s.remoteControl,
		CreatedAt:            s.createdAt,
		ExpiresAt:            s.expiresAt,
	}
}

// Registry is the single source of truth for session existence and metadata.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*liveSession

	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// NewRegistry creates a session registry. A nil now func defaults to
// time.Now; a nil logger defaults to a no-op logger.
func NewRegistry(cfg Config, now func() time.Time, logger *zap.Logger) *Registry {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 9
	}
	if cfg.SecretBytes <= 0 {
		cfg.SecretBytes = 32
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	return &Registry{
		sessions: make(map[string]*liveSession),
		cfg:      cfg,
		now:      now,
		logger:   logger,
	}
}

// Create generates a fresh session with a unique code and two distinct
// role-bound secrets. Codes are checked against every session still in the
// map, including recently expired ones awaiting reap.
func (r *Registry) Create() (models.Session, error) {
	hostSecret, err := newSecret(r.cfg.SecretBytes)
	if err != nil {
		return models.Session{}, fmt.Errorf("generate host secret: %w", err)
	}
	viewerSecret, err := newSecret(r.cfg.SecretBytes)
	if err != nil {
		return models.Session{}, fmt.Errorf("generate viewer secret: %w", err)
	}
	for viewerSecret == hostSecret {
		if viewerSecret, err = newSecret(r.cfg.SecretBytes); err != nil {
			return models.Session{}, fmt.Errorf("generate viewer secret: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newSessionCode(r.cfg.CodeLength)
		if err != nil {
			return models.Session{}, fmt.Errorf("generate session code: %w", err)
		}
		if _, taken := r.sessions[code]; taken {
			continue
		}
		now := r.now()
		s := &liveSession{
			code:         code,
			hostSecret:   hostSecret,
			viewerSecret: viewerSecret,
			createdAt:    now,
			expiresAt:    now.Add(r.cfg.TTL),
			status:       models.StatusPending,
		}
		r.sessions[code] = s
		r.logger.Debug("session created", zap.String("code", code), zap.Time("expires_at", s.expiresAt))
		s.mu.Lock()
		snap := s.snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	return models.Session{}, fmt.Errorf("%w: session code space exhausted", ErrInternal)
}

// get returns the live record for a code. It does not apply expiry; callers
// go through the Authenticator, which treats past-TTL sessions as expired.
func (r *Registry) get(code string) (*liveSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	return s, ok
}

// Len returns the number of sessions currently held, including expired ones
// awaiting reap.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SweepExpired marks past-TTL sessions as expired and removes sessions that
// have been past TTL for longer than the reap grace. onExpire is invoked once
// per session that transitions into expired, with a snapshot taken under the
// session lock; it may be nil. The sweep is a memory-reclamation mechanism
// only: reads apply the "treat as absent once past TTL" rule themselves.
func (r *Registry) SweepExpired(onExpire func(models.Session)) {
	now := r.now()

	r.mu.RLock()
	candidates := make([]*liveSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		if now.After(s.expiresAt) {
			candidates = append(candidates, s)
		}
	}
	r.mu.RUnlock()

	var reap []string
	for _, s := range candidates {
		s.mu.Lock()
		if !s.status.Terminal() {
			s.status = models.StatusExpired
			snap := s.snapshot()
			s.mu.Unlock()
			r.logger.Info("session expired", zap.String("code", snap.Code))
			if onExpire != nil {
				onExpire(snap)
			}
			continue
		}
		s.mu.Unlock()
		if now.After(s.expiresAt.Add(reapGrace)) {
			reap = append(reap, s.code)
		}
	}

	if len(reap) == 0 {
		return
	}
	r.mu.Lock()
	for _, code := range reap {
		delete(r.sessions, code)
	}
	r.mu.Unlock()
	r.logger.Debug("sessions reaped", zap.Int("count", len(reap)))
}

const codeDigits = "0123456789"

// newSessionCode returns a fixed-width numeric code the customer can read
// over the phone.
func newSessionCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeDigits)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeDigits[n.Int64()]
	}
	return string(buf), nil
}

// newSecret returns an unguessable hex token.
func newSecret(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", buf), nil
}
