package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-support/backend/internal/models"
)

// Lifecycle event names emitted through the audit hook.
const (
	EventCreated         = "created"
	EventViewerJoined    = "viewer_joined"
	EventConnected       = "connected"
	EventControlEnabled  = "control_enabled"
	EventControlDisabled = "control_disabled"
	EventEnded           = "ended"
	EventExpired         = "expired"
)

// EventHandler receives session lifecycle events (for the audit log).
type EventHandler func(code, event string)

// NotifyHandler receives a nudge when a role submits a signal, so a
// notification layer can tell the opposite role to re-poll.
type NotifyHandler func(code string, from models.Role)

// Archive is the immutable record of a finished session handed to the
// archive hook when it ends or expires.
type Archive struct {
	Code      string               `json:"code"`
	Status    models.SessionStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	EndedAt   time.Time            `json:"ended_at"`
	Signals   []models.Signal      `json:"signals"`
}

// ArchiveHandler receives finished sessions (for transcript archiving).
type ArchiveHandler func(Archive)

// PollResult is what a single poll returns: new signals plus the current
// session state, so one round trip carries both.
type PollResult struct {
	Signals              []models.Signal      `json:"signals"`
	Status               models.SessionStatus `json:"session_status"`
	RemoteControlEnabled bool                 `json:"remote_control_enabled"`
}

// Controller is the façade the transport layer calls. It ties the registry,
// authenticator and mailbox together and applies session-level rules.
type Controller struct {
	registry *Registry
	auth     *Authenticator
	mailbox  *Mailbox
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger

	onEvent   EventHandler
	onNotify  NotifyHandler
	onArchive ArchiveHandler
}

// NewController creates the relay controller and its collaborators.
func NewController(cfg Config, logger *zap.Logger) *Controller {
	return newController(cfg, time.Now, logger)
}

func newController(cfg Config, now func() time.Time, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := NewRegistry(cfg, now, logger)
	return &Controller{
		registry: registry,
		auth:     NewAuthenticator(registry, now),
		mailbox:  NewMailbox(registry, now),
		cfg:      cfg,
		now:      now,
		logger:   logger,
	}
}

// SetEventHandler installs the audit hook.
func (c *Controller) SetEventHandler(fn EventHandler) { c.onEvent = fn }

// SetNotifyHandler installs the signal-submitted nudge hook.
func (c *Controller) SetNotifyHandler(fn NotifyHandler) { c.onNotify = fn }

// SetArchiveHandler installs the finished-session hook.
func (c *Controller) SetArchiveHandler(fn ArchiveHandler) { c.onArchive = fn }

func (c *Controller) emit(code, event string) {
	if c.onEvent != nil {
		c.onEvent(code, event)
	}
}

// CreateSession creates a pending session and returns it with both secrets.
// The transport layer must never deliver both secrets in one response.
func (c *Controller) CreateSession() (models.Session, error) {
	s, err := c.registry.Create()
	if err != nil {
		return models.Session{}, err
	}
	c.emit(s.Code, EventCreated)
	return s, nil
}

// ClaimViewer hands out the viewer secret exactly once. A second claim fails
// with ErrInvalidState so a leaked session code alone cannot hijack the
// technician seat.
func (c *Controller) ClaimViewer(code string) (secret string, expiresAt time.Time, err error) {
	s, ok := c.registry.get(code)
	if !ok {
		return "", time.Time{}, ErrNotFound
	}
	if c.now().After(s.expiresAt) {
		return "", time.Time{}, ErrExpired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return "", time.Time{}, ErrInvalidState
	}
	if s.viewerClaimed {
		return "", time.Time{}, fmt.Errorf("%w: viewer already joined", ErrInvalidState)
	}
	s.viewerClaimed = true
	c.emit(code, EventViewerJoined)
	return s.viewerSecret, s.expiresAt, nil
}

// Authorize checks a code/role/secret triple without touching session state.
// Other features (artifact uploads) use it to gate access on relay secrets.
func (c *Controller) Authorize(code string, role models.Role, secret string) error {
	if !role.Valid() {
		return ErrForbidden
	}
	_, err := c.auth.Validate(code, role, secret)
	return err
}

// SubmitSignal validates the caller as sig.From and appends the signal. The
// first successful exchange from both sides advances pending -> connected.
func (c *Controller) SubmitSignal(code, secret string, sig models.Signal) error {
	if !sig.From.Valid() || !sig.Type.Valid() {
		return ErrValidation
	}
	s, err := c.auth.Validate(code, sig.From, secret)
	if err != nil {
		return err
	}

	// Status check and append happen under one lock: a signal accepted here
	// always lands before any end-of-session transcript snapshot.
	s.mu.Lock()
	if s.status == models.StatusDisconnected {
		s.mu.Unlock()
		return ErrInvalidState
	}
	c.mailbox.addLocked(s, sig)
	if sig.From == models.RoleHost {
		s.hostSeen = true
	} else {
		s.viewerSeen = true
	}
	connected := false
	if s.status == models.StatusPending && s.hostSeen && s.viewerSeen {
		s.status = models.StatusConnected
		connected = true
	}
	s.mu.Unlock()

	if connected {
		c.logger.Info("session connected", zap.String("code", code))
		c.emit(code, EventConnected)
	}
	if c.onNotify != nil {
		c.onNotify(code, sig.From)
	}
	return nil
}

// PollSignals validates the caller and returns the opposite role's signals
// past the cursor, together with the current status and remote-control flag.
// An empty result is not an error.
func (c *Controller) PollSignals(code string, role models.Role, secret string, after int64) (PollResult, error) {
	if !role.Valid() {
		return PollResult{}, ErrForbidden
	}
	s, err := c.auth.Validate(code, role, secret)
	if err != nil {
		return PollResult{}, err
	}
	signals, err := c.mailbox.Signals(code, role, after)
	if err != nil {
		return PollResult{}, err
	}
	s.mu.Lock()
	status := s.status
	remoteControl := s.remoteControl
	s.mu.Unlock()
	return PollResult{Signals: signals, Status: status, RemoteControlEnabled: remoteControl}, nil
}

// SetRemoteControl flips the remote-control flag. Only the host secret may
// call this, and only while the session is connected. The new value is
// visible to the next poll by either role, and a control signal is appended
// to the host stream so the viewer also observes the change in-band.
func (c *Controller) SetRemoteControl(code, secret string, enabled bool) (bool, error) {
	s, err := c.auth.Validate(code, models.RoleHost, secret)
	if err != nil {
		return false, err
	}
	data, _ := json.Marshal(map[string]bool{"enabled": enabled})
	s.mu.Lock()
	if s.status != models.StatusConnected {
		s.mu.Unlock()
		return false, ErrInvalidState
	}
	s.remoteControl = enabled
	c.mailbox.addLocked(s, models.Signal{
		From: models.RoleHost,
		Type: models.SignalControl,
		Data: data,
	})
	s.mu.Unlock()

	event := EventControlDisabled
	if enabled {
		event = EventControlEnabled
	}
	c.logger.Info("remote control toggled", zap.String("code", code), zap.Bool("enabled", enabled))
	c.emit(code, event)
	if c.onNotify != nil {
		c.onNotify(code, models.RoleHost)
	}
	return enabled, nil
}

// EndSession terminates a session explicitly. Either role may end it; ending
// an already-disconnected session is a no-op.
func (c *Controller) EndSession(code string, role models.Role, secret string) error {
	if !role.Valid() {
		return ErrForbidden
	}
	s, err := c.auth.Validate(code, role, secret)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.status == models.StatusDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.status = models.StatusDisconnected
	arch := Archive{
		Code:      s.code,
		Status:    s.status,
		CreatedAt: s.createdAt,
		EndedAt:   c.now(),
		Signals:   transcript(s),
	}
	s.mu.Unlock()

	c.logger.Info("session ended", zap.String("code", code), zap.String("by", string(role)))
	c.emit(code, EventEnded)
	if c.onArchive != nil {
		c.onArchive(arch)
	}
	return nil
}

// Run sweeps expired sessions until ctx is done. Correctness never depends
// on sweep timing; every read path already treats past-TTL sessions as gone.
func (c *Controller) Run(ctx context.Context) {
	interval := c.cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("relay sweeper stopping")
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep runs one expiry pass, emitting audit and archive hooks for sessions
// that transition into expired.
func (c *Controller) sweep() {
	c.registry.SweepExpired(func(snap models.Session) {
		c.emit(snap.Code, EventExpired)
		if c.onArchive == nil {
			return
		}
		s, ok := c.registry.get(snap.Code)
		if !ok {
			return
		}
		s.mu.Lock()
		arch := Archive{
			Code:      s.code,
			Status:    s.status,
			CreatedAt: s.createdAt,
			EndedAt:   s.expiresAt,
			Signals:   transcript(s),
		}
		s.mu.Unlock()
		c.onArchive(arch)
	})
}
