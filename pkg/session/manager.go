// Package session owns the authentication session lifecycle: login, logout,
// restore from persistence, the idle-timeout watchdog, and centralized
// teardown on 401 responses.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/parishops/flock/pkg/logging"
	"github.com/parishops/flock/pkg/models"
)

// DefaultIdleTimeout matches the original product behavior.
const DefaultIdleTimeout = 30 * time.Minute

// Authenticator is the slice of the API collaborator the session needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*models.Identity, string, error)
}

// Navigator is the router boundary. The session signals navigation; it never
// renders anything itself.
type Navigator interface {
	ToLogin()
	ToHome()
}

// NopNavigator satisfies Navigator for headless use.
type NopNavigator struct{}

func (NopNavigator) ToLogin() {}
func (NopNavigator) ToHome()  {}

// Manager holds the live session: the identity, the persisted token, and the
// idle watchdog. Session is live iff identity is non-nil and a token is held.
type Manager struct {
	auth        Authenticator
	store       CredentialStore
	nav         Navigator
	logger      *zap.Logger
	idleTimeout time.Duration

	mu        sync.Mutex
	identity  *models.Identity
	token     string
	idleTimer *time.Timer
	onLogout  []func()
}

// NewManager wires a session manager. All collaborators are injected; there
// is no ambient global state.
func NewManager(auth Authenticator, store CredentialStore, nav Navigator, idleTimeout time.Duration, logger *zap.Logger) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if nav == nil {
		nav = NopNavigator{}
	}
	return &Manager{
		auth:        auth,
		store:       store,
		nav:         nav,
		logger:      logger.Named("session"),
		idleTimeout: idleTimeout,
	}
}

// OnLogout registers a hook run on every logout. Per-session caches register
// here so they are cleared together with the identity.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

// Login authenticates and establishes a session: the token and identity are
// persisted together, the idle watchdog is armed, and navigation moves to the
// home boundary. Failure messages surface verbatim to the caller.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.Identity, error) {
	identity, token, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.logger.Warn("Login failed",
			zap.String("username", username),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	m.mu.Lock()
	prior := m.identity
	m.identity = identity
	m.token = token
	m.resetIdleLocked()
	hooks := make([]func(), len(m.onLogout))
	copy(hooks, m.onLogout)
	m.mu.Unlock()

	// A login over a live session replaces it; the previous user's caches
	// must not survive into the new one.
	if prior != nil {
		m.logger.Info("Replacing live session", zap.String("previous_user_id", prior.ID))
		for _, fn := range hooks {
			fn()
		}
	}

	if err := m.store.Save(token, identity); err != nil {
		m.logger.Error("Failed to persist credentials", zap.Error(err))
	}

	m.logger.Info("Session established",
		zap.String("user_id", identity.ID),
		zap.String("role", identity.Role),
		zap.String("token", logging.SanitizeToken(token)))
	m.nav.ToHome()
	return identity, nil
}

// Logout tears the session down: identity and token are cleared, persisted
// credentials removed, the watchdog cancelled, and registered hooks run.
// Calling it with no live session is a no-op.
func (m *Manager) Logout() {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		return
	}
	userID := m.identity.ID
	m.identity = nil
	m.token = ""
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	hooks := make([]func(), len(m.onLogout))
	copy(hooks, m.onLogout)
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Error("Failed to clear credentials", zap.Error(err))
	}
	for _, fn := range hooks {
		fn()
	}
	m.logger.Info("Session ended", zap.String("user_id", userID))
	m.nav.ToLogin()
}

// Restore hydrates the session from persisted credentials without contacting
// the API. The cached identity is trusted until the next API call proves it
// invalid via 401; a token whose expiry is already past is discarded eagerly.
func (m *Manager) Restore() bool {
	token, identity, err := m.store.Load()
	if err != nil {
		return false
	}
	if tokenExpired(token, time.Now()) {
		m.logger.Info("Persisted token expired, discarding session")
		if err := m.store.Clear(); err != nil {
			m.logger.Error("Failed to clear credentials", zap.Error(err))
		}
		return false
	}

	m.mu.Lock()
	m.identity = identity
	m.token = token
	m.resetIdleLocked()
	m.mu.Unlock()

	m.logger.Info("Session restored",
		zap.String("user_id", identity.ID),
		zap.String("role", identity.Role))
	return true
}

// tokenExpired best-effort checks the token's exp claim without verifying the
// signature; verification is the server's job. Unparseable tokens are kept
// and left for the server to reject.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(now)
}

// Activity records a user-activity signal (pointer, key, scroll, touch) and
// resets the idle deadline to now + timeout.
func (m *Manager) Activity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return
	}
	m.resetIdleLocked()
}

// resetIdleLocked re-arms the watchdog. Caller holds m.mu.
func (m *Manager) resetIdleLocked() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.idleTimer = time.AfterFunc(m.idleTimeout, m.idleExpired)
}

// idleExpired fires when the deadline passes with no activity. Logout itself
// re-checks liveness, so a timer that loses the race with an explicit logout
// is harmless.
func (m *Manager) idleExpired() {
	m.logger.Info("Idle timeout reached, logging out")
	m.Logout()
}

// HandleUnauthorized is the API client's 401 hook: any authentication
// rejection forcibly ends the session, regardless of which component issued
// the call.
func (m *Manager) HandleUnauthorized() {
	m.Logout()
}

// Identity returns the live identity, or nil when no session is live.
func (m *Manager) Identity() *models.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Token implements the API client's TokenSource.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// LoggedIn reports whether a session is live.
func (m *Manager) LoggedIn() bool {
	return m.Identity() != nil
}
