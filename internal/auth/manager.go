package auth

import (
	"context"
	"log/slog"
	"sync"
)

// State is the session lifecycle of a Manager.
type State int

const (
	StateSignedOut State = iota
	StateSignedIn
	StateError
)

func (s State) String() string {
	switch s {
	case StateSignedIn:
		return "signed_in"
	case StateError:
		return "error"
	default:
		return "signed_out"
	}
}

// FailureMessage is shown for every authentication failure.
const FailureMessage = "Sign in failed. Check your details and try again."

// Manager tracks the current session and mirrors its user id into an IDCache.
type Manager struct {
	provider Provider
	cache    *IDCache
	log      *slog.Logger

	mu      sync.RWMutex
	state   State
	session Session
}

// NewManager wires a provider and an optional cache.
func NewManager(provider Provider, cache *IDCache, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{provider: provider, cache: cache, log: log}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// ErrorMessage returns FailureMessage in StateError and "" otherwise.
func (m *Manager) ErrorMessage() string {
	if m.State() == StateError {
		return FailureMessage
	}
	return ""
}

// Session returns the active session, if any.
func (m *Manager) Session() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, m.state == StateSignedIn
}

func (m *Manager) SignInAnonymously(ctx context.Context) (Session, error) {
	return m.enter(ctx, "anonymous", func() (Session, error) { return m.provider.SignInAnonymously(ctx) })
}

func (m *Manager) SignIn(ctx context.Context, email, password string) (Session, error) {
	return m.enter(ctx, "email", func() (Session, error) {
		return m.provider.SignInWithEmailPassword(ctx, email, password)
	})
}

func (m *Manager) Register(ctx context.Context, email, password string) (Session, error) {
	return m.enter(ctx, "register", func() (Session, error) { return m.provider.Register(ctx, email, password) })
}

// Logout revokes the active session and clears the cached id.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	sess := m.session
	m.session = Session{}
	m.state = StateSignedOut
	m.mu.Unlock()
	if sess.Token != "" {
		if err := m.provider.Logout(ctx, sess.Token); err != nil {
			m.log.Error("logout", "user_id", sess.UserID, "error", err)
			return err
		}
	}
	if m.cache != nil {
		if err := m.cache.Clear(ctx); err != nil {
			m.log.Error("clear cached user id", "error", err)
			return err
		}
	}
	return nil
}

// CurrentUserID returns the signed-in user, falling back to the cached id
// while signed out.
func (m *Manager) CurrentUserID(ctx context.Context) (string, error) {
	if sess, ok := m.Session(); ok {
		return sess.UserID, nil
	}
	if m.cache == nil {
		return "", ErrNotSignedIn
	}
	id, err := m.cache.Load(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNotSignedIn
	}
	return id, nil
}

func (m *Manager) enter(ctx context.Context, method string, fn func() (Session, error)) (Session, error) {
	sess, err := fn()
	if err != nil {
		m.mu.Lock()
		m.state = StateError
		m.session = Session{}
		m.mu.Unlock()
		m.log.Warn("authentication failed", "method", method, "error", err)
		return Session{}, err
	}
	m.mu.Lock()
	m.state = StateSignedIn
	m.session = sess
	m.mu.Unlock()
	if m.cache != nil {
		if err := m.cache.Save(ctx, sess.UserID); err != nil {
			m.log.Error("cache user id", "user_id", sess.UserID, "error", err)
		}
	}
	m.log.Info("signed in", "method", method, "user_id", sess.UserID)
	return sess, nil
}
