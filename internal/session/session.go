// Package session keeps browser sessions in Redis, keyed by an opaque
// cookie id.
package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"market-service/config"

	"github.com/google/uuid"
)

const (
	fieldUserID   = "user_id"
	fieldName     = "name"
	fieldEmail    = "email"
	fieldIsAdmin  = "is_admin"
	fieldReturnTo = "return_to"
)

// Session is the per-browser state
type Session struct {
	ID       string
	UserID   int64
	Name     string
	Email    string
	IsAdmin  bool
	ReturnTo string
}

// Authenticated reports whether a user is logged in
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID > 0
}

// Backend is the storage the manager persists sessions to
type Backend interface {
	SaveSession(ctx context.Context, id string, fields map[string]interface{}, ttl time.Duration) error
	LoadSession(ctx context.Context, id string) (map[string]string, error)
	DeleteSessionFields(ctx context.Context, id string, fields ...string) error
	DeleteSession(ctx context.Context, id string) error
}

type Manager struct {
	backend    Backend
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewManager creates a session manager. secure marks cookies Secure.
func NewManager(backend Backend, cfg config.SessionConfig, secure bool) *Manager {
	return &Manager{
		backend:    backend,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     secure,
	}
}

func (m *Manager) CookieName() string { return m.cookieName }

func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) Secure() bool { return m.secure }

// New returns an unsaved session with a fresh id
func (m *Manager) New() *Session {
	return &Session{ID: uuid.NewString()}
}

// Load fetches a session by id. A missing or expired session yields nil.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	fields, err := m.backend.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, nil
	}

	s := &Session{
		ID:       id,
		Name:     fields[fieldName],
		Email:    fields[fieldEmail],
		ReturnTo: fields[fieldReturnTo],
	}
	if raw := fields[fieldUserID]; raw != "" {
		s.UserID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt session user id: %w", err)
		}
	}
	s.IsAdmin = fields[fieldIsAdmin] == "1"
	return s, nil
}

// Save persists the session and refreshes its TTL
func (m *Manager) Save(ctx context.Context, s *Session) error {
	fields := map[string]interface{}{
		fieldUserID:  s.UserID,
		fieldName:    s.Name,
		fieldEmail:   s.Email,
		fieldIsAdmin: boolFlag(s.IsAdmin),
	}
	if s.ReturnTo != "" {
		fields[fieldReturnTo] = s.ReturnTo
	}

	if err := m.backend.SaveSession(ctx, s.ID, fields, m.ttl); err != nil {
		return err
	}
	if s.ReturnTo == "" {
		return m.backend.DeleteSessionFields(ctx, s.ID, fieldReturnTo)
	}
	return nil
}

// Regenerate destroys the old session and returns a new one carrying the
// given identity. Used on login.
func (m *Manager) Regenerate(ctx context.Context, old *Session, userID int64, name, email string, isAdmin bool) (*Session, error) {
	if old != nil {
		if err := m.backend.DeleteSession(ctx, old.ID); err != nil {
			return nil, err
		}
	}

	s := m.New()
	s.UserID = userID
	s.Name = name
	s.Email = email
	s.IsAdmin = isAdmin
	if err := m.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Destroy removes a session
func (m *Manager) Destroy(ctx context.Context, id string) error {
	return m.backend.DeleteSession(ctx, id)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
