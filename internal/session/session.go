package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dashboard/internal/backend"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Landing page and welcome flag every new session starts with.
const (
	PageCourses = "courses"
	PageLogin   = "login"
)

// Session is the authenticated state of one instructor. It replaces the
// browser-global store: handlers receive it explicitly.
type Session struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	InstructorID int64     `json:"instructorId"`
	DisplayName  string    `json:"displayName,omitempty"`
	BackendToken string    `json:"backendToken,omitempty"`
	CurrentPage  string    `json:"currentPage"`
	ShowWelcome  bool      `json:"showWelcome"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// Manager owns the two writes a session ever sees: Establish and Clear.
type Manager struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

// NewManager creates a manager over store.
func NewManager(store Store, ttl time.Duration, log *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, ttl: ttl, log: log, now: time.Now}
}

// Establish starts a session for a resolved login identity. The session
// never outlives the backend token when its expiry is known.
func (m *Manager) Establish(ctx context.Context, id backend.Identity) (Session, error) {
	now := m.now().UTC()
	ttl := m.ttl
	if !id.ExpiresAt.IsZero() {
		if until := id.ExpiresAt.Sub(now); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return Session{}, errors.New("backend token already expired")
	}

	s := Session{
		ID:           uuid.NewString(),
		Email:        id.Email,
		InstructorID: id.InstructorID,
		DisplayName:  id.DisplayName,
		BackendToken: id.Token,
		CurrentPage:  PageCourses,
		ShowWelcome:  true,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := m.store.Save(ctx, s, ttl); err != nil {
		return Session{}, errors.Wrap(err, "save session")
	}
	if !id.HasToken() {
		m.log.Warn("session established without backend token; requests go out unauthenticated",
			zap.String("session_id", s.ID), zap.Int64("instructor_id", s.InstructorID))
	}
	m.log.Info("session established",
		zap.String("session_id", s.ID),
		zap.Int64("instructor_id", s.InstructorID),
		zap.String("id_field", id.IDField))
	return s, nil
}

// Get loads a live session.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		return Session{}, ErrNotFound
	}
	return s, nil
}

// Clear ends a session. Clearing an unknown session is not an error.
func (m *Manager) Clear(ctx context.Context, id, reason string) error {
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "delete session")
	}
	m.log.Info("session cleared", zap.String("session_id", id), zap.String("reason", reason))
	return nil
}

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]Session)}
}

func (m *Memory) Save(_ context.Context, s Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
