// Package session keeps one orchestrator per client session in a bounded,
// expiring cache.
package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session binds an id to its own orchestrator and analysis context.
type Session struct {
	ID           string
	Orchestrator *service.Orchestrator
	CreatedAt    time.Time
}

// Factory builds the orchestrator for a new session.
type Factory func() *service.Orchestrator

// Manager owns live sessions. The least recently used session is evicted
// once capacity is reached, and idle sessions expire after ttl.
type Manager struct {
	cache   *expirable.LRU[string, *Session]
	factory Factory
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	logger  *slog.Logger
	onEvict func(*Session)
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *managerOptions) { o.logger = l }
}

// WithEvictHook runs fn for every evicted, expired or deleted session. fn
// runs on its own goroutine.
func WithEvictHook(fn func(*Session)) Option {
	return func(o *managerOptions) { o.onEvict = fn }
}

// NewManager creates a manager holding at most capacity sessions.
func NewManager(capacity int, ttl time.Duration, factory Factory, opts ...Option) *Manager {
	o := managerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if capacity <= 0 {
		capacity = 256
	}

	logger := o.logger
	onEvict := func(id string, s *Session) {
		logger.Info("session closed", "session_id", id, "age", time.Since(s.CreatedAt).Round(time.Second))
		if o.onEvict != nil {
			// The cache holds its lock while calling back.
			go o.onEvict(s)
		}
	}
	return &Manager{
		cache:   expirable.NewLRU(capacity, onEvict, ttl),
		factory: factory,
		logger:  logger,
	}
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := &Session{
		ID:           uuid.New().String(),
		Orchestrator: m.factory(),
		CreatedAt:    time.Now(),
	}
	m.cache.Add(s.ID, s)
	m.logger.Info("session created", "session_id", s.ID)
	return s
}

// Get returns the session and refreshes its expiry.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	m.cache.Add(id, s)
	return s, nil
}

// Delete closes the session. Jobs already running finish in the background.
func (m *Manager) Delete(id string) error {
	if !m.cache.Remove(id) {
		return ErrNotFound
	}
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int { return m.cache.Len() }
