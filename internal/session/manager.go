package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"txtinspect/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown or expired session IDs
var ErrSessionNotFound = errors.New("session not found")

// Options configure new sessions
type Options struct {
	PreviewRows int
	Bounds      CursorBounds
	IdleTimeout time.Duration // Zero disables expiry
}

// Manager keeps the in-memory sessions keyed by UUID
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a new session manager
func NewManager(opts Options, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts a session over ds
func (m *Manager) Create(ds *models.Dataset, fileName string) *Session {
	id := uuid.New().String()
	s := newSession(id, fileName, NewState(ds, m.opts.PreviewRows, m.opts.Bounds), m.now)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("Session created",
		zap.String("session_id", id),
		zap.String("file", fileName),
		zap.Int("records", ds.Len()))

	return s
}

// Get returns the session with the given ID
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete discards a session
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)

	m.logger.Info("Session deleted", zap.String("session_id", id))
	return nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the idle timeout
func (m *Manager) Sweep() int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}

	cutoff := m.now().Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("Expired idle sessions",
			zap.Int("removed", removed),
			zap.Int("remaining", len(m.sessions)))
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.opts.IdleTimeout <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
