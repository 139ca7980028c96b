// Package session derives the durable visitor identity and the renewable
// session identity from client-local persisted state.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionKey = "analytics_session"
	visitorKey = "analytics_visitor"
)

// Storage is the client-local durable key-value store. A browser client
// backs it with localStorage; tests use MemoryStorage.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// state is the persisted session record.
type state struct {
	ID           string `json:"id"`
	StartTime    int64  `json:"startTime"`
	LastActivity int64  `json:"lastActivity"`
}

// Manager resolves the current session id and the new-visitor flag.
// At most one session is active per client; a session is renewed in
// place while active and replaced after the idle timeout.
type Manager struct {
	storage Storage
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewManager creates a session manager over the given storage.
func NewManager(storage Storage, timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		storage: storage,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Resolve returns the active session id, minting a new session when none
// exists or the previous one went idle past the timeout. isNewVisitor is
// true at most once for the lifetime of the client: the visitor flag is
// set as a side effect of the first true result and never cleared here.
//
// When storage is unavailable every call degrades to a new session and a
// new visitor. That overcounts uniqueness but never blocks the page.
func (m *Manager) Resolve() (sessionID string, isNewVisitor bool) {
	now := m.now()

	flag, flagErr := m.visitorSeen()
	if flagErr != nil {
		m.logger.Debug("visitor flag unavailable, counting as new visitor", zap.Error(flagErr))
		return m.mintSession(now), true
	}
	isNewVisitor = !flag

	raw, ok, err := m.storage.Get(sessionKey)
	if err != nil {
		m.logger.Debug("session storage unavailable, minting throwaway session", zap.Error(err))
		if isNewVisitor {
			m.markVisitorSeen()
		}
		return m.mintSession(now), isNewVisitor
	}

	if ok {
		var s state
		if err := json.Unmarshal([]byte(raw), &s); err == nil && s.ID != "" {
			idle := now.Sub(time.UnixMilli(s.LastActivity))
			if idle < m.timeout {
				s.LastActivity = now.UnixMilli()
				m.persist(&s)
				if isNewVisitor {
					m.markVisitorSeen()
				}
				return s.ID, isNewVisitor
			}
		}
	}

	id := m.mintSession(now)
	if isNewVisitor {
		m.markVisitorSeen()
	}
	return id, isNewVisitor
}

func (m *Manager) mintSession(now time.Time) string {
	s := &state{
		ID:           uuid.New().String(),
		StartTime:    now.UnixMilli(),
		LastActivity: now.UnixMilli(),
	}
	m.persist(s)
	return s.ID
}

func (m *Manager) persist(s *state) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := m.storage.Set(sessionKey, string(raw)); err != nil {
		m.logger.Debug("failed to persist session state", zap.Error(err))
	}
}

func (m *Manager) visitorSeen() (bool, error) {
	_, ok, err := m.storage.Get(visitorKey)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (m *Manager) markVisitorSeen() {
	if err := m.storage.Set(visitorKey, "true"); err != nil {
		m.logger.Debug("failed to persist visitor flag", zap.Error(err))
	}
}

// MemoryStorage is an in-memory Storage for tests and headless clients.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
