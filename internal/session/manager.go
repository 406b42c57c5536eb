package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/demoreel/internal/clock"
	"github.com/stwalsh4118/demoreel/internal/config"
	"github.com/stwalsh4118/demoreel/internal/logger"
	"github.com/stwalsh4118/demoreel/internal/script"
)

// Manager is the registry of live sessions. It enforces the session limit
// and periodically stops sessions that have gone idle.
type Manager struct {
	config   config.SessionsConfig
	player   config.PlayerConfig
	newClock func(loop *clock.Loop) clock.Clock

	sessions      map[uuid.UUID]*Session
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	cleanupDone   chan struct{}
	mu            sync.RWMutex
	stopped       bool
}

// NewManager creates a session manager
func NewManager(cfg config.SessionsConfig, player config.PlayerConfig) *Manager {
	return &Manager{
		config:      cfg,
		player:      player,
		newClock:    func(loop *clock.Loop) clock.Clock { return clock.NewReal(loop) },
		sessions:    make(map[uuid.UUID]*Session),
		stopChan:    make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Start begins the background idle cleanup
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}
	if m.cleanupTicker != nil {
		return nil
	}

	m.cleanupTicker = time.NewTicker(m.config.CleanupInterval)
	go m.runCleanupLoop()

	logger.Log.Info().
		Int("max_sessions", m.config.MaxSessions).
		Dur("idle_timeout", m.config.IdleTimeout).
		Dur("cleanup_interval", m.config.CleanupInterval).
		Msg("Session manager started")

	return nil
}

// Stop halts cleanup and stops every session
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	ticker := m.cleanupTicker
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	logger.Log.Info().Msg("Stopping session manager...")

	close(m.stopChan)
	if ticker != nil {
		<-m.cleanupDone
		ticker.Stop()
	}

	for _, s := range sessions {
		s.Stop()
	}

	logger.Log.Info().
		Int("stopped_sessions", len(sessions)).
		Msg("Session manager stopped")
}

// Create starts a new session playing timeline
func (m *Manager) Create(scriptID, scriptName string, timeline *script.Timeline) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, ErrManagerStopped
	}
	if len(m.sessions) >= m.config.MaxSessions {
		logger.Log.Warn().
			Int("max_sessions", m.config.MaxSessions).
			Msg("Session limit reached")
		return nil, ErrTooManySessions
	}

	loop := clock.NewLoop()
	s, err := newSession(uuid.New(), scriptID, scriptName, timeline, loop, m.newClock(loop), Options{
		ProgressInterval: m.player.ProgressInterval,
		EventBuffer:      m.config.EventBuffer,
		Autoplay:         m.player.Autoplay,
	})
	if err != nil {
		return nil, err
	}
	m.sessions[s.ID()] = s

	return s, nil
}

// Get retrieves a session by ID
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove stops a session and forgets it
func (m *Manager) Remove(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Stop()
	return nil
}

// List returns every live session, oldest first
func (m *Manager) List() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].createdAt.Before(sessions[j].createdAt)
	})
	return sessions
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// runCleanupLoop runs periodic cleanup of idle sessions
func (m *Manager) runCleanupLoop() {
	defer close(m.cleanupDone)

	logger.Log.Debug().Msg("Session cleanup loop started")

	for {
		select {
		case <-m.stopChan:
			logger.Log.Debug().Msg("Session cleanup loop stopping")
			return
		case <-m.cleanupTicker.C:
			m.performCleanup(time.Now())
		}
	}
}

// performCleanup stops sessions idle longer than the timeout and returns
// how many it stopped
func (m *Manager) performCleanup(now time.Time) int {
	var idle []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.IdleFor(now) >= m.config.IdleTimeout {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	for _, s := range idle {
		logger.Log.Info().
			Str("session_id", s.ID().String()).
			Dur("idle_duration", s.IdleFor(now)).
			Msg("Cleaning up idle session")
		s.Stop()
	}

	if len(idle) > 0 {
		logger.Log.Info().
			Int("stopped_count", len(idle)).
			Int("active_count", remaining).
			Msg("Cleanup cycle completed")
	}
	return len(idle)
}
