// Package session runs one independent simulation engine per caller, all
// advanced by a single background driver.
package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clearae/edflow/sim"
)

// DefaultTickInterval is the wallclock length of one tick: 100 ms, which
// makes the simulation run 600x wallclock (1 tick = 1 simulated minute).
const DefaultTickInterval = 100 * time.Millisecond

// Session owns one engine. The mutex serializes the driver's ticks against
// handler reads, so readers always observe a consistent tick boundary.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex
	engine *sim.Engine
}

// Vitals returns the engine's last published snapshot.
func (s *Session) Vitals() *sim.Vitals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Vitals()
}

// Alerts returns a copy of the session's alert log.
func (s *Session) Alerts() []sim.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Alerts()
}

// AlertCount returns the size of the session's alert log.
func (s *Session) AlertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.AlertCount()
}

// ActiveCensus counts active encounters per facility.
func (s *Session) ActiveCensus() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ActiveCensus()
}

// tick advances the engine once under the session lock.
func (s *Session) tick() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Tick()
}

// Manager is the keyed table of sessions plus the background driver that
// advances them. Sessions are created on demand and live for the process
// lifetime.
type Manager struct {
	masterSeed int64
	interval   time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session table. Each session's engine is seeded
// with masterSeed XOR fnv1a64(session id), so distinct sessions diverge while
// the whole process stays reproducible from one seed.
func NewManager(masterSeed int64, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Manager{
		masterSeed: masterSeed,
		interval:   interval,
		sessions:   make(map[string]*Session),
	}
}

// GetOrCreate returns the session for id, creating it if absent.
// An unknown session id is never an error.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	logrus.Infof("[SYSTEM] Creating new session: %s", id)
	s = &Session{
		ID:        id,
		CreatedAt: time.Now(),
		engine:    sim.NewEngine(sim.EngineConfig{Seed: m.sessionSeed(id)}),
	}
	m.sessions[id] = s
	return s
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) sessionSeed(id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return m.masterSeed ^ int64(h.Sum64())
}

// snapshotSessions copies the current session list so the driver never
// iterates the map while handlers create sessions.
func (m *Manager) snapshotSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Run drives every session forward one tick per interval until ctx is
// cancelled. A session whose tick fails is logged and skipped for that tick;
// the session is not destroyed.
func (m *Manager) Run(ctx context.Context) error {
	logrus.Info("Starting multi-tenant simulation loop")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Simulation loop stopped")
			return ctx.Err()
		case <-ticker.C:
			for _, s := range m.snapshotSessions() {
				if err := s.tick(); err != nil {
					logrus.WithError(err).Errorf("session %s: tick abandoned", s.ID)
				}
			}
		}
	}
}
