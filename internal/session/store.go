// Package session provides the in-memory conversational session store. It is
// the only mutable state shared across requests; all access to one session is
// serialized by its own lock so turn ordering stays well-defined.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"infracopilot/internal/config"
	"infracopilot/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store represents the session store injected into the agent loop
type Store interface {
	// GetOrCreate returns the session for id, allocating a fresh one when id
	// is empty. A malformed id is rejected with types.ErrInvalidSessionID.
	GetOrCreate(id string) (*Session, error)
	// Get returns an existing session or types.ErrSessionNotFound
	Get(id string) (*Session, error)
	// Len returns the number of live sessions
	Len() int
	// Stop terminates the background sweeper
	Stop()
}

// Session represents one id-keyed conversation. All methods are safe for
// concurrent use; callers never touch fields directly.
type Session struct {
	id       string
	maxTurns int

	mu          sync.Mutex
	turns       []types.ChatTurn
	lastHealth  *types.HealthReport
	lastMetrics *types.MetricsSeries
	lastReport  string
	lastActive  time.Time
}

// ID returns the opaque session id
func (s *Session) ID() string {
	return s.id
}

// Append adds turns to the history and enforces the retention cap, evicting
// the oldest turns first
func (s *Session) Append(turns ...types.ChatTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turns...)

	// One retained exchange is a user+agent pair
	if limit := s.maxTurns * 2; limit > 0 && len(s.turns) > limit {
		s.turns = append([]types.ChatTurn(nil), s.turns[len(s.turns)-limit:]...)
	}

	s.lastActive = time.Now()
}

// History returns a consistent copy of the ordered turns
func (s *Session) History() []types.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// CacheHealth stores the latest health payload for follow-up turns
func (s *Session) CacheHealth(report *types.HealthReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHealth = report
}

// CachedHealth returns the most recent health payload, if any
func (s *Session) CachedHealth() *types.HealthReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHealth
}

// CacheMetrics stores the latest metrics payload for follow-up turns
func (s *Session) CacheMetrics(series *types.MetricsSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMetrics = series
}

// CachedMetrics returns the most recent metrics payload, if any
func (s *Session) CachedMetrics() *types.MetricsSeries {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMetrics
}

// CacheReport stores the latest report markdown for follow-up turns
func (s *Session) CacheReport(markdown string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = markdown
}

// CachedReport returns the most recent report markdown, if any
func (s *Session) CachedReport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// idleSince reports the last activity time
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// MemoryStore is the process-local Store implementation
type MemoryStore struct {
	config config.SessionConfig
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryStore creates a new in-memory session store and starts its
// idle-session sweeper
func NewMemoryStore(cfg config.SessionConfig, logger *zap.Logger) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())

	s := &MemoryStore{
		config:   cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.wg.Add(1)
	go s.sweep()

	return s
}

// GetOrCreate returns the session for id, allocating a fresh one when absent
func (s *MemoryStore) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		id = uuid.New().String()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidSessionID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, exists := s.sessions[id]; exists {
		sess.mu.Lock()
		sess.lastActive = time.Now()
		sess.mu.Unlock()
		return sess, nil
	}

	sess := &Session{
		id:         id,
		maxTurns:   s.config.MaxTurns,
		lastActive: time.Now(),
	}
	s.sessions[id] = sess

	return sess, nil
}

// Get returns an existing session
func (s *MemoryStore) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidSessionID, id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	return sess, nil
}

// Len returns the number of live sessions
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stop terminates the sweeper goroutine
func (s *MemoryStore) Stop() {
	s.cancel()
	s.wg.Wait()
}

// sweep evicts sessions idle beyond the configured TTL
func (s *MemoryStore) sweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.evictIdle(time.Now().Add(-s.config.TTL))
		}
	}
}

// evictIdle removes all sessions idle since before the cutoff
func (s *MemoryStore) evictIdle(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(s.sessions, id)
			s.logger.Debug("evicted idle session", zap.String("session_id", id))
		}
	}
}
