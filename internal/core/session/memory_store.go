package session

import (
	"context"
	"sync"
	"time"

	"github.com/ClareAI/astra-voice-webhook/internal/domain"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// MemoryStore keeps sessions in process memory. State is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

// getOrCreate must be called with mu held
func (s *MemoryStore) getOrCreate(callSID string) *domain.Session {
	sess, ok := s.sessions[callSID]
	if !ok {
		sess = domain.NewSession(callSID)
		sess.UpdatedAt = s.now()
		s.sessions[callSID] = sess
	}
	return sess
}

// Session returns a deep copy so callers never share slices with the store
func (s *MemoryStore) Session(ctx context.Context, callSID string) (*domain.Session, error) {
	if callSID == "" {
		return nil, ErrEmptyCallSID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callSID]
	if !ok {
		return domain.NewSession(callSID), nil
	}
	return copySession(sess), nil
}

// History returns a copy of the call's turns
func (s *MemoryStore) History(ctx context.Context, callSID string) ([]domain.Turn, error) {
	sess, err := s.Session(ctx, callSID)
	if err != nil {
		return nil, err
	}
	return sess.Turns, nil
}

// AppendExchange appends and trims under one lock
func (s *MemoryStore) AppendExchange(ctx context.Context, callSID string, user, assistant domain.Turn) (int, error) {
	if callSID == "" {
		return 0, ErrEmptyCallSID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(callSID)
	sess.Turns = domain.TrimTurns(append(sess.Turns, user, assistant))
	sess.UpdatedAt = s.now()
	return len(sess.Turns), nil
}

// ResetHistory empties the call's turn list
func (s *MemoryStore) ResetHistory(ctx context.Context, callSID string) error {
	if callSID == "" {
		return ErrEmptyCallSID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[callSID]; ok {
		sess.Turns = []domain.Turn{}
		sess.UpdatedAt = s.now()
	}
	return nil
}

// MarkWelcomed sets the welcome flag
func (s *MemoryStore) MarkWelcomed(ctx context.Context, callSID string) (bool, error) {
	if callSID == "" {
		return false, ErrEmptyCallSID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(callSID)
	already := sess.Welcomed
	sess.Welcomed = true
	sess.UpdatedAt = s.now()
	return already, nil
}

// SetRecordingState updates the recording state
func (s *MemoryStore) SetRecordingState(ctx context.Context, callSID string, state domain.RecordingState) error {
	if callSID == "" {
		return ErrEmptyCallSID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(callSID)
	sess.Recording = state
	sess.UpdatedAt = s.now()
	return nil
}

// Len returns the number of tracked sessions
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle removes sessions not updated within ttl and returns how many were removed
func (s *MemoryStore) EvictIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartCleanupRoutine evicts idle sessions every interval until ctx is done
func (s *MemoryStore) StartCleanupRoutine(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Base().Info("session cleanup routine started",
		zap.Duration("interval", interval),
		zap.Duration("ttl", ttl))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(ttl); n > 0 {
				logger.Base().Info("evicted idle call sessions", zap.Int("count", n))
			}
		}
	}
}

// copySession deep-copies via copier, falling back to a manual copy
func copySession(original *domain.Session) *domain.Session {
	var out domain.Session
	if err := copier.CopyWithOption(&out, original, copier.Option{DeepCopy: true}); err != nil {
		logger.Base().Warn("failed to copy session", zap.Error(err))
		out = *original
		out.Turns = append([]domain.Turn(nil), original.Turns...)
	}
	out.UpdatedAt = original.UpdatedAt
	if out.Turns == nil {
		out.Turns = []domain.Turn{}
	}
	return &out
}
