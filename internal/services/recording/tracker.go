package recording

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ClareAI/astra-voice-webhook/pkg/redis"
)

// ErrorClass classifies the last failed attempt
type ErrorClass string

const (
	ErrorClassNone      ErrorClass = "none"
	ErrorClassTransient ErrorClass = "transient"
)

// Attempt is the tracking record of an in-progress recording start
type Attempt struct {
	CallSID   string     `json:"callSid"`
	Count     int        `json:"count"`
	LastError ErrorClass `json:"lastError"`
}

// Tracker deduplicates recording starts per call SID
type Tracker interface {
	// Acquire creates the record and reports false when one already exists
	Acquire(ctx context.Context, callSID string) (bool, error)
	Update(ctx context.Context, attempt Attempt) error
	Get(ctx context.Context, callSID string) (*Attempt, bool, error)
	Release(ctx context.Context, callSID string) error
}

// MemoryTracker keeps attempt records in process memory
type MemoryTracker struct {
	mu       sync.Mutex
	attempts map[string]Attempt
}

// NewMemoryTracker creates an empty tracker
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{attempts: make(map[string]Attempt)}
}

func (t *MemoryTracker) Acquire(ctx context.Context, callSID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.attempts[callSID]; exists {
		return false, nil
	}
	t.attempts[callSID] = Attempt{CallSID: callSID, LastError: ErrorClassNone}
	return true, nil
}

func (t *MemoryTracker) Update(ctx context.Context, attempt Attempt) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[attempt.CallSID] = attempt
	return nil
}

func (t *MemoryTracker) Get(ctx context.Context, callSID string) (*Attempt, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempt, ok := t.attempts[callSID]
	if !ok {
		return nil, false, nil
	}
	return &attempt, true, nil
}

func (t *MemoryTracker) Release(ctx context.Context, callSID string) error {
	t.mu.Lock()
	delete(t.attempts, callSID)
	t.mu.Unlock()
	return nil
}

// Len returns the number of tracked calls
func (t *MemoryTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}

// RedisTracker shares attempt records across pods. Records expire after ttl so a
// crashed pod cannot block recording for a call forever.
type RedisTracker struct {
	redisSvc redis.RedisServiceInterface
	ttl      time.Duration
}

// NewRedisTracker creates a Redis-backed tracker
func NewRedisTracker(redisSvc redis.RedisServiceInterface, ttl time.Duration) *RedisTracker {
	return &RedisTracker{redisSvc: redisSvc, ttl: ttl}
}

func (t *RedisTracker) key(callSID string) string {
	return t.redisSvc.GenerateKey(redis.RECORDING_ATTEMPTS, callSID)
}

func (t *RedisTracker) Acquire(ctx context.Context, callSID string) (bool, error) {
	data, err := json.Marshal(Attempt{CallSID: callSID, LastError: ErrorClassNone})
	if err != nil {
		return false, err
	}
	return t.redisSvc.SetValueIfAbsent(ctx, t.key(callSID), string(data), t.ttl)
}

func (t *RedisTracker) Update(ctx context.Context, attempt Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	return t.redisSvc.SetValue(ctx, t.key(attempt.CallSID), string(data), t.ttl)
}

func (t *RedisTracker) Get(ctx context.Context, callSID string) (*Attempt, bool, error) {
	val, err := t.redisSvc.GetValue(ctx, t.key(callSID))
	if errors.Is(err, redis.ErrKeyNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var attempt Attempt
	if err := json.Unmarshal([]byte(val), &attempt); err != nil {
		return nil, false, fmt.Errorf("failed to decode recording attempt: %w", err)
	}
	return &attempt, true, nil
}

func (t *RedisTracker) Release(ctx context.Context, callSID string) error {
	return t.redisSvc.DelValue(ctx, t.key(callSID))
}
