package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ClareAI/astra-voice-webhook/internal/domain"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/ClareAI/astra-voice-webhook/pkg/redis"
	"go.uber.org/zap"
)

const (
	fieldRecording = "recording"
	fieldUpdatedAt = "updated_at"
	welcomedSuffix = "welcomed"
)

// RedisStore shares sessions across pods. Every key expires after ttl of inactivity.
type RedisStore struct {
	redisSvc redis.RedisServiceInterface
	ttl      time.Duration
	now      func() time.Time
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(redisSvc redis.RedisServiceInterface, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redisSvc: redisSvc,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *RedisStore) turnsKey(callSID string) string {
	return s.redisSvc.GenerateKey(redis.CALL_TURNS, callSID)
}

func (s *RedisStore) metaKey(callSID string) string {
	return s.redisSvc.GenerateKey(redis.CALL_META, callSID)
}

func (s *RedisStore) welcomedKey(callSID string) string {
	return s.metaKey(callSID) + welcomedSuffix
}

// Session assembles the snapshot from the turn list, the meta hash and the welcome key
func (s *RedisStore) Session(ctx context.Context, callSID string) (*domain.Session, error) {
	if callSID == "" {
		return nil, ErrEmptyCallSID
	}

	sess := domain.NewSession(callSID)

	turns, err := s.History(ctx, callSID)
	if err != nil {
		return nil, err
	}
	sess.Turns = turns

	meta, err := s.redisSvc.GetHash(ctx, s.metaKey(callSID))
	if err != nil {
		return nil, fmt.Errorf("failed to load session meta: %w", err)
	}
	if state, ok := meta[fieldRecording]; ok && state != "" {
		sess.Recording = domain.RecordingState(state)
	}
	if ts, ok := meta[fieldUpdatedAt]; ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			sess.UpdatedAt = parsed
		}
	}

	if _, err := s.redisSvc.GetValue(ctx, s.welcomedKey(callSID)); err == nil {
		sess.Welcomed = true
	} else if !errors.Is(err, redis.ErrKeyNotExist) {
		return nil, fmt.Errorf("failed to load welcome flag: %w", err)
	}

	return sess, nil
}

// History decodes the stored turns; undecodable entries are skipped
func (s *RedisStore) History(ctx context.Context, callSID string) ([]domain.Turn, error) {
	if callSID == "" {
		return nil, ErrEmptyCallSID
	}

	raw, err := s.redisSvc.GetList(ctx, s.turnsKey(callSID))
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}

	turns := make([]domain.Turn, 0, len(raw))
	for _, item := range raw {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			logger.Base().Warn("skipping undecodable turn", zap.String("call_sid", callSID), zap.Error(err))
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// AppendExchange pushes both turns and trims in a single transaction
func (s *RedisStore) AppendExchange(ctx context.Context, callSID string, user, assistant domain.Turn) (int, error) {
	if callSID == "" {
		return 0, ErrEmptyCallSID
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		return 0, err
	}
	assistantJSON, err := json.Marshal(assistant)
	if err != nil {
		return 0, err
	}

	n, err := s.redisSvc.AppendListTrimmed(ctx, s.turnsKey(callSID),
		[]string{string(userJSON), string(assistantJSON)}, domain.MaxStoredTurns, s.ttl)
	if err != nil {
		return 0, err
	}

	s.touch(ctx, callSID, nil)
	return int(n), nil
}

// ResetHistory deletes only the turn list of the call
func (s *RedisStore) ResetHistory(ctx context.Context, callSID string) error {
	if callSID == "" {
		return ErrEmptyCallSID
	}
	if err := s.redisSvc.DelValue(ctx, s.turnsKey(callSID)); err != nil {
		return fmt.Errorf("failed to reset turns: %w", err)
	}
	s.touch(ctx, callSID, nil)
	return nil
}

// MarkWelcomed uses SET NX so only the first writer observes false
func (s *RedisStore) MarkWelcomed(ctx context.Context, callSID string) (bool, error) {
	if callSID == "" {
		return false, ErrEmptyCallSID
	}

	set, err := s.redisSvc.SetValueIfAbsent(ctx, s.welcomedKey(callSID), "1", s.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to mark welcomed: %w", err)
	}
	s.touch(ctx, callSID, nil)
	return !set, nil
}

// SetRecordingState writes the state into the meta hash
func (s *RedisStore) SetRecordingState(ctx context.Context, callSID string, state domain.RecordingState) error {
	if callSID == "" {
		return ErrEmptyCallSID
	}
	return s.touch(ctx, callSID, map[string]string{fieldRecording: string(state)})
}

func (s *RedisStore) touch(ctx context.Context, callSID string, fields map[string]string) error {
	if fields == nil {
		fields = make(map[string]string, 1)
	}
	fields[fieldUpdatedAt] = s.now().UTC().Format(time.RFC3339Nano)

	if err := s.redisSvc.SetHashFields(ctx, s.metaKey(callSID), s.ttl, fields); err != nil {
		logger.Base().Warn("failed to update session meta", zap.String("call_sid", callSID), zap.Error(err))
		return err
	}
	return nil
}
