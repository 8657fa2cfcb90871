package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cryptopay/pkg/cache"
	"cryptopay/pkg/logger"

	"go.uber.org/zap"
)

const (
	stateKeyPrefix = "conv_state:"
	stateTTL       = 30 * time.Minute

	updateLockKeyPrefix = "conv_lock:"
	updateLockTTL       = 5 * time.Second

	createOrderLockKeyPrefix = "create_order:"
	createOrderLockTTL       = 30 * time.Second
)

// lockRetryDelays is the 50/100/150 ms backoff schedule for update_state's
// lock acquisition (SPEC §4.8).
var lockRetryDelays = []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 150 * time.Millisecond}

// Service reads and mutates per-user conversation state in Redis.
type Service struct{}

// NewService creates a Conversation State service. It holds no collaborator
// state of its own; every call goes straight through pkg/cache, the same
// package-level-client convention internal/wallet and internal/pricing use.
func NewService() *Service {
	return &Service{}
}

// Get returns the user's current state, or an idle state if none is stored
// or the stored blob fails strict decoding.
func (s *Service) Get(ctx context.Context, userKey string) (*State, error) {
	raw, err := cache.Get(ctx, stateKeyPrefix+userKey)
	if err != nil {
		return nil, fmt.Errorf("conversation: read state: %w", err)
	}
	if raw == "" {
		return idleState(), nil
	}

	return decodeState(raw), nil
}

func decodeState(raw string) *State {
	var st State
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&st); err != nil || !st.valid() {
		return idleState()
	}
	return &st
}

// UpdateState implements update_state: it acquires a per-user lock,
// re-reads the current state, lets mutate apply its changes, writes the
// result back with stateTTL, then releases the lock. mutate may return an
// error to abort the write entirely (the lock is still released).
func (s *Service) UpdateState(ctx context.Context, userKey string, mutate func(*State) error) (*State, error) {
	lockKey := updateLockKeyPrefix + userKey

	token, err := s.acquireWithRetry(ctx, lockKey, updateLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cache.ReleaseLock(context.Background(), lockKey, token); err != nil {
			logger.Error("conversation: failed to release update lock", zap.String("user_key", userKey), zap.Error(err))
		}
	}()

	current, err := s.Get(ctx, userKey)
	if err != nil {
		return nil, err
	}

	if err := mutate(current); err != nil {
		return nil, err
	}

	blob, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("conversation: marshal state: %w", err)
	}

	if err := cache.Set(ctx, stateKeyPrefix+userKey, string(blob), stateTTL); err != nil {
		return nil, fmt.Errorf("conversation: write state: %w", err)
	}

	return current, nil
}

// acquireWithRetry retries lock acquisition on the lockRetryDelays schedule,
// raising ErrOperationInProgress if every attempt fails.
func (s *Service) acquireWithRetry(ctx context.Context, key string, ttl time.Duration) (string, error) {
	for attempt := 0; ; attempt++ {
		token, ok, err := cache.AcquireLock(ctx, key, ttl)
		if err != nil {
			return "", fmt.Errorf("conversation: acquire lock: %w", err)
		}
		if ok {
			return token, nil
		}
		if attempt >= len(lockRetryDelays) {
			return "", ErrOperationInProgress
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryDelays[attempt]):
		}
	}
}

// RunExclusive implements the create_order critical-section guard: it
// acquires the user's create_order lock for createOrderLockTTL, runs fn,
// and releases the lock on every exit path, including a panic.
func (s *Service) RunExclusive(ctx context.Context, userKey string, fn func() error) error {
	lockKey := createOrderLockKeyPrefix + userKey

	token, ok, err := cache.AcquireLock(ctx, lockKey, createOrderLockTTL)
	if err != nil {
		return fmt.Errorf("conversation: acquire create_order lock: %w", err)
	}
	if !ok {
		return ErrOperationInProgress
	}
	defer func() {
		if err := cache.ReleaseLock(context.Background(), lockKey, token); err != nil {
			logger.Error("conversation: failed to release create_order lock", zap.String("user_key", userKey), zap.Error(err))
		}
	}()

	return fn()
}
