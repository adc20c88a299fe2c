package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/harborclinic/booking-platform/pkg/logging"
)

// RequestLock serializes concurrent staff decisions on the same booking
// request. It is best effort: when redis is unavailable the lock degrades to
// the unguarded behavior instead of blocking approvals.
type RequestLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRequestLock creates the lock. A nil client disables locking entirely.
func NewRequestLock(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RequestLock {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RequestLock{client: client, ttl: ttl, logger: logger}
}

// Acquire attempts to take the per-request lock. It returns a release
// function and whether the caller holds the lock. A redis failure yields
// acquired=true with a no-op release.
func (l *RequestLock) Acquire(ctx context.Context, requestID string) (func(), bool) {
	noop := func() {}
	if l == nil || l.client == nil {
		return noop, true
	}

	key := "approval:lock:" + requestID
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		l.logger.Warn("approval lock unavailable, proceeding unguarded", "request_id", requestID, "error", err)
		return noop, true
	}
	if !ok {
		return noop, false
	}

	release := func() {
		// Only delete the lock if we still own it. The TTL may have
		// expired and another holder taken over.
		current, err := l.client.Get(context.Background(), key).Result()
		if err != nil || current != token {
			return
		}
		if err := l.client.Del(context.Background(), key).Err(); err != nil {
			l.logger.Warn("failed to release approval lock", "request_id", requestID, "error", err)
		}
	}
	return release, true
}
