package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ThrottleRepository keeps per-user "last accepted update" timestamps for the
// advisory flood guard. It is lock-free and best-effort: callers treat any
// error as "no record".
type ThrottleRepository interface {
	LastSeen(ctx context.Context, tgID int64) (time.Time, error)
	Touch(ctx context.Context, tgID int64, at time.Time) error
}

type throttleRepository struct {
	client *redis.Client
}

func NewThrottleRepository(client *redis.Client) ThrottleRepository {
	return &throttleRepository{client: client}
}

const lastSeenTTL = 24 * time.Hour

func throttleKey(tgID int64) string {
	return fmt.Sprintf("throttle:last_seen:%d", tgID)
}

// LastSeen returns the zero time when the user has no recent record.
func (r *throttleRepository) LastSeen(ctx context.Context, tgID int64) (time.Time, error) {
	val, err := r.client.Get(ctx, throttleKey(tgID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last seen: %w", err)
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last seen value %q: %w", val, err)
	}
	return time.Unix(0, nanos), nil
}

func (r *throttleRepository) Touch(ctx context.Context, tgID int64, at time.Time) error {
	return r.client.Set(ctx, throttleKey(tgID), strconv.FormatInt(at.UnixNano(), 10), lastSeenTTL).Err()
}
