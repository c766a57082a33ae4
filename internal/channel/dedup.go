package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupTracker suppresses duplicate webhook deliveries by message id. First
// sight of an id claims it atomically; repeats inside the window are dupes.
type DedupTracker struct {
	redis  *redis.Client
	window time.Duration
}

func NewDedupTracker(client *redis.Client, window time.Duration) *DedupTracker {
	if client == nil {
		panic("channel: redis client cannot be nil")
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &DedupTracker{redis: client, window: window}
}

func dedupKey(messageID string) string {
	return fmt.Sprintf("webhook:seen:%s", messageID)
}

// AlreadySeen claims the message id and reports whether it was already
// claimed within the window.
func (t *DedupTracker) AlreadySeen(ctx context.Context, messageID string) (bool, error) {
	fresh, err := t.redis.SetNX(ctx, dedupKey(messageID), "1", t.window).Result()
	if err != nil {
		return false, fmt.Errorf("channel: dedup check failed: %w", err)
	}
	return !fresh, nil
}
