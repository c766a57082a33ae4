package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Store persists sessions in Redis for the lifetime of a booking flow.
// Writes are atomic per user (one key per phone, single SET).
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewStore builds a session store. ttl is the idle timeout after which a
// session silently expires.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("bookforme.internal.session"),
	}
}

func sessionKey(userPhone string) string {
	return fmt.Sprintf("session:%s", userPhone)
}

// Load fetches the session for a user, returning a fresh one when none
// exists or the stored one has idled out.
func (s *Store) Load(ctx context.Context, userPhone string, now time.Time) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.load")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(userPhone)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return New(userPhone, now), nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode: %w", err)
	}

	// Redis TTL normally handles expiry; the timestamp check covers stores
	// whose TTL was refreshed by unrelated writes.
	if sess.IdleSince(now, s.ttl) {
		return New(userPhone, now), nil
	}
	return &sess, nil
}

// Save persists the session and refreshes its idle TTL.
func (s *Store) Save(ctx context.Context, sess *Session, now time.Time) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	if sess == nil {
		return fmt.Errorf("session: cannot save nil session")
	}
	sess.UpdatedAt = now

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.UserPhone), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist: %w", err)
	}
	return nil
}

// Delete removes the session for a user.
func (s *Store) Delete(ctx context.Context, userPhone string) error {
	if err := s.redis.Del(ctx, sessionKey(userPhone)).Err(); err != nil {
		return fmt.Errorf("session: failed to delete: %w", err)
	}
	return nil
}

// ExpireIdle sweeps sessions whose last activity is past the idle cutoff and
// returns how many were removed. Redis TTLs make this a safety net rather
// than the primary expiry mechanism.
func (s *Store) ExpireIdle(ctx context.Context, now time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "session.expire_idle")
	defer span.End()

	removed := 0
	iter := s.redis.Scan(ctx, 0, "session:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			// Unreadable payloads are dead weight either way.
			if s.redis.Del(ctx, key).Err() == nil {
				removed++
			}
			continue
		}
		if sess.IdleSince(now, s.ttl) {
			if s.redis.Del(ctx, key).Err() == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return removed, fmt.Errorf("session: idle sweep failed: %w", err)
	}
	return removed, nil
}
