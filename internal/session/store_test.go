package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taha00000/book-for-me/internal/nlu"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, ttl), mr
}

func TestStore_LoadFreshSession(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute)
	now := time.Date(2025, 12, 13, 12, 0, 0, 0, time.UTC)

	sess, err := store.Load(context.Background(), "+923331111111", now)
	require.NoError(t, err)
	assert.Equal(t, "+923331111111", sess.UserPhone)
	assert.Empty(t, sess.History)
	assert.False(t, sess.InProgress)
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute)
	ctx := context.Background()
	now := time.Date(2025, 12, 13, 12, 0, 0, 0, time.UTC)

	sess := New("+923331111111", now)
	sess.AppendUser("Book padel tomorrow", now)
	sess.AppendAssistant("Which venue?", now.Add(time.Second))
	sess.CurrentIntent = nlu.IntentBookingRequest
	sess.Booking.Date = "2025-12-14"
	sess.InProgress = true
	require.NoError(t, store.Save(ctx, sess, now))

	loaded, err := store.Load(ctx, "+923331111111", now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "Book padel tomorrow", loaded.History[0].Content)
	assert.Equal(t, nlu.IntentBookingRequest, loaded.CurrentIntent)
	assert.Equal(t, "2025-12-14", loaded.Booking.Date)
	assert.True(t, loaded.InProgress)
}

func TestStore_IdleSessionComesBackFresh(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute)
	ctx := context.Background()
	now := time.Date(2025, 12, 13, 12, 0, 0, 0, time.UTC)

	sess := New("+923331111111", now)
	sess.AppendUser("hello", now)
	sess.State = "awaiting_confirm"
	require.NoError(t, store.Save(ctx, sess, now))

	// 31 minutes of silence starts a fresh session.
	loaded, err := store.Load(ctx, "+923331111111", now.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, loaded.History)
	assert.Empty(t, loaded.State)
}

func TestStore_RedisTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()
	now := time.Now()

	sess := New("+923331111111", now)
	sess.AppendUser("hello", now)
	require.NoError(t, store.Save(ctx, sess, now))

	mr.FastForward(2 * time.Minute)

	loaded, err := store.Load(ctx, "+923331111111", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, loaded.History)
}

func TestStore_ExpireIdle(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute)
	ctx := context.Background()
	base := time.Date(2025, 12, 13, 12, 0, 0, 0, time.UTC)

	stale := New("+920001", base)
	require.NoError(t, store.Save(ctx, stale, base))
	fresh := New("+920002", base)
	require.NoError(t, store.Save(ctx, fresh, base.Add(29*time.Minute)))

	removed, err := store.ExpireIdle(ctx, base.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	loaded, err := store.Load(ctx, "+920002", base.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, base.Add(29*time.Minute).Unix(), loaded.UpdatedAt.Unix())
}

func TestSession_RecentWindow(t *testing.T) {
	now := time.Now()
	sess := New("+92", now)
	for i := 0; i < 25; i++ {
		sess.AppendUser("msg", now)
	}
	msgs := sess.Recent(20)
	assert.Len(t, msgs, 20)
	assert.Len(t, sess.History, 25, "full history is retained")
}

func TestSession_ResetFlowKeepsHistory(t *testing.T) {
	now := time.Now()
	sess := New("+92", now)
	sess.AppendUser("book", now)
	sess.Booking = BookingContext{VendorID: "v1", Date: "2025-12-14", Time: "17:00", DurationHours: 1}
	sess.InProgress = true
	sess.State = "confirmed"

	sess.ResetFlow()
	assert.Len(t, sess.History, 1)
	assert.Empty(t, sess.Booking.VendorID)
	assert.False(t, sess.InProgress)
	assert.Empty(t, sess.State)
}

func TestBookingContext_IsComplete(t *testing.T) {
	b := BookingContext{VendorID: "v1", Date: "2025-12-14", Time: "17:00", DurationHours: 1}
	assert.True(t, b.IsComplete())
	b.Time = ""
	assert.False(t, b.IsComplete())
}
