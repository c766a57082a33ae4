package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTurns struct {
	mu    sync.Mutex
	calls []string
	reply string
	err   error
}

func (s *stubTurns) HandleTurn(_ context.Context, userPhone, text string, _ time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userPhone+"|"+text)
	return s.reply, s.err
}

type stubPublisher struct {
	msgs []InboundMessage
	err  error
}

func (s *stubPublisher) Enqueue(_ context.Context, msg InboundMessage) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func postWebhook(t *testing.T, h *WebhookHandler, msg InboundMessage) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestReceiveReturnsOneReply(t *testing.T) {
	turns := &stubTurns{reply: "Hi! How can I help?"}
	h := NewWebhookHandler(WebhookConfig{Turns: turns, VerifyToken: "tok"})

	rec := postWebhook(t, h, InboundMessage{
		From: "+923331111111", Text: "Hi", MessageID: "m-1", Timestamp: 1765620000000,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hi! How can I help?", decodeBody(t, rec)["reply"])
	require.Len(t, turns.calls, 1)
	assert.Equal(t, "+923331111111|Hi", turns.calls[0])
}

func TestReceiveValidation(t *testing.T) {
	h := NewWebhookHandler(WebhookConfig{Turns: &stubTurns{}, VerifyToken: "tok"})

	tests := []struct {
		name string
		msg  InboundMessage
	}{
		{"missing plus", InboundMessage{From: "923331111111", Text: "Hi", MessageID: "m"}},
		{"empty text", InboundMessage{From: "+92333", Text: "   ", MessageID: "m"}},
		{"missing message id", InboundMessage{From: "+92333", Text: "Hi"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postWebhook(t, h, tc.msg)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestReceiveSuppressesDuplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	turns := &stubTurns{reply: "done"}
	h := NewWebhookHandler(WebhookConfig{
		Turns:       turns,
		Dedup:       NewDedupTracker(client, time.Minute),
		VerifyToken: "tok",
	})

	msg := InboundMessage{From: "+923331111111", Text: "book padel", MessageID: "m-42"}

	rec := postWebhook(t, h, msg)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", decodeBody(t, rec)["reply"])

	rec = postWebhook(t, h, msg)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["reply"], "duplicate gets an empty reply")
	assert.Len(t, turns.calls, 1, "duplicate never reaches the orchestrator")

	// Past the window the id is fresh again.
	mr.FastForward(2 * time.Minute)
	rec = postWebhook(t, h, msg)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, turns.calls, 2)
}

func TestReceiveTurnFailure(t *testing.T) {
	turns := &stubTurns{err: errors.New("lock timeout")}
	h := NewWebhookHandler(WebhookConfig{Turns: turns, VerifyToken: "tok"})

	rec := postWebhook(t, h, InboundMessage{From: "+92333", Text: "Hi", MessageID: "m"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReceiveAsyncMode(t *testing.T) {
	pub := &stubPublisher{}
	h := NewWebhookHandler(WebhookConfig{Publisher: pub, Async: true, VerifyToken: "tok"})

	rec := postWebhook(t, h, InboundMessage{From: "+92333", Text: "Hi", MessageID: "m-7"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "queued", decodeBody(t, rec)["status"])
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "m-7", pub.msgs[0].MessageID)

	pub.err = errors.New("queue down")
	rec = postWebhook(t, h, InboundMessage{From: "+92333", Text: "Hi", MessageID: "m-8"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVerifyHandshake(t *testing.T) {
	h := NewWebhookHandler(WebhookConfig{Turns: &stubTurns{}, VerifyToken: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.verify_token=secret&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/webhook?hub.verify_token=wrong&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	h.Verify(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
