package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/taha00000/book-for-me/internal/observability/metrics"
	"github.com/taha00000/book-for-me/pkg/logging"
)

// InboundMessage is the webhook payload for one user message.
type InboundMessage struct {
	From      string `json:"from"` // E.164 phone number
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// TurnHandler processes one inbound message and returns the reply text.
type TurnHandler interface {
	HandleTurn(ctx context.Context, userPhone, text string, now time.Time) (string, error)
}

// AsyncPublisher accepts a message for background processing.
type AsyncPublisher interface {
	Enqueue(ctx context.Context, msg InboundMessage) error
}

type deduper interface {
	AlreadySeen(ctx context.Context, messageID string) (bool, error)
}

// WebhookHandler is the chat transport edge: it validates and deduplicates
// inbound webhooks and returns exactly one reply per message. Content
// interpretation stays with the orchestrator.
type WebhookHandler struct {
	turns       TurnHandler
	publisher   AsyncPublisher
	dedup       deduper
	verifyToken string
	async       bool
	logger      *logging.Logger
	metrics     *metrics.TurnMetrics
}

type WebhookConfig struct {
	Turns       TurnHandler
	Publisher   AsyncPublisher
	Dedup       deduper
	VerifyToken string
	Async       bool // respond 202 and process in the background
	Logger      *logging.Logger
	Metrics     *metrics.TurnMetrics
}

func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Turns == nil && !cfg.Async {
		panic("channel: synchronous webhook needs a turn handler")
	}
	if cfg.Async && cfg.Publisher == nil {
		panic("channel: async webhook needs a publisher")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WebhookHandler{
		turns:       cfg.Turns,
		publisher:   cfg.Publisher,
		dedup:       cfg.Dedup,
		verifyToken: cfg.VerifyToken,
		async:       cfg.Async,
		logger:      cfg.Logger.WithComponent("channel.webhook"),
		metrics:     cfg.Metrics,
	}
}

// Verify handles the GET handshake: echo hub.challenge when the token
// matches, 403 otherwise.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")
	if h.verifyToken == "" || token != h.verifyToken {
		h.logger.Warn("webhook verification rejected")
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// Receive handles the POST webhook for one inbound user message.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var msg InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.metrics.ObserveInbound("bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	msg.From = strings.TrimSpace(msg.From)
	msg.Text = strings.TrimSpace(msg.Text)
	if reason := validate(msg); reason != "" {
		h.metrics.ObserveInbound("bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": reason})
		return
	}

	if h.dedup != nil {
		seen, err := h.dedup.AlreadySeen(r.Context(), msg.MessageID)
		if err != nil {
			// Fail open: a broken tracker must not drop real messages.
			h.logger.Warn("dedup check failed", "message_id", msg.MessageID, "error", err.Error())
		} else if seen {
			h.metrics.ObserveInbound("duplicate")
			h.logger.Info("duplicate webhook suppressed", "message_id", msg.MessageID)
			writeJSON(w, http.StatusOK, map[string]string{"reply": ""})
			return
		}
	}

	if h.async {
		if err := h.publisher.Enqueue(r.Context(), msg); err != nil {
			h.metrics.ObserveInbound("enqueue_failed")
			h.logger.Error("enqueue failed", "message_id", msg.MessageID, "error", err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable"})
			return
		}
		h.metrics.ObserveInbound("queued")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	now := time.Now()
	if msg.Timestamp > 0 {
		now = time.UnixMilli(msg.Timestamp)
	}
	reply, err := h.turns.HandleTurn(r.Context(), msg.From, msg.Text, now)
	if err != nil {
		h.metrics.ObserveInbound("failed")
		h.logger.Error("turn failed", "from", msg.From, "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable"})
		return
	}
	h.metrics.ObserveInbound("ok")
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func validate(msg InboundMessage) string {
	switch {
	case msg.From == "" || !strings.HasPrefix(msg.From, "+"):
		return "from must be an E.164 phone number"
	case msg.Text == "":
		return "text cannot be empty"
	case msg.MessageID == "":
		return "message_id is required"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
