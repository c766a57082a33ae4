package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taha00000/book-for-me/pkg/logging"
)

// MinConfidence is the gate below which an extraction is downgraded to
// unknown and none of its entities are merged.
const MinConfidence = 0.4

const extractSystemPrompt = `You are the intent extraction engine for a sports venue booking assistant.

Classify the user's LATEST message into exactly one intent from this closed set:
greeting, availability_inquiry, price_inquiry, booking_request, confirm, deny, cancel, small_talk, unknown

Extract these entities when present (omit absent ones):
- date: normalize to YYYY-MM-DD. Resolve "today", "tomorrow" and weekday names against the reference date below. If the message has no date mention, omit it.
- time: normalize to 24h HH:MM ("9pm" -> "21:00", "morning" -> "09:00", "evening" -> "18:00").
- duration_text: the raw duration phrase exactly as written ("1 hour", "90 mins", "2").
- service_type: padel, futsal or salon when the sport/service is named.
- vendor_name_hint: any venue name mentioned.
- area: any neighbourhood or area mentioned.
- user_name: the user's name if they introduce themselves.

CRITICAL: Return ONLY a JSON object, nothing else. No markdown, no code fences, no explanation.

Return this exact format:
{"intent": "booking_request", "entities": {"date": "2025-12-14", "time": "17:00", "duration_text": "1 hour", "service_type": "padel", "vendor_name_hint": "Ace Padel"}, "confidence": 0.93}

confidence is your certainty in [0,1] for the intent classification.`

const extractRetryReminder = `Your previous output was not valid JSON. Respond again with ONLY the JSON object in the exact format requested. Do not wrap it in code fences or add any text before or after it.`

// Extractor turns free-form user messages into {intent, entities, confidence}
// triples via the hosted model, with strict output parsing.
type Extractor struct {
	client LLMClient
	model  string
	logger *logging.Logger
}

// NewExtractor builds an extractor over the shared LLM client.
func NewExtractor(client LLMClient, model string, logger *logging.Logger) *Extractor {
	if client == nil {
		panic("nlu: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{client: client, model: model, logger: logger.WithComponent("nlu.extractor")}
}

// Extract classifies message against recent history. now anchors relative
// date resolution and must already be in the vendor's timezone.
//
// Parse failures are not errors: the first one triggers a single stricter
// retry, and a second failure yields the Unparsed variant. A returned error
// means the model itself was unreachable.
func (e *Extractor) Extract(ctx context.Context, message string, history []ChatMessage, now time.Time) (ExtractResult, error) {
	raw, err := e.complete(ctx, message, history, now, "")
	if err != nil {
		extractOutcomeTotal.WithLabelValues(e.model, "error").Inc()
		return ExtractResult{}, err
	}

	extraction, parseErr := parseExtraction(raw)
	outcome := "ok"
	if parseErr != nil {
		e.logger.Warn("extraction parse failed, retrying with stricter reminder",
			"error", parseErr.Error(),
			"raw_len", len(raw),
		)
		raw, err = e.complete(ctx, message, history, now, extractRetryReminder)
		if err != nil {
			extractOutcomeTotal.WithLabelValues(e.model, "error").Inc()
			return ExtractResult{}, err
		}
		extraction, parseErr = parseExtraction(raw)
		if parseErr != nil {
			e.logger.Warn("extraction parse failed twice, falling back to unknown", "error", parseErr.Error())
			extractOutcomeTotal.WithLabelValues(e.model, "unparsed").Inc()
			return ExtractResult{Unparsed: raw}, nil
		}
		outcome = "retry_ok"
	}

	extraction.Intent = ParseIntent(string(extraction.Intent))
	extraction.Entities = NormalizeEntities(extraction.Entities, now)
	if extraction.Confidence < 0 {
		extraction.Confidence = 0
	}
	if extraction.Confidence > 1 {
		extraction.Confidence = 1
	}
	if extraction.Confidence < MinConfidence {
		// Low-certainty turns carry no weight: the intent downgrades and the
		// entities must never be merged into the session.
		extraction.Intent = IntentUnknown
		extraction.Entities = Entities{}
		outcome = "downgraded"
	}

	extractOutcomeTotal.WithLabelValues(e.model, outcome).Inc()
	return ExtractResult{Extracted: extraction}, nil
}

func (e *Extractor) complete(ctx context.Context, message string, history []ChatMessage, now time.Time, reminder string) (string, error) {
	system := []string{
		extractSystemPrompt,
		fmt.Sprintf("Reference date: today is %s (%s). Current time: %s.",
			now.Format("2006-01-02"), now.Weekday(), now.Format("15:04")),
	}
	if reminder != "" {
		system = append(system, reminder)
	}

	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: message})

	start := time.Now()
	resp, err := e.client.Complete(ctx, LLMRequest{
		Model:       e.model,
		System:      system,
		Messages:    messages,
		MaxTokens:   256,
		Temperature: 0,
	})
	observeCompletion(e.model, "extract", time.Since(start).Seconds(), resp.Usage, err)
	if err != nil {
		return "", fmt.Errorf("nlu: extraction completion failed: %w", err)
	}
	return resp.Text, nil
}

// parseExtraction strictly decodes the model output. It tolerates code fences
// and leading prose by slicing the outermost JSON object, nothing more.
func parseExtraction(raw string) (*Extraction, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start >= 0 && end > start {
			text = text[start : end+1]
		}
	}

	var decoded struct {
		Intent     string   `json:"intent"`
		Entities   Entities `json:"entities"`
		Confidence float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, fmt.Errorf("nlu: extraction output is not valid JSON: %w", err)
	}
	if strings.TrimSpace(decoded.Intent) == "" {
		return nil, fmt.Errorf("nlu: extraction output has no intent")
	}

	return &Extraction{
		Intent:     Intent(decoded.Intent),
		Entities:   decoded.Entities,
		Confidence: decoded.Confidence,
	}, nil
}
