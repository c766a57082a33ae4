package nlu

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taha00000/book-for-me/pkg/logging"
)

func TestGenerate_PromptCarriesFactsAndNextAction(t *testing.T) {
	client := &scriptedClient{responses: []LLMResponse{{Text: "Ace Padel has a court at 17:00 for Rs 1800. Shall I book it?"}}}
	gen := NewGenerator(client, "test-model", logging.Default())

	reply, err := gen.Generate(context.Background(), IntentBookingRequest, Entities{UserName: "Ali"}, PromptContext{
		State:          "quoting",
		BookingSummary: "vendor=Ace Padel date=2025-12-14 time=17:00 duration=1h",
		Facts:          []string{"Ace Padel, court 1, 2025-12-14 17:00, 1h, Rs 1800"},
		NextAction:     "ask the user to confirm the booking",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	require.Len(t, req.Messages, 1)
	prompt := req.Messages[0].Content
	assert.Contains(t, prompt, "Rs 1800")
	assert.Contains(t, prompt, "ask the user to confirm")
	assert.Contains(t, prompt, "USER NAME: Ali")
	assert.InDelta(t, 0.7, req.Temperature, 1e-6)
	require.NotEmpty(t, req.System)
	assert.Contains(t, req.System[0], "NEVER invent")
}

func TestGenerate_EmptyFactsRendered(t *testing.T) {
	client := &scriptedClient{responses: []LLMResponse{{Text: "How can I help?"}}}
	gen := NewGenerator(client, "test-model", logging.Default())

	_, err := gen.Generate(context.Background(), IntentGreeting, Entities{}, PromptContext{State: "idle"})
	require.NoError(t, err)
	assert.Contains(t, client.requests[0].Messages[0].Content, "(none)")
}

func TestGenerate_TruncatesLongReplies(t *testing.T) {
	long := strings.Repeat("slot details ", 100)
	client := &scriptedClient{responses: []LLMResponse{{Text: long}}}
	gen := NewGenerator(client, "test-model", logging.Default())

	reply, err := gen.Generate(context.Background(), IntentAvailabilityInquiry, Entities{}, PromptContext{})
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(reply), MaxReplyChars)
}

func TestTruncateReply(t *testing.T) {
	assert.Equal(t, "short", TruncateReply("short", 600))

	long := strings.Repeat("é", 700)
	got := TruncateReply(long, 600)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 600)
	assert.True(t, strings.HasSuffix(got, "…"))
}
