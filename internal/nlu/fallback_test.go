package nlu

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taha00000/book-for-me/pkg/logging"
)

type staticClient struct {
	resp LLMResponse
	err  error
}

func (c *staticClient) Complete(context.Context, LLMRequest) (LLMResponse, error) {
	return c.resp, c.err
}

func TestFallbackClient_PrimarySucceeds(t *testing.T) {
	primary := &staticClient{resp: LLMResponse{Text: "primary"}}
	fallback := &staticClient{resp: LLMResponse{Text: "fallback"}}
	client := NewFallbackClient(primary, fallback, logging.Default())

	resp, err := client.Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
}

func TestFallbackClient_FallsBack(t *testing.T) {
	primary := &staticClient{err: errors.New("boom")}
	fallback := &staticClient{resp: LLMResponse{Text: "fallback"}}
	client := NewFallbackClient(primary, fallback, logging.Default())

	resp, err := client.Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)
}

func TestFallbackClient_NoFallbackConfigured(t *testing.T) {
	primaryErr := errors.New("boom")
	client := NewFallbackClient(&staticClient{err: primaryErr}, nil, logging.Default())

	_, err := client.Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, primaryErr)
}

func TestFallbackClient_BothFail(t *testing.T) {
	fallbackErr := errors.New("fallback down")
	client := NewFallbackClient(&staticClient{err: errors.New("boom")}, &staticClient{err: fallbackErr}, logging.Default())

	_, err := client.Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, fallbackErr)
}

func TestParseIntentClosedSet(t *testing.T) {
	assert.Equal(t, IntentConfirm, ParseIntent("confirm"))
	assert.Equal(t, IntentCancel, ParseIntent(" CANCEL "))
	assert.Equal(t, IntentUnknown, ParseIntent("order_pizza"))
	assert.Equal(t, IntentUnknown, ParseIntent(""))
}
