package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSenderSendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	sender := NewChatSender("token-123", "555001")
	sender.SetAPIBase(srv.URL)

	err := sender.SendText(context.Background(), "+923331111111", "You're booked!")
	require.NoError(t, err)
	assert.Equal(t, "/555001/messages", gotPath)
	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "whatsapp", gotBody.MessagingProduct)
	assert.Equal(t, "+923331111111", gotBody.To)
	assert.Equal(t, "You're booked!", gotBody.Text.Body)
}

func TestChatSenderSendTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(sendResponse{Error: &sendError{Code: 190, Message: "invalid token"}})
	}))
	defer srv.Close()

	sender := NewChatSender("bad-token", "555001")
	sender.SetAPIBase(srv.URL)

	err := sender.SendText(context.Background(), "+923331111111", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}
