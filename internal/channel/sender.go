package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultChatAPIBase = "https://graph.facebook.com/v18.0"
	defaultSendTimeout = 10 * time.Second
)

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *sendError `json:"error,omitempty"`
}

type sendError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ChatSender pushes replies to users over the chat platform's send API.
// The background worker uses it when the webhook was acked with 202 and
// nobody is waiting on the HTTP response.
type ChatSender struct {
	accessToken   string
	phoneNumberID string
	apiBase       string
	httpClient    *http.Client
}

func NewChatSender(accessToken, phoneNumberID string) *ChatSender {
	return &ChatSender{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		apiBase:       defaultChatAPIBase,
		httpClient:    &http.Client{Timeout: defaultSendTimeout},
	}
}

// SetAPIBase overrides the send API base URL (useful for testing).
func (c *ChatSender) SetAPIBase(base string) {
	c.apiBase = base
}

// SendText delivers one plain-text message to the given phone number.
func (c *ChatSender) SendText(ctx context.Context, to, text string) error {
	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: text},
	})
	if err != nil {
		return fmt.Errorf("channel: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiBase, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("channel: create send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("channel: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("channel: read send response: %w", err)
	}

	var sendResp sendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return fmt.Errorf("channel: unmarshal send response: %w", err)
	}
	if sendResp.Error != nil {
		return fmt.Errorf("channel: send API error %d: %s", sendResp.Error.Code, sendResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("channel: unexpected send status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
