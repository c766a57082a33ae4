package dispatch

import "context"

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// turnPayload is the queue envelope for one conversational turn. An empty ID
// marks a fire-and-forget job with no caller waiting for the reply.
type turnPayload struct {
	ID         string `json:"id,omitempty"`
	Phone      string `json:"phone"`
	Text       string `json:"text"`
	ReceivedAt int64  `json:"received_at"` // epoch millis
}
