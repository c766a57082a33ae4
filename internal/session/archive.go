package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/taha00000/book-for-me/pkg/logging"
)

type dynamoPutAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ArchiveRecord is the long-term transcript document written to the
// conversation_states collection when a flow closes. Session expiry in Redis
// does not destroy history; it lands here first.
type ArchiveRecord struct {
	StateID   string  `dynamodbav:"state_id"` // "{phone}#{closed_at_unix_nano}"
	UserPhone string  `dynamodbav:"user_phone"`
	Outcome   string  `dynamodbav:"outcome"` // confirmed, cancelled, expired
	History   []Turn  `dynamodbav:"history"`
	VendorID  string  `dynamodbav:"vendor_id,omitempty"`
	SlotID    string  `dynamodbav:"slot_id,omitempty"`
	Price     float64 `dynamodbav:"price,omitempty"`
	ClosedAt  string  `dynamodbav:"closed_at"`
}

// Archiver appends closed-session transcripts to the document database.
type Archiver struct {
	client    dynamoPutAPI
	tableName string
	logger    *logging.Logger
}

// NewArchiver builds an archiver over the provided DynamoDB client.
func NewArchiver(client dynamoPutAPI, tableName string, logger *logging.Logger) *Archiver {
	if client == nil {
		panic("session: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("session: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Archiver{client: client, tableName: tableName, logger: logger}
}

// Archive writes the closed session's transcript. outcome names why the flow
// closed (confirmed, cancelled, expired).
func (a *Archiver) Archive(ctx context.Context, sess *Session, outcome string, now time.Time) error {
	if a == nil {
		return nil
	}
	if sess == nil {
		return errors.New("session: cannot archive nil session")
	}

	record := ArchiveRecord{
		StateID:   fmt.Sprintf("%s#%d", sess.UserPhone, now.UnixNano()),
		UserPhone: sess.UserPhone,
		Outcome:   outcome,
		History:   sess.History,
		VendorID:  sess.Booking.VendorID,
		SlotID:    sess.Booking.SlotID,
		Price:     sess.Booking.PriceQuoted,
		ClosedAt:  now.UTC().Format(time.RFC3339Nano),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("session: failed to marshal archive record: %w", err)
	}
	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("session: failed to archive transcript: %w", err)
	}
	return nil
}
