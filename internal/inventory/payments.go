package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/taha00000/book-for-me/pkg/logging"
)

// ErrPaymentNotFound indicates no payment document exists for the id.
var ErrPaymentNotFound = errors.New("inventory: payment not found")

// PaymentRecord is written when a booking confirms. Verification is an
// amount equality check only; no processor integration.
type PaymentRecord struct {
	ID        string  `dynamodbav:"id" json:"id"`
	UserPhone string  `dynamodbav:"user_phone" json:"user_phone"`
	VendorID  string  `dynamodbav:"vendor_id" json:"vendor_id"`
	SlotID    string  `dynamodbav:"slot_id" json:"slot_id"`
	AmountDue float64 `dynamodbav:"amount_due" json:"amount_due"`
	Status    string  `dynamodbav:"payment_status" json:"status"`
	CreatedAt int64   `dynamodbav:"created_at" json:"created_at"`
}

// UserRecord tracks the people the service has talked to.
type UserRecord struct {
	Phone    string `dynamodbav:"phone" json:"phone"`
	Name     string `dynamodbav:"name,omitempty" json:"name,omitempty"`
	LastSeen int64  `dynamodbav:"last_seen" json:"last_seen"`
}

// LedgerTables names the side collections.
type LedgerTables struct {
	Payments string
	Users    string
}

// Ledger records payments due and user contact details.
type Ledger struct {
	client dynamoAPI
	tables LedgerTables
	logger *logging.Logger
}

func NewLedger(client dynamoAPI, tables LedgerTables, logger *logging.Logger) *Ledger {
	if client == nil {
		panic("inventory: dynamodb client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{client: client, tables: tables, logger: logger}
}

// RecordPaymentDue writes a pending payment for a confirmed booking and
// returns its id.
func (l *Ledger) RecordPaymentDue(ctx context.Context, userPhone, vendorID, slotID string, amount float64, now time.Time) (string, error) {
	rec := PaymentRecord{
		ID:        uuid.NewString(),
		UserPhone: userPhone,
		VendorID:  vendorID,
		SlotID:    slotID,
		AmountDue: amount,
		Status:    "due",
		CreatedAt: now.Unix(),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return "", fmt.Errorf("inventory: failed to marshal payment: %w", err)
	}
	if _, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tables.Payments),
		Item:      item,
	}); err != nil {
		return "", fmt.Errorf("inventory: failed to persist payment: %w", err)
	}
	return rec.ID, nil
}

// VerifyAmount reports whether amount matches the amount due on the payment.
func (l *Ledger) VerifyAmount(ctx context.Context, paymentID string, amount float64) (bool, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tables.Payments),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: paymentID}},
	})
	if err != nil {
		return false, fmt.Errorf("inventory: failed to fetch payment %s: %w", paymentID, err)
	}
	if out.Item == nil {
		return false, ErrPaymentNotFound
	}
	var rec PaymentRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return false, fmt.Errorf("inventory: failed to decode payment: %w", err)
	}
	return math.Abs(rec.AmountDue-amount) < 0.005, nil
}

// UpsertUser records the latest contact details for a phone number. A blank
// name never clobbers a known one.
func (l *Ledger) UpsertUser(ctx context.Context, phone, name string, now time.Time) error {
	expr := "SET last_seen = :seen"
	values := map[string]types.AttributeValue{
		":seen": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
	}
	var names map[string]string
	if name != "" {
		expr += ", #name = :name"
		values[":name"] = &types.AttributeValueMemberS{Value: name}
		names = map[string]string{"#name": "name"}
	}
	if _, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(l.tables.Users),
		Key:                       map[string]types.AttributeValue{"phone": &types.AttributeValueMemberS{Value: phone}},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}); err != nil {
		return fmt.Errorf("inventory: failed to upsert user %s: %w", phone, err)
	}
	return nil
}
