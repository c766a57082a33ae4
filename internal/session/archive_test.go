package session

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/taha00000/book-for-me/pkg/logging"
)

type mockPutter struct {
	inputs []*dynamodb.PutItemInput
	err    error
}

func (m *mockPutter) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.inputs = append(m.inputs, in)
	return &dynamodb.PutItemOutput{}, m.err
}

func TestArchiver_WritesTranscript(t *testing.T) {
	mock := &mockPutter{}
	archiver := NewArchiver(mock, "bookforme_conversation_states", logging.Default())

	now := time.Date(2025, 12, 14, 18, 0, 0, 0, time.UTC)
	sess := New("+923331111111", now.Add(-10*time.Minute))
	sess.AppendUser("yes", now.Add(-time.Minute))
	sess.AppendAssistant("Booked!", now)
	sess.Booking.VendorID = "ace_padel_dha"
	sess.Booking.SlotID = "slot-1"
	sess.Booking.PriceQuoted = 1800

	if err := archiver.Archive(context.Background(), sess, "confirmed", now); err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}

	if len(mock.inputs) != 1 {
		t.Fatalf("expected 1 PutItem call, got %d", len(mock.inputs))
	}
	var stored ArchiveRecord
	if err := attributevalue.UnmarshalMap(mock.inputs[0].Item, &stored); err != nil {
		t.Fatalf("failed to unmarshal stored record: %v", err)
	}
	if stored.Outcome != "confirmed" {
		t.Errorf("expected outcome confirmed, got %s", stored.Outcome)
	}
	if stored.UserPhone != "+923331111111" {
		t.Errorf("unexpected phone: %s", stored.UserPhone)
	}
	if len(stored.History) != 2 {
		t.Errorf("expected 2 turns, got %d", len(stored.History))
	}
	if stored.Price != 1800 {
		t.Errorf("expected price 1800, got %v", stored.Price)
	}
}

func TestArchiver_NilSession(t *testing.T) {
	archiver := NewArchiver(&mockPutter{}, "t", logging.Default())
	if err := archiver.Archive(context.Background(), nil, "expired", time.Now()); err == nil {
		t.Fatal("expected error for nil session")
	}
}
