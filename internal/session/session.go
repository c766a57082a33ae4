package session

import (
	"time"

	"github.com/taha00000/book-for-me/internal/nlu"
)

// Turn is one message in the per-user transcript.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingContext accumulates the four booking fields across turns, plus the
// slot proposed to the user once one has been picked.
type BookingContext struct {
	VendorID      string  `json:"selected_vendor_id,omitempty"`
	VendorName    string  `json:"selected_vendor_name,omitempty"`
	Date          string  `json:"selected_date,omitempty"`
	Time          string  `json:"selected_time,omitempty"`
	DurationHours float64 `json:"selected_duration_hours,omitempty"`
	SlotID        string  `json:"selected_slot_id,omitempty"`
	PriceQuoted   float64 `json:"price_quoted,omitempty"`
	HoldSlotID    string  `json:"hold_slot_id,omitempty"`
}

// IsComplete reports whether all four booking fields are known.
func (b BookingContext) IsComplete() bool {
	return b.VendorID != "" && b.Date != "" && b.Time != "" && b.DurationHours > 0
}

// Session is the per-user conversational state carried across turns.
type Session struct {
	UserPhone     string         `json:"user_phone"`
	History       []Turn         `json:"history"`
	CurrentIntent nlu.Intent     `json:"current_intent,omitempty"`
	Entities      nlu.Entities   `json:"entities"`
	Booking       BookingContext `json:"booking_context"`
	State         string         `json:"state,omitempty"`
	InProgress    bool           `json:"in_progress"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// New returns a fresh session for a user.
func New(userPhone string, now time.Time) *Session {
	return &Session{
		UserPhone: userPhone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendUser records an inbound user turn.
func (s *Session) AppendUser(content string, at time.Time) {
	s.History = append(s.History, Turn{Role: nlu.ChatRoleUser, Content: content, Timestamp: at})
}

// AppendAssistant records the outbound reply turn.
func (s *Session) AppendAssistant(content string, at time.Time) {
	s.History = append(s.History, Turn{Role: nlu.ChatRoleAssistant, Content: content, Timestamp: at})
}

// Recent returns the last limit turns as chat messages for the NLU agent.
// The full history stays on the session; only the model sees a window.
func (s *Session) Recent(limit int) []nlu.ChatMessage {
	turns := s.History
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	messages := make([]nlu.ChatMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, nlu.ChatMessage{Role: t.Role, Content: t.Content})
	}
	return messages
}

// ResetFlow closes the booking context after completion or abandonment.
// History survives so the next flow keeps conversational continuity.
func (s *Session) ResetFlow() {
	s.Booking = BookingContext{}
	s.Entities = nlu.Entities{}
	s.State = ""
	s.InProgress = false
}

// IdleSince reports whether the session has been idle past the cutoff.
func (s *Session) IdleSince(now time.Time, idle time.Duration) bool {
	return now.Sub(s.UpdatedAt) > idle
}
