package nlu

import "strings"

// Intent is the classified purpose of a user message, drawn from a closed set.
type Intent string

const (
	IntentGreeting            Intent = "greeting"
	IntentAvailabilityInquiry Intent = "availability_inquiry"
	IntentPriceInquiry        Intent = "price_inquiry"
	IntentBookingRequest      Intent = "booking_request"
	IntentConfirm             Intent = "confirm"
	IntentDeny                Intent = "deny"
	IntentCancel              Intent = "cancel"
	IntentSmallTalk           Intent = "small_talk"
	IntentUnknown             Intent = "unknown"
)

var intentSet = map[Intent]struct{}{
	IntentGreeting:            {},
	IntentAvailabilityInquiry: {},
	IntentPriceInquiry:        {},
	IntentBookingRequest:      {},
	IntentConfirm:             {},
	IntentDeny:                {},
	IntentCancel:              {},
	IntentSmallTalk:           {},
	IntentUnknown:             {},
}

// ParseIntent validates a raw intent string against the closed set.
// Anything outside the set maps to IntentUnknown.
func ParseIntent(raw string) Intent {
	candidate := Intent(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := intentSet[candidate]; ok {
		return candidate
	}
	return IntentUnknown
}

// IsBookingIntent reports whether the intent opens or advances a booking flow.
func (i Intent) IsBookingIntent() bool {
	switch i {
	case IntentAvailabilityInquiry, IntentPriceInquiry, IntentBookingRequest:
		return true
	}
	return false
}

// Entities are the typed values extracted from a user message. Empty string
// means the entity was absent from the message.
type Entities struct {
	Date           string `json:"date,omitempty"`             // YYYY-MM-DD
	Time           string `json:"time,omitempty"`             // HH:MM 24h
	DurationText   string `json:"duration_text,omitempty"`    // raw phrase, parsed downstream
	ServiceType    string `json:"service_type,omitempty"`     // padel, futsal, salon, ...
	VendorNameHint string `json:"vendor_name_hint,omitempty"` // free-form venue mention
	Area           string `json:"area,omitempty"`
	UserName       string `json:"user_name,omitempty"`
}

// IsEmpty reports whether no entity was extracted at all.
func (e Entities) IsEmpty() bool {
	return e == Entities{}
}

// HasBookingEntity reports whether at least one slot-filling entity is present.
func (e Entities) HasBookingEntity() bool {
	return e.Date != "" || e.Time != "" || e.DurationText != "" ||
		e.ServiceType != "" || e.VendorNameHint != "" || e.Area != ""
}

// Extraction is the structured result of a successful intent extraction.
type Extraction struct {
	Intent     Intent   `json:"intent"`
	Entities   Entities `json:"entities"`
	Confidence float64  `json:"confidence"`
}

// ExtractResult is a tagged variant: either a validated Extraction or the raw
// model output that failed to parse. Exactly one side is set.
type ExtractResult struct {
	Extracted *Extraction
	Unparsed  string
}

// MustExtraction returns the extraction or, for the unparsed variant, the
// unknown/zero-confidence fallback the orchestrator expects.
func (r ExtractResult) MustExtraction() Extraction {
	if r.Extracted != nil {
		return *r.Extracted
	}
	return Extraction{Intent: IntentUnknown, Confidence: 0}
}
