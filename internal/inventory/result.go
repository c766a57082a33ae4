package inventory

import "time"

// FailReason classifies why a reservation or hold did not commit.
type FailReason string

const (
	ReasonNotFound      FailReason = "not_found"
	ReasonAlreadyBooked FailReason = "already_booked"
	ReasonOverlaps      FailReason = "overlaps"
	// ReasonTransient is the only retryable failure.
	ReasonTransient FailReason = "transient"
)

// ReserveResult is the outcome of an atomic reservation attempt.
type ReserveResult struct {
	OK     bool
	Booked *Slot
	Reason FailReason
}

// HoldResult is the outcome of a two-phase hold attempt.
type HoldResult struct {
	OK        bool
	HeldUntil time.Time
	Reason    FailReason
}

// VendorFilter narrows ListVendors. Zero values match everything.
type VendorFilter struct {
	ServiceType  string // matches Vendor.Category; the two are synonyms here
	Area         string
	NameContains string
}
