package inventory

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SlotStatus is the lifecycle state of a bookable slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotHeld      SlotStatus = "held"
	SlotBooked    SlotStatus = "booked"
	SlotCancelled SlotStatus = "cancelled"
)

// Vendor is a bookable venue. Immutable during a booking flow.
type Vendor struct {
	ID           string   `dynamodbav:"id" json:"id"`
	Name         string   `dynamodbav:"name" json:"name"`
	Category     string   `dynamodbav:"category" json:"category"` // padel, futsal, salon, ...
	Area         string   `dynamodbav:"area" json:"area"`
	PricePerHour float64  `dynamodbav:"price_per_hour" json:"price_per_hour"`
	OpenTime     string   `dynamodbav:"open_time" json:"open_time"`   // HH:MM
	CloseTime    string   `dynamodbav:"close_time" json:"close_time"` // HH:MM
	Timezone     string   `dynamodbav:"timezone,omitempty" json:"timezone,omitempty"`
	Resources    []string `dynamodbav:"resources" json:"resources"` // court / room ids
	Version      int64    `dynamodbav:"version" json:"version"`
}

// Slot is a time-bounded, reservable allocation of a vendor resource.
// version increments on every write and is the conditional-commit predicate.
type Slot struct {
	ID            string     `dynamodbav:"id" json:"id"`
	VendorID      string     `dynamodbav:"vendor_id" json:"vendor_id"`
	ResourceID    string     `dynamodbav:"resource_id" json:"resource_id"`
	Date          string     `dynamodbav:"slot_date" json:"date"`        // YYYY-MM-DD
	StartTime     string     `dynamodbav:"start_time" json:"start_time"` // HH:MM 24h
	DurationHours float64    `dynamodbav:"duration_hours" json:"duration_hours"`
	Status        SlotStatus `dynamodbav:"status" json:"status"`
	HeldBy        string     `dynamodbav:"held_by,omitempty" json:"held_by,omitempty"`
	HeldUntil     int64      `dynamodbav:"held_until,omitempty" json:"held_until,omitempty"` // unix seconds
	BookedBy      string     `dynamodbav:"booked_by,omitempty" json:"booked_by,omitempty"`
	Price         float64    `dynamodbav:"price" json:"price"`
	Version       int64      `dynamodbav:"version" json:"version"`
}

// SlotID derives the canonical slot document id.
func SlotID(vendorID, resourceID, date, startTime string, durationHours float64) string {
	return fmt.Sprintf("%s#%s#%s#%s#%s", vendorID, resourceID, date, startTime,
		strconv.FormatFloat(durationHours, 'g', -1, 64))
}

// SlotID derives the canonical id from this slot's coordinates.
func (s *Slot) SlotID() string {
	return SlotID(s.VendorID, s.ResourceID, s.Date, s.StartTime, s.DurationHours)
}

// EffectiveStatus resolves an expired hold to available. Other readers never
// see a stale hold as blocking.
func (s *Slot) EffectiveStatus(now time.Time) SlotStatus {
	if s.Status == SlotHeld && s.HeldUntil > 0 && now.Unix() >= s.HeldUntil {
		return SlotAvailable
	}
	return s.Status
}

// Interval returns the slot's [start, end) in minutes since midnight.
func (s *Slot) Interval() (int, int) {
	start := minutesOf(s.StartTime)
	return start, start + int(s.DurationHours*60)
}

// Blocks reports whether this slot prevents another reservation on the same
// resource at now: booked slots always, held slots only while unexpired.
func (s *Slot) Blocks(now time.Time) bool {
	switch s.EffectiveStatus(now) {
	case SlotBooked, SlotHeld:
		return true
	}
	return false
}

// minutesOf parses HH:MM into minutes since midnight; -1 on bad input.
func minutesOf(clock string) int {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return -1
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return -1
	}
	return h*60 + m
}

func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// withinHours reports whether [start, end) fits inside the vendor's
// operating hours.
func withinHours(v *Vendor, startMin, endMin int) bool {
	open := minutesOf(v.OpenTime)
	closeAt := minutesOf(v.CloseTime)
	if open < 0 || closeAt < 0 {
		return false
	}
	return startMin >= open && endMin <= closeAt
}
