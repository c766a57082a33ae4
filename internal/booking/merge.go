package booking

import (
	"github.com/taha00000/book-for-me/internal/nlu"
	"github.com/taha00000/book-for-me/internal/session"
)

// mergeExtraction folds a gated extraction into the session. Non-empty
// entities override the stored value; absent ones preserve it. Returns true
// when a booking-relevant field changed, which is what knocks an
// AWAITING_CONFIRM flow back to gathering.
func mergeExtraction(sess *session.Session, ex nlu.Extraction) bool {
	sess.CurrentIntent = ex.Intent
	if ex.Confidence < nlu.MinConfidence {
		return false
	}

	changed := false
	e := ex.Entities
	if e.Date != "" && e.Date != sess.Booking.Date {
		sess.Entities.Date = e.Date
		sess.Booking.Date = e.Date
		changed = true
	}
	if e.Time != "" && e.Time != sess.Booking.Time {
		sess.Entities.Time = e.Time
		sess.Booking.Time = e.Time
		changed = true
	}
	if e.DurationText != "" && e.DurationText != sess.Entities.DurationText {
		sess.Entities.DurationText = e.DurationText
		// The resolved hours are stale now; advanceFlow re-parses the text.
		sess.Booking.DurationHours = 0
		changed = true
	}
	if e.ServiceType != "" && e.ServiceType != sess.Entities.ServiceType {
		sess.Entities.ServiceType = e.ServiceType
		changed = true
	}
	if e.VendorNameHint != "" && e.VendorNameHint != sess.Entities.VendorNameHint {
		sess.Entities.VendorNameHint = e.VendorNameHint
		// A new venue mention invalidates the resolved vendor.
		sess.Booking.VendorID = ""
		sess.Booking.VendorName = ""
		changed = true
	}
	if e.Area != "" && e.Area != sess.Entities.Area {
		sess.Entities.Area = e.Area
		changed = true
	}
	if e.UserName != "" {
		sess.Entities.UserName = e.UserName
	}
	return changed
}
