package booking

import (
	"fmt"
	"strings"

	"github.com/taha00000/book-for-me/internal/inventory"
	"github.com/taha00000/book-for-me/internal/session"
)

// Static templates sent when reply generation fails or times out. Every
// branch of the flow carries one so the user always gets an answer.
const (
	replyGreeting      = "Hi! I'm BookForMe. I can help you find and book padel courts, futsal pitches and salon appointments. What would you like to book?"
	replyClarify       = "Sorry, I didn't quite catch that. You can ask me to book a venue, check availability, or get a price - for example: \"Book padel tomorrow at 5pm for 1 hour\"."
	replyUnavailable   = "Sorry, I'm having trouble reaching our booking system right now. Please try again in a moment - nothing has been lost."
	replyCancelled     = "No problem, I've cancelled that. Just message me whenever you'd like to book something."
	replyStartBooking  = "Happy to help! Which venue or sport would you like to book?"
	replyAskVendor     = "Which venue would you like? You can name a place, a sport (padel, futsal, salon) or an area."
	replyAskDate       = "What date works for you? You can say things like \"tomorrow\" or \"Saturday\"."
	replyAskTime       = "What time would you like to play?"
	replyAskDuration   = "How long would you like the booking for? For example \"1 hour\" or \"90 minutes\"."
	replyConfirmPrompt = "Reply \"yes\" to confirm or \"no\" to change something."
)

func askDurationUnit(n string) string {
	return fmt.Sprintf("Did you mean %s hours or %s minutes?", n, n)
}

// bookingSummary renders the booking context compactly for the generation
// prompt.
func bookingSummary(b session.BookingContext) string {
	var parts []string
	if b.VendorName != "" {
		parts = append(parts, "venue: "+b.VendorName)
	}
	if b.Date != "" {
		parts = append(parts, "date: "+b.Date)
	}
	if b.Time != "" {
		parts = append(parts, "time: "+b.Time)
	}
	if b.DurationHours > 0 {
		parts = append(parts, "duration: "+FormatDuration(b.DurationHours))
	}
	if b.PriceQuoted > 0 {
		parts = append(parts, fmt.Sprintf("price quoted: Rs %s", formatPrice(b.PriceQuoted)))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n")
}

func formatPrice(p float64) string {
	if p == float64(int64(p)) {
		return fmt.Sprintf("%d", int64(p))
	}
	return fmt.Sprintf("%.2f", p)
}

func slotFact(s inventory.Slot) string {
	return fmt.Sprintf("%s at %s for %s: Rs %s",
		s.Date, s.StartTime, FormatDuration(s.DurationHours), formatPrice(s.Price))
}

func vendorFact(v inventory.Vendor) string {
	return fmt.Sprintf("%s (%s, %s), Rs %s per hour",
		v.Name, v.Category, v.Area, formatPrice(v.PricePerHour))
}

func alternativesFact(slots []inventory.Slot, limit int) []string {
	var facts []string
	for _, s := range slots {
		if len(facts) >= limit {
			break
		}
		facts = append(facts, slotFact(s))
	}
	return facts
}

func joinTimes(slots []inventory.Slot, limit int) string {
	var times []string
	for _, s := range slots {
		if len(times) >= limit {
			break
		}
		times = append(times, s.StartTime)
	}
	return strings.Join(times, " or ")
}
