package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taha00000/book-for-me/internal/inventory"
	"github.com/taha00000/book-for-me/internal/nlu"
	"github.com/taha00000/book-for-me/internal/observability/metrics"
	"github.com/taha00000/book-for-me/internal/session"
	"github.com/taha00000/book-for-me/pkg/logging"
)

// Inventory is the slice of the inventory store the orchestrator needs.
type Inventory interface {
	ListVendors(ctx context.Context, filter inventory.VendorFilter) ([]inventory.Vendor, error)
	GetVendor(ctx context.Context, vendorID string) (*inventory.Vendor, error)
	FindSlots(ctx context.Context, vendorID, date, startTime string, durationHours float64, now time.Time) ([]inventory.Slot, error)
	Reserve(ctx context.Context, slotID, userPhone string, now time.Time) (inventory.ReserveResult, error)
	Hold(ctx context.Context, slotID, userPhone string, ttl time.Duration, now time.Time) (inventory.HoldResult, error)
	Release(ctx context.Context, slotID, userPhone string) error
}

// SessionStore is the per-user state the orchestrator reads and writes.
type SessionStore interface {
	Load(ctx context.Context, userPhone string, now time.Time) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session, now time.Time) error
	Delete(ctx context.Context, userPhone string) error
}

// Extractor classifies a message into {intent, entities, confidence}.
type Extractor interface {
	Extract(ctx context.Context, message string, history []nlu.ChatMessage, now time.Time) (nlu.ExtractResult, error)
}

// Generator produces the user-facing reply text.
type Generator interface {
	Generate(ctx context.Context, intent nlu.Intent, entities nlu.Entities, pc nlu.PromptContext) (string, error)
}

// Archiver persists closed-flow transcripts. Optional.
type Archiver interface {
	Archive(ctx context.Context, sess *session.Session, outcome string, now time.Time) error
}

// Ledger records payments due and user details. Optional.
type Ledger interface {
	RecordPaymentDue(ctx context.Context, userPhone, vendorID, slotID string, amount float64, now time.Time) (string, error)
	UpsertUser(ctx context.Context, phone, name string, now time.Time) error
}

// Config tunes the orchestrator. Zero values get sensible defaults in New.
type Config struct {
	HoldTTL         time.Duration
	DiscountPercent float64
	HistoryLimit    int
	NLUTimeout      time.Duration
	DBTimeout       time.Duration
	Timezone        *time.Location
}

// Orchestrator drives the booking state machine: one inbound message in,
// exactly one reply out, with every session mutation guarded by the
// per-user lock.
type Orchestrator struct {
	sessions  SessionStore
	extractor Extractor
	generator Generator
	inv       Inventory
	locks     *session.LockTable
	archiver  Archiver
	ledger    Ledger
	metrics   *metrics.TurnMetrics
	logger    *logging.Logger
	cfg       Config
}

func New(sessions SessionStore, extractor Extractor, generator Generator, inv Inventory, locks *session.LockTable, cfg Config, logger *logging.Logger) *Orchestrator {
	if sessions == nil || extractor == nil || generator == nil || inv == nil {
		panic("booking: orchestrator dependencies cannot be nil")
	}
	if locks == nil {
		locks = session.NewLockTable()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 2 * time.Minute
	}
	if cfg.DiscountPercent == 0 {
		cfg.DiscountPercent = DefaultDiscountPercent
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.NLUTimeout <= 0 {
		cfg.NLUTimeout = 20 * time.Second
	}
	if cfg.DBTimeout <= 0 {
		cfg.DBTimeout = 5 * time.Second
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &Orchestrator{
		sessions:  sessions,
		extractor: extractor,
		generator: generator,
		inv:       inv,
		locks:     locks,
		cfg:       cfg,
		logger:    logger.WithComponent("booking.orchestrator"),
	}
}

// WithArchiver attaches transcript archiving for closed flows.
func (o *Orchestrator) WithArchiver(a Archiver) *Orchestrator {
	o.archiver = a
	return o
}

// WithLedger attaches payment/user record keeping.
func (o *Orchestrator) WithLedger(l Ledger) *Orchestrator {
	o.ledger = l
	return o
}

// WithMetrics attaches turn metrics.
func (o *Orchestrator) WithMetrics(m *metrics.TurnMetrics) *Orchestrator {
	o.metrics = m
	return o
}

// plan is what one turn decided to say. fallback is always set; direct
// skips generation and sends it verbatim.
type plan struct {
	pc       nlu.PromptContext
	fallback string
	direct   bool
}

// HandleTurn processes one inbound message and returns the reply. Turns for
// the same user are serialized in arrival order; turns for different users
// run in parallel.
func (o *Orchestrator) HandleTurn(ctx context.Context, userPhone, text string, now time.Time) (string, error) {
	release, err := o.locks.Acquire(ctx, userPhone)
	if err != nil {
		return "", err
	}
	defer release()

	now = now.In(o.cfg.Timezone)
	started := time.Now()

	sess, err := o.sessions.Load(ctx, userPhone, now)
	if err != nil {
		o.logger.Error("session load failed", "user", userPhone, "error", err.Error())
		return replyUnavailable, nil
	}
	sess.AppendUser(text, now)

	ex := o.extract(ctx, sess, text, now)
	o.metrics.ObserveIntent(string(ex.Intent))

	p := o.decide(ctx, sess, ex, now)
	reply := o.render(ctx, sess, ex, p)

	sess.AppendAssistant(reply, now)
	if err := o.sessions.Save(ctx, sess, now); err != nil {
		// The reply still goes out; the next turn reloads from Redis.
		o.logger.Error("session save failed", "user", userPhone, "error", err.Error())
	}
	if o.ledger != nil {
		if err := o.ledger.UpsertUser(ctx, userPhone, sess.Entities.UserName, now); err != nil {
			o.logger.Warn("user upsert failed", "user", userPhone, "error", err.Error())
		}
	}
	o.metrics.ObserveTurn(sess.State, time.Since(started).Seconds())
	return reply, nil
}

// extract runs NLU classification under its deadline. A timeout or
// transport failure downgrades the turn to unknown; the conversation
// continues with a clarification rather than an error.
func (o *Orchestrator) extract(ctx context.Context, sess *session.Session, text string, now time.Time) nlu.Extraction {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.NLUTimeout)
	defer cancel()

	history := sess.Recent(o.cfg.HistoryLimit)
	if len(history) > 0 {
		history = history[:len(history)-1] // the latest message travels separately
	}
	result, err := o.extractor.Extract(ctx, text, history, now)
	if err != nil {
		o.logger.Warn("intent extraction unavailable", "error", err.Error())
		return nlu.Extraction{Intent: nlu.IntentUnknown}
	}
	return result.MustExtraction()
}

// render turns the plan into reply text, falling back to the static
// template when generation fails or times out.
func (o *Orchestrator) render(ctx context.Context, sess *session.Session, ex nlu.Extraction, p plan) string {
	if p.direct {
		return p.fallback
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.NLUTimeout)
	defer cancel()

	reply, err := o.generator.Generate(ctx, ex.Intent, sess.Entities, p.pc)
	if err != nil {
		o.logger.Warn("reply generation failed, using template", "error", err.Error())
		return p.fallback
	}
	return reply
}

// decide is the state machine step: it merges entities, transitions state
// and performs inventory side effects, returning what to tell the user.
func (o *Orchestrator) decide(ctx context.Context, sess *session.Session, ex nlu.Extraction, now time.Time) plan {
	state := stateOf(sess.State)

	// A closed flow greets the next message with a clean slate.
	if !state.Open() && state != StateIdle {
		name := sess.Entities.UserName
		sess.ResetFlow()
		sess.Entities.UserName = name
		state = StateIdle
	}

	switch ex.Intent {
	case nlu.IntentCancel:
		return o.cancelFlow(ctx, sess, now)
	case nlu.IntentGreeting, nlu.IntentSmallTalk:
		if !state.Open() {
			sess.CurrentIntent = ex.Intent
			sess.State = string(StateIdle)
			sess.InProgress = false
			return plan{
				pc: nlu.PromptContext{
					State:      "idle",
					NextAction: "offer to help book a venue",
				},
				fallback: replyGreeting,
			}
		}
		// Mid-flow chit-chat: acknowledge and steer back.
		sess.CurrentIntent = ex.Intent
		return o.advanceFlow(ctx, sess, now)
	case nlu.IntentUnknown:
		sess.CurrentIntent = ex.Intent
		return plan{
			pc: nlu.PromptContext{
				State:          strings.ToLower(string(state)),
				BookingSummary: bookingSummary(sess.Booking),
				NextAction:     "ask the user to rephrase what they need",
			},
			fallback: replyClarify,
		}
	case nlu.IntentConfirm:
		if state == StateAwaitingConfirm {
			mergeExtraction(sess, ex)
			return o.reserveFlow(ctx, sess, now)
		}
		sess.CurrentIntent = ex.Intent
		if state.Open() {
			return o.advanceFlow(ctx, sess, now)
		}
		return plan{
			pc:       nlu.PromptContext{State: "idle", NextAction: "ask what the user would like to book"},
			fallback: replyClarify,
		}
	case nlu.IntentDeny:
		sess.CurrentIntent = ex.Intent
		if state == StateAwaitingConfirm {
			o.releaseHold(ctx, sess)
			sess.Booking.SlotID = ""
			sess.Booking.PriceQuoted = 0
			sess.Booking.Time = ""
			sess.State = string(StateGathering)
			return plan{
				pc: nlu.PromptContext{
					State:          "gathering",
					BookingSummary: bookingSummary(sess.Booking),
					NextAction:     "ask what the user wants to change, suggesting a different time",
				},
				fallback: "No problem. " + replyAskTime,
			}
		}
		return plan{
			pc:       nlu.PromptContext{State: strings.ToLower(string(state)), NextAction: "ask what the user would like instead"},
			fallback: replyClarify,
		}
	}

	// Booking intents, and mid-flow messages that refine the request.
	changed := mergeExtraction(sess, ex)

	if state == StateAwaitingConfirm && changed {
		o.releaseHold(ctx, sess)
		sess.Booking.SlotID = ""
		sess.Booking.PriceQuoted = 0
		sess.State = string(StateGathering)
	}

	if !state.Open() {
		if !ex.Intent.IsBookingIntent() {
			return plan{
				pc:       nlu.PromptContext{State: "idle", NextAction: "ask what the user would like to book"},
				fallback: replyClarify,
			}
		}
		if !ex.Entities.HasBookingEntity() {
			sess.State = string(StateIdle)
			return plan{
				pc:       nlu.PromptContext{State: "idle", NextAction: "ask which venue or sport the user wants"},
				fallback: replyStartBooking,
			}
		}
		sess.InProgress = true
		sess.State = string(StateGathering)
	}

	return o.advanceFlow(ctx, sess, now)
}

// cancelFlow handles intent cancel from any state.
func (o *Orchestrator) cancelFlow(ctx context.Context, sess *session.Session, now time.Time) plan {
	o.releaseHold(ctx, sess)
	o.archive(ctx, sess, "cancelled", now)

	sess.CurrentIntent = nlu.IntentCancel
	sess.Booking = session.BookingContext{}
	sess.State = string(StateCancelled)
	sess.InProgress = false
	return plan{
		pc: nlu.PromptContext{
			State:      "cancelled",
			NextAction: "let the user know they can start a new booking anytime",
		},
		fallback: replyCancelled,
	}
}

// advanceFlow gathers missing fields in priority order, then quotes.
func (o *Orchestrator) advanceFlow(ctx context.Context, sess *session.Session, now time.Time) plan {
	sess.InProgress = true
	if sess.State == "" || !stateOf(sess.State).Open() {
		sess.State = string(StateGathering)
	}

	// Vendor first: resolve the hint against the catalogue.
	if sess.Booking.VendorID == "" {
		if p, done := o.resolveVendor(ctx, sess); done {
			return p
		}
	}

	// Duration text parses eagerly so ambiguity is caught before quoting.
	if sess.Entities.DurationText != "" && sess.Booking.DurationHours == 0 {
		if p, done := o.resolveDuration(sess); done {
			return p
		}
	}

	if p, done := o.askMissing(sess); done {
		return p
	}
	return o.quote(ctx, sess, now)
}

// resolveVendor matches the session's hints against vendors. done=true
// means the turn ends here (ambiguity, no match, or backend trouble).
func (o *Orchestrator) resolveVendor(ctx context.Context, sess *session.Session) (plan, bool) {
	e := sess.Entities
	if e.VendorNameHint == "" && e.ServiceType == "" && e.Area == "" {
		return plan{}, false // nothing to resolve yet; askMissing will prompt
	}

	dbCtx, cancel := context.WithTimeout(ctx, o.cfg.DBTimeout)
	defer cancel()
	vendors, err := o.inv.ListVendors(dbCtx, inventory.VendorFilter{
		ServiceType:  e.ServiceType,
		Area:         e.Area,
		NameContains: e.VendorNameHint,
	})
	if err != nil {
		o.logger.Error("vendor lookup failed", "error", err.Error())
		return plan{fallback: replyUnavailable, pc: nlu.PromptContext{
			State:      "gathering",
			NextAction: "apologize for the glitch and ask the user to try again",
		}}, true
	}

	switch len(vendors) {
	case 0:
		// Loosen: the name hint may not match any catalogue entry verbatim.
		if e.VendorNameHint != "" && (e.ServiceType != "" || e.Area != "") {
			vendors, err = o.inv.ListVendors(dbCtx, inventory.VendorFilter{ServiceType: e.ServiceType, Area: e.Area})
			if err == nil && len(vendors) == 1 {
				sess.Booking.VendorID = vendors[0].ID
				sess.Booking.VendorName = vendors[0].Name
				return plan{}, false
			}
		}
		sess.Entities.VendorNameHint = ""
		return plan{
			pc: nlu.PromptContext{
				State:      "gathering",
				Facts:      []string{"no venue matched the request"},
				NextAction: "say no venue matched and ask for another name, sport or area",
			},
			fallback: "I couldn't find a venue matching that. " + replyAskVendor,
		}, true
	case 1:
		sess.Booking.VendorID = vendors[0].ID
		sess.Booking.VendorName = vendors[0].Name
		return plan{}, false
	default:
		facts := make([]string, 0, 5)
		for _, v := range vendors {
			if len(facts) >= 5 {
				break
			}
			facts = append(facts, vendorFact(v))
		}
		names := make([]string, 0, len(facts))
		for _, v := range vendors[:len(facts)] {
			names = append(names, v.Name)
		}
		return plan{
			pc: nlu.PromptContext{
				State:      "gathering",
				Facts:      facts,
				NextAction: "ask which of these venues the user wants",
			},
			fallback: fmt.Sprintf("I found a few options: %s. Which one would you like?", strings.Join(names, ", ")),
		}, true
	}
}

// resolveDuration parses the stored duration phrase. done=true means the
// turn ends asking for clarification.
func (o *Orchestrator) resolveDuration(sess *session.Session) (plan, bool) {
	d := ParseDuration(sess.Entities.DurationText)
	if d == nil {
		raw := sess.Entities.DurationText
		sess.Entities.DurationText = ""
		return plan{
			pc: nlu.PromptContext{
				State:          "gathering",
				BookingSummary: bookingSummary(sess.Booking),
				NextAction:     "ask how long the booking should be",
			},
			fallback: fmt.Sprintf("I couldn't work out the duration from %q. %s", raw, replyAskDuration),
		}, true
	}
	if d.Ambiguous {
		n := strings.TrimSpace(sess.Entities.DurationText)
		sess.Entities.DurationText = ""
		sess.State = string(StateGathering)
		return plan{fallback: askDurationUnit(n), direct: true}, true
	}
	sess.Booking.DurationHours = d.Hours
	return plan{}, false
}

// askMissing prompts for the highest-priority missing booking field:
// vendor > date > time > duration.
func (o *Orchestrator) askMissing(sess *session.Session) (plan, bool) {
	b := sess.Booking
	summary := bookingSummary(b)
	ask := func(next, fallback string) (plan, bool) {
		sess.State = string(StateGathering)
		return plan{
			pc: nlu.PromptContext{
				State:          "gathering",
				BookingSummary: summary,
				NextAction:     next,
			},
			fallback: fallback,
		}, true
	}
	switch {
	case b.VendorID == "":
		return ask("ask which venue, sport or area the user wants", replyAskVendor)
	case b.Date == "":
		return ask("ask what date the user wants", replyAskDate)
	case b.Time == "":
		return ask("ask what time the user wants", replyAskTime)
	case b.DurationHours <= 0:
		return ask("ask how long the booking should be", replyAskDuration)
	}
	return plan{}, false
}

// quote looks up matching slots, holds the chosen one and asks the user to
// confirm. No slot at the requested time offers the nearest alternatives
// and drops back to gathering.
func (o *Orchestrator) quote(ctx context.Context, sess *session.Session, now time.Time) plan {
	b := &sess.Booking
	sess.State = string(StateQuoting)

	dbCtx, cancel := context.WithTimeout(ctx, o.cfg.DBTimeout)
	defer cancel()

	slots, err := o.inv.FindSlots(dbCtx, b.VendorID, b.Date, b.Time, b.DurationHours, now)
	if err != nil {
		o.logger.Error("slot lookup failed", "vendor", b.VendorID, "error", err.Error())
		sess.State = string(StateGathering)
		return plan{fallback: replyUnavailable, pc: nlu.PromptContext{
			State:      "gathering",
			NextAction: "apologize for the glitch and ask the user to try again",
		}}
	}

	if len(slots) == 0 {
		return o.offerAlternatives(dbCtx, sess, now, fmt.Sprintf("nothing free at %s on %s", b.Time, b.Date))
	}

	slot := slots[0] // earliest start wins
	price := slot.Price
	if price <= 0 {
		vendor, err := o.inv.GetVendor(dbCtx, b.VendorID)
		if err != nil {
			o.logger.Error("vendor fetch failed during quote", "vendor", b.VendorID, "error", err.Error())
			sess.State = string(StateGathering)
			return plan{fallback: replyUnavailable, pc: nlu.PromptContext{State: "gathering"}}
		}
		price = PriceQuote(vendor.PricePerHour, b.DurationHours, o.cfg.DiscountPercent).Discounted
	}

	hold, err := o.inv.Hold(dbCtx, slot.ID, sess.UserPhone, o.cfg.HoldTTL, now)
	switch {
	case err == nil && hold.OK:
		o.metrics.ObserveHold("held")
		b.HoldSlotID = slot.ID
	case hold.Reason == inventory.ReasonAlreadyBooked || hold.Reason == inventory.ReasonNotFound:
		o.metrics.ObserveHold(string(hold.Reason))
		return o.offerAlternatives(dbCtx, sess, now, fmt.Sprintf("the %s slot was just taken", slot.StartTime))
	default:
		// Transient hold failure: quote anyway, reserve still checks.
		o.metrics.ObserveHold("transient")
		msg := "no result"
		if err != nil {
			msg = err.Error()
		}
		o.logger.Warn("hold failed, quoting without one", "slot", slot.ID, "error", msg)
	}

	b.SlotID = slot.ID
	b.Time = slot.StartTime
	b.PriceQuoted = price
	sess.State = string(StateAwaitingConfirm)

	priceFact := fmt.Sprintf("total price: Rs %s", formatPrice(price))
	return plan{
		pc: nlu.PromptContext{
			State:          "awaiting_confirm",
			BookingSummary: bookingSummary(*b),
			Facts:          []string{slotFact(slot), priceFact},
			NextAction:     "state the price and ask the user to confirm with yes or no",
		},
		fallback: fmt.Sprintf("%s at %s on %s for %s is Rs %s. %s",
			b.VendorName, slot.StartTime, slot.Date, FormatDuration(b.DurationHours),
			formatPrice(price), replyConfirmPrompt),
	}
}

// offerAlternatives lists the nearest free start times on the same date and
// returns the flow to gathering with the time cleared.
func (o *Orchestrator) offerAlternatives(ctx context.Context, sess *session.Session, now time.Time, reason string) plan {
	b := &sess.Booking
	alternatives, err := o.inv.FindSlots(ctx, b.VendorID, b.Date, "", b.DurationHours, now)
	if err != nil {
		o.logger.Error("alternatives lookup failed", "vendor", b.VendorID, "error", err.Error())
		alternatives = nil
	}

	b.Time = ""
	b.SlotID = ""
	b.PriceQuoted = 0
	sess.State = string(StateGathering)

	if len(alternatives) == 0 {
		return plan{
			pc: nlu.PromptContext{
				State:          "gathering",
				BookingSummary: bookingSummary(*b),
				Facts:          []string{reason, "no other slots free that date"},
				NextAction:     "apologize and ask for a different date",
			},
			fallback: fmt.Sprintf("Sorry, %s and nothing else is free on %s. %s", reason, b.Date, replyAskDate),
		}
	}

	facts := append([]string{reason}, alternativesFact(alternatives, 2)...)
	return plan{
		pc: nlu.PromptContext{
			State:          "gathering",
			BookingSummary: bookingSummary(*b),
			Facts:          facts,
			NextAction:     "apologize and offer these start times instead",
		},
		fallback: fmt.Sprintf("Sorry, %s. I still have %s on %s. Which works for you?",
			reason, joinTimes(alternatives, 2), b.Date),
	}
}

// reserveFlow performs the atomic reservation after the user confirms.
func (o *Orchestrator) reserveFlow(ctx context.Context, sess *session.Session, now time.Time) plan {
	b := &sess.Booking
	if b.SlotID == "" {
		sess.State = string(StateGathering)
		return plan{
			pc:       nlu.PromptContext{State: "gathering", NextAction: "ask the user to pick a slot first"},
			fallback: replyAskTime,
		}
	}
	sess.State = string(StateReserving)

	dbCtx, cancel := context.WithTimeout(ctx, o.cfg.DBTimeout)
	defer cancel()
	res, err := o.inv.Reserve(dbCtx, b.SlotID, sess.UserPhone, now)

	switch {
	case res.OK:
		o.metrics.ObserveReservation("booked")
		return o.confirmBooking(ctx, sess, res.Booked, now)
	case res.Reason == inventory.ReasonAlreadyBooked || res.Reason == inventory.ReasonNotFound || res.Reason == inventory.ReasonOverlaps:
		o.metrics.ObserveReservation(string(res.Reason))
		o.logger.Info("reservation lost", "slot", b.SlotID, "reason", string(res.Reason))
		b.HoldSlotID = ""
		return o.offerAlternatives(dbCtx, sess, now, "that slot was just booked by someone else")
	default:
		// Transient after retries: apologize, keep the proposal intact.
		o.metrics.ObserveReservation("transient")
		if err != nil {
			o.logger.Error("reservation failed", "slot", b.SlotID, "error", err.Error())
		}
		sess.State = string(StateAwaitingConfirm)
		return plan{
			pc: nlu.PromptContext{
				State:          "awaiting_confirm",
				BookingSummary: bookingSummary(*b),
				NextAction:     "apologize for the glitch and ask the user to send yes again",
			},
			fallback: replyUnavailable,
		}
	}
}

// confirmBooking closes a successful flow: payment record, archive, reset.
func (o *Orchestrator) confirmBooking(ctx context.Context, sess *session.Session, booked *inventory.Slot, now time.Time) plan {
	b := sess.Booking
	sess.State = string(StateConfirmed)
	sess.InProgress = false

	if o.ledger != nil {
		if _, err := o.ledger.RecordPaymentDue(ctx, sess.UserPhone, b.VendorID, booked.ID, b.PriceQuoted, now); err != nil {
			o.logger.Warn("payment record failed", "slot", booked.ID, "error", err.Error())
		}
	}
	o.archive(ctx, sess, "confirmed", now)

	facts := []string{
		fmt.Sprintf("booking id: %s", booked.ID),
		fmt.Sprintf("%s on %s at %s for %s", b.VendorName, booked.Date, booked.StartTime, FormatDuration(booked.DurationHours)),
		fmt.Sprintf("amount due at the venue: Rs %s", formatPrice(b.PriceQuoted)),
	}
	fallback := fmt.Sprintf("You're booked! %s on %s at %s for %s. Booking id %s, Rs %s due at the venue. See you there!",
		b.VendorName, booked.Date, booked.StartTime, FormatDuration(booked.DurationHours),
		booked.ID, formatPrice(b.PriceQuoted))

	sess.Booking = session.BookingContext{}
	return plan{
		pc: nlu.PromptContext{
			State:      "confirmed",
			Facts:      facts,
			NextAction: "confirm the booking with its id and say goodbye warmly",
		},
		fallback: fallback,
	}
}

func (o *Orchestrator) releaseHold(ctx context.Context, sess *session.Session) {
	if sess.Booking.HoldSlotID == "" {
		return
	}
	dbCtx, cancel := context.WithTimeout(ctx, o.cfg.DBTimeout)
	defer cancel()
	if err := o.inv.Release(dbCtx, sess.Booking.HoldSlotID, sess.UserPhone); err != nil {
		o.logger.Warn("hold release failed", "slot", sess.Booking.HoldSlotID, "error", err.Error())
	}
	sess.Booking.HoldSlotID = ""
}

func (o *Orchestrator) archive(ctx context.Context, sess *session.Session, outcome string, now time.Time) {
	if o.archiver == nil {
		return
	}
	if err := o.archiver.Archive(ctx, sess, outcome, now); err != nil {
		o.logger.Warn("transcript archive failed", "user", sess.UserPhone, "error", err.Error())
	}
}
