package booking

// State names the step the booking flow is on. The zero value ("") is
// treated as StateIdle.
type State string

const (
	StateIdle            State = "IDLE"
	StateGathering       State = "GATHERING"
	StateQuoting         State = "QUOTING"
	StateAwaitingConfirm State = "AWAITING_CONFIRM"
	StateReserving       State = "RESERVING"
	StateConfirmed       State = "CONFIRMED"
	StateCancelled       State = "CANCELLED"
)

// Open reports whether the state is part of an active booking flow.
// CONFIRMED and CANCELLED close the flow; the next message starts fresh.
func (s State) Open() bool {
	switch s {
	case StateGathering, StateQuoting, StateAwaitingConfirm, StateReserving:
		return true
	}
	return false
}

func stateOf(raw string) State {
	if raw == "" {
		return StateIdle
	}
	return State(raw)
}
