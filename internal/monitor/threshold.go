package monitor

// Phase classifies the monitored value relative to the threshold.
type Phase int

const (
	// PhaseUnknown holds only until the first reading is processed.
	PhaseUnknown Phase = iota
	PhaseBelow
	PhaseAbove
)

// String renders the phase for logs.
func (p Phase) String() string {
	switch p {
	case PhaseBelow:
		return "BELOW"
	case PhaseAbove:
		return "ABOVE"
	default:
		return "UNKNOWN"
	}
}

// EventKind distinguishes the two outgoing notifications.
type EventKind int

const (
	EventAlert EventKind = iota
	EventRecovered
)

// Config holds the threshold parameters. Immutable for the process lifetime.
type Config struct {
	Threshold        float64
	Hysteresis       float64
	AlertOnCrossOnly bool
}

// State is the single mutable value of the monitor. The supervisor owns one
// instance per monitored quantity and threads it through Evaluate; once the
// phase leaves PhaseUnknown it never returns there.
type State struct {
	Phase Phase
}

// Reading is one sampled observation. TimestampLabel is pre-formatted text
// supplied by the caller; timezone handling never reaches this package.
type Reading struct {
	Value          float64
	TimestampLabel string
}

// Event is the outcome of a phase transition. Zero or one per reading.
type Event struct {
	Kind           EventKind
	Value          float64
	Threshold      float64
	TimestampLabel string
}

// Evaluate feeds one reading through the threshold state machine and returns
// the next state plus an optional event. Pure function: no I/O, no hidden
// state, safe to call from tests without any loop around it.
//
// A value strictly above the threshold counts as above; equality classifies
// as below. Recovery from PhaseAbove requires the value to drop to
// threshold-hysteresis or lower; inside the band the state is held to avoid
// flapping. The first reading only establishes the baseline and never emits.
func Evaluate(state State, reading Reading, cfg Config) (State, *Event) {
	currentlyAbove := reading.Value > cfg.Threshold

	switch {
	case state.Phase == PhaseUnknown:
		if currentlyAbove {
			state.Phase = PhaseAbove
		} else {
			state.Phase = PhaseBelow
		}
		return state, nil

	case state.Phase == PhaseBelow && currentlyAbove:
		state.Phase = PhaseAbove
		return state, &Event{
			Kind:           EventAlert,
			Value:          reading.Value,
			Threshold:      cfg.Threshold,
			TimestampLabel: reading.TimestampLabel,
		}

	case state.Phase == PhaseAbove && !currentlyAbove:
		if cfg.Hysteresis > 0 && reading.Value > cfg.Threshold-cfg.Hysteresis {
			// Inside the hysteresis band: hold the alerting state.
			return state, nil
		}
		state.Phase = PhaseBelow
		if cfg.AlertOnCrossOnly {
			return state, nil
		}
		return state, &Event{
			Kind:           EventRecovered,
			Value:          reading.Value,
			Threshold:      cfg.Threshold,
			TimestampLabel: reading.TimestampLabel,
		}
	}

	// Steady state on either side: no transition, no event.
	return state, nil
}
