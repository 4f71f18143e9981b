package health

import "time"

type State string

const (
	StateUnknown   State = "UNKNOWN"
	StateHealthy   State = "HEALTHY"
	StateDegraded  State = "DEGRADED"
	StateUnhealthy State = "UNHEALTHY"
)

// Signal is the outcome of one probe. Only SignalServing counts as a
// success; a timeout is a failure for the consecutive-failure counter.
type Signal int

const (
	SignalError Signal = iota
	SignalServing
	SignalNotServing
	SignalTimeout
)

func (s Signal) String() string {
	switch s {
	case SignalServing:
		return "serving"
	case SignalNotServing:
		return "not-serving"
	case SignalTimeout:
		return "timeout"
	}
	return "error"
}

// Record is the externally visible health of one plugin. Mutated only by
// the Tracker; callers always receive copies.
type Record struct {
	PluginID            string    `json:"plugin_id"`
	State               State     `json:"state"`
	LastTransitionAt    time.Time `json:"last_transition_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Next is the transition function: deterministic given the probe outcome
// and whether a non-critical dependency is down. The current state only
// matters for deciding whether a transition event fires.
func Next(sig Signal, depDown bool) State {
	switch sig {
	case SignalServing:
		if depDown {
			return StateDegraded
		}
		return StateHealthy
	default:
		return StateUnhealthy
	}
}
