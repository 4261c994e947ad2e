package coolqamq

import "fmt"

// State is a bridge lifecycle state
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateTopologyReady
	StateConsuming
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateTopologyReady:
		return "topology_ready"
	case StateConsuming:
		return "consuming"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateConsuming || s == StateFailed
}

// canTransition lists the allowed lifecycle edges
func canTransition(from, to State) bool {
	switch from {
	case StateUninitialized:
		return to == StateConnecting
	case StateConnecting:
		return to == StateTopologyReady || to == StateFailed
	case StateTopologyReady:
		return to == StateConsuming || to == StateFailed
	default:
		return false
	}
}
