package core

// RunState describes the lifecycle of an evolution engine. Exactly one
// engine owns one RunState. Legal transitions:
//
//	Ready -> Running -> Paused -> Running ... Paused -> Terminated
//
// Terminated is terminal; restarting a terminated engine is an error.
type RunState int32

const (
	RunStateReady RunState = iota
	RunStateRunning
	RunStatePaused
	RunStateTerminated
)

func (s RunState) String() string {
	switch s {
	case RunStateReady:
		return "ready"
	case RunStateRunning:
		return "running"
	case RunStatePaused:
		return "paused"
	case RunStateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
