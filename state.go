package neosynth

// SynthState represents the synthesizer's playback state.
type SynthState int

const (
	// StateReady indicates the synthesizer is idle and can accept
	// speech immediately.
	StateReady SynthState = iota
	// StateBusy indicates speech is being synthesized or played.
	StateBusy
	// StatePaused indicates playback is suspended.
	StatePaused
)

// String returns the string representation of the state.
func (s SynthState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// stateMachine guards playback state transitions. Invalid transitions
// are refused rather than silently applied, which keeps event sink
// notifications consistent with reality.
type stateMachine struct {
	current     SynthState
	transitions map[SynthState][]SynthState
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		current: StateReady,
		transitions: map[SynthState][]SynthState{
			StateReady:  {StateBusy},
			StateBusy:   {StatePaused, StateReady},
			StatePaused: {StateBusy, StateReady},
		},
	}
}

// transition moves to the target state if the move is legal and reports
// whether it happened.
func (sm *stateMachine) transition(to SynthState) bool {
	for _, valid := range sm.transitions[sm.current] {
		if valid == to {
			sm.current = to
			return true
		}
	}
	return false
}

func (sm *stateMachine) state() SynthState {
	return sm.current
}
