package pipeline

import "time"

// State is a stage of one pipeline run.
type State int

const (
	// StateIdle is the state before a run starts and while none is in flight.
	StateIdle State = iota
	// StateGenerating means the text model is writing the script.
	StateGenerating
	// StateMappingVoices means speaker labels are being assigned voices.
	StateMappingVoices
	// StateSynthesizing means script units are being voiced.
	StateSynthesizing
	// StateAssembling means segments are being joined into the asset.
	StateAssembling
	// StateComplete is terminal: the run produced an asset.
	StateComplete
	// StateFailed is terminal: the run stopped with an error.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateMappingVoices:
		return "mapping-voices"
	case StateSynthesizing:
		return "synthesizing"
	case StateAssembling:
		return "assembling"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

// Transition is a progress event emitted on every state change of a run.
type Transition struct {
	RunID string
	From  State
	To    State
	At    time.Time

	// Err is set when To is StateFailed.
	Err error
}

// stateMachine tracks one run. It is not safe for concurrent use; the
// orchestrator drives it from the run's goroutine.
type stateMachine struct {
	current      State
	transitions  map[State][]State
	onTransition func(from, to State)
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:          {StateGenerating, StateMappingVoices, StateFailed},
			StateGenerating:    {StateMappingVoices, StateFailed},
			StateMappingVoices: {StateSynthesizing, StateFailed},
			StateSynthesizing:  {StateAssembling, StateFailed},
			StateAssembling:    {StateComplete, StateFailed},
		},
	}
}

// Transition moves to the given state if the move is allowed.
func (sm *stateMachine) Transition(to State) bool {
	allowed := false
	for _, s := range sm.transitions[sm.current] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	from := sm.current
	sm.current = to
	if sm.onTransition != nil {
		sm.onTransition(from, to)
	}
	return true
}

// Current returns the current state.
func (sm *stateMachine) Current() State {
	return sm.current
}

// OnTransition registers a callback run after every accepted transition.
func (sm *stateMachine) OnTransition(fn func(from, to State)) {
	sm.onTransition = fn
}
