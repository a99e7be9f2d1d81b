package authsdk

import (
	"errors"
	"fmt"
	"sync"
)

// State is a position in the account lifecycle as seen by one client.
type State string

const (
	StateAnonymous           State = "anonymous"
	StateRegistering         State = "registering"
	StatePendingVerification State = "pending_verification"
	StateAuthenticated       State = "authenticated"
)

// Event drives the lifecycle from one state to the next.
type Event string

const (
	EventRegisterStarted   Event = "register_started"
	EventRegisterSucceeded Event = "register_succeeded"
	EventRegisterFailed    Event = "register_failed"
	EventEmailVerified     Event = "email_verified"
	EventLoggedIn          Event = "logged_in"
	EventRefreshed         Event = "refreshed"
	EventExpired           Event = "expired"
	EventLoggedOut         Event = "logged_out"
)

// ErrInvalidTransition is returned for events that make no sense in the
// current state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

var transitions = map[State]map[Event]State{
	StateAnonymous: {
		EventRegisterStarted: StateRegistering,
		EventEmailVerified:   StateAnonymous,
		EventLoggedIn:        StateAuthenticated,
		EventRefreshed:       StateAuthenticated,
		EventExpired:         StateAnonymous,
		EventLoggedOut:       StateAnonymous,
	},
	StateRegistering: {
		EventRegisterSucceeded: StatePendingVerification,
		EventRegisterFailed:    StateAnonymous,
		EventExpired:           StateAnonymous,
		EventLoggedOut:         StateAnonymous,
	},
	StatePendingVerification: {
		EventRegisterStarted: StateRegistering,
		EventEmailVerified:   StateAnonymous,
		EventLoggedIn:        StateAuthenticated,
		EventRefreshed:       StateAuthenticated,
		EventExpired:         StateAnonymous,
		EventLoggedOut:       StateAnonymous,
	},
	StateAuthenticated: {
		EventEmailVerified: StateAuthenticated,
		EventLoggedIn:      StateAuthenticated,
		EventRefreshed:     StateAuthenticated,
		EventExpired:       StateAnonymous,
		EventLoggedOut:     StateAnonymous,
	},
}

// Transition returns the state that follows from applying ev in s.
func Transition(s State, ev Event) (State, error) {
	next, ok := transitions[s][ev]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
	}
	return next, nil
}

// LifecycleState is a snapshot of the lifecycle. Role is only set while
// authenticated and is taken verbatim from the backend.
type LifecycleState struct {
	State State
	Role  Role
}

func (s LifecycleState) String() string {
	if s.State == StateAuthenticated {
		return fmt.Sprintf("%s(%s)", s.State, s.Role)
	}
	return string(s.State)
}

// Lifecycle tracks the lifecycle state of one client process. It starts in
// StateAnonymous.
type Lifecycle struct {
	mu      sync.RWMutex
	current LifecycleState
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{current: LifecycleState{State: StateAnonymous}}
}

// Current returns the current snapshot.
func (l *Lifecycle) Current() LifecycleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Fire applies ev. role is recorded when the result is StateAuthenticated and
// ignored otherwise. On an invalid transition the state is left unchanged.
func (l *Lifecycle) Fire(ev Event, role Role) (LifecycleState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := Transition(l.current.State, ev)
	if err != nil {
		return l.current, err
	}

	st := LifecycleState{State: next}
	if next == StateAuthenticated {
		st.Role = role
		if role == "" {
			st.Role = l.current.Role
		}
	}
	l.current = st
	return st, nil
}
