package plugin

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// State is the lifecycle phase of one plugin process instance.
type State int32

const (
	// StateCreated is the initial state before the transport is serving.
	StateCreated State = iota
	// StateAuthenticating covers the handshake and authenticate exchange.
	StateAuthenticating
	// StateRunning is steady-state serving.
	StateRunning
	// StateShuttingDown drains in-flight handlers for a bounded grace period.
	StateShuttingDown
	// StateClosed is terminal; no frames are read or written after it.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAuthenticating:
		return "authenticating"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// stateMachine sequences the lifecycle. Forward transitions advance one state
// at a time; Closed is reachable from every non-Closed state, which covers
// abrupt disconnection at any point.
type stateMachine struct {
	logger zerolog.Logger

	mu     sync.Mutex
	state  State
	closed chan struct{}
}

func newStateMachine(logger zerolog.Logger) *stateMachine {
	return &stateMachine{
		logger: logger,
		state:  StateCreated,
		closed: make(chan struct{}),
	}
}

func (m *stateMachine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// to performs a transition. Skipping a forward state is a programming error
// and is rejected; transitions out of Closed are rejected.
func (m *stateMachine) to(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return fmt.Errorf("lifecycle: already closed, cannot enter %s", next)
	}
	if next != StateClosed && next != m.state+1 {
		return fmt.Errorf("lifecycle: invalid transition %s -> %s", m.state, next)
	}

	m.logger.Info().Stringer("from", m.state).Stringer("to", next).Msg("lifecycle transition")
	m.state = next
	if next == StateClosed {
		close(m.closed)
	}
	return nil
}

// done is closed once the machine enters Closed.
func (m *stateMachine) done() <-chan struct{} { return m.closed }
