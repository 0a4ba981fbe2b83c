package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlauncher/plugin-go/pkg/logging"
)

func TestLifecycleAdvancesOneStateAtATime(t *testing.T) {
	m := newStateMachine(logging.Nop())
	assert.Equal(t, StateCreated, m.current())

	require.NoError(t, m.to(StateAuthenticating))
	require.NoError(t, m.to(StateRunning))
	require.NoError(t, m.to(StateShuttingDown))
	require.NoError(t, m.to(StateClosed))
	assert.Equal(t, StateClosed, m.current())
}

func TestLifecycleRejectsSkippedStates(t *testing.T) {
	m := newStateMachine(logging.Nop())

	assert.Error(t, m.to(StateRunning))
	assert.Error(t, m.to(StateShuttingDown))
	assert.Equal(t, StateCreated, m.current())
}

func TestLifecycleClosedFromAnywhere(t *testing.T) {
	for _, start := range []State{StateCreated, StateAuthenticating, StateRunning, StateShuttingDown} {
		m := newStateMachine(logging.Nop())
		for next := StateAuthenticating; next <= start; next++ {
			require.NoError(t, m.to(next))
		}
		require.NoError(t, m.to(StateClosed), "from %s", start)

		select {
		case <-m.done():
		default:
			t.Fatalf("done channel not closed from %s", start)
		}
	}
}

func TestLifecycleClosedIsTerminal(t *testing.T) {
	m := newStateMachine(logging.Nop())
	require.NoError(t, m.to(StateClosed))

	assert.Error(t, m.to(StateAuthenticating))
	assert.Error(t, m.to(StateClosed))
	assert.Equal(t, StateClosed, m.current())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "authenticating", StateAuthenticating.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "shutting-down", StateShuttingDown.String())
	assert.Equal(t, "closed", StateClosed.String())
}
