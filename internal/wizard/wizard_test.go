package wizard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitialState(t *testing.T) {
	m := New()
	require.Equal(t, 1, m.CurrentStep())
	require.Equal(t, StatusActive, m.Status(1))
	for n := 2; n <= NumSteps; n++ {
		require.Equal(t, StatusPending, m.Status(n), "step %d", n)
	}
	require.True(t, m.IsFirstStep())
	require.False(t, m.IsLastStep())
}

func TestNextStepCompletesAndAdvances(t *testing.T) {
	m := New()
	m.NextStep()
	require.Equal(t, 2, m.CurrentStep())
	require.Equal(t, StatusCompleted, m.Status(1))
	require.Equal(t, StatusActive, m.Status(2))
}

func TestNextStepNoOpOnLast(t *testing.T) {
	m := New()
	for i := 0; i < NumSteps-1; i++ {
		m.NextStep()
	}
	require.True(t, m.IsLastStep())
	m.NextStep()
	require.Equal(t, NumSteps, m.CurrentStep())
}

func TestPreviousStepReturnsToPending(t *testing.T) {
	m := New()
	m.NextStep()
	m.PreviousStep()
	require.Equal(t, 1, m.CurrentStep())
	require.Equal(t, StatusPending, m.Status(2))
	require.Equal(t, StatusActive, m.Status(1))
	m.PreviousStep()
	require.Equal(t, 1, m.CurrentStep(), "previous on first step must be a no-op")
}

func TestGoToStepOutOfRangeIsNoOp(t *testing.T) {
	m := New()
	for _, n := range []int{-3, 0, 8, 100} {
		m.GoToStep(n)
		require.Equal(t, 1, m.CurrentStep(), "goToStep(%d)", n)
	}
}

func TestCannotSkipAhead(t *testing.T) {
	m := New()
	require.False(t, m.CanNavigateToStep(3))
	require.False(t, m.CanNavigateToStep(2), "step 1 not completed")
	m.SetStepStatus(1, StatusCompleted)
	require.True(t, m.CanNavigateToStep(2))
	require.False(t, m.CanNavigateToStep(3))
	m.GoToStep(3)
	require.Equal(t, 1, m.CurrentStep(), "goToStep(3) should be refused")
}

func TestBackwardNavigationAlwaysAllowed(t *testing.T) {
	m := New()
	m.NextStep()
	m.NextStep()
	m.NextStep()
	require.True(t, m.CanNavigateToStep(1))
	require.True(t, m.CanNavigateToStep(2))
	m.GoToStep(1)
	require.Equal(t, 1, m.CurrentStep())
	require.Equal(t, StatusCompleted, m.Status(4), "left step keeps completed status")
}

func TestGoToStepPreservesError(t *testing.T) {
	m := New()
	m.NextStep()
	m.NextStep()
	m.SetStepStatus(3, StatusError)
	m.GoToStep(1)
	require.Equal(t, StatusError, m.Status(3), "error status must survive navigation")
}

func TestProgressPercentage(t *testing.T) {
	cases := map[int]int{1: 0, 4: 50, 7: 100}
	m := New()
	for step := 1; step <= NumSteps; step++ {
		if want, ok := cases[step]; ok {
			require.Equal(t, want, m.ProgressPercentage(), "step %d", step)
		}
		m.NextStep()
	}
}
