package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusReconciled, false},
		{StatusPending, StatusCancelled, true},
		{StatusCompleted, StatusReconciled, true},
		{StatusCompleted, StatusCancelled, true},
		{StatusCompleted, StatusCompleted, false},
		{StatusReconciled, StatusReconciled, false},
		{StatusReconciled, StatusCancelled, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusCancelled, StatusReconciled, false},
		{StatusPending, StatusPending, false},
		{Status("BOGUS"), StatusCompleted, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestStateOf(t *testing.T) {
	st, err := StateOf(StatusCompleted)
	assert.NoError(t, err)
	next, err := st.OnReconciled()
	assert.NoError(t, err)
	assert.Equal(t, StatusReconciled, next.Status())

	_, err = StateOf("")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}
