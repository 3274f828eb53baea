package stock

import "errors"

var ErrInvalidStateTransition = errors.New("stock: invalid record state transition")

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusReconciled Status = "RECONCILED"
)

// RecordState implements the state pattern for the record lifecycle:
// PENDING -> COMPLETED -> RECONCILED, with CANCELLED reachable from PENDING and COMPLETED.
type RecordState interface {
	Status() Status
	OnCompleted() (RecordState, error)
	OnReconciled() (RecordState, error)
	OnCancelled() (RecordState, error)
}

// StateOf returns the state object for a persisted status.
func StateOf(s Status) (RecordState, error) {
	switch s {
	case StatusPending:
		return pendingState{}, nil
	case StatusCompleted:
		return completedState{}, nil
	case StatusReconciled:
		return reconciledState{}, nil
	case StatusCancelled:
		return cancelledState{}, nil
	default:
		return nil, ErrInvalidStateTransition
	}
}

// CanTransition reports whether a record in status from may move to status to.
func CanTransition(from, to Status) bool {
	st, err := StateOf(from)
	if err != nil {
		return false
	}
	var next RecordState
	switch to {
	case StatusCompleted:
		next, err = st.OnCompleted()
	case StatusReconciled:
		next, err = st.OnReconciled()
	case StatusCancelled:
		next, err = st.OnCancelled()
	default:
		return false
	}
	return err == nil && next.Status() == to
}

type pendingState struct{}

func (pendingState) Status() Status                     { return StatusPending }
func (pendingState) OnCompleted() (RecordState, error)  { return completedState{}, nil }
func (pendingState) OnReconciled() (RecordState, error) { return nil, ErrInvalidStateTransition }
func (pendingState) OnCancelled() (RecordState, error)  { return cancelledState{}, nil }

type completedState struct{}

func (completedState) Status() Status                     { return StatusCompleted }
func (completedState) OnCompleted() (RecordState, error)  { return nil, ErrInvalidStateTransition }
func (completedState) OnReconciled() (RecordState, error) { return reconciledState{}, nil }
func (completedState) OnCancelled() (RecordState, error)  { return cancelledState{}, nil }

type reconciledState struct{}

func (reconciledState) Status() Status                     { return StatusReconciled }
func (reconciledState) OnCompleted() (RecordState, error)  { return nil, ErrInvalidStateTransition }
func (reconciledState) OnReconciled() (RecordState, error) { return nil, ErrInvalidStateTransition }
func (reconciledState) OnCancelled() (RecordState, error)  { return nil, ErrInvalidStateTransition }

// cancelledState is absorbing.
type cancelledState struct{}

func (cancelledState) Status() Status                     { return StatusCancelled }
func (cancelledState) OnCompleted() (RecordState, error)  { return nil, ErrInvalidStateTransition }
func (cancelledState) OnReconciled() (RecordState, error) { return nil, ErrInvalidStateTransition }
func (cancelledState) OnCancelled() (RecordState, error)  { return nil, ErrInvalidStateTransition }
