package types

import "fmt"

// Status is a task lifecycle state. Its string value is the persisted form.
type Status string

const (
	StatusPending      Status = "pending"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusSummarizing  Status = "summarizing"
	StatusSummarized   Status = "summarized"
	StatusFinalizing   Status = "finalizing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// forward lists the non-failure states in pipeline order.
var forward = []Status{
	StatusPending,
	StatusTranscribing,
	StatusTranscribed,
	StatusSummarizing,
	StatusSummarized,
	StatusFinalizing,
	StatusCompleted,
}

// ParseStatus converts a persisted value back into a Status.
// Unknown values are reported as ErrCorruptState.
func ParseStatus(s string) (Status, error) {
	if Status(s) == StatusFailed {
		return StatusFailed, nil
	}
	for _, st := range forward {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown task status %q", ErrCorruptState, s)
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

func (s Status) rank() int {
	for i, st := range forward {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether from -> to is a legal edge: the next
// forward state, or FAILED from any non-terminal state.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	r := from.rank()
	if r < 0 {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return to.rank() == r+1
}

// Transition validates from -> to and returns a wrapped ErrInvalidTransition otherwise
func Transition(taskID string, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s (task_id=%s)", ErrInvalidTransition, from, to, taskID)
	}
	return nil
}
