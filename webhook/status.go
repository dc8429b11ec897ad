package webhook

import "fmt"

/* State represents where a queue entry is in its lifecycle
 * Follows: Pending -> InFlight -> Done/DeadLettered, InFlight -> Pending on retry
 */
type State int

const (
	Pending State = iota + 1
	InFlight
	Done
	DeadLettered
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	case DeadLettered:
		return "dead_lettered"
	default:
		return "unknown"
	}
}

// Validate checks if the state is valid
func (s State) Validate() error {
	if s < Pending || s > DeadLettered {
		return fmt.Errorf("invalid state: %d", s)
	}
	return nil
}

// IsFinal returns true if the state is a terminal state
func (s State) IsFinal() bool {
	return s == Done || s == DeadLettered
}

// EnqueueResult tells the sender whether the event will be processed
type EnqueueResult int

const (
	Accepted EnqueueResult = iota + 1
	Duplicate
)

// String returns the string representation of the result
func (r EnqueueResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}
