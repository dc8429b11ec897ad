package policy

import (
	"errors"
	"fmt"
)

// Outcome is the result of an authorization request
type Outcome int

const (
	Authorized Outcome = iota + 1
	Rejected
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case Authorized:
		return "authorized"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ReasonCode is the machine-readable cause of a rejection
type ReasonCode string

const (
	ReasonUnknownRole            ReasonCode = "unknown_role"
	ReasonNoQualifyingPermission ReasonCode = "no_qualifying_permission"
)

var (
	ErrUnknownRole            = errors.New("unknown role")
	ErrNoQualifyingPermission = errors.New("no qualifying permission")
)

// RoutingDecision is produced once per evaluation and not retained
type RoutingDecision struct {
	Outcome Outcome
	Helper  HelperID
	Reason  ReasonCode
	Message string
}

// Authorized reports whether the caller may reach Helper
func (d RoutingDecision) Authorized() bool {
	return d.Outcome == Authorized
}

// Err returns nil for authorized decisions and a wrapped sentinel otherwise
func (d RoutingDecision) Err() error {
	switch {
	case d.Outcome == Authorized:
		return nil
	case d.Reason == ReasonUnknownRole:
		return fmt.Errorf("%w: %s", ErrUnknownRole, d.Message)
	default:
		return fmt.Errorf("%w: %s", ErrNoQualifyingPermission, d.Message)
	}
}

func authorized(helper HelperID) RoutingDecision {
	return RoutingDecision{Outcome: Authorized, Helper: helper}
}

func rejected(reason ReasonCode, message string) RoutingDecision {
	return RoutingDecision{Outcome: Rejected, Reason: reason, Message: message}
}
