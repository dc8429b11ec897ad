package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Authorizer decides whether a caller may reach a helper and which one
type Authorizer interface {
	Authorize(ctx context.Context, caller CallerContext) RoutingDecision
}

/* Engine evaluates callers against a Table
 * It is a pure function of its input apart from the audit log line
 */
type Engine struct {
	table  *Table
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates an engine over table; decisions are audited on logger
func NewEngine(table *Table, logger zerolog.Logger) *Engine {
	return &Engine{
		table:  table,
		logger: logger,
		now:    time.Now,
	}
}

// Table returns the table the engine consults
func (e *Engine) Table() *Table {
	return e.table
}

// Authorize applies the any-of permission rule. Administrative roles always pass.
// Callers must run CallerContext.Validate first.
func (e *Engine) Authorize(ctx context.Context, caller CallerContext) RoutingDecision {
	d := e.decide(caller)
	e.audit(caller, d)
	return d
}

func (e *Engine) decide(caller CallerContext) RoutingDecision {
	entry, ok := e.table.Lookup(caller.Role)
	if !ok {
		return rejected(ReasonUnknownRole, fmt.Sprintf("role %q is not recognized", caller.Role))
	}
	if entry.Administrative {
		return authorized(entry.Helper)
	}
	if !entry.Allows(caller.Permissions) {
		return rejected(ReasonNoQualifyingPermission,
			fmt.Sprintf("caller holds none of the permissions required by role %q", caller.Role))
	}
	return authorized(entry.Helper)
}

func (e *Engine) audit(caller CallerContext, d RoutingDecision) {
	ev := e.logger.Info()
	if !d.Authorized() {
		ev = e.logger.Warn().Str("reason", string(d.Reason))
	}
	ev.Str("component", "policy").
		Str("user_id", caller.UserID).
		Str("session_id", caller.SessionID).
		Str("role", string(caller.Role)).
		Str("outcome", d.Outcome.String()).
		Str("helper", string(d.Helper)).
		Time("decided_at", e.now()).
		Msg("authorization decision")
}
