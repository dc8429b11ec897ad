package policy

import (
	"errors"
	"fmt"
)

// ErrValidation marks malformed or missing caller fields
var ErrValidation = errors.New("validation error")

/* CallerContext is built per authorization request and never persisted
 * Uses value semantics as it represents data, not behavior
 */
type CallerContext struct {
	UserID      string
	Role        Role
	Permissions []string
	SessionID   string
}

// Validate checks required fields; it runs before the Engine is consulted
func (c CallerContext) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if c.Role == "" {
		return fmt.Errorf("%w: role is required", ErrValidation)
	}
	if c.SessionID == "" {
		return fmt.Errorf("%w: sessionId is required", ErrValidation)
	}
	for i, p := range c.Permissions {
		if p == "" {
			return fmt.Errorf("%w: permissions[%d] is empty", ErrValidation, i)
		}
	}
	return nil
}
