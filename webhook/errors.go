package webhook

import "errors"

/* Errors surfaced to webhook senders
 * The HTTP layer maps them with errors.Is and never exposes the wrapped detail
 */
var (
	ErrBadSignature = errors.New("bad signature")
	ErrValidation   = errors.New("invalid event")
	ErrQueueFull    = errors.New("queue full")
	ErrNotFound     = errors.New("not found")
)
