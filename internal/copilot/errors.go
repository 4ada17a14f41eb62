package copilot

import "errors"

var (
	ErrNoLead             = errors.New("no lead ingested")
	ErrLeadIngested       = errors.New("lead already ingested")
	ErrForbidden          = errors.New("role may not perform this action")
	ErrInvalidTransition  = errors.New("approval transition not allowed from current status")
	ErrEmptyPricing       = errors.New("pricing table is empty")
	ErrDiscountOutOfRange = errors.New("requested discount out of range")
	ErrNotFound           = errors.New("not found")
	ErrUnknownField       = errors.New("unknown proposal field")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrEmptyName          = errors.New("name is required")
	ErrNotFinalized       = errors.New("proposal is not approved")
	ErrComposerClosed     = errors.New("email composer is not open")
)
