// Package apperr holds the error classes shared by every ledger operation. Domain packages wrap
// one of these in their own sentinels so callers can classify failures with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrPermission = errors.New("permission denied")
	// ErrInsufficientFunds is a validation failure as well.
	ErrInsufficientFunds = &classified{msg: "insufficient funds", class: ErrValidation}
)

type classified struct {
	msg   string
	class error
}

func (c *classified) Error() string { return c.msg }

func (c *classified) Unwrap() error { return c.class }
