package wallet

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	Id       int
	UserId   int
	Name     string
	Currency string
	// Balance is the cached signed sum of the wallet's transactions. Only the ledger changes it.
	Balance   decimal.Decimal
	IsDefault bool
}

// Permission is ordered: Viewer < Editor < Owner.
type Permission int

const (
	NoPermission Permission = iota
	Viewer
	Editor
	Owner
)

func (p Permission) Allows(min Permission) bool {
	return p >= min
}

func (p Permission) String() string {
	switch p {
	case Viewer:
		return "VIEWER"
	case Editor:
		return "EDITOR"
	case Owner:
		return "OWNER"
	default:
		return "NONE"
	}
}

func ParsePermission(s string) (Permission, error) {
	switch s {
	case "VIEWER":
		return Viewer, nil
	case "EDITOR":
		return Editor, nil
	case "OWNER":
		return Owner, nil
	}
	return NoPermission, fmt.Errorf("unknown permission %q: %w", s, ErrInvalidWallet)
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

func validCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}
