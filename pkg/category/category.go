package category

import "fmt"

// Type is shared by categories and transactions: a transaction must reference a category of its own type.
type Type string

const (
	Income  Type = "INCOME"
	Expense Type = "EXPENSE"
)

func (t Type) Valid() bool {
	return t == Income || t == Expense
}

func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown type %q: %w", s, ErrInvalidCategory)
	}
	return t, nil
}

type Category struct {
	Id     int
	UserId int
	Name   string
	Type   Type
	// IsTransfer marks the per-user categories provisioned for wallet transfers.
	IsTransfer bool
}

func transferCategoryName(t Type) string {
	if t == Expense {
		return "Transfer Out"
	}
	return "Transfer In"
}
