package transaction

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/walletwise/walletwise/pkg/category"
)

type Type = category.Type

const (
	Income  = category.Income
	Expense = category.Expense
)

// Transaction is a single money movement. Amount is always positive; Type carries the sign.
type Transaction struct {
	Id            int
	UserId        int
	WalletId      int
	CategoryId    int
	Type          Type
	Amount        decimal.Decimal
	OccurredAt    time.Time
	Note          string
	AttachmentRef string
	CreatedAt     time.Time
}

// SignedAmount is the transaction's effect on its wallet balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	return signed(t.Type, t.Amount)
}

func signed(t Type, amount decimal.Decimal) decimal.Decimal {
	if t == Expense {
		return amount.Neg()
	}
	return amount
}

// Input describes a transaction to create or the new state of one being updated.
// A zero OccurredAt means now.
type Input struct {
	WalletId      int
	CategoryId    int
	Type          Type
	Amount        decimal.Decimal
	OccurredAt    time.Time
	Note          string
	AttachmentRef string
}

type CreateResult struct {
	Transaction Transaction
	// PossibleDuplicates is advisory only; the transaction was stored regardless.
	PossibleDuplicates []Transaction
}

type TransferResult struct {
	Expense Transaction
	Income  Transaction
}

type Options struct {
	// BalanceFloor is the lowest balance a mutation may leave a wallet at.
	BalanceFloor       decimal.Decimal
	DuplicateWindow    time.Duration
	DuplicateTolerance decimal.Decimal
	DuplicateLimit     int
}

func DefaultOptions() Options {
	return Options{
		BalanceFloor:       decimal.NewFromInt(-10_000_000),
		DuplicateWindow:    24 * time.Hour,
		DuplicateTolerance: decimal.RequireFromString("0.01"),
		DuplicateLimit:     5,
	}
}
