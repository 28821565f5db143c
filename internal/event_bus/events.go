package event_bus

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionChanged struct {
	Id         int
	UserId     int
	WalletId   int
	CategoryId int
	Type       string
	Amount     decimal.Decimal
	OccurredAt time.Time
	Note       string
}

type WalletBalanceChangedEvent struct {
	WalletId int
	UserId   int
	Delta    decimal.Decimal
	Balance  decimal.Decimal
}

type BudgetThresholdCrossedEvent struct {
	BudgetId   int
	UserId     int
	CategoryId int
	Level      string
	// Threshold is the tier that fired, in percent (50, 80, 95 or 100).
	Threshold int
	// Percentage is the actual usage at the time the tier fired, in percent.
	Percentage decimal.Decimal
	Used       decimal.Decimal
	Limit      decimal.Decimal
}
