package recurring

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/walletwise/walletwise/pkg/category"
)

type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Next returns the date one period after d. Monthly and yearly steps clamp to the last day of the
// target month, so Jan 31 is followed by Feb 28 or 29.
func (f Frequency) Next(d time.Time) time.Time {
	switch f {
	case Daily:
		return d.AddDate(0, 0, 1)
	case Weekly:
		return d.AddDate(0, 0, 7)
	case Monthly:
		return addMonths(d, 1)
	case Yearly:
		return addMonths(d, 12)
	}
	return d
}

func addMonths(d time.Time, months int) time.Time {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location()).AddDate(0, months, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
}

// Rule materializes a transaction every period from StartDate until EndDate, if set.
type Rule struct {
	Id          int
	UserId      int
	WalletId    int
	CategoryId  int
	Type        category.Type
	Amount      decimal.Decimal
	Frequency   Frequency
	StartDate   time.Time
	EndDate     *time.Time
	NextRunDate time.Time
	Note        string
	Active      bool
}

func (r Rule) Due(today time.Time) bool {
	return r.Active && !r.NextRunDate.After(today)
}

func (r Rule) Expired(today time.Time) bool {
	return r.EndDate != nil && today.After(*r.EndDate)
}

// Advance moves NextRunDate one period ahead and deactivates the rule once it passes EndDate.
func (r *Rule) Advance() {
	r.NextRunDate = r.Frequency.Next(r.NextRunDate)
	if r.EndDate != nil && r.NextRunDate.After(*r.EndDate) {
		r.Active = false
	}
}

const defaultNote = "Recurring transaction"

func (r Rule) TransactionNote() string {
	if r.Note == "" {
		return defaultNote
	}
	return r.Note
}
