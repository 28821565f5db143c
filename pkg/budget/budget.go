package budget

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/walletwise/walletwise/internal/utils"
)

type Period string

const (
	PeriodMonthly Period = "MONTHLY"
	PeriodWeekly  Period = "WEEKLY"
	PeriodCustom  Period = "CUSTOM"
)

func (p Period) Valid() bool {
	return p == PeriodMonthly || p == PeriodWeekly || p == PeriodCustom
}

// ClassifyPeriod derives a period from the number of days in [start, end], both inclusive.
func ClassifyPeriod(start, end time.Time) Period {
	days := int(utils.DateOf(end).Sub(utils.DateOf(start)).Hours()/24) + 1
	switch {
	case days >= 25 && days <= 35:
		return PeriodMonthly
	case days >= 5 && days <= 9:
		return PeriodWeekly
	default:
		return PeriodCustom
	}
}

// AlertFlags are one-shot markers per alert tier. They only go from false to true,
// except through an explicit reset.
type AlertFlags struct {
	Sent50  bool
	Sent80  bool
	Sent95  bool
	Sent100 bool
}

// Budget caps spending of one expense category between StartDate and EndDate, both inclusive.
type Budget struct {
	Id             int
	UserId         int
	CategoryId     int
	StartDate      time.Time
	EndDate        time.Time
	Period         Period
	LimitAmount    decimal.Decimal
	UsedAmount     decimal.Decimal
	AlertThreshold decimal.Decimal
	Alerts         AlertFlags
}

// Window is the half-open time range [StartDate 00:00, day after EndDate 00:00) covered by the budget.
func (b Budget) Window() (time.Time, time.Time) {
	return utils.DayRange(b.StartDate, b.EndDate)
}

func (b Budget) Contains(t time.Time) bool {
	from, to := b.Window()
	return !t.Before(from) && t.Before(to)
}

// Ratio is UsedAmount / LimitAmount, or zero when the limit is not positive.
func (b Budget) Ratio() decimal.Decimal {
	if !b.LimitAmount.IsPositive() {
		return decimal.Zero
	}
	return b.UsedAmount.Div(b.LimitAmount)
}

func (b Budget) InAlert() bool {
	return b.LimitAmount.IsPositive() && b.Ratio().GreaterThanOrEqual(b.AlertThreshold)
}
