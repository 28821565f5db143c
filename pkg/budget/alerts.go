package budget

import (
	"github.com/shopspring/decimal"
)

type Level string

const (
	LevelInformational Level = "informational"
	LevelCritical      Level = "critical"
	LevelDanger        Level = "danger"
	LevelExceeded      Level = "exceeded"
)

type Alert struct {
	// Threshold is the tier in percent: 50, 80, 95 or 100.
	Threshold int
	Level     Level
}

type tier struct {
	threshold int
	ratio     decimal.Decimal
	level     Level
	flag      func(f *AlertFlags) *bool
}

// tiers are ordered from the highest threshold down.
var tiers = []tier{
	{100, decimal.NewFromInt(1), LevelExceeded, func(f *AlertFlags) *bool { return &f.Sent100 }},
	{95, decimal.RequireFromString("0.95"), LevelDanger, func(f *AlertFlags) *bool { return &f.Sent95 }},
	{80, decimal.RequireFromString("0.80"), LevelCritical, func(f *AlertFlags) *bool { return &f.Sent80 }},
	{50, decimal.RequireFromString("0.50"), LevelInformational, func(f *AlertFlags) *bool { return &f.Sent50 }},
}

// EvaluateAlert fires at most one alert for the budget's current usage and marks it sent.
//
// Tiers are walked from the highest down. The first unsent tier the usage has reached fires. A tier
// that was already sent covers every tier below it, so a lower tier skipped by a jump never fires
// later, whatever the usage does. Only the flag of the fired tier changes.
func EvaluateAlert(b *Budget) (Alert, bool) {
	if !b.LimitAmount.IsPositive() {
		return Alert{}, false
	}
	ratio := b.Ratio()
	for _, t := range tiers {
		sent := t.flag(&b.Alerts)
		if *sent {
			return Alert{}, false
		}
		if ratio.GreaterThanOrEqual(t.ratio) {
			*sent = true
			return Alert{Threshold: t.threshold, Level: t.level}, true
		}
	}
	return Alert{}, false
}
