package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletwise/walletwise/internal/utils"
	"github.com/walletwise/walletwise/pkg/budget"
	"github.com/walletwise/walletwise/pkg/recurring"
)

type fakeRunner struct {
	summary recurring.RunSummary
	err     error
	calls   *[]string
}

func (f fakeRunner) Run(ctx context.Context) (recurring.RunSummary, error) {
	*f.calls = append(*f.calls, "recurring")
	return f.summary, f.err
}

type fakeEvaluator struct {
	day   *time.Time
	calls *[]string
}

func (f fakeEvaluator) EvaluateActiveBudgets(ctx context.Context, day time.Time) (budget.EvaluationSummary, error) {
	*f.calls = append(*f.calls, "budgets")
	*f.day = day
	return budget.EvaluationSummary{Evaluated: 3, Alerts: 1}, nil
}

func TestDailyJob_Run(t *testing.T) {
	clock := &utils.MockClock{FixedNow: time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC)}

	t.Run("runs recurring rules before evaluating budgets", func(t *testing.T) {
		// given
		var calls []string
		var day time.Time
		job := NewDailyJob(
			fakeRunner{summary: recurring.RunSummary{Processed: 2, Created: 2}, calls: &calls},
			fakeEvaluator{day: &day, calls: &calls},
			clock,
		)

		// when
		summary, err := job.Run(context.Background())

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"recurring", "budgets"}, calls)
		assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), day)
		assert.Equal(t, 2, summary.Recurring.Created)
		assert.Equal(t, 1, summary.Budgets.Alerts)
	})

	t.Run("stops when the recurring run fails", func(t *testing.T) {
		// given
		var calls []string
		var day time.Time
		job := NewDailyJob(fakeRunner{err: errors.New("db down"), calls: &calls}, fakeEvaluator{day: &day, calls: &calls}, clock)

		// when
		_, err := job.Run(context.Background())

		// then
		assert.ErrorContains(t, err, "db down")
		assert.Equal(t, []string{"recurring"}, calls)
	})
}
