package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/rest"
	"github.com/walletwise/walletwise/internal/utils"
	"github.com/walletwise/walletwise/pkg/budget"
	"github.com/walletwise/walletwise/pkg/recurring"
)

type RecurringRunner interface {
	Run(ctx context.Context) (recurring.RunSummary, error)
}

type BudgetEvaluator interface {
	EvaluateActiveBudgets(ctx context.Context, day time.Time) (budget.EvaluationSummary, error)
}

type DailyJobSummary struct {
	Day       time.Time                `json:"day"`
	Recurring recurring.RunSummary     `json:"recurring"`
	Budgets   budget.EvaluationSummary `json:"budgets"`
}

// DailyJob materializes due recurring rules and then re-evaluates every active budget, so
// transactions created by the first step are already reflected in the second.
type DailyJob struct {
	recurring RecurringRunner
	budgets   BudgetEvaluator
	clock     utils.Clock
}

func NewDailyJob(recurring RecurringRunner, budgets BudgetEvaluator, clock utils.Clock) *DailyJob {
	return &DailyJob{recurring: recurring, budgets: budgets, clock: clock}
}

func (j *DailyJob) Run(ctx context.Context) (DailyJobSummary, error) {
	summary := DailyJobSummary{Day: utils.Today(j.clock)}

	rules, err := j.recurring.Run(ctx)
	if err != nil {
		return summary, fmt.Errorf("recurring rules: %w", err)
	}
	summary.Recurring = rules

	budgets, err := j.budgets.EvaluateActiveBudgets(ctx, summary.Day)
	if err != nil {
		return summary, fmt.Errorf("budget evaluation: %w", err)
	}
	summary.Budgets = budgets

	log.WithFields(log.Fields{
		"day":               summary.Day.Format(rest.DateLayout),
		"rules_processed":   rules.Processed,
		"rules_created":     rules.Created,
		"rules_skipped":     rules.Skipped,
		"rules_failed":      rules.Failed,
		"budgets_evaluated": budgets.Evaluated,
		"budget_alerts":     budgets.Alerts,
		"budgets_failed":    budgets.Failed,
	}).Info("daily job finished")
	return summary, nil
}

// Handle runs the job on demand, for schedulers that trigger it over HTTP.
func (j *DailyJob) Handle(w http.ResponseWriter, r *http.Request) {
	summary, err := j.Run(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, summary)
}
