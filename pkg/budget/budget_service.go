package budget

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/apperr"
	"github.com/walletwise/walletwise/internal/database"
	"github.com/walletwise/walletwise/internal/event_bus"
	"github.com/walletwise/walletwise/internal/metrics"
	"github.com/walletwise/walletwise/internal/utils"
	"github.com/walletwise/walletwise/pkg/category"
	"github.com/walletwise/walletwise/pkg/user"
	"golang.org/x/sync/errgroup"
)

var ErrBudgetNotFound = fmt.Errorf("budget %w", apperr.ErrNotFound)
var ErrInvalidBudget = fmt.Errorf("invalid budget: %w", apperr.ErrValidation)

// ExpenseSource sums EXPENSE amounts of a user's category over [from, to).
type ExpenseSource interface {
	SumExpenses(ctx context.Context, userId int, categoryId int, from, to time.Time) (decimal.Decimal, error)
}

type CategoryLookup interface {
	FindCategory(ctx context.Context, id int, userId int) (category.Category, error)
}

type BudgetService interface {
	Create(ctx context.Context, budget Budget) (Budget, error)
	Update(ctx context.Context, budget Budget) (Budget, error)
	Delete(ctx context.Context, id int) (bool, error)
	Get(ctx context.Context, id int) (Budget, error)
	GetAll(ctx context.Context) ([]Budget, error)
	// GetInAlert returns the budgets whose usage ratio reached their alert threshold.
	GetInAlert(ctx context.Context) ([]Budget, error)
	ResetAlertFlags(ctx context.Context, id int) (Budget, error)
	Recalculate(ctx context.Context, id int) (Budget, error)
	RecalculateForTransaction(ctx context.Context, userId int, categoryId int, occurredAt time.Time) error
	EvaluateActiveBudgets(ctx context.Context, day time.Time) (EvaluationSummary, error)
}

type EvaluationSummary struct {
	Evaluated int
	Alerts    int
	Failed    int
}

type Options struct {
	DefaultAlertThreshold decimal.Decimal
	// Concurrency bounds the budgets evaluated in parallel by the daily batch.
	Concurrency int
}

type BudgetServiceImpl struct {
	repo       BudgetRepo
	expenses   ExpenseSource
	categories CategoryLookup
	tx         database.TxManager
	bus        *event_bus.EventBus
	metrics    *metrics.Metrics
	opts       Options
}

func NewBudgetServiceImpl(
	repo BudgetRepo,
	expenses ExpenseSource,
	categories CategoryLookup,
	tx database.TxManager,
	bus *event_bus.EventBus,
	m *metrics.Metrics,
	opts Options,
) *BudgetServiceImpl {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &BudgetServiceImpl{
		repo:       repo,
		expenses:   expenses,
		categories: categories,
		tx:         tx,
		bus:        bus,
		metrics:    m,
		opts:       opts,
	}
}

func (s *BudgetServiceImpl) Create(ctx context.Context, budget Budget) (Budget, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current user: %w", err)
	}
	budget.UserId = userId
	budget.UsedAmount = decimal.Zero
	budget.Alerts = AlertFlags{}
	if err := s.prepare(ctx, &budget); err != nil {
		return Budget{}, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		stored, err := s.repo.Store(ctx, budget)
		if err != nil {
			return err
		}
		budget = stored
		return s.recalculate(ctx, &budget)
	})
	if err != nil {
		return Budget{}, err
	}
	log.Debugf("budget %d created for category %d", budget.Id, budget.CategoryId)
	return budget, nil
}

func (s *BudgetServiceImpl) Update(ctx context.Context, budget Budget) (Budget, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current user: %w", err)
	}
	budget.UserId = userId
	if err := s.prepare(ctx, &budget); err != nil {
		return Budget{}, err
	}

	var updated Budget
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.lockOwned(ctx, budget.Id, userId)
		if err != nil {
			return err
		}
		ok, err := s.repo.Update(ctx, budget)
		if err != nil {
			return err
		}
		if !ok {
			return ErrBudgetNotFound
		}
		updated = budget
		updated.UsedAmount = existing.UsedAmount
		updated.Alerts = existing.Alerts
		return s.recalculate(ctx, &updated)
	})
	if err != nil {
		return Budget{}, err
	}
	return updated, nil
}

func (s *BudgetServiceImpl) Delete(ctx context.Context, id int) (bool, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Delete(ctx, userId, id)
}

func (s *BudgetServiceImpl) Get(ctx context.Context, id int) (Budget, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current user: %w", err)
	}
	budget, err := s.repo.Get(ctx, id)
	if err != nil {
		return Budget{}, err
	}
	if budget.UserId != userId {
		return Budget{}, ErrBudgetNotFound
	}
	return budget, nil
}

func (s *BudgetServiceImpl) GetAll(ctx context.Context) ([]Budget, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetAll(ctx, userId)
}

func (s *BudgetServiceImpl) GetInAlert(ctx context.Context) ([]Budget, error) {
	budgets, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	inAlert := make([]Budget, 0)
	for _, budget := range budgets {
		if budget.InAlert() {
			inAlert = append(inAlert, budget)
		}
	}
	return inAlert, nil
}

// ResetAlertFlags clears all alert flags, typically when a new budget period starts.
// Usage is not evaluated again until the next recalculation.
func (s *BudgetServiceImpl) ResetAlertFlags(ctx context.Context, id int) (Budget, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current user: %w", err)
	}
	var budget Budget
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		budget, err = s.lockOwned(ctx, id, userId)
		if err != nil {
			return err
		}
		budget.Alerts = AlertFlags{}
		return s.repo.UpdateUsage(ctx, budget)
	})
	if err != nil {
		return Budget{}, err
	}
	log.Infof("alert flags of budget %d reset", id)
	return budget, nil
}

func (s *BudgetServiceImpl) Recalculate(ctx context.Context, id int) (Budget, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current user: %w", err)
	}
	var budget Budget
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		budget, err = s.lockOwned(ctx, id, userId)
		if err != nil {
			return err
		}
		return s.recalculate(ctx, &budget)
	})
	if err != nil {
		return Budget{}, err
	}
	return budget, nil
}

// RecalculateForTransaction joins the caller's unit of work, so usage and alert flags commit or roll
// back together with the ledger change that triggered them.
func (s *BudgetServiceImpl) RecalculateForTransaction(ctx context.Context, userId int, categoryId int, occurredAt time.Time) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		budgets, err := s.repo.FindCovering(ctx, userId, categoryId, utils.DateOf(occurredAt))
		if err != nil {
			return err
		}
		for i := range budgets {
			if err := s.recalculate(ctx, &budgets[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// EvaluateActiveBudgets recalculates every budget whose range contains day, each in its own unit of
// work. A failing budget is logged and counted; it does not stop the others.
func (s *BudgetServiceImpl) EvaluateActiveBudgets(ctx context.Context, day time.Time) (EvaluationSummary, error) {
	budgets, err := s.repo.FindActive(ctx, utils.DateOf(day))
	if err != nil {
		return EvaluationSummary{}, err
	}

	var evaluated, alerts, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, b := range budgets {
		budgetId, userId := b.Id, b.UserId
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fired := false
			err := s.tx.WithinTransaction(user.WithId(gctx, userId), func(ctx context.Context) error {
				budget, err := s.repo.GetForUpdate(ctx, budgetId)
				if err != nil {
					return err
				}
				before := budget.Alerts
				if err := s.recalculate(ctx, &budget); err != nil {
					return err
				}
				fired = before != budget.Alerts
				return nil
			})
			if err != nil {
				log.Errorf("evaluation of budget %d failed: %v", budgetId, err)
				failed.Add(1)
				return nil
			}
			evaluated.Add(1)
			if fired {
				alerts.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EvaluationSummary{}, err
	}

	summary := EvaluationSummary{
		Evaluated: int(evaluated.Load()),
		Alerts:    int(alerts.Load()),
		Failed:    int(failed.Load()),
	}
	log.Infof("evaluated %d active budgets: %d alert(s), %d failure(s)", summary.Evaluated, summary.Alerts, summary.Failed)
	return summary, nil
}

// recalculate recomputes usage from the ledger, evaluates the alert ladder and persists both.
// A fired alert is published only after the surrounding unit of work commits.
func (s *BudgetServiceImpl) recalculate(ctx context.Context, budget *Budget) error {
	from, to := budget.Window()
	used, err := s.expenses.SumExpenses(ctx, budget.UserId, budget.CategoryId, from, to)
	if err != nil {
		return err
	}
	budget.UsedAmount = used

	alert, fired := EvaluateAlert(budget)
	if err := s.repo.UpdateUsage(ctx, *budget); err != nil {
		return err
	}
	if fired {
		s.publishAlert(ctx, *budget, alert)
	}
	return nil
}

func (s *BudgetServiceImpl) publishAlert(ctx context.Context, budget Budget, alert Alert) {
	crossed := event_bus.BudgetThresholdCrossedEvent{
		BudgetId:   budget.Id,
		UserId:     budget.UserId,
		CategoryId: budget.CategoryId,
		Level:      string(alert.Level),
		Threshold:  alert.Threshold,
		Percentage: budget.Ratio().Mul(decimal.NewFromInt(100)).Round(2),
		Used:       budget.UsedAmount,
		Limit:      budget.LimitAmount,
	}
	database.AfterCommit(ctx, func(ctx context.Context) {
		log.Infof("budget %d reached %d%% (%s)", crossed.BudgetId, crossed.Threshold, crossed.Level)
		s.metrics.IncrAlert(crossed.Level)
		s.bus.PublishBestEffort(event_bus.NewEvent(ctx, event_bus.BudgetThresholdCrossed, crossed))
	})
}

func (s *BudgetServiceImpl) lockOwned(ctx context.Context, id int, userId int) (Budget, error) {
	budget, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return Budget{}, err
	}
	if budget.UserId != userId {
		return Budget{}, ErrBudgetNotFound
	}
	return budget, nil
}

// prepare validates user input and fills derived fields.
func (s *BudgetServiceImpl) prepare(ctx context.Context, budget *Budget) error {
	if budget.StartDate.IsZero() || budget.EndDate.IsZero() {
		return fmt.Errorf("start and end date are required: %w", ErrInvalidBudget)
	}
	budget.StartDate = utils.DateOf(budget.StartDate)
	budget.EndDate = utils.DateOf(budget.EndDate)
	if budget.EndDate.Before(budget.StartDate) {
		return fmt.Errorf("end date is before start date: %w", ErrInvalidBudget)
	}
	if !budget.LimitAmount.IsPositive() {
		return fmt.Errorf("limit must be greater than zero: %w", ErrInvalidBudget)
	}
	if budget.AlertThreshold.IsZero() {
		budget.AlertThreshold = s.opts.DefaultAlertThreshold
	}
	if budget.AlertThreshold.IsNegative() || budget.AlertThreshold.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("alert threshold must be between 0 and 1: %w", ErrInvalidBudget)
	}
	if budget.Period == "" {
		budget.Period = ClassifyPeriod(budget.StartDate, budget.EndDate)
	} else if !budget.Period.Valid() {
		return fmt.Errorf("period %q: %w", budget.Period, ErrInvalidBudget)
	}

	c, err := s.categories.FindCategory(ctx, budget.CategoryId, budget.UserId)
	if err != nil {
		return err
	}
	if c.IsTransfer {
		return fmt.Errorf("category %d: %w", c.Id, category.ErrTransferCategory)
	}
	if c.Type != category.Expense {
		return fmt.Errorf("category %d is not an expense category: %w", c.Id, ErrInvalidBudget)
	}
	return nil
}
