package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/database"
)

type BudgetRepo interface {
	Store(ctx context.Context, budget Budget) (Budget, error)
	Get(ctx context.Context, id int) (Budget, error)
	// GetForUpdate locks the budget row until the surrounding unit of work ends.
	GetForUpdate(ctx context.Context, id int) (Budget, error)
	// Update writes the user editable fields. Usage and alert flags are left untouched.
	Update(ctx context.Context, budget Budget) (bool, error)
	// UpdateUsage writes usedAmount and the alert flags.
	UpdateUsage(ctx context.Context, budget Budget) error
	Delete(ctx context.Context, userId int, id int) (bool, error)
	GetAll(ctx context.Context, userId int) ([]Budget, error)
	// FindCovering locks and returns the budgets of userId for categoryId whose range contains day.
	FindCovering(ctx context.Context, userId int, categoryId int, day time.Time) ([]Budget, error)
	// FindActive returns the budgets of every user whose range contains day.
	FindActive(ctx context.Context, day time.Time) ([]Budget, error)
}

type BudgetRepoImpl struct {
	db *pgxpool.Pool
}

func NewBudgetRepo(db *pgxpool.Pool) *BudgetRepoImpl {
	return &BudgetRepoImpl{db: db}
}

const budgetColumns = `id, user_id, category_id, start_date, end_date, period, limit_amount, used_amount,
	alert_threshold, alert_sent_50, alert_sent_80, alert_sent_95, alert_sent_100`

func (r *BudgetRepoImpl) Store(ctx context.Context, budget Budget) (Budget, error) {
	query := `INSERT INTO budgets (
                    user_id,
                    category_id,
                    start_date,
                    end_date,
                    period,
                    limit_amount,
                    used_amount,
                    alert_threshold
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	err := database.QueryerFrom(ctx, r.db).QueryRow(ctx, query,
		budget.UserId,
		budget.CategoryId,
		budget.StartDate,
		budget.EndDate,
		string(budget.Period),
		budget.LimitAmount,
		budget.UsedAmount,
		budget.AlertThreshold,
	).Scan(&budget.Id)
	if err != nil {
		err := fmt.Errorf("could not store budget: %w", err)
		log.Error(err)
		return Budget{}, err
	}
	return budget, nil
}

func (r *BudgetRepoImpl) Get(ctx context.Context, id int) (Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1`
	return scanBudget(database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *BudgetRepoImpl) GetForUpdate(ctx context.Context, id int) (Budget, error) {
	if !database.InTransaction(ctx) {
		return Budget{}, errors.New("budget row lock requires a transaction")
	}
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1 FOR UPDATE`
	return scanBudget(database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *BudgetRepoImpl) Update(ctx context.Context, budget Budget) (bool, error) {
	query := `UPDATE budgets SET
                   category_id = $1,
                   start_date = $2,
                   end_date = $3,
                   period = $4,
                   limit_amount = $5,
                   alert_threshold = $6,
                   updated_at = now()
               WHERE id = $7 AND user_id = $8`
	result, err := database.QueryerFrom(ctx, r.db).Exec(ctx, query,
		budget.CategoryId,
		budget.StartDate,
		budget.EndDate,
		string(budget.Period),
		budget.LimitAmount,
		budget.AlertThreshold,
		budget.Id,
		budget.UserId,
	)
	if err != nil {
		err := fmt.Errorf("could not update budget: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *BudgetRepoImpl) UpdateUsage(ctx context.Context, budget Budget) error {
	query := `UPDATE budgets SET
                   used_amount = $1,
                   alert_sent_50 = $2,
                   alert_sent_80 = $3,
                   alert_sent_95 = $4,
                   alert_sent_100 = $5,
                   updated_at = now()
               WHERE id = $6`
	result, err := database.QueryerFrom(ctx, r.db).Exec(ctx, query,
		budget.UsedAmount,
		budget.Alerts.Sent50,
		budget.Alerts.Sent80,
		budget.Alerts.Sent95,
		budget.Alerts.Sent100,
		budget.Id,
	)
	if err != nil {
		err := fmt.Errorf("could not update budget usage: %w", err)
		log.Error(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBudgetNotFound
	}
	return nil
}

func (r *BudgetRepoImpl) Delete(ctx context.Context, userId int, id int) (bool, error) {
	result, err := database.QueryerFrom(ctx, r.db).
		Exec(ctx, `DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, userId)
	if err != nil {
		err := fmt.Errorf("could not delete budget: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *BudgetRepoImpl) GetAll(ctx context.Context, userId int) ([]Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = $1 ORDER BY start_date DESC, id`
	return r.queryMany(ctx, query, userId)
}

func (r *BudgetRepoImpl) FindCovering(ctx context.Context, userId int, categoryId int, day time.Time) ([]Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets
				WHERE user_id = $1 AND category_id = $2 AND start_date <= $3 AND end_date >= $3
				ORDER BY id`
	if database.InTransaction(ctx) {
		query += ` FOR UPDATE`
	}
	return r.queryMany(ctx, query, userId, categoryId, day)
}

func (r *BudgetRepoImpl) FindActive(ctx context.Context, day time.Time) ([]Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE start_date <= $1 AND end_date >= $1 ORDER BY id`
	return r.queryMany(ctx, query, day)
}

func (r *BudgetRepoImpl) queryMany(ctx context.Context, query string, args ...any) ([]Budget, error) {
	rows, err := database.QueryerFrom(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query budgets: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, budget)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return budgets, nil
}

func scanBudget(row pgx.Row) (Budget, error) {
	var budget Budget
	var period string
	err := row.Scan(
		&budget.Id,
		&budget.UserId,
		&budget.CategoryId,
		&budget.StartDate,
		&budget.EndDate,
		&period,
		&budget.LimitAmount,
		&budget.UsedAmount,
		&budget.AlertThreshold,
		&budget.Alerts.Sent50,
		&budget.Alerts.Sent80,
		&budget.Alerts.Sent95,
		&budget.Alerts.Sent100,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrBudgetNotFound
		}
		err := fmt.Errorf("error scanning budget: %w", err)
		log.Error(err)
		return Budget{}, err
	}
	budget.Period = Period(period)
	return budget, nil
}
