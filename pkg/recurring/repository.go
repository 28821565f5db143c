package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/database"
	"github.com/walletwise/walletwise/pkg/category"
)

type Repository interface {
	Store(ctx context.Context, rule Rule) (Rule, error)
	Get(ctx context.Context, id int) (Rule, error)
	// GetForUpdate locks the rule so two concurrent runs cannot materialize it twice.
	GetForUpdate(ctx context.Context, id int) (Rule, error)
	// UpdateSchedule writes NextRunDate and Active.
	UpdateSchedule(ctx context.Context, rule Rule) error
	Delete(ctx context.Context, userId int, id int) (bool, error)
	ListByUser(ctx context.Context, userId int) ([]Rule, error)
	// FindDue returns the active rules of every user with next_run_date <= day.
	FindDue(ctx context.Context, day time.Time) ([]Rule, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const ruleColumns = `id, user_id, wallet_id, category_id, type, amount, frequency, start_date, end_date,
	next_run_date, note, active`

func (r *RepositoryImpl) Store(ctx context.Context, rule Rule) (Rule, error) {
	query := `INSERT INTO recurring_rules (user_id, wallet_id, category_id, type, amount, frequency, start_date,
				end_date, next_run_date, note, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	err := database.QueryerFrom(ctx, r.db).QueryRow(ctx, query,
		rule.UserId,
		rule.WalletId,
		rule.CategoryId,
		string(rule.Type),
		rule.Amount,
		string(rule.Frequency),
		rule.StartDate,
		rule.EndDate,
		rule.NextRunDate,
		rule.Note,
		rule.Active,
	).Scan(&rule.Id)
	if err != nil {
		err := fmt.Errorf("could not store recurring rule: %w", err)
		log.Error(err)
		return Rule{}, err
	}
	return rule, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, id int) (Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE id = $1`
	return scanRule(database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *RepositoryImpl) GetForUpdate(ctx context.Context, id int) (Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE id = $1 FOR UPDATE`
	return scanRule(database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *RepositoryImpl) UpdateSchedule(ctx context.Context, rule Rule) error {
	query := `UPDATE recurring_rules SET next_run_date = $1, active = $2, updated_at = now() WHERE id = $3`
	result, err := database.QueryerFrom(ctx, r.db).Exec(ctx, query, rule.NextRunDate, rule.Active, rule.Id)
	if err != nil {
		err := fmt.Errorf("could not update recurring rule schedule: %w", err)
		log.Error(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int, id int) (bool, error) {
	result, err := database.QueryerFrom(ctx, r.db).
		Exec(ctx, `DELETE FROM recurring_rules WHERE id = $1 AND user_id = $2`, id, userId)
	if err != nil {
		err := fmt.Errorf("could not delete recurring rule: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) ListByUser(ctx context.Context, userId int) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE user_id = $1 ORDER BY next_run_date, id`
	return r.queryMany(ctx, query, userId)
}

func (r *RepositoryImpl) FindDue(ctx context.Context, day time.Time) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE active AND next_run_date <= $1 ORDER BY id`
	return r.queryMany(ctx, query, day)
}

func (r *RepositoryImpl) queryMany(ctx context.Context, query string, args ...any) ([]Rule, error) {
	rows, err := database.QueryerFrom(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query recurring rules: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return rules, nil
}

func scanRule(row pgx.Row) (Rule, error) {
	var rule Rule
	var ruleType, frequency string
	err := row.Scan(
		&rule.Id,
		&rule.UserId,
		&rule.WalletId,
		&rule.CategoryId,
		&ruleType,
		&rule.Amount,
		&frequency,
		&rule.StartDate,
		&rule.EndDate,
		&rule.NextRunDate,
		&rule.Note,
		&rule.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrRuleNotFound
		}
		err := fmt.Errorf("error scanning recurring rule: %w", err)
		log.Error(err)
		return Rule{}, err
	}
	rule.Type = category.Type(ruleType)
	rule.Frequency = Frequency(frequency)
	return rule, nil
}
