package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/database"
)

// SimilarQuery selects candidates for the duplicate heuristic. Every bound is inclusive.
type SimilarQuery struct {
	UserId     int
	WalletId   int
	CategoryId int
	From       time.Time
	To         time.Time
	MinAmount  decimal.Decimal
	MaxAmount  decimal.Decimal
	Limit      int
}

type Repository interface {
	Store(ctx context.Context, t Transaction) (Transaction, error)
	Get(ctx context.Context, id int) (Transaction, error)
	GetForUpdate(ctx context.Context, id int) (Transaction, error)
	Update(ctx context.Context, t Transaction) error
	Delete(ctx context.Context, id int) (bool, error)
	ListByWallet(ctx context.Context, walletId int, from, to time.Time) ([]Transaction, error)
	FindSimilar(ctx context.Context, q SimilarQuery) ([]Transaction, error)
	// SumExpenses sums EXPENSE amounts of userId in categoryId with from <= occurred_at < to.
	SumExpenses(ctx context.Context, userId int, categoryId int, from, to time.Time) (decimal.Decimal, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const transactionColumns = `id, user_id, wallet_id, category_id, type, amount, occurred_at, note, attachment_ref, created_at`

func (r *RepositoryImpl) Store(ctx context.Context, t Transaction) (Transaction, error) {
	query := `INSERT INTO transactions (user_id, wallet_id, category_id, type, amount, occurred_at, note, attachment_ref)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`
	err := database.QueryerFrom(ctx, r.db).QueryRow(ctx, query,
		t.UserId,
		t.WalletId,
		t.CategoryId,
		string(t.Type),
		t.Amount,
		t.OccurredAt,
		t.Note,
		t.AttachmentRef,
	).Scan(&t.Id, &t.CreatedAt)
	if err != nil {
		err := fmt.Errorf("could not store transaction: %w", err)
		log.Error(err)
		return Transaction{}, err
	}
	return t, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, id int) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *RepositoryImpl) GetForUpdate(ctx context.Context, id int) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *RepositoryImpl) Update(ctx context.Context, t Transaction) error {
	query := `UPDATE transactions SET
				wallet_id = $1,
				category_id = $2,
				type = $3,
				amount = $4,
				occurred_at = $5,
				note = $6,
				attachment_ref = $7,
				updated_at = now()
			  WHERE id = $8`
	result, err := database.QueryerFrom(ctx, r.db).Exec(ctx, query,
		t.WalletId,
		t.CategoryId,
		string(t.Type),
		t.Amount,
		t.OccurredAt,
		t.Note,
		t.AttachmentRef,
		t.Id,
	)
	if err != nil {
		err := fmt.Errorf("could not update transaction: %w", err)
		log.Error(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, id int) (bool, error) {
	result, err := database.QueryerFrom(ctx, r.db).Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		err := fmt.Errorf("could not delete transaction: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) ListByWallet(ctx context.Context, walletId int, from, to time.Time) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
				WHERE wallet_id = $1 AND occurred_at >= $2 AND occurred_at < $3
				ORDER BY occurred_at DESC, id DESC`
	return r.queryMany(ctx, query, walletId, from, to)
}

func (r *RepositoryImpl) FindSimilar(ctx context.Context, q SimilarQuery) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
				WHERE user_id = $1 AND wallet_id = $2 AND category_id = $3
				  AND occurred_at BETWEEN $4 AND $5
				  AND amount BETWEEN $6 AND $7
				LIMIT $8`
	return r.queryMany(ctx, query, q.UserId, q.WalletId, q.CategoryId, q.From, q.To, q.MinAmount, q.MaxAmount, q.Limit)
}

func (r *RepositoryImpl) SumExpenses(ctx context.Context, userId int, categoryId int, from, to time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
				WHERE user_id = $1 AND category_id = $2 AND type = 'EXPENSE'
				  AND occurred_at >= $3 AND occurred_at < $4`
	var sum decimal.Decimal
	err := database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, userId, categoryId, from, to).Scan(&sum)
	if err != nil {
		err := fmt.Errorf("could not sum expenses: %w", err)
		log.Error(err)
		return decimal.Zero, err
	}
	return sum, nil
}

func (r *RepositoryImpl) queryMany(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := database.QueryerFrom(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query transactions: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return transactions, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var transactionType string
	err := row.Scan(
		&t.Id,
		&t.UserId,
		&t.WalletId,
		&t.CategoryId,
		&transactionType,
		&t.Amount,
		&t.OccurredAt,
		&t.Note,
		&t.AttachmentRef,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		err := fmt.Errorf("error scanning transaction: %w", err)
		log.Error(err)
		return Transaction{}, err
	}
	t.Type = Type(transactionType)
	t.OccurredAt = t.OccurredAt.UTC()
	return t, nil
}
