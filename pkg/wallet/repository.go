package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/database"
)

type Repository interface {
	Store(ctx context.Context, userId int, wallet Wallet) (Wallet, error)
	Get(ctx context.Context, id int) (Wallet, error)
	// GetForUpdate reads the wallet and locks its row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int) (Wallet, error)
	ListAccessible(ctx context.Context, userId int) ([]Wallet, error)
	CountOwned(ctx context.Context, userId int) (int, error)
	// ApplyDelta adds delta to the cached balance and returns the new balance.
	ApplyDelta(ctx context.Context, id int, delta decimal.Decimal) (decimal.Decimal, error)
	SetDefault(ctx context.Context, userId int, id int) (bool, error)
	// GetPermission returns Owner for the owner, the shared permission otherwise.
	GetPermission(ctx context.Context, id int, userId int) (Permission, error)
	Share(ctx context.Context, id int, userId int, permission Permission) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const walletColumns = `id, user_id, name, currency, balance, is_default`

func (r *RepositoryImpl) Store(ctx context.Context, userId int, wallet Wallet) (Wallet, error) {
	query := `INSERT INTO wallets (user_id, name, currency, balance, is_default) 
				VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := database.QueryerFrom(ctx, r.db).
		QueryRow(ctx, query, userId, wallet.Name, wallet.Currency, wallet.Balance, wallet.IsDefault).
		Scan(&wallet.Id)
	if err != nil {
		err := fmt.Errorf("could not store wallet: %w", err)
		log.Error(err)
		return Wallet{}, err
	}
	wallet.UserId = userId
	return wallet, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, id int) (Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *RepositoryImpl) GetForUpdate(ctx context.Context, id int) (Wallet, error) {
	if !database.InTransaction(ctx) {
		return Wallet{}, fmt.Errorf("wallet %d: row lock requested outside a transaction", id)
	}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return scanWallet(database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *RepositoryImpl) ListAccessible(ctx context.Context, userId int) ([]Wallet, error) {
	query := `SELECT w.id, w.user_id, w.name, w.currency, w.balance, w.is_default FROM wallets w
				WHERE w.user_id = $1
				   OR EXISTS (SELECT 1 FROM wallet_shares s WHERE s.wallet_id = w.id AND s.user_id = $1)
				ORDER BY w.id`
	rows, err := database.QueryerFrom(ctx, r.db).Query(ctx, query, userId)
	if err != nil {
		err := fmt.Errorf("could not query wallets: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, wallet)
	}
	return wallets, rows.Err()
}

func (r *RepositoryImpl) CountOwned(ctx context.Context, userId int) (int, error) {
	var count int
	err := database.QueryerFrom(ctx, r.db).
		QueryRow(ctx, `SELECT COUNT(*) FROM wallets WHERE user_id = $1`, userId).
		Scan(&count)
	if err != nil {
		err := fmt.Errorf("could not count wallets: %w", err)
		log.Error(err)
		return 0, err
	}
	return count, nil
}

func (r *RepositoryImpl) ApplyDelta(ctx context.Context, id int, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = now() WHERE id = $2 RETURNING balance`
	var balance decimal.Decimal
	err := database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, delta, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrWalletNotFound
		}
		err := fmt.Errorf("could not apply balance delta: %w", err)
		log.Error(err)
		return decimal.Zero, err
	}
	return balance, nil
}

func (r *RepositoryImpl) SetDefault(ctx context.Context, userId int, id int) (bool, error) {
	q := database.QueryerFrom(ctx, r.db)
	if _, err := q.Exec(ctx, `UPDATE wallets SET is_default = FALSE WHERE user_id = $1 AND id <> $2`, userId, id); err != nil {
		err := fmt.Errorf("could not clear default wallet: %w", err)
		log.Error(err)
		return false, err
	}
	result, err := q.Exec(ctx, `UPDATE wallets SET is_default = TRUE WHERE user_id = $1 AND id = $2`, userId, id)
	if err != nil {
		err := fmt.Errorf("could not set default wallet: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) GetPermission(ctx context.Context, id int, userId int) (Permission, error) {
	query := `SELECT w.user_id, s.permission FROM wallets w
				LEFT JOIN wallet_shares s ON s.wallet_id = w.id AND s.user_id = $2
				WHERE w.id = $1`
	var ownerId int
	var shared *string
	err := database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, id, userId).Scan(&ownerId, &shared)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NoPermission, ErrWalletNotFound
		}
		err := fmt.Errorf("could not read wallet permission: %w", err)
		log.Error(err)
		return NoPermission, err
	}
	if ownerId == userId {
		return Owner, nil
	}
	if shared == nil {
		return NoPermission, nil
	}
	return ParsePermission(*shared)
}

func (r *RepositoryImpl) Share(ctx context.Context, id int, userId int, permission Permission) error {
	query := `INSERT INTO wallet_shares (wallet_id, user_id, permission) VALUES ($1, $2, $3)
				ON CONFLICT (wallet_id, user_id) DO UPDATE SET permission = EXCLUDED.permission`
	if _, err := database.QueryerFrom(ctx, r.db).Exec(ctx, query, id, userId, permission.String()); err != nil {
		err := fmt.Errorf("could not share wallet: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var wallet Wallet
	err := row.Scan(&wallet.Id, &wallet.UserId, &wallet.Name, &wallet.Currency, &wallet.Balance, &wallet.IsDefault)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		err := fmt.Errorf("error scanning wallet: %w", err)
		log.Error(err)
		return Wallet{}, err
	}
	return wallet, nil
}
