package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/apperr"
	"github.com/walletwise/walletwise/internal/database"
	"github.com/walletwise/walletwise/pkg/user"
)

var ErrWalletNotFound = fmt.Errorf("wallet %w", apperr.ErrNotFound)
var ErrInvalidWallet = fmt.Errorf("invalid wallet: %w", apperr.ErrValidation)
var ErrAccessDenied = fmt.Errorf("wallet access: %w", apperr.ErrPermission)

type Service interface {
	CreateWallet(ctx context.Context, wallet Wallet) (Wallet, error)
	GetWallet(ctx context.Context, id int) (Wallet, error)
	ListWallets(ctx context.Context) ([]Wallet, error)
	SetDefault(ctx context.Context, id int) error
	ShareWallet(ctx context.Context, id int, withUserId int, permission Permission) error
	HasWalletAccess(ctx context.Context, walletId int, userId int, min Permission) (bool, error)
	// LockWallet must run inside a unit of work; the row stays locked until it ends.
	LockWallet(ctx context.Context, id int) (Wallet, error)
	ApplyDelta(ctx context.Context, id int, delta decimal.Decimal) (decimal.Decimal, error)
}

type ServiceImpl struct {
	repo Repository
	tx   database.TxManager
}

func NewService(repo Repository, tx database.TxManager) *ServiceImpl {
	return &ServiceImpl{repo: repo, tx: tx}
}

func (s *ServiceImpl) CreateWallet(ctx context.Context, wallet Wallet) (Wallet, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Wallet{}, fmt.Errorf("failed to get current user: %w", err)
	}
	wallet.Name = strings.TrimSpace(wallet.Name)
	wallet.Currency = strings.ToUpper(strings.TrimSpace(wallet.Currency))
	if wallet.Name == "" {
		return Wallet{}, fmt.Errorf("name is required: %w", ErrInvalidWallet)
	}
	if !validCurrency(wallet.Currency) {
		return Wallet{}, fmt.Errorf("currency %q is not a 3-letter code: %w", wallet.Currency, ErrInvalidWallet)
	}
	// balances only move through the ledger
	wallet.Balance = decimal.Zero

	var created Wallet
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		owned, err := s.repo.CountOwned(ctx, userId)
		if err != nil {
			return err
		}
		makeDefault := wallet.IsDefault || owned == 0
		wallet.IsDefault = false
		created, err = s.repo.Store(ctx, userId, wallet)
		if err != nil {
			return err
		}
		if makeDefault {
			if _, err := s.repo.SetDefault(ctx, userId, created.Id); err != nil {
				return err
			}
			created.IsDefault = true
		}
		return nil
	})
	if err != nil {
		return Wallet{}, err
	}
	log.Debugf("created wallet %d (%s) for user %d", created.Id, created.Currency, userId)
	return created, nil
}

func (s *ServiceImpl) GetWallet(ctx context.Context, id int) (Wallet, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Wallet{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.requireAccess(ctx, id, userId, Viewer); err != nil {
		return Wallet{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *ServiceImpl) ListWallets(ctx context.Context) ([]Wallet, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListAccessible(ctx, userId)
}

func (s *ServiceImpl) SetDefault(ctx context.Context, id int) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.requireAccess(ctx, id, userId, Owner); err != nil {
			return err
		}
		ok, err := s.repo.SetDefault(ctx, userId, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrWalletNotFound
		}
		return nil
	})
}

func (s *ServiceImpl) ShareWallet(ctx context.Context, id int, withUserId int, permission Permission) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if permission < Viewer || permission > Owner {
		return fmt.Errorf("permission %d: %w", permission, ErrInvalidWallet)
	}
	if withUserId == userId {
		return fmt.Errorf("cannot share a wallet with its owner: %w", ErrInvalidWallet)
	}
	if err := s.requireAccess(ctx, id, userId, Owner); err != nil {
		return err
	}
	return s.repo.Share(ctx, id, withUserId, permission)
}

func (s *ServiceImpl) HasWalletAccess(ctx context.Context, walletId int, userId int, min Permission) (bool, error) {
	permission, err := s.repo.GetPermission(ctx, walletId, userId)
	if err != nil {
		return false, err
	}
	return permission.Allows(min), nil
}

func (s *ServiceImpl) requireAccess(ctx context.Context, walletId int, userId int, min Permission) error {
	ok, err := s.HasWalletAccess(ctx, walletId, userId, min)
	if err != nil {
		return err
	}
	if !ok {
		log.Debugf("user %d lacks %s on wallet %d", userId, min, walletId)
		return fmt.Errorf("%s required on wallet %d: %w", min, walletId, ErrAccessDenied)
	}
	return nil
}

func (s *ServiceImpl) LockWallet(ctx context.Context, id int) (Wallet, error) {
	return s.repo.GetForUpdate(ctx, id)
}

func (s *ServiceImpl) ApplyDelta(ctx context.Context, id int, delta decimal.Decimal) (decimal.Decimal, error) {
	return s.repo.ApplyDelta(ctx, id, delta)
}
