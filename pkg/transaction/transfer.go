package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/apperr"
	"github.com/walletwise/walletwise/internal/event_bus"
	"github.com/walletwise/walletwise/pkg/category"
	"github.com/walletwise/walletwise/pkg/user"
	"github.com/walletwise/walletwise/pkg/wallet"
)

var ErrSameWallet = fmt.Errorf("source and destination wallet must differ: %w", apperr.ErrValidation)
var ErrCurrencyMismatch = fmt.Errorf("wallets use different currencies: %w", apperr.ErrValidation)
var ErrInsufficientFunds = fmt.Errorf("source wallet: %w", apperr.ErrInsufficientFunds)

type TransferInput struct {
	FromWalletId int
	ToWalletId   int
	Amount       decimal.Decimal
	// OccurredAt defaults to now.
	OccurredAt time.Time
	Note       string
}

// Transfer moves money between two wallets of the same currency as an EXPENSE on the source and an
// INCOME on the destination, both in the caller's transfer categories. Either both entries and both
// balance changes are stored, or nothing is.
func (s *ServiceImpl) Transfer(ctx context.Context, in TransferInput) (result TransferResult, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveLedgerOp("transfer", started, err) }()

	userId, err := user.CurrentId(ctx)
	if err != nil {
		return TransferResult{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if !in.Amount.IsPositive() {
		return TransferResult{}, fmt.Errorf("amount must be greater than zero: %w", ErrInvalidTransaction)
	}
	if in.FromWalletId == in.ToWalletId {
		return TransferResult{}, ErrSameWallet
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.clock.Now()
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, walletId := range []int{in.FromWalletId, in.ToWalletId} {
			if err := s.requireAccess(ctx, walletId, userId, wallet.Editor); err != nil {
				return err
			}
		}
		locks, err := s.lock(ctx, in.FromWalletId, in.ToWalletId)
		if err != nil {
			return err
		}
		source, destination := locks[in.FromWalletId], locks[in.ToWalletId]
		if source.Currency != destination.Currency {
			return fmt.Errorf("%s to %s: %w", source.Currency, destination.Currency, ErrCurrencyMismatch)
		}
		if source.Balance.LessThan(in.Amount) {
			log.Debugf("transfer of %s from wallet %d refused, balance is %s", in.Amount, source.Id, source.Balance)
			return fmt.Errorf("balance %s is lower than %s: %w", source.Balance.String(), in.Amount.String(), ErrInsufficientFunds)
		}

		outCategory, err := s.categories.GetOrCreateTransferCategory(ctx, userId, category.Expense)
		if err != nil {
			return err
		}
		inCategory, err := s.categories.GetOrCreateTransferCategory(ctx, userId, category.Income)
		if err != nil {
			return err
		}

		expense, err := s.repo.Store(ctx, Transaction{
			UserId:     userId,
			WalletId:   source.Id,
			CategoryId: outCategory.Id,
			Type:       Expense,
			Amount:     in.Amount,
			OccurredAt: in.OccurredAt.UTC(),
			Note:       transferNote("Transfer to", destination.Name, in.Note),
		})
		if err != nil {
			return err
		}
		income, err := s.repo.Store(ctx, Transaction{
			UserId:     userId,
			WalletId:   destination.Id,
			CategoryId: inCategory.Id,
			Type:       Income,
			Amount:     in.Amount,
			OccurredAt: in.OccurredAt.UTC(),
			Note:       transferNote("Transfer from", source.Name, in.Note),
		})
		if err != nil {
			return err
		}

		if err := s.move(ctx, locks, userId, source.Id, expense.SignedAmount()); err != nil {
			return err
		}
		if err := s.move(ctx, locks, userId, destination.Id, income.SignedAmount()); err != nil {
			return err
		}
		if err := s.recalculate(ctx, expense); err != nil {
			return err
		}
		if err := s.recalculate(ctx, income); err != nil {
			return err
		}

		s.publishAfterCommit(ctx, event_bus.TransactionCreated, expense)
		s.publishAfterCommit(ctx, event_bus.TransactionCreated, income)
		result = TransferResult{Expense: expense, Income: income}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	log.Infof("transferred %s from wallet %d to wallet %d", in.Amount, in.FromWalletId, in.ToWalletId)
	return result, nil
}

func transferNote(prefix string, walletName string, note string) string {
	if note == "" {
		return fmt.Sprintf("%s %s", prefix, walletName)
	}
	return fmt.Sprintf("%s %s: %s", prefix, walletName, note)
}
