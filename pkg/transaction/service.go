package transaction

import (
	"context"
	"fmt"
	"sort"
	"strings"
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
	"github.com/walletwise/walletwise/pkg/wallet"
)

var ErrTransactionNotFound = fmt.Errorf("transaction %w", apperr.ErrNotFound)
var ErrInvalidTransaction = fmt.Errorf("invalid transaction: %w", apperr.ErrValidation)
var ErrCategoryTypeMismatch = fmt.Errorf("category type does not match transaction type: %w", apperr.ErrValidation)
var ErrBalanceFloor = fmt.Errorf("wallet balance would fall below the floor: %w", apperr.ErrValidation)
var ErrNotOwner = fmt.Errorf("transaction belongs to another user: %w", apperr.ErrPermission)

const maxAmountScale = 4

// WalletStore is the part of the wallet service the ledger needs.
type WalletStore interface {
	LockWallet(ctx context.Context, id int) (wallet.Wallet, error)
	ApplyDelta(ctx context.Context, id int, delta decimal.Decimal) (decimal.Decimal, error)
	HasWalletAccess(ctx context.Context, walletId int, userId int, min wallet.Permission) (bool, error)
}

type CategoryLookup interface {
	FindCategory(ctx context.Context, id int, userId int) (category.Category, error)
	GetOrCreateTransferCategory(ctx context.Context, userId int, categoryType category.Type) (category.Category, error)
}

// BudgetRecalculator refreshes every budget of userId for categoryId whose period contains occurredAt.
type BudgetRecalculator interface {
	RecalculateForTransaction(ctx context.Context, userId int, categoryId int, occurredAt time.Time) error
}

type Service interface {
	CreateTransaction(ctx context.Context, in Input) (CreateResult, error)
	UpdateTransaction(ctx context.Context, id int, in Input) (Transaction, error)
	DeleteTransaction(ctx context.Context, id int) error
	GetTransaction(ctx context.Context, id int) (Transaction, error)
	ListTransactions(ctx context.Context, walletId int, from, to time.Time) ([]Transaction, error)
	FindDuplicates(ctx context.Context, in Input) ([]Transaction, error)
	Transfer(ctx context.Context, in TransferInput) (TransferResult, error)
}

type ServiceImpl struct {
	repo       Repository
	wallets    WalletStore
	categories CategoryLookup
	budgets    BudgetRecalculator
	tx         database.TxManager
	bus        *event_bus.EventBus
	clock      utils.Clock
	metrics    *metrics.Metrics
	duplicates *DuplicateDetector
	opts       Options
}

func NewService(
	repo Repository,
	wallets WalletStore,
	categories CategoryLookup,
	budgets BudgetRecalculator,
	tx database.TxManager,
	bus *event_bus.EventBus,
	clock utils.Clock,
	m *metrics.Metrics,
	opts Options,
) *ServiceImpl {
	return &ServiceImpl{
		repo:       repo,
		wallets:    wallets,
		categories: categories,
		budgets:    budgets,
		tx:         tx,
		bus:        bus,
		clock:      clock,
		metrics:    m,
		duplicates: NewDuplicateDetector(repo, opts),
		opts:       opts,
	}
}

func (s *ServiceImpl) CreateTransaction(ctx context.Context, in Input) (result CreateResult, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveLedgerOp("create", started, err) }()

	userId, err := user.CurrentId(ctx)
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := validateInput(in); err != nil {
		return CreateResult{}, err
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.clock.Now()
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		candidate := newTransaction(userId, in)
		if err := s.checkCategory(ctx, userId, candidate); err != nil {
			return err
		}
		if err := s.requireAccess(ctx, candidate.WalletId, userId, wallet.Editor); err != nil {
			return err
		}
		locks, err := s.lock(ctx, candidate.WalletId)
		if err != nil {
			return err
		}
		if err := s.checkFloor(locks, balancePlan{candidate.WalletId: candidate.SignedAmount()}); err != nil {
			return err
		}

		result.PossibleDuplicates = s.findDuplicates(ctx, candidate)

		created, err := s.repo.Store(ctx, candidate)
		if err != nil {
			return err
		}
		if err := s.move(ctx, locks, userId, created.WalletId, created.SignedAmount()); err != nil {
			return err
		}
		if err := s.recalculate(ctx, created); err != nil {
			return err
		}
		s.publishAfterCommit(ctx, event_bus.TransactionCreated, created)
		result.Transaction = created
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	if len(result.PossibleDuplicates) > 0 {
		s.metrics.IncrDuplicateWarning()
		log.Infof("transaction %d has %d possible duplicate(s)", result.Transaction.Id, len(result.PossibleDuplicates))
	}
	return result, nil
}

func (s *ServiceImpl) UpdateTransaction(ctx context.Context, id int, in Input) (updated Transaction, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveLedgerOp("update", started, err) }()

	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := validateInput(in); err != nil {
		return Transaction{}, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		old, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if old.UserId != userId {
			return ErrNotOwner
		}

		next := newTransaction(userId, in)
		next.Id = old.Id
		next.CreatedAt = old.CreatedAt
		if in.OccurredAt.IsZero() {
			next.OccurredAt = old.OccurredAt
		}
		if err := s.checkCategory(ctx, userId, next); err != nil {
			return err
		}
		for _, walletId := range uniqueIds(old.WalletId, next.WalletId) {
			if err := s.requireAccess(ctx, walletId, userId, wallet.Editor); err != nil {
				return err
			}
		}

		locks, err := s.lock(ctx, old.WalletId, next.WalletId)
		if err != nil {
			return err
		}
		plan := balancePlan{}
		plan.add(old.WalletId, old.SignedAmount().Neg())
		plan.add(next.WalletId, next.SignedAmount())
		if err := s.checkFloor(locks, plan); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, next); err != nil {
			return err
		}
		// Reverse the old effect, then apply the new one.
		if err := s.move(ctx, locks, userId, old.WalletId, old.SignedAmount().Neg()); err != nil {
			return err
		}
		if err := s.move(ctx, locks, userId, next.WalletId, next.SignedAmount()); err != nil {
			return err
		}

		if err := s.recalculate(ctx, old); err != nil {
			return err
		}
		if old.CategoryId != next.CategoryId || !utils.DateOf(old.OccurredAt).Equal(utils.DateOf(next.OccurredAt)) || old.Type != next.Type {
			if err := s.recalculate(ctx, next); err != nil {
				return err
			}
		}
		s.publishAfterCommit(ctx, event_bus.TransactionUpdated, next)
		updated = next
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return updated, nil
}

func (s *ServiceImpl) DeleteTransaction(ctx context.Context, id int) (err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveLedgerOp("delete", started, err) }()

	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if existing.UserId != userId {
			return ErrNotOwner
		}
		if err := s.requireAccess(ctx, existing.WalletId, userId, wallet.Editor); err != nil {
			return err
		}

		locks, err := s.lock(ctx, existing.WalletId)
		if err != nil {
			return err
		}
		reversal := existing.SignedAmount().Neg()
		if err := s.checkFloor(locks, balancePlan{existing.WalletId: reversal}); err != nil {
			return err
		}

		deleted, err := s.repo.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrTransactionNotFound
		}
		if err := s.move(ctx, locks, userId, existing.WalletId, reversal); err != nil {
			return err
		}
		if err := s.recalculate(ctx, existing); err != nil {
			return err
		}
		s.publishAfterCommit(ctx, event_bus.TransactionDeleted, existing)
		return nil
	})
}

func (s *ServiceImpl) GetTransaction(ctx context.Context, id int) (Transaction, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get current user: %w", err)
	}
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if t.UserId != userId {
		if err := s.requireAccess(ctx, t.WalletId, userId, wallet.Viewer); err != nil {
			return Transaction{}, err
		}
	}
	return t, nil
}

// ListTransactions returns the wallet's transactions with from <= occurredAt < to, newest first.
// Zero bounds are open.
func (s *ServiceImpl) ListTransactions(ctx context.Context, walletId int, from, to time.Time) ([]Transaction, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.requireAccess(ctx, walletId, userId, wallet.Viewer); err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	if from.IsZero() {
		from = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return s.repo.ListByWallet(ctx, walletId, from, to)
}

// FindDuplicates runs the duplicate heuristic for a transaction that has not been stored.
func (s *ServiceImpl) FindDuplicates(ctx context.Context, in Input) ([]Transaction, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.clock.Now()
	}
	if err := s.requireAccess(ctx, in.WalletId, userId, wallet.Viewer); err != nil {
		return nil, err
	}
	return s.duplicates.Find(ctx, newTransaction(userId, in))
}

func newTransaction(userId int, in Input) Transaction {
	return Transaction{
		UserId:        userId,
		WalletId:      in.WalletId,
		CategoryId:    in.CategoryId,
		Type:          in.Type,
		Amount:        in.Amount,
		OccurredAt:    in.OccurredAt.UTC(),
		Note:          strings.TrimSpace(in.Note),
		AttachmentRef: strings.TrimSpace(in.AttachmentRef),
	}
}

func validateInput(in Input) error {
	if !in.Type.Valid() {
		return fmt.Errorf("type %q: %w", in.Type, ErrInvalidTransaction)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero: %w", ErrInvalidTransaction)
	}
	if in.Amount.Exponent() < -maxAmountScale && !in.Amount.Equal(in.Amount.Round(maxAmountScale)) {
		return fmt.Errorf("amount has more than %d decimal places: %w", maxAmountScale, ErrInvalidTransaction)
	}
	if in.WalletId <= 0 {
		return fmt.Errorf("wallet is required: %w", ErrInvalidTransaction)
	}
	if in.CategoryId <= 0 {
		return fmt.Errorf("category is required: %w", ErrInvalidTransaction)
	}
	return nil
}

func (s *ServiceImpl) checkCategory(ctx context.Context, userId int, t Transaction) error {
	c, err := s.categories.FindCategory(ctx, t.CategoryId, userId)
	if err != nil {
		return err
	}
	if c.IsTransfer {
		return fmt.Errorf("category %d: %w", c.Id, category.ErrTransferCategory)
	}
	if c.Type != t.Type {
		return fmt.Errorf("category %d is %s, transaction is %s: %w", c.Id, c.Type, t.Type, ErrCategoryTypeMismatch)
	}
	return nil
}

func (s *ServiceImpl) requireAccess(ctx context.Context, walletId int, userId int, min wallet.Permission) error {
	ok, err := s.wallets.HasWalletAccess(ctx, walletId, userId, min)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s required on wallet %d: %w", min, walletId, wallet.ErrAccessDenied)
	}
	return nil
}

// lockSet holds the wallets locked by the current unit of work with their running balance.
type lockSet map[int]wallet.Wallet

// lock takes row locks in ascending id order so concurrent units never deadlock.
func (s *ServiceImpl) lock(ctx context.Context, walletIds ...int) (lockSet, error) {
	locks := lockSet{}
	for _, id := range uniqueIds(walletIds...) {
		w, err := s.wallets.LockWallet(ctx, id)
		if err != nil {
			return nil, err
		}
		locks[id] = w
	}
	return locks, nil
}

func uniqueIds(ids ...int) []int {
	seen := map[int]bool{}
	var result []int
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	sort.Ints(result)
	return result
}

// balancePlan is the net delta per wallet of one mutation.
type balancePlan map[int]decimal.Decimal

func (p balancePlan) add(walletId int, delta decimal.Decimal) {
	p[walletId] = p[walletId].Add(delta)
}

// checkFloor rejects a plan that lowers any wallet below the floor. Raising a wallet that already
// sits below the floor is always allowed.
func (s *ServiceImpl) checkFloor(locks lockSet, plan balancePlan) error {
	for walletId, delta := range plan {
		if !delta.IsNegative() {
			continue
		}
		next := locks[walletId].Balance.Add(delta)
		if next.LessThan(s.opts.BalanceFloor) {
			return fmt.Errorf("wallet %d would reach %s: %w", walletId, next.String(), ErrBalanceFloor)
		}
	}
	return nil
}

func (s *ServiceImpl) move(ctx context.Context, locks lockSet, userId int, walletId int, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	balance, err := s.wallets.ApplyDelta(ctx, walletId, delta)
	if err != nil {
		return err
	}
	w := locks[walletId]
	w.Balance = balance
	locks[walletId] = w

	changed := event_bus.WalletBalanceChangedEvent{WalletId: walletId, UserId: userId, Delta: delta, Balance: balance}
	database.AfterCommit(ctx, func(ctx context.Context) {
		s.bus.PublishBestEffort(event_bus.NewEvent(ctx, event_bus.WalletBalanceChanged, changed))
	})
	return nil
}

func (s *ServiceImpl) recalculate(ctx context.Context, t Transaction) error {
	if s.budgets == nil || t.Type != Expense {
		return nil
	}
	return s.budgets.RecalculateForTransaction(ctx, t.UserId, t.CategoryId, t.OccurredAt)
}

func (s *ServiceImpl) findDuplicates(ctx context.Context, candidate Transaction) []Transaction {
	duplicates, err := s.duplicates.Find(ctx, candidate)
	if err != nil {
		log.Warnf("duplicate check failed for wallet %d: %v", candidate.WalletId, err)
		return nil
	}
	return duplicates
}

func (s *ServiceImpl) publishAfterCommit(ctx context.Context, eventType event_bus.EventType, t Transaction) {
	data := event_bus.TransactionChanged{
		Id:         t.Id,
		UserId:     t.UserId,
		WalletId:   t.WalletId,
		CategoryId: t.CategoryId,
		Type:       string(t.Type),
		Amount:     t.Amount,
		OccurredAt: t.OccurredAt,
		Note:       t.Note,
	}
	database.AfterCommit(ctx, func(ctx context.Context) {
		s.bus.PublishBestEffort(event_bus.NewEvent(ctx, eventType, data))
	})
}
