package recurring

import (
	"context"
	"fmt"
	"strings"

	"github.com/walletwise/walletwise/internal/apperr"
	"github.com/walletwise/walletwise/internal/utils"
	"github.com/walletwise/walletwise/pkg/category"
	"github.com/walletwise/walletwise/pkg/user"
	"github.com/walletwise/walletwise/pkg/wallet"
)

var ErrRuleNotFound = fmt.Errorf("recurring rule %w", apperr.ErrNotFound)
var ErrInvalidRule = fmt.Errorf("invalid recurring rule: %w", apperr.ErrValidation)

type WalletAccess interface {
	HasWalletAccess(ctx context.Context, walletId int, userId int, min wallet.Permission) (bool, error)
}

type CategoryLookup interface {
	FindCategory(ctx context.Context, id int, userId int) (category.Category, error)
}

type Service interface {
	CreateRule(ctx context.Context, rule Rule) (Rule, error)
	GetRule(ctx context.Context, id int) (Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
	DeactivateRule(ctx context.Context, id int) (Rule, error)
	DeleteRule(ctx context.Context, id int) (bool, error)
}

type ServiceImpl struct {
	repo       Repository
	wallets    WalletAccess
	categories CategoryLookup
}

func NewService(repo Repository, wallets WalletAccess, categories CategoryLookup) *ServiceImpl {
	return &ServiceImpl{repo: repo, wallets: wallets, categories: categories}
}

func (s *ServiceImpl) CreateRule(ctx context.Context, rule Rule) (Rule, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if !rule.Amount.IsPositive() {
		return Rule{}, fmt.Errorf("amount must be greater than zero: %w", ErrInvalidRule)
	}
	if !rule.Type.Valid() {
		return Rule{}, fmt.Errorf("type %q: %w", rule.Type, ErrInvalidRule)
	}
	if !rule.Frequency.Valid() {
		return Rule{}, fmt.Errorf("frequency %q: %w", rule.Frequency, ErrInvalidRule)
	}
	if rule.StartDate.IsZero() {
		return Rule{}, fmt.Errorf("start date is required: %w", ErrInvalidRule)
	}
	rule.StartDate = utils.DateOf(rule.StartDate)
	if rule.EndDate != nil {
		end := utils.DateOf(*rule.EndDate)
		if end.Before(rule.StartDate) {
			return Rule{}, fmt.Errorf("end date is before start date: %w", ErrInvalidRule)
		}
		rule.EndDate = &end
	}

	ok, err := s.wallets.HasWalletAccess(ctx, rule.WalletId, userId, wallet.Editor)
	if err != nil {
		return Rule{}, err
	}
	if !ok {
		return Rule{}, fmt.Errorf("EDITOR required on wallet %d: %w", rule.WalletId, wallet.ErrAccessDenied)
	}
	c, err := s.categories.FindCategory(ctx, rule.CategoryId, userId)
	if err != nil {
		return Rule{}, err
	}
	if c.IsTransfer {
		return Rule{}, fmt.Errorf("category %d: %w", c.Id, category.ErrTransferCategory)
	}
	if c.Type != rule.Type {
		return Rule{}, fmt.Errorf("category %d is %s: %w", c.Id, c.Type, ErrInvalidRule)
	}

	rule.UserId = userId
	rule.Note = strings.TrimSpace(rule.Note)
	rule.NextRunDate = rule.StartDate
	rule.Active = true
	return s.repo.Store(ctx, rule)
}

func (s *ServiceImpl) GetRule(ctx context.Context, id int) (Rule, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to get current user: %w", err)
	}
	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		return Rule{}, err
	}
	if rule.UserId != userId {
		return Rule{}, ErrRuleNotFound
	}
	return rule, nil
}

func (s *ServiceImpl) ListRules(ctx context.Context) ([]Rule, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListByUser(ctx, userId)
}

func (s *ServiceImpl) DeactivateRule(ctx context.Context, id int) (Rule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return Rule{}, err
	}
	rule.Active = false
	if err := s.repo.UpdateSchedule(ctx, rule); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func (s *ServiceImpl) DeleteRule(ctx context.Context, id int) (bool, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Delete(ctx, userId, id)
}
