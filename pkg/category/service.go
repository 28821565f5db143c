package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/walletwise/walletwise/internal/apperr"
	"github.com/walletwise/walletwise/pkg/user"
)

var ErrCategoryNotFound = fmt.Errorf("category %w", apperr.ErrNotFound)
var ErrInvalidCategory = fmt.Errorf("invalid category: %w", apperr.ErrValidation)
var ErrTransferCategory = fmt.Errorf("category is reserved for transfers: %w", apperr.ErrValidation)

type Service interface {
	// FindCategory returns the category only when it belongs to userId.
	FindCategory(ctx context.Context, id int, userId int) (Category, error)
	GetOrCreateTransferCategory(ctx context.Context, userId int, categoryType Type) (Category, error)
	CreateCategory(ctx context.Context, category Category) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

type ServiceImpl struct {
	repo Repository
}

func NewService(repo Repository) *ServiceImpl {
	return &ServiceImpl{repo: repo}
}

func (s *ServiceImpl) FindCategory(ctx context.Context, id int, userId int) (Category, error) {
	return s.repo.Get(ctx, userId, id)
}

func (s *ServiceImpl) GetOrCreateTransferCategory(ctx context.Context, userId int, categoryType Type) (Category, error) {
	if !categoryType.Valid() {
		return Category{}, fmt.Errorf("transfer category type %q: %w", categoryType, ErrInvalidCategory)
	}
	return s.repo.EnsureTransfer(ctx, userId, categoryType)
}

func (s *ServiceImpl) CreateCategory(ctx context.Context, category Category) (Category, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Category{}, fmt.Errorf("failed to get current user: %w", err)
	}
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return Category{}, fmt.Errorf("name is required: %w", ErrInvalidCategory)
	}
	if !category.Type.Valid() {
		return Category{}, fmt.Errorf("type %q: %w", category.Type, ErrInvalidCategory)
	}
	// transfer categories are provisioned by the ledger only
	category.IsTransfer = false
	return s.repo.Store(ctx, userId, category)
}

func (s *ServiceImpl) ListCategories(ctx context.Context) ([]Category, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.List(ctx, userId)
}
