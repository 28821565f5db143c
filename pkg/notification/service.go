package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/amqp"
	"github.com/walletwise/walletwise/internal/event_bus"
	"github.com/walletwise/walletwise/internal/metrics"
	"github.com/walletwise/walletwise/internal/utils"
	"github.com/walletwise/walletwise/pkg/category"
	"github.com/walletwise/walletwise/pkg/user"
	"github.com/walletwise/walletwise/pkg/wallet"
)

const listLimit = 100

type UserLookup interface {
	GetUser(ctx context.Context, id int) (user.User, error)
}

type CategoryLookup interface {
	FindCategory(ctx context.Context, id int, userId int) (category.Category, error)
}

type WalletLookup interface {
	Get(ctx context.Context, id int) (wallet.Wallet, error)
}

type Service interface {
	// Notify stores an in-app notification. Failures are logged, never returned.
	Notify(ctx context.Context, userId int, title, message string, relatedId *int, relatedType EntityType)
	SendBudgetAlertEmail(ctx context.Context, userId int, categoryId int, alert event_bus.BudgetThresholdCrossedEvent)
	List(ctx context.Context) ([]Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) (bool, error)
}

type ServiceImpl struct {
	repo       Repository
	mailer     Mailer
	users      UserLookup
	categories CategoryLookup
	wallets    WalletLookup
	clock      utils.Clock
	metrics    *metrics.Metrics
}

func NewService(repo Repository, mailer Mailer, users UserLookup, categories CategoryLookup, wallets WalletLookup, clock utils.Clock, m *metrics.Metrics) *ServiceImpl {
	return &ServiceImpl{
		repo:       repo,
		mailer:     mailer,
		users:      users,
		categories: categories,
		wallets:    wallets,
		clock:      clock,
		metrics:    m,
	}
}

// Subscribe wires the service to the domain events it reacts on. Handlers never return errors, so a
// delivery problem never reaches the publisher.
func (s *ServiceImpl) Subscribe(bus *event_bus.EventBus) {
	event_bus.SubscribeTyped[event_bus.BudgetThresholdCrossedEvent](bus, event_bus.BudgetThresholdCrossed,
		func(e event_bus.EventT[event_bus.BudgetThresholdCrossedEvent]) error {
			s.onBudgetThresholdCrossed(e.Context(), e.Data)
			return nil
		})
	event_bus.SubscribeTyped[event_bus.TransactionChanged](bus, event_bus.TransactionCreated,
		func(e event_bus.EventT[event_bus.TransactionChanged]) error {
			s.onTransactionCreated(e.Context(), e.Data)
			return nil
		})
}

func (s *ServiceImpl) Notify(ctx context.Context, userId int, title, message string, relatedId *int, relatedType EntityType) {
	n := Notification{
		Id:                uuid.New(),
		UserId:            userId,
		Title:             title,
		Message:           message,
		RelatedEntityId:   relatedId,
		RelatedEntityType: relatedType,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.repo.Store(ctx, n); err != nil {
		log.Warnf("in-app notification for user %d dropped: %v", userId, err)
		s.metrics.IncrNotifyFailure("in_app")
	}
}

func (s *ServiceImpl) SendBudgetAlertEmail(ctx context.Context, userId int, categoryId int, alert event_bus.BudgetThresholdCrossedEvent) {
	recipient, err := s.users.GetUser(ctx, userId)
	if err != nil {
		log.Warnf("budget alert email for user %d dropped: %v", userId, err)
		s.metrics.IncrNotifyFailure("email")
		return
	}
	if recipient.Email == "" {
		log.Debugf("user %d has no email address, budget alert email skipped", userId)
		return
	}
	categoryName := s.categoryName(ctx, categoryId, userId)
	msg := amqp.NewBudgetAlertEmailMessage(recipient.Email, recipient.DisplayName, categoryName, alert.Percentage, alert.Used, alert.Limit)
	if err := s.mailer.SendBudgetAlertEmail(ctx, msg); err != nil {
		log.Warnf("budget alert email for user %d failed: %v", userId, err)
		s.metrics.IncrNotifyFailure("email")
	}
}

func (s *ServiceImpl) List(ctx context.Context) ([]Notification, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListByUser(ctx, userId, listLimit)
}

func (s *ServiceImpl) MarkRead(ctx context.Context, id uuid.UUID) (bool, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.MarkRead(ctx, userId, id)
}

func (s *ServiceImpl) onBudgetThresholdCrossed(ctx context.Context, alert event_bus.BudgetThresholdCrossedEvent) {
	categoryName := s.categoryName(ctx, alert.CategoryId, alert.UserId)
	budgetId := alert.BudgetId
	s.Notify(ctx, alert.UserId,
		budgetAlertTitle(alert.Threshold),
		fmt.Sprintf("You have used %s%% of your %s budget (%s of %s).",
			alert.Percentage.StringFixed(0), categoryName, alert.Used.StringFixed(2), alert.Limit.StringFixed(2)),
		&budgetId, EntityBudget)
	s.SendBudgetAlertEmail(ctx, alert.UserId, alert.CategoryId, alert)
}

// onTransactionCreated tells a wallet owner about activity of other users on a shared wallet.
func (s *ServiceImpl) onTransactionCreated(ctx context.Context, t event_bus.TransactionChanged) {
	w, err := s.wallets.Get(ctx, t.WalletId)
	if err != nil {
		log.Warnf("no notification for transaction %d: %v", t.Id, err)
		return
	}
	if w.UserId == t.UserId {
		return
	}
	transactionId := t.Id
	s.Notify(ctx, w.UserId,
		"New activity on "+w.Name,
		fmt.Sprintf("A shared user recorded an %s of %s.", strings.ToLower(t.Type), t.Amount.StringFixed(2)),
		&transactionId, EntityTransaction)
}

func (s *ServiceImpl) categoryName(ctx context.Context, categoryId int, userId int) string {
	c, err := s.categories.FindCategory(ctx, categoryId, userId)
	if err != nil {
		log.Debugf("category %d name unavailable: %v", categoryId, err)
		return "category"
	}
	return c.Name
}

func budgetAlertTitle(threshold int) string {
	switch {
	case threshold >= 100:
		return "Budget exceeded"
	case threshold >= 95:
		return "Budget almost exhausted"
	case threshold >= 80:
		return "Budget running low"
	default:
		return "Half of budget used"
	}
}
