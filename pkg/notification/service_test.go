package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletwise/walletwise/internal/amqp"
	"github.com/walletwise/walletwise/internal/event_bus"
	"github.com/walletwise/walletwise/internal/metrics"
	"github.com/walletwise/walletwise/internal/utils"
	"github.com/walletwise/walletwise/pkg/category"
	"github.com/walletwise/walletwise/pkg/user"
	"github.com/walletwise/walletwise/pkg/wallet"
)

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) PublishBudgetAlertEmail(ctx context.Context, msg *amqp.BudgetAlertEmailMessage) error {
	p.calls++
	return errors.New("broker unreachable")
}

type fixture struct {
	service  *ServiceImpl
	repo     *RepositoryStub
	mailer   *LogMailer
	bus      *event_bus.EventBus
	owner    user.User
	guest    user.User
	food     category.Category
	shared   wallet.Wallet
	wallets  *wallet.RepositoryStub
	clockNow time.Time
}

func setup(t *testing.T, mailer Mailer) *fixture {
	background := context.Background()
	users := user.NewStubUserRepository()
	ownerId, err := users.CreateUser(background, user.User{Username: "alice", DisplayName: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	guestId, err := users.CreateUser(background, user.User{Username: "bob", DisplayName: "Bob"})
	require.NoError(t, err)

	categories := category.NewRepositoryStub()
	food, err := categories.Store(background, ownerId, category.Category{Name: "Food", Type: category.Expense})
	require.NoError(t, err)
	wallets := wallet.NewRepositoryStub()
	shared, err := wallets.Store(background, ownerId, wallet.Wallet{Name: "Household", Currency: "USD"})
	require.NoError(t, err)

	f := &fixture{
		repo:     NewRepositoryStub(),
		mailer:   &LogMailer{},
		bus:      event_bus.NewEventBus(),
		owner:    user.User{Id: ownerId},
		guest:    user.User{Id: guestId},
		food:     food,
		shared:   shared,
		wallets:  wallets,
		clockNow: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC),
	}
	if mailer == nil {
		mailer = f.mailer
	}
	clock := &utils.MockClock{}
	clock.SetNow(f.clockNow)
	f.service = NewService(f.repo, mailer, user.NewUserService(users), category.NewService(categories), wallets, clock, metrics.NewMetrics())
	f.service.Subscribe(f.bus)
	return f
}

func (f *fixture) alert(threshold int) event_bus.Event {
	return event_bus.NewEvent(context.Background(), event_bus.BudgetThresholdCrossed, event_bus.BudgetThresholdCrossedEvent{
		BudgetId:   7,
		UserId:     f.owner.Id,
		CategoryId: f.food.Id,
		Level:      "danger",
		Threshold:  threshold,
		Percentage: decimal.NewFromInt(96),
		Used:       decimal.NewFromInt(960_000),
		Limit:      decimal.NewFromInt(1_000_000),
	})
}

func TestServiceImpl_BudgetThresholdCrossed(t *testing.T) {
	t.Run("stores an in-app notification and sends an email", func(t *testing.T) {
		// given
		f := setup(t, nil)

		// when
		err := f.bus.Publish(f.alert(95))

		// then
		require.NoError(t, err)
		notifications, err := f.repo.ListByUser(context.Background(), f.owner.Id, 10)
		require.NoError(t, err)
		require.Len(t, notifications, 1)
		assert.Equal(t, "Budget almost exhausted", notifications[0].Title)
		assert.Contains(t, notifications[0].Message, "96% of your Food budget")
		assert.Equal(t, EntityBudget, notifications[0].RelatedEntityType)
		assert.Equal(t, 7, *notifications[0].RelatedEntityId)
		assert.Equal(t, f.clockNow, notifications[0].CreatedAt)

		require.Equal(t, 1, f.mailer.Count())
		assert.Equal(t, "alice@example.com", f.mailer.Sent[0].UserEmail)
		assert.Equal(t, "Food", f.mailer.Sent[0].CategoryName)
	})

	t.Run("delivery failures are swallowed", func(t *testing.T) {
		// given
		publisher := &failingPublisher{}
		f := setup(t, NewBreakerMailer(publisher, BreakerSettings{MaxFailures: 5, Timeout: time.Minute}))
		f.repo.Err = errors.New("database down")

		// when
		err := f.bus.Publish(f.alert(100))

		// then
		assert.NoError(t, err)
		assert.Equal(t, 1, publisher.calls)
	})
}

func TestServiceImpl_TransactionCreated(t *testing.T) {
	t.Run("notifies the owner about activity of a shared user", func(t *testing.T) {
		f := setup(t, nil)

		err := f.bus.Publish(event_bus.NewEvent(context.Background(), event_bus.TransactionCreated, event_bus.TransactionChanged{
			Id: 3, UserId: f.guest.Id, WalletId: f.shared.Id, Type: "EXPENSE", Amount: decimal.RequireFromString("12.5"),
		}))

		require.NoError(t, err)
		notifications, err := f.repo.ListByUser(context.Background(), f.owner.Id, 10)
		require.NoError(t, err)
		require.Len(t, notifications, 1)
		assert.Equal(t, "New activity on Household", notifications[0].Title)
		assert.Equal(t, "A shared user recorded an expense of 12.50.", notifications[0].Message)
	})

	t.Run("stays quiet for the owner's own transactions", func(t *testing.T) {
		f := setup(t, nil)

		err := f.bus.Publish(event_bus.NewEvent(context.Background(), event_bus.TransactionCreated, event_bus.TransactionChanged{
			Id: 3, UserId: f.owner.Id, WalletId: f.shared.Id, Type: "EXPENSE", Amount: decimal.NewFromInt(1),
		}))

		require.NoError(t, err)
		notifications, err := f.repo.ListByUser(context.Background(), f.owner.Id, 10)
		require.NoError(t, err)
		assert.Empty(t, notifications)
	})
}

func TestServiceImpl_ListAndMarkRead(t *testing.T) {
	f := setup(t, nil)
	require.NoError(t, f.bus.Publish(f.alert(50)))
	ctx := user.WithId(context.Background(), f.owner.Id)

	notifications, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	ok, err := f.service.MarkRead(user.WithId(context.Background(), f.guest.Id), notifications[0].Id)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.service.MarkRead(ctx, notifications[0].Id)
	require.NoError(t, err)
	assert.True(t, ok)
	notifications, err = f.service.List(ctx)
	require.NoError(t, err)
	assert.True(t, notifications[0].Read)
}

func TestBreakerMailer(t *testing.T) {
	// given
	publisher := &failingPublisher{}
	mailer := NewBreakerMailer(publisher, BreakerSettings{MaxFailures: 2, Timeout: time.Minute})
	msg := amqp.NewBudgetAlertEmailMessage("a@example.com", "A", "Food", decimal.NewFromInt(50), decimal.NewFromInt(5), decimal.NewFromInt(10))

	// when
	first := mailer.SendBudgetAlertEmail(context.Background(), msg)
	second := mailer.SendBudgetAlertEmail(context.Background(), msg)
	third := mailer.SendBudgetAlertEmail(context.Background(), msg)

	// then
	assert.Error(t, first)
	assert.Error(t, second)
	assert.ErrorIs(t, third, gobreaker.ErrOpenState)
	assert.Equal(t, 2, publisher.calls)
	assert.Equal(t, gobreaker.StateOpen, mailer.State())
}
