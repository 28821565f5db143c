package app

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/amqp"
	"github.com/walletwise/walletwise/internal/config"
	"github.com/walletwise/walletwise/internal/database"
	"github.com/walletwise/walletwise/internal/event_bus"
	"github.com/walletwise/walletwise/internal/metrics"
	"github.com/walletwise/walletwise/internal/utils"
	"github.com/walletwise/walletwise/pkg/budget"
	"github.com/walletwise/walletwise/pkg/category"
	"github.com/walletwise/walletwise/pkg/notification"
	"github.com/walletwise/walletwise/pkg/recurring"
	"github.com/walletwise/walletwise/pkg/transaction"
	"github.com/walletwise/walletwise/pkg/user"
	"github.com/walletwise/walletwise/pkg/wallet"
)

// Repositories groups the storage implementations so tests can swap in the in-memory stubs.
type Repositories struct {
	Users         user.Repo
	Wallets       wallet.Repository
	Categories    category.Repository
	Transactions  transaction.Repository
	Budgets       budget.BudgetRepo
	Rules         recurring.Repository
	Notifications notification.Repository
}

func PostgresRepositories(db *pgxpool.Pool) Repositories {
	return Repositories{
		Users:         user.NewUserRepo(db),
		Wallets:       wallet.NewRepository(db),
		Categories:    category.NewRepository(db),
		Transactions:  transaction.NewRepository(db),
		Budgets:       budget.NewBudgetRepo(db),
		Rules:         recurring.NewRepository(db),
		Notifications: notification.NewRepository(db),
	}
}

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	TxManager database.TxManager
	EventBus  *event_bus.EventBus
	Metrics   *metrics.Metrics
	Clock     utils.Clock

	UserService user.Service
	UserHandler *user.Handler

	WalletService *wallet.ServiceImpl
	WalletHandler *wallet.Handler

	CategoryService *category.ServiceImpl
	CategoryHandler *category.Handler

	BudgetService *budget.BudgetServiceImpl
	BudgetHandler *budget.BudgetHandler

	TransactionService *transaction.ServiceImpl
	TransactionHandler *transaction.Handler

	RecurringService *recurring.ServiceImpl
	RecurringHandler *recurring.Handler
	Materializer     *recurring.Materializer

	Mailer              notification.Mailer
	NotificationService *notification.ServiceImpl
	NotificationHandler *notification.Handler

	DailyJob *DailyJob
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(repos Repositories, tx database.TxManager, mailer notification.Mailer, clock utils.Clock, cfg config.Application) (*Dependencies, error) {
	ledgerOpts, err := ledgerOptions(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	budgetOpts, err := budgetOptions(cfg)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		TxManager: tx,
		EventBus:  event_bus.NewEventBus(),
		Clock:     clock,
		Mailer:    mailer,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.NewMetrics()
	}

	deps.UserService = user.NewUserService(repos.Users)
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.WalletService = wallet.NewService(repos.Wallets, tx)
	deps.WalletHandler = wallet.NewHandler(deps.WalletService)

	deps.CategoryService = category.NewService(repos.Categories)
	deps.CategoryHandler = category.NewHandler(deps.CategoryService)

	deps.BudgetService = budget.NewBudgetServiceImpl(repos.Budgets, repos.Transactions, deps.CategoryService, tx, deps.EventBus, deps.Metrics, budgetOpts)
	deps.BudgetHandler = budget.NewBudgetHandler(deps.BudgetService)

	deps.TransactionService = transaction.NewService(repos.Transactions, deps.WalletService, deps.CategoryService, deps.BudgetService,
		tx, deps.EventBus, clock, deps.Metrics, ledgerOpts)
	deps.TransactionHandler = transaction.NewHandler(deps.TransactionService)

	deps.RecurringService = recurring.NewService(repos.Rules, deps.WalletService, deps.CategoryService)
	deps.RecurringHandler = recurring.NewHandler(deps.RecurringService)
	deps.Materializer = recurring.NewMaterializer(repos.Rules, deps.TransactionService, deps.WalletService, tx, clock, deps.Metrics)

	deps.NotificationService = notification.NewService(repos.Notifications, mailer, deps.UserService, deps.CategoryService, repos.Wallets, clock, deps.Metrics)
	deps.NotificationService.Subscribe(deps.EventBus)
	deps.NotificationHandler = notification.NewHandler(deps.NotificationService)

	deps.DailyJob = NewDailyJob(deps.Materializer, deps.BudgetService, clock)

	return deps, nil
}

// NewMailer publishes through the mail queue when one is configured and only logs otherwise.
// The returned close function releases the broker connection.
func NewMailer(cfg config.Notifier) (notification.Mailer, func(), error) {
	if cfg.AMQP.Url == "" {
		log.Info("No mail queue configured, budget alert emails will only be logged")
		return &notification.LogMailer{}, func() {}, nil
	}
	client, err := amqp.NewClient(cfg.AMQP.Url, cfg.AMQP.Exchange, cfg.AMQP.Queue)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mail queue: %w", err)
	}
	mailer := notification.NewBreakerMailer(client, notification.BreakerSettings{
		MaxFailures: cfg.Breaker.MaxFailures,
		Timeout:     cfg.Breaker.Timeout,
	})
	return mailer, func() {
		if err := client.Close(); err != nil {
			log.Warnf("failed to close mail queue connection: %v", err)
		}
	}, nil
}

func ledgerOptions(cfg config.Ledger) (transaction.Options, error) {
	opts := transaction.DefaultOptions()
	floor, err := decimal.NewFromString(cfg.BalanceFloor)
	if err != nil {
		return opts, fmt.Errorf("invalid ledger.balancefloor %q: %w", cfg.BalanceFloor, err)
	}
	tolerance, err := decimal.NewFromString(cfg.DuplicateTolerance)
	if err != nil {
		return opts, fmt.Errorf("invalid ledger.duplicatetolerance %q: %w", cfg.DuplicateTolerance, err)
	}
	opts.BalanceFloor = floor
	opts.DuplicateTolerance = tolerance
	if cfg.DuplicateWindow > 0 {
		opts.DuplicateWindow = cfg.DuplicateWindow
	}
	if cfg.DuplicateLimit > 0 {
		opts.DuplicateLimit = cfg.DuplicateLimit
	}
	return opts, nil
}

func budgetOptions(cfg config.Application) (budget.Options, error) {
	threshold, err := decimal.NewFromString(cfg.Budget.AlertThreshold)
	if err != nil {
		return budget.Options{}, fmt.Errorf("invalid budget.alertthreshold %q: %w", cfg.Budget.AlertThreshold, err)
	}
	return budget.Options{DefaultAlertThreshold: threshold, Concurrency: cfg.Jobs.Concurrency}, nil
}
