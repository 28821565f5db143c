package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletwise/walletwise/internal/config"
	"github.com/walletwise/walletwise/internal/database"
	"github.com/walletwise/walletwise/internal/utils"
	"github.com/walletwise/walletwise/pkg/budget"
	"github.com/walletwise/walletwise/pkg/category"
	"github.com/walletwise/walletwise/pkg/notification"
	"github.com/walletwise/walletwise/pkg/recurring"
	"github.com/walletwise/walletwise/pkg/transaction"
	"github.com/walletwise/walletwise/pkg/user"
	"github.com/walletwise/walletwise/pkg/wallet"
)

type testApp struct {
	router *mux.Router
	mailer *notification.LogMailer
	clock  *utils.MockClock
	uid    string
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	users := user.NewStubUserRepository()
	_, err := users.CreateUser(context.Background(), user.User{Uid: "alice-uid", Username: "alice", DisplayName: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)

	repos := Repositories{
		Users:         users,
		Wallets:       wallet.NewRepositoryStub(),
		Categories:    category.NewRepositoryStub(),
		Transactions:  transaction.NewRepositoryStub(),
		Budgets:       budget.NewStubBudgetRepo(),
		Rules:         recurring.NewRepositoryStub(),
		Notifications: notification.NewRepositoryStub(),
	}
	txm := database.NewStubTxManager(
		repos.Wallets.(database.Snapshotter),
		repos.Categories.(database.Snapshotter),
		repos.Transactions.(database.Snapshotter),
		repos.Budgets.(database.Snapshotter),
		repos.Rules.(database.Snapshotter),
	)
	clock := &utils.MockClock{}
	clock.SetNow(time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC))
	mailer := &notification.LogMailer{}

	deps, err := BuildDependencies(repos, txm, mailer, clock, config.Defaults())
	require.NoError(t, err)

	r := mux.NewRouter()
	SetupMiddleware(r, deps)
	RegisterRoutes(r, deps)
	return &testApp{router: r, mailer: mailer, clock: clock, uid: "alice-uid"}
}

func (a *testApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("X-User-Id", a.uid)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) create(t *testing.T, path string, body any) int {
	t.Helper()
	rec := a.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Id int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created.Id
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLedgerFlow(t *testing.T) {
	// given
	a := setupApp(t)
	walletId := a.create(t, "/api/wallets", wallet.WalletDTO{Name: "Main", Currency: "USD"})
	food := a.create(t, "/api/categories", category.CategoryDTO{Name: "Food", Type: "EXPENSE"})
	salary := a.create(t, "/api/categories", category.CategoryDTO{Name: "Salary", Type: "INCOME"})
	budgetId := a.create(t, "/api/budgets", budget.BudgetDTO{
		CategoryId:  food,
		StartDate:   "2024-01-01",
		EndDate:     "2024-01-31",
		LimitAmount: decimal.NewFromInt(100),
	})

	// when
	rec := a.do(t, http.MethodPost, "/api/transactions", transaction.TransactionDTO{
		WalletId: walletId, CategoryId: salary, Type: "INCOME", Amount: decimal.NewFromInt(1000),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	occurredAt := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	rec = a.do(t, http.MethodPost, "/api/transactions", transaction.TransactionDTO{
		WalletId: walletId, CategoryId: food, Type: "EXPENSE", Amount: decimal.NewFromInt(96), OccurredAt: &occurredAt,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// then
	w := decode[wallet.WalletDTO](t, a.do(t, http.MethodGet, fmt.Sprintf("/api/wallets/%d", walletId), nil))
	assert.True(t, decimal.NewFromInt(904).Equal(w.Balance), "balance %s", w.Balance)

	b := decode[budget.BudgetDTO](t, a.do(t, http.MethodGet, fmt.Sprintf("/api/budgets/%d", budgetId), nil))
	assert.True(t, decimal.NewFromInt(96).Equal(b.UsedAmount))
	assert.True(t, b.AlertSent95)
	assert.False(t, b.AlertSent50)
	assert.Equal(t, "MONTHLY", b.Period)

	notifications := decode[[]notification.NotificationDTO](t, a.do(t, http.MethodGet, "/api/notifications", nil))
	require.Len(t, notifications, 1)
	assert.Equal(t, "Budget almost exhausted", notifications[0].Title)
	assert.Equal(t, 1, a.mailer.Count())

	listed := decode[[]transaction.TransactionDTO](t,
		a.do(t, http.MethodGet, fmt.Sprintf("/api/wallets/%d/transactions?from=2024-01-01&to=2024-01-31", walletId), nil))
	assert.Len(t, listed, 2)

	metricsRec := a.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), "walletwise_budget_alerts_total")
}

func TestLedgerFlow_RejectsBalanceBelowFloor(t *testing.T) {
	a := setupApp(t)
	walletId := a.create(t, "/api/wallets", wallet.WalletDTO{Name: "Main", Currency: "USD"})
	food := a.create(t, "/api/categories", category.CategoryDTO{Name: "Food", Type: "EXPENSE"})

	rec := a.do(t, http.MethodPost, "/api/transactions", transaction.TransactionDTO{
		WalletId: walletId, CategoryId: food, Type: "EXPENSE", Amount: decimal.NewFromInt(10_000_001),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	w := decode[wallet.WalletDTO](t, a.do(t, http.MethodGet, fmt.Sprintf("/api/wallets/%d", walletId), nil))
	assert.True(t, w.Balance.IsZero())
}

func TestMiddleware_UnknownUser(t *testing.T) {
	a := setupApp(t)
	a.uid = "nobody"

	rec := a.do(t, http.MethodGet, "/api/wallets", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDailyJob_Endpoint(t *testing.T) {
	// given
	a := setupApp(t)
	walletId := a.create(t, "/api/wallets", wallet.WalletDTO{Name: "Main", Currency: "USD"})
	salary := a.create(t, "/api/categories", category.CategoryDTO{Name: "Salary", Type: "INCOME"})
	ruleId := a.create(t, "/api/recurring", recurring.RuleDTO{
		WalletId: walletId, CategoryId: salary, Type: "INCOME", Amount: decimal.NewFromInt(2500),
		Frequency: "MONTHLY", StartDate: "2024-01-20",
	})

	// when
	rec := a.do(t, http.MethodPost, "/api/jobs/daily", nil)

	// then
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[DailyJobSummary](t, rec)
	assert.Equal(t, 1, summary.Recurring.Created)
	w := decode[wallet.WalletDTO](t, a.do(t, http.MethodGet, fmt.Sprintf("/api/wallets/%d", walletId), nil))
	assert.True(t, decimal.NewFromInt(2500).Equal(w.Balance))
	rule := decode[recurring.RuleDTO](t, a.do(t, http.MethodGet, fmt.Sprintf("/api/recurring/%d", ruleId), nil))
	assert.Equal(t, "2024-02-20", rule.NextRunDate)

	// a second run on the same day finds nothing due
	rec = a.do(t, http.MethodPost, "/api/jobs/daily", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[DailyJobSummary](t, rec).Recurring.Created)
}
