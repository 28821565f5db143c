package budget

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/walletwise/walletwise/internal/database"
	"github.com/walletwise/walletwise/internal/test_utils"
	"github.com/walletwise/walletwise/pkg/category"
)

var pgContainer *postgres.PostgresContainer
var openDb func() *pgxpool.Pool

func TestMain(m *testing.M) {
	pgContainer, openDb = test_utils.TestWithDB()
	defer func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			log.Errorf("failed to terminate container: %s", err)
		}
	}()
	code := m.Run()
	os.Exit(code)
}

func setupBudgetRepo(t *testing.T) (context.Context, *pgxpool.Pool, *BudgetRepoImpl, int, int) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		err := pgContainer.Restore(ctx)
		require.NoError(t, err)
	})
	userId := test_utils.InsertUser(t, ctx, db, "budget_user")
	food, err := category.NewRepository(db).Store(ctx, userId, category.Category{Name: "Food", Type: category.Expense})
	require.NoError(t, err)
	return ctx, db, NewBudgetRepo(db), userId, food.Id
}

func januaryBudget(userId, categoryId int) Budget {
	return Budget{
		UserId:         userId,
		CategoryId:     categoryId,
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Period:         PeriodMonthly,
		LimitAmount:    decimal.NewFromInt(1_000_000),
		UsedAmount:     decimal.Zero,
		AlertThreshold: decimal.RequireFromString("0.8"),
	}
}

func TestBudgetRepoImpl_StoreAndGet(t *testing.T) {
	// given
	ctx, _, repo, userId, categoryId := setupBudgetRepo(t)

	// when
	stored, err := repo.Store(ctx, januaryBudget(userId, categoryId))

	// then
	require.NoError(t, err)
	fetched, err := repo.Get(ctx, stored.Id)
	require.NoError(t, err)
	assert.Equal(t, PeriodMonthly, fetched.Period)
	assert.True(t, decimal.NewFromInt(1_000_000).Equal(fetched.LimitAmount))
	assert.True(t, decimal.RequireFromString("0.8").Equal(fetched.AlertThreshold))
	assert.Equal(t, AlertFlags{}, fetched.Alerts)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), fetched.EndDate.UTC())

	_, err = repo.Get(ctx, stored.Id+100)
	assert.ErrorIs(t, err, ErrBudgetNotFound)
}

func TestBudgetRepoImpl_UpdateUsage(t *testing.T) {
	// given
	ctx, _, repo, userId, categoryId := setupBudgetRepo(t)
	stored, err := repo.Store(ctx, januaryBudget(userId, categoryId))
	require.NoError(t, err)

	// when
	stored.UsedAmount = decimal.NewFromInt(960_000)
	stored.Alerts = AlertFlags{Sent95: true}
	err = repo.UpdateUsage(ctx, stored)

	// then
	require.NoError(t, err)
	fetched, err := repo.Get(ctx, stored.Id)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(960_000).Equal(fetched.UsedAmount))
	assert.Equal(t, AlertFlags{Sent95: true}, fetched.Alerts)
}

func TestBudgetRepoImpl_FindCovering(t *testing.T) {
	// given
	ctx, db, repo, userId, categoryId := setupBudgetRepo(t)
	january, err := repo.Store(ctx, januaryBudget(userId, categoryId))
	require.NoError(t, err)
	february := januaryBudget(userId, categoryId)
	february.StartDate = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	february.EndDate = time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	_, err = repo.Store(ctx, february)
	require.NoError(t, err)

	t.Run("end date is inclusive", func(t *testing.T) {
		budgets, err := repo.FindCovering(ctx, userId, categoryId, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.Len(t, budgets, 1)
		assert.Equal(t, january.Id, budgets[0].Id)
	})

	t.Run("locks rows inside a transaction", func(t *testing.T) {
		txm := database.NewTxManager(db)
		var found []Budget
		err := txm.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			found, err = repo.FindCovering(ctx, userId, categoryId, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
			return err
		})
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("nothing covers a day outside every window", func(t *testing.T) {
		budgets, err := repo.FindCovering(ctx, userId, categoryId, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Empty(t, budgets)
	})
}

func TestBudgetRepoImpl_GetForUpdateRequiresTransaction(t *testing.T) {
	ctx, db, repo, userId, categoryId := setupBudgetRepo(t)
	stored, err := repo.Store(ctx, januaryBudget(userId, categoryId))
	require.NoError(t, err)

	_, err = repo.GetForUpdate(ctx, stored.Id)
	assert.Error(t, err)

	rollback := errors.New("rollback")
	err = database.NewTxManager(db).WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := repo.GetForUpdate(ctx, stored.Id)
		require.NoError(t, err)
		assert.Equal(t, stored.Id, locked.Id)
		return rollback
	})
	assert.ErrorIs(t, err, rollback)
}

func TestBudgetRepoImpl_Delete(t *testing.T) {
	ctx, _, repo, userId, categoryId := setupBudgetRepo(t)
	stored, err := repo.Store(ctx, januaryBudget(userId, categoryId))
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, userId+1, stored.Id)
	require.NoError(t, err)
	assert.False(t, deleted, "other users cannot delete")

	deleted, err = repo.Delete(ctx, userId, stored.Id)
	require.NoError(t, err)
	assert.True(t, deleted)
}
