package recurring

import (
	"context"
	"os"
	"testing"

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
	"github.com/walletwise/walletwise/pkg/wallet"
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

type repoFixture struct {
	ctx      context.Context
	db       *pgxpool.Pool
	repo     *RepositoryImpl
	userId   int
	walletId int
	rent     int
}

func setupTestRepository(t *testing.T) repoFixture {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		err := pgContainer.Restore(ctx)
		require.NoError(t, err)
	})

	userId := test_utils.InsertUser(t, ctx, db, "tenant")
	w, err := wallet.NewRepository(db).Store(ctx, userId, wallet.Wallet{Name: "Main", Currency: "USD"})
	require.NoError(t, err)
	rent, err := category.NewRepository(db).Store(ctx, userId, category.Category{Name: "Rent", Type: category.Expense})
	require.NoError(t, err)
	return repoFixture{ctx: ctx, db: db, repo: NewRepository(db), userId: userId, walletId: w.Id, rent: rent.Id}
}

func (f repoFixture) store(t *testing.T, next, end *int) Rule {
	rule := Rule{
		UserId:      f.userId,
		WalletId:    f.walletId,
		CategoryId:  f.rent,
		Type:        category.Expense,
		Amount:      decimal.RequireFromString("850.5"),
		Frequency:   Monthly,
		StartDate:   day(2024, 1, 31),
		NextRunDate: day(2024, 1, 31),
		Note:        "rent",
		Active:      true,
	}
	if next != nil {
		rule.NextRunDate = day(2024, 1, *next)
	}
	if end != nil {
		endDate := day(2024, 12, *end)
		rule.EndDate = &endDate
	}
	stored, err := f.repo.Store(f.ctx, rule)
	require.NoError(t, err)
	return stored
}

func TestRepositoryImpl_StoreAndGet(t *testing.T) {
	t.Run("should read back dates and optional end date", func(t *testing.T) {
		// given
		f := setupTestRepository(t)
		end := 31

		// when
		withEnd := f.store(t, nil, &end)
		openEnded := f.store(t, nil, nil)

		// then
		fetched, err := f.repo.Get(f.ctx, withEnd.Id)
		require.NoError(t, err)
		assert.Equal(t, Monthly, fetched.Frequency)
		assert.Equal(t, category.Expense, fetched.Type)
		assert.True(t, fetched.Amount.Equal(decimal.RequireFromString("850.50")))
		assert.True(t, fetched.StartDate.Equal(day(2024, 1, 31)))
		assert.True(t, fetched.NextRunDate.Equal(day(2024, 1, 31)))
		require.NotNil(t, fetched.EndDate)
		assert.True(t, fetched.EndDate.Equal(day(2024, 12, 31)))
		assert.True(t, fetched.Active)

		fetched, err = f.repo.Get(f.ctx, openEnded.Id)
		require.NoError(t, err)
		assert.Nil(t, fetched.EndDate)
	})

	t.Run("should return not found for unknown rule", func(t *testing.T) {
		f := setupTestRepository(t)

		_, err := f.repo.Get(f.ctx, 4242)

		assert.ErrorIs(t, err, ErrRuleNotFound)
	})
}

func TestRepositoryImpl_FindDue(t *testing.T) {
	// given
	f := setupTestRepository(t)
	ten, twenty := 10, 20
	dueEarly := f.store(t, &ten, nil)
	dueToday := f.store(t, &twenty, nil)
	inactive := f.store(t, &ten, nil)
	inactive.Active = false
	require.NoError(t, f.repo.UpdateSchedule(f.ctx, inactive))
	later := 25
	f.store(t, &later, nil)

	// when
	due, err := f.repo.FindDue(f.ctx, day(2024, 1, 20))

	// then
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, dueEarly.Id, due[0].Id)
	assert.Equal(t, dueToday.Id, due[1].Id)
}

func TestRepositoryImpl_UpdateSchedule(t *testing.T) {
	t.Run("should persist an advance that ends the rule", func(t *testing.T) {
		// given
		f := setupTestRepository(t)
		txm := database.NewTxManager(f.db)
		end := 31
		rule := f.store(t, nil, &end)

		// when
		err := txm.WithinTransaction(f.ctx, func(ctx context.Context) error {
			locked, err := f.repo.GetForUpdate(ctx, rule.Id)
			if err != nil {
				return err
			}
			locked.NextRunDate = day(2025, 1, 31)
			locked.Active = false
			return f.repo.UpdateSchedule(ctx, locked)
		})

		// then
		require.NoError(t, err)
		fetched, err := f.repo.Get(f.ctx, rule.Id)
		require.NoError(t, err)
		assert.True(t, fetched.NextRunDate.Equal(day(2025, 1, 31)))
		assert.False(t, fetched.Active)
	})

	t.Run("should report unknown rule", func(t *testing.T) {
		f := setupTestRepository(t)

		err := f.repo.UpdateSchedule(f.ctx, Rule{Id: 4242, NextRunDate: day(2024, 1, 1)})

		assert.ErrorIs(t, err, ErrRuleNotFound)
	})
}

func TestRepositoryImpl_DeleteAndList(t *testing.T) {
	// given
	f := setupTestRepository(t)
	otherId := test_utils.InsertUser(t, f.ctx, f.db, "stranger")
	ten := 10
	first := f.store(t, &ten, nil)
	second := f.store(t, nil, nil)

	// when
	foreign, err := f.repo.Delete(f.ctx, otherId, first.Id)
	require.NoError(t, err)
	deleted, err := f.repo.Delete(f.ctx, f.userId, first.Id)
	require.NoError(t, err)

	// then
	assert.False(t, foreign)
	assert.True(t, deleted)
	listed, err := f.repo.ListByUser(f.ctx, f.userId)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, second.Id, listed[0].Id)
}
