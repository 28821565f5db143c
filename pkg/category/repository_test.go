package category

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/walletwise/walletwise/internal/database"
	"github.com/walletwise/walletwise/internal/test_utils"
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

func setupTestRepository(t *testing.T) (context.Context, *pgxpool.Pool, *RepositoryImpl) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		err := pgContainer.Restore(ctx)
		require.NoError(t, err)
	})
	return ctx, db, NewRepository(db)
}

func TestRepositoryImpl_StoreGetList(t *testing.T) {
	t.Run("should scope categories to their owner", func(t *testing.T) {
		// given
		ctx, db, repo := setupTestRepository(t)
		userId := test_utils.InsertUser(t, ctx, db, "alice")
		otherId := test_utils.InsertUser(t, ctx, db, "bob")

		// when
		rent, err := repo.Store(ctx, userId, Category{Name: "Rent", Type: Expense})
		require.NoError(t, err)
		_, err = repo.Store(ctx, userId, Category{Name: "Salary", Type: Income})
		require.NoError(t, err)

		// then
		fetched, err := repo.Get(ctx, userId, rent.Id)
		require.NoError(t, err)
		assert.Equal(t, Category{Id: rent.Id, UserId: userId, Name: "Rent", Type: Expense}, fetched)
		_, err = repo.Get(ctx, otherId, rent.Id)
		assert.ErrorIs(t, err, ErrCategoryNotFound)

		listed, err := repo.List(ctx, userId)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, Expense, listed[0].Type)
		assert.Equal(t, Income, listed[1].Type)
		empty, err := repo.List(ctx, otherId)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestRepositoryImpl_EnsureTransfer(t *testing.T) {
	t.Run("should return the same category on repeated calls", func(t *testing.T) {
		// given
		ctx, db, repo := setupTestRepository(t)
		userId := test_utils.InsertUser(t, ctx, db, "alice")

		// when
		first, err := repo.EnsureTransfer(ctx, userId, Expense)
		require.NoError(t, err)
		second, err := repo.EnsureTransfer(ctx, userId, Expense)
		require.NoError(t, err)
		income, err := repo.EnsureTransfer(ctx, userId, Income)
		require.NoError(t, err)

		// then
		assert.Equal(t, first, second)
		assert.True(t, first.IsTransfer)
		assert.Equal(t, Expense, first.Type)
		assert.NotEqual(t, first.Id, income.Id)
		assert.Equal(t, Income, income.Type)
	})

	t.Run("should converge when first uses race", func(t *testing.T) {
		// given
		ctx, db, repo := setupTestRepository(t)
		userId := test_utils.InsertUser(t, ctx, db, "alice")
		txm := database.NewTxManager(db)
		const workers = 6

		// when
		var wg sync.WaitGroup
		ids := make(chan int, workers)
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- txm.WithinTransaction(ctx, func(ctx context.Context) error {
					c, err := repo.EnsureTransfer(ctx, userId, Expense)
					if err != nil {
						return err
					}
					ids <- c.Id
					return nil
				})
			}()
		}
		wg.Wait()
		close(errs)
		close(ids)

		// then
		for err := range errs {
			require.NoError(t, err)
		}
		seen := map[int]bool{}
		for id := range ids {
			seen[id] = true
		}
		assert.Len(t, seen, 1)
		listed, err := repo.List(ctx, userId)
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})

	t.Run("should not collide with a regular category of the same name", func(t *testing.T) {
		ctx, db, repo := setupTestRepository(t)
		userId := test_utils.InsertUser(t, ctx, db, "alice")
		regular, err := repo.Store(ctx, userId, Category{Name: transferCategoryName(Expense), Type: Expense})
		require.NoError(t, err)

		transfer, err := repo.EnsureTransfer(ctx, userId, Expense)

		require.NoError(t, err)
		assert.NotEqual(t, regular.Id, transfer.Id)
		assert.True(t, transfer.IsTransfer)
	})
}
