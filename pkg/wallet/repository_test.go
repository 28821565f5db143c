package wallet

import (
	"context"
	"os"
	"sync"
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

func setupTestRepository(t *testing.T) (context.Context, *pgxpool.Pool, *RepositoryImpl, int) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		err := pgContainer.Restore(ctx)
		require.NoError(t, err)
	})
	userId := test_utils.InsertUser(t, ctx, db, "wallet_owner")
	return ctx, db, NewRepository(db), userId
}

func TestRepositoryImpl_StoreAndGet(t *testing.T) {
	t.Run("should store and read back a wallet", func(t *testing.T) {
		// given
		ctx, _, repo, userId := setupTestRepository(t)

		// when
		stored, err := repo.Store(ctx, userId, Wallet{Name: "Cash", Currency: "PLN", Balance: decimal.RequireFromString("12.3400")})
		require.NoError(t, err)
		fetched, err := repo.Get(ctx, stored.Id)

		// then
		require.NoError(t, err)
		assert.Equal(t, userId, fetched.UserId)
		assert.Equal(t, "Cash", fetched.Name)
		assert.Equal(t, "PLN", fetched.Currency)
		assert.True(t, fetched.Balance.Equal(decimal.RequireFromString("12.34")))
		assert.False(t, fetched.IsDefault)
	})

	t.Run("should return not found for unknown wallet", func(t *testing.T) {
		ctx, _, repo, _ := setupTestRepository(t)

		_, err := repo.Get(ctx, 4242)

		assert.ErrorIs(t, err, ErrWalletNotFound)
	})
}

func TestRepositoryImpl_ApplyDelta(t *testing.T) {
	t.Run("should add signed deltas and return the new balance", func(t *testing.T) {
		// given
		ctx, _, repo, userId := setupTestRepository(t)
		w, err := repo.Store(ctx, userId, Wallet{Name: "Cash", Currency: "USD"})
		require.NoError(t, err)

		// when
		_, err = repo.ApplyDelta(ctx, w.Id, decimal.NewFromInt(100))
		require.NoError(t, err)
		balance, err := repo.ApplyDelta(ctx, w.Id, decimal.RequireFromString("-30.25"))

		// then
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("69.75")))
	})

	t.Run("should return not found for unknown wallet", func(t *testing.T) {
		ctx, _, repo, _ := setupTestRepository(t)

		_, err := repo.ApplyDelta(ctx, 4242, decimal.NewFromInt(1))

		assert.ErrorIs(t, err, ErrWalletNotFound)
	})
}

func TestRepositoryImpl_GetForUpdate(t *testing.T) {
	t.Run("should require a transaction", func(t *testing.T) {
		ctx, _, repo, userId := setupTestRepository(t)
		w, err := repo.Store(ctx, userId, Wallet{Name: "Cash", Currency: "USD"})
		require.NoError(t, err)

		_, err = repo.GetForUpdate(ctx, w.Id)

		assert.Error(t, err)
	})

	t.Run("should hold the row until the unit ends", func(t *testing.T) {
		// given
		ctx, db, repo, userId := setupTestRepository(t)
		txm := database.NewTxManager(db)
		w, err := repo.Store(ctx, userId, Wallet{Name: "Cash", Currency: "USD"})
		require.NoError(t, err)
		const workers = 8

		// when
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- txm.WithinTransaction(ctx, func(ctx context.Context) error {
					locked, err := repo.GetForUpdate(ctx, w.Id)
					if err != nil {
						return err
					}
					time.Sleep(10 * time.Millisecond)
					balance, err := repo.ApplyDelta(ctx, w.Id, decimal.NewFromInt(5))
					if err != nil {
						return err
					}
					// nobody else may touch the row between the locked read and the write
					assert.True(t, balance.Equal(locked.Balance.Add(decimal.NewFromInt(5))))
					return nil
				})
			}()
		}
		wg.Wait()
		close(errs)

		// then
		for err := range errs {
			require.NoError(t, err)
		}
		fetched, err := repo.Get(ctx, w.Id)
		require.NoError(t, err)
		assert.True(t, fetched.Balance.Equal(decimal.NewFromInt(5*workers)))
	})
}

func TestRepositoryImpl_Sharing(t *testing.T) {
	t.Run("should resolve owner, shared and missing permissions", func(t *testing.T) {
		// given
		ctx, db, repo, ownerId := setupTestRepository(t)
		guestId := test_utils.InsertUser(t, ctx, db, "guest")
		strangerId := test_utils.InsertUser(t, ctx, db, "stranger")
		w, err := repo.Store(ctx, ownerId, Wallet{Name: "Household", Currency: "EUR"})
		require.NoError(t, err)

		// when
		require.NoError(t, repo.Share(ctx, w.Id, guestId, Viewer))
		require.NoError(t, repo.Share(ctx, w.Id, guestId, Editor))

		// then
		owner, err := repo.GetPermission(ctx, w.Id, ownerId)
		require.NoError(t, err)
		assert.Equal(t, Owner, owner)
		guest, err := repo.GetPermission(ctx, w.Id, guestId)
		require.NoError(t, err)
		assert.Equal(t, Editor, guest)
		stranger, err := repo.GetPermission(ctx, w.Id, strangerId)
		require.NoError(t, err)
		assert.Equal(t, NoPermission, stranger)
		_, err = repo.GetPermission(ctx, 4242, ownerId)
		assert.ErrorIs(t, err, ErrWalletNotFound)

		accessible, err := repo.ListAccessible(ctx, guestId)
		require.NoError(t, err)
		require.Len(t, accessible, 1)
		assert.Equal(t, w.Id, accessible[0].Id)
		none, err := repo.ListAccessible(ctx, strangerId)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestRepositoryImpl_SetDefault(t *testing.T) {
	// given
	ctx, db, repo, userId := setupTestRepository(t)
	otherId := test_utils.InsertUser(t, ctx, db, "other")
	first, err := repo.Store(ctx, userId, Wallet{Name: "First", Currency: "USD", IsDefault: true})
	require.NoError(t, err)
	second, err := repo.Store(ctx, userId, Wallet{Name: "Second", Currency: "USD"})
	require.NoError(t, err)

	// when
	ok, err := repo.SetDefault(ctx, userId, second.Id)
	require.NoError(t, err)
	foreign, err := repo.SetDefault(ctx, otherId, first.Id)
	require.NoError(t, err)

	// then
	assert.True(t, ok)
	assert.False(t, foreign)
	stored, err := repo.Get(ctx, first.Id)
	require.NoError(t, err)
	assert.False(t, stored.IsDefault)
	stored, err = repo.Get(ctx, second.Id)
	require.NoError(t, err)
	assert.True(t, stored.IsDefault)
	count, err := repo.CountOwned(ctx, userId)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
