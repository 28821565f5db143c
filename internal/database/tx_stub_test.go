package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterStore struct {
	value int
}

func (c *counterStore) Snapshot() func() {
	saved := c.value
	return func() { c.value = saved }
}

func TestStubTxManager_WithinTransaction(t *testing.T) {
	t.Run("should restore participants when unit fails", func(t *testing.T) {
		// given
		store := &counterStore{value: 1}
		txm := NewStubTxManager(store)

		// when
		err := txm.WithinTransaction(context.Background(), func(ctx context.Context) error {
			store.value = 42
			return errors.New("boom")
		})

		// then
		require.Error(t, err)
		assert.Equal(t, 1, store.value)
		assert.Equal(t, 1, txm.Rollbacks())
	})

	t.Run("should join an outer unit and run after-commit hooks once", func(t *testing.T) {
		// given
		store := &counterStore{}
		txm := NewStubTxManager(store)
		var hooks []string

		// when
		err := txm.WithinTransaction(context.Background(), func(ctx context.Context) error {
			store.value++
			AfterCommit(ctx, func(ctx context.Context) {
				assert.False(t, InTransaction(ctx))
				hooks = append(hooks, "outer")
			})
			return txm.WithinTransaction(ctx, func(ctx context.Context) error {
				store.value++
				AfterCommit(ctx, func(ctx context.Context) { hooks = append(hooks, "inner") })
				return nil
			})
		})

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, store.value)
		assert.Equal(t, []string{"outer", "inner"}, hooks)
		assert.Equal(t, 1, txm.Commits())
	})

	t.Run("should drop after-commit hooks on rollback", func(t *testing.T) {
		// given
		txm := NewStubTxManager()
		called := false

		// when
		_ = txm.WithinTransaction(context.Background(), func(ctx context.Context) error {
			AfterCommit(ctx, func(ctx context.Context) { called = true })
			return errors.New("boom")
		})

		// then
		assert.False(t, called)
	})

	t.Run("should run hook immediately outside a unit", func(t *testing.T) {
		called := false
		AfterCommit(context.Background(), func(ctx context.Context) { called = true })
		assert.True(t, called)
	})
}
