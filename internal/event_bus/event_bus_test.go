package event_bus

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Publish(t *testing.T) {
	t.Run("should call handlers in subscription order", func(t *testing.T) {
		// given
		bus := NewEventBus()
		var calls []int
		for i := 1; i <= 5; i++ {
			i := i
			bus.Subscribe(TransactionCreated, func(e Event) error {
				calls = append(calls, i)
				return nil
			})
		}

		// when
		err := bus.Publish(NewEvent(context.Background(), TransactionCreated, TransactionChanged{Id: 1}))

		// then
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
	})

	t.Run("should keep dispatching after a failing or panicking handler", func(t *testing.T) {
		// given
		bus := NewEventBus()
		delivered := false
		bus.Subscribe(TransactionCreated, func(e Event) error { return errors.New("boom") })
		bus.Subscribe(TransactionCreated, func(e Event) error { panic("kaboom") })
		bus.Subscribe(TransactionCreated, func(e Event) error {
			delivered = true
			return nil
		})

		// when
		err := bus.Publish(NewEvent(context.Background(), TransactionCreated, nil))

		// then
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "2 handler(s) failed")
		assert.True(t, delivered)
	})

	t.Run("should skip handlers when context is cancelled", func(t *testing.T) {
		// given
		bus := NewEventBus()
		called := false
		bus.Subscribe(TransactionCreated, func(e Event) error {
			called = true
			return nil
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// when
		err := bus.Publish(NewEvent(ctx, TransactionCreated, nil))

		// then
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("should stop delivering after unsubscribe", func(t *testing.T) {
		// given
		bus := NewEventBus()
		count := 0
		unsubscribe := bus.Subscribe(WalletBalanceChanged, func(e Event) error {
			count++
			return nil
		})

		// when
		_ = bus.Publish(NewEvent(context.Background(), WalletBalanceChanged, nil))
		unsubscribe()
		_ = bus.Publish(NewEvent(context.Background(), WalletBalanceChanged, nil))

		// then
		assert.Equal(t, 1, count)
	})
}

func TestSubscribeTyped(t *testing.T) {
	// given
	bus := NewEventBus()
	var received []BudgetThresholdCrossedEvent
	SubscribeTyped[BudgetThresholdCrossedEvent](bus, BudgetThresholdCrossed, func(e EventT[BudgetThresholdCrossedEvent]) error {
		received = append(received, e.Data)
		return nil
	})

	// when
	_ = bus.Publish(NewEvent(context.Background(), BudgetThresholdCrossed, "not a budget event"))
	_ = bus.Publish(NewEvent(context.Background(), BudgetThresholdCrossed, BudgetThresholdCrossedEvent{
		BudgetId:  7,
		Threshold: 95,
		Used:      decimal.NewFromInt(960000),
	}))

	// then
	require.Len(t, received, 1)
	assert.Equal(t, 7, received[0].BudgetId)
	assert.Equal(t, 95, received[0].Threshold)
}
