package amqp

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetAlertEmailMessage(t *testing.T) {
	// given
	msg := NewBudgetAlertEmailMessage("ana@example.com", "Ana", "Groceries",
		decimal.NewFromInt(96), decimal.NewFromInt(960000), decimal.NewFromInt(1000000))

	// when
	body, err := msg.ToJSON()
	require.NoError(t, err)
	decoded, err := BudgetAlertEmailMessageFromJSON(body)

	// then
	require.NoError(t, err)
	_, err = uuid.Parse(decoded.Id)
	assert.NoError(t, err)
	assert.Equal(t, "Groceries", decoded.CategoryName)
	assert.True(t, decoded.Used.Equal(decimal.NewFromInt(960000)))
	assert.Contains(t, string(body), `"percentage":"96"`)
}

func TestBudgetAlertEmailMessageFromJSON_Invalid(t *testing.T) {
	_, err := BudgetAlertEmailMessageFromJSON([]byte("{not json"))
	assert.Error(t, err)
}
