package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetAlertEmailMessage carries everything the mail transport needs to render a budget alert.
type BudgetAlertEmailMessage struct {
	Id           string          `json:"id"`
	UserEmail    string          `json:"userEmail"`
	UserName     string          `json:"userName"`
	CategoryName string          `json:"categoryName"`
	Percentage   decimal.Decimal `json:"percentage"`
	Used         decimal.Decimal `json:"used"`
	Limit        decimal.Decimal `json:"limit"`
	Timestamp    time.Time       `json:"timestamp"`
}

func NewBudgetAlertEmailMessage(email, name, category string, percentage, used, limit decimal.Decimal) *BudgetAlertEmailMessage {
	return &BudgetAlertEmailMessage{
		Id:           uuid.NewString(),
		UserEmail:    email,
		UserName:     name,
		CategoryName: category,
		Percentage:   percentage,
		Used:         used,
		Limit:        limit,
		Timestamp:    time.Now(),
	}
}

func (m *BudgetAlertEmailMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertEmailMessageFromJSON(data []byte) (*BudgetAlertEmailMessage, error) {
	var msg BudgetAlertEmailMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
