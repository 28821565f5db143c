package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/walletwise/walletwise/internal/amqp"
)

// Mailer sends budget alert emails.
type Mailer interface {
	SendBudgetAlertEmail(ctx context.Context, msg *amqp.BudgetAlertEmailMessage) error
}

// Publisher is implemented by amqp.Client.
type Publisher interface {
	PublishBudgetAlertEmail(ctx context.Context, msg *amqp.BudgetAlertEmailMessage) error
}

type BreakerSettings struct {
	MaxFailures uint32
	Timeout     time.Duration
}

// BreakerMailer stops calling the broker after MaxFailures consecutive failures and lets a probe
// through once Timeout has passed.
type BreakerMailer struct {
	publisher Publisher
	cb        *gobreaker.CircuitBreaker
}

func NewBreakerMailer(publisher Publisher, settings BreakerSettings) *BreakerMailer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mail-queue",
		MaxRequests: 1,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &BreakerMailer{publisher: publisher, cb: cb}
}

func (m *BreakerMailer) SendBudgetAlertEmail(ctx context.Context, msg *amqp.BudgetAlertEmailMessage) error {
	_, err := m.cb.Execute(func() (any, error) {
		return nil, m.publisher.PublishBudgetAlertEmail(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("send budget alert email: %w", err)
	}
	return nil
}

func (m *BreakerMailer) State() gobreaker.State {
	return m.cb.State()
}

// LogMailer only logs, for setups without a mail queue.
type LogMailer struct {
	mu   sync.Mutex
	Sent []*amqp.BudgetAlertEmailMessage
}

func (m *LogMailer) SendBudgetAlertEmail(ctx context.Context, msg *amqp.BudgetAlertEmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	log.WithFields(log.Fields{
		"to":         msg.UserEmail,
		"category":   msg.CategoryName,
		"percentage": msg.Percentage.String(),
	}).Info("budget alert email (mail queue not configured)")
	return nil
}

func (m *LogMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
