package recurring

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/database"
	"github.com/walletwise/walletwise/internal/metrics"
	"github.com/walletwise/walletwise/internal/utils"
	"github.com/walletwise/walletwise/pkg/category"
	"github.com/walletwise/walletwise/pkg/transaction"
	"github.com/walletwise/walletwise/pkg/user"
	"github.com/walletwise/walletwise/pkg/wallet"
)

type Ledger interface {
	CreateTransaction(ctx context.Context, in transaction.Input) (transaction.CreateResult, error)
}

type WalletLocker interface {
	LockWallet(ctx context.Context, id int) (wallet.Wallet, error)
}

type outcome string

const (
	outcomeCreated     outcome = "created"
	outcomeSkipped     outcome = "skipped"
	outcomeDeactivated outcome = "deactivated"
	outcomeFailed      outcome = "failed"
	outcomeNotDue      outcome = "not_due"
)

type RunSummary struct {
	Processed   int
	Created     int
	Skipped     int
	Deactivated int
	Failed      int
}

func (s *RunSummary) record(o outcome) {
	switch o {
	case outcomeCreated:
		s.Created++
	case outcomeSkipped:
		s.Skipped++
	case outcomeDeactivated:
		s.Deactivated++
	case outcomeFailed:
		s.Failed++
	}
}

// Materializer turns due recurring rules into ledger transactions.
type Materializer struct {
	repo    Repository
	ledger  Ledger
	wallets WalletLocker
	tx      database.TxManager
	clock   utils.Clock
	metrics *metrics.Metrics
}

func NewMaterializer(repo Repository, ledger Ledger, wallets WalletLocker, tx database.TxManager, clock utils.Clock, m *metrics.Metrics) *Materializer {
	return &Materializer{repo: repo, ledger: ledger, wallets: wallets, tx: tx, clock: clock, metrics: m}
}

// Run processes every active rule due today. Each rule runs in its own unit of work; a failing rule
// is logged and counted and never stops the others.
//
// Rules past their end date are deactivated without producing a transaction. An EXPENSE whose wallet
// cannot cover it is skipped. Every other rule advances its next run date by one period, whether a
// transaction was created or not, so a skipped occurrence is not retried.
func (m *Materializer) Run(ctx context.Context) (RunSummary, error) {
	today := utils.Today(m.clock)
	rules, err := m.repo.FindDue(ctx, today)
	if err != nil {
		return RunSummary{}, fmt.Errorf("could not load due recurring rules: %w", err)
	}

	var summary RunSummary
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		o := m.process(user.WithId(ctx, rule.UserId), rule.Id, today)
		if o == outcomeNotDue {
			continue
		}
		summary.Processed++
		summary.record(o)
		m.metrics.IncrRecurring(string(o))
	}
	log.Infof("recurring run for %s: %d processed, %d created, %d skipped, %d deactivated, %d failed",
		today.Format(time.DateOnly), summary.Processed, summary.Created, summary.Skipped, summary.Deactivated, summary.Failed)
	return summary, nil
}

func (m *Materializer) process(ctx context.Context, ruleId int, today time.Time) outcome {
	var result outcome
	err := m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rule, err := m.repo.GetForUpdate(ctx, ruleId)
		if err != nil {
			return err
		}
		// another run may have handled the rule since it was listed
		if !rule.Due(today) {
			result = outcomeNotDue
			return nil
		}
		if rule.Expired(today) {
			rule.Active = false
			result = outcomeDeactivated
			log.Infof("recurring rule %d ended on %s, deactivated", rule.Id, rule.EndDate.Format(time.DateOnly))
			return m.repo.UpdateSchedule(ctx, rule)
		}

		result = outcomeCreated
		if rule.Type == category.Expense {
			w, err := m.wallets.LockWallet(ctx, rule.WalletId)
			if err != nil {
				return err
			}
			if w.Balance.LessThan(rule.Amount) {
				log.Warnf("recurring rule %d skipped: wallet %d balance %s does not cover %s",
					rule.Id, w.Id, w.Balance.String(), rule.Amount.String())
				result = outcomeSkipped
			}
		}
		if result == outcomeCreated {
			_, err := m.ledger.CreateTransaction(ctx, transaction.Input{
				WalletId:   rule.WalletId,
				CategoryId: rule.CategoryId,
				Type:       rule.Type,
				Amount:     rule.Amount,
				OccurredAt: m.clock.Now(),
				Note:       rule.TransactionNote(),
			})
			if err != nil {
				return err
			}
		}

		rule.Advance()
		return m.repo.UpdateSchedule(ctx, rule)
	})
	if err == nil {
		return result
	}

	log.Errorf("recurring rule %d failed: %v", ruleId, err)
	if err := m.advance(ctx, ruleId); err != nil {
		log.Errorf("could not advance recurring rule %d after failure: %v", ruleId, err)
	}
	return outcomeFailed
}

// advance moves a failed rule to its next period so it is not reprocessed every cycle.
func (m *Materializer) advance(ctx context.Context, ruleId int) error {
	return m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rule, err := m.repo.GetForUpdate(ctx, ruleId)
		if err != nil {
			return err
		}
		rule.Advance()
		return m.repo.UpdateSchedule(ctx, rule)
	})
}
