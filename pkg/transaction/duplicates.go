package transaction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DuplicateDetector finds existing transactions that look like a candidate: same user, wallet
// and category, close in time and amount. It never blocks an insert.
type DuplicateDetector struct {
	repo      Repository
	window    time.Duration
	tolerance decimal.Decimal
	limit     int
}

func NewDuplicateDetector(repo Repository, opts Options) *DuplicateDetector {
	return &DuplicateDetector{
		repo:      repo,
		window:    opts.DuplicateWindow,
		tolerance: opts.DuplicateTolerance,
		limit:     opts.DuplicateLimit,
	}
}

func (d *DuplicateDetector) Find(ctx context.Context, candidate Transaction) ([]Transaction, error) {
	spread := candidate.Amount.Mul(d.tolerance).Abs()
	return d.repo.FindSimilar(ctx, SimilarQuery{
		UserId:     candidate.UserId,
		WalletId:   candidate.WalletId,
		CategoryId: candidate.CategoryId,
		From:       candidate.OccurredAt.Add(-d.window),
		To:         candidate.OccurredAt.Add(d.window),
		MinAmount:  candidate.Amount.Sub(spread),
		MaxAmount:  candidate.Amount.Add(spread),
		Limit:      d.limit,
	})
}
