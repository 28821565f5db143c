package transaction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type RepositoryStub struct {
	mu           sync.Mutex
	nextId       int
	transactions map[int]Transaction
	// FailOnStore makes the next Store calls fail, for exercising rollbacks.
	FailOnStore error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{transactions: map[int]Transaction{}}
}

func (s *RepositoryStub) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[int]Transaction, len(s.transactions))
	for k, v := range s.transactions {
		saved[k] = v
	}
	nextId := s.nextId
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.transactions = saved
		s.nextId = nextId
	}
}

func (s *RepositoryStub) Store(ctx context.Context, t Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOnStore != nil {
		return Transaction{}, s.FailOnStore
	}
	s.nextId++
	t.Id = s.nextId
	t.CreatedAt = time.Now()
	s.transactions[t.Id] = t
	return t, nil
}

func (s *RepositoryStub) Get(ctx context.Context, id int) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (s *RepositoryStub) GetForUpdate(ctx context.Context, id int) (Transaction, error) {
	return s.Get(ctx, id)
}

func (s *RepositoryStub) Update(ctx context.Context, t Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.transactions[t.Id]
	if !ok {
		return ErrTransactionNotFound
	}
	t.CreatedAt = existing.CreatedAt
	s.transactions[t.Id] = t
	return nil
}

func (s *RepositoryStub) Delete(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return false, nil
	}
	delete(s.transactions, id)
	return true, nil
}

func (s *RepositoryStub) ListByWallet(ctx context.Context, walletId int, from, to time.Time) ([]Transaction, error) {
	return s.filter(func(t Transaction) bool {
		return t.WalletId == walletId && !t.OccurredAt.Before(from) && t.OccurredAt.Before(to)
	}), nil
}

func (s *RepositoryStub) FindSimilar(ctx context.Context, q SimilarQuery) ([]Transaction, error) {
	matches := s.filter(func(t Transaction) bool {
		return t.UserId == q.UserId && t.WalletId == q.WalletId && t.CategoryId == q.CategoryId &&
			!t.OccurredAt.Before(q.From) && !t.OccurredAt.After(q.To) &&
			!t.Amount.LessThan(q.MinAmount) && !t.Amount.GreaterThan(q.MaxAmount)
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

func (s *RepositoryStub) SumExpenses(ctx context.Context, userId int, categoryId int, from, to time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range s.filter(func(t Transaction) bool {
		return t.UserId == userId && t.CategoryId == categoryId && t.Type == Expense &&
			!t.OccurredAt.Before(from) && t.OccurredAt.Before(to)
	}) {
		sum = sum.Add(t.Amount)
	}
	return sum, nil
}

// SignedSum is the balance a wallet must have according to its transactions.
func (s *RepositoryStub) SignedSum(walletId int) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range s.filter(func(t Transaction) bool { return t.WalletId == walletId }) {
		sum = sum.Add(t.SignedAmount())
	}
	return sum
}

func (s *RepositoryStub) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *RepositoryStub) filter(keep func(Transaction) bool) []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Transaction
	for _, t := range s.transactions {
		if keep(t) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result
}
