package budget

import (
	"context"
	"sort"
	"sync"
	"time"
)

type StubBudgetRepo struct {
	mu     sync.Mutex
	nextId int
	data   map[int]Budget
	// UsageWrites counts UpdateUsage calls.
	UsageWrites int
}

func NewStubBudgetRepo() *StubBudgetRepo {
	return &StubBudgetRepo{data: map[int]Budget{}}
}

func (s *StubBudgetRepo) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[int]Budget, len(s.data))
	for k, v := range s.data {
		saved[k] = v
	}
	nextId := s.nextId
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.data = saved
		s.nextId = nextId
	}
}

func (s *StubBudgetRepo) Store(ctx context.Context, budget Budget) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	budget.Id = s.nextId
	s.data[budget.Id] = budget
	return budget, nil
}

func (s *StubBudgetRepo) Get(ctx context.Context, id int) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	budget, ok := s.data[id]
	if !ok {
		return Budget{}, ErrBudgetNotFound
	}
	return budget, nil
}

func (s *StubBudgetRepo) GetForUpdate(ctx context.Context, id int) (Budget, error) {
	return s.Get(ctx, id)
}

func (s *StubBudgetRepo) Update(ctx context.Context, budget Budget) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.data[budget.Id]
	if !ok || existing.UserId != budget.UserId {
		return false, nil
	}
	existing.CategoryId = budget.CategoryId
	existing.StartDate = budget.StartDate
	existing.EndDate = budget.EndDate
	existing.Period = budget.Period
	existing.LimitAmount = budget.LimitAmount
	existing.AlertThreshold = budget.AlertThreshold
	s.data[budget.Id] = existing
	return true, nil
}

func (s *StubBudgetRepo) UpdateUsage(ctx context.Context, budget Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.data[budget.Id]
	if !ok {
		return ErrBudgetNotFound
	}
	existing.UsedAmount = budget.UsedAmount
	existing.Alerts = budget.Alerts
	s.data[budget.Id] = existing
	s.UsageWrites++
	return nil
}

func (s *StubBudgetRepo) Delete(ctx context.Context, userId int, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.data[id]
	if !ok || existing.UserId != userId {
		return false, nil
	}
	delete(s.data, id)
	return true, nil
}

func (s *StubBudgetRepo) GetAll(ctx context.Context, userId int) ([]Budget, error) {
	return s.filter(func(b Budget) bool { return b.UserId == userId }), nil
}

func (s *StubBudgetRepo) FindCovering(ctx context.Context, userId int, categoryId int, day time.Time) ([]Budget, error) {
	return s.filter(func(b Budget) bool {
		return b.UserId == userId && b.CategoryId == categoryId && b.Contains(day)
	}), nil
}

func (s *StubBudgetRepo) FindActive(ctx context.Context, day time.Time) ([]Budget, error) {
	return s.filter(func(b Budget) bool { return b.Contains(day) }), nil
}

func (s *StubBudgetRepo) filter(keep func(Budget) bool) []Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Budget
	for _, b := range s.data {
		if keep(b) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result
}
