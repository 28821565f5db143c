package recurring

import (
	"context"
	"sort"
	"sync"
	"time"
)

type RepositoryStub struct {
	mu     sync.Mutex
	nextId int
	rules  map[int]Rule
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{rules: map[int]Rule{}}
}

func (s *RepositoryStub) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[int]Rule, len(s.rules))
	for k, v := range s.rules {
		saved[k] = v
	}
	nextId := s.nextId
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rules = saved
		s.nextId = nextId
	}
}

func (s *RepositoryStub) Store(ctx context.Context, rule Rule) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	rule.Id = s.nextId
	s.rules[rule.Id] = rule
	return rule, nil
}

func (s *RepositoryStub) Get(ctx context.Context, id int) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return Rule{}, ErrRuleNotFound
	}
	return rule, nil
}

func (s *RepositoryStub) GetForUpdate(ctx context.Context, id int) (Rule, error) {
	return s.Get(ctx, id)
}

func (s *RepositoryStub) UpdateSchedule(ctx context.Context, rule Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[rule.Id]
	if !ok {
		return ErrRuleNotFound
	}
	existing.NextRunDate = rule.NextRunDate
	existing.Active = rule.Active
	s.rules[rule.Id] = existing
	return nil
}

func (s *RepositoryStub) Delete(ctx context.Context, userId int, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[id]
	if !ok || existing.UserId != userId {
		return false, nil
	}
	delete(s.rules, id)
	return true, nil
}

func (s *RepositoryStub) ListByUser(ctx context.Context, userId int) ([]Rule, error) {
	return s.filter(func(r Rule) bool { return r.UserId == userId }), nil
}

func (s *RepositoryStub) FindDue(ctx context.Context, day time.Time) ([]Rule, error) {
	return s.filter(func(r Rule) bool { return r.Due(day) }), nil
}

func (s *RepositoryStub) filter(keep func(Rule) bool) []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Rule
	for _, r := range s.rules {
		if keep(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result
}
