package category

import (
	"context"
	"sort"
	"sync"
)

type RepositoryStub struct {
	mu         sync.Mutex
	nextId     int
	categories map[int]Category
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{categories: map[int]Category{}}
}

func (s *RepositoryStub) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[int]Category, len(s.categories))
	for k, v := range s.categories {
		saved[k] = v
	}
	nextId := s.nextId
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.categories = saved
		s.nextId = nextId
	}
}

func (s *RepositoryStub) Store(ctx context.Context, userId int, category Category) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	category.Id = s.nextId
	category.UserId = userId
	s.categories[category.Id] = category
	return category, nil
}

func (s *RepositoryStub) Get(ctx context.Context, userId int, id int) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	category, ok := s.categories[id]
	if !ok || category.UserId != userId {
		return Category{}, ErrCategoryNotFound
	}
	return category, nil
}

func (s *RepositoryStub) List(ctx context.Context, userId int) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var categories []Category
	for _, category := range s.categories {
		if category.UserId == userId {
			categories = append(categories, category)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Id < categories[j].Id })
	return categories, nil
}

func (s *RepositoryStub) EnsureTransfer(ctx context.Context, userId int, categoryType Type) (Category, error) {
	s.mu.Lock()
	for _, category := range s.categories {
		if category.UserId == userId && category.IsTransfer && category.Type == categoryType {
			s.mu.Unlock()
			return category, nil
		}
	}
	s.mu.Unlock()
	return s.Store(ctx, userId, Category{Name: transferCategoryName(categoryType), Type: categoryType, IsTransfer: true})
}

func (s *RepositoryStub) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.categories)
}
