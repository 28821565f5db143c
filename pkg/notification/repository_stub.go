package notification

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type RepositoryStub struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]Notification
	// Err makes every Store fail.
	Err error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{notifications: map[uuid.UUID]Notification{}}
}

func (s *RepositoryStub) Store(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.notifications[n.Id] = n
	return nil
}

func (s *RepositoryStub) ListByUser(ctx context.Context, userId int, limit int) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Notification
	for _, n := range s.notifications {
		if n.UserId == userId {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *RepositoryStub) MarkRead(ctx context.Context, userId int, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserId != userId {
		return false, nil
	}
	n.Read = true
	s.notifications[id] = n
	return true, nil
}
