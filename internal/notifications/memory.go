package notifications

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepository is an in-memory notification store for development and
// tests.
type memoryRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Notification
}

// NewMemoryRepository creates an empty in-memory notification repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{items: make(map[uuid.UUID]Notification)}
}

func (r *memoryRepository) Create(ctx context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[n.ID] = *n
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r *memoryRepository) GetByEventKey(ctx context.Context, recipientID uuid.UUID, eventKey string) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.items {
		if n.RecipientID == recipientID && n.EventKey == eventKey {
			match := n
			return &match, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Notification{}
	for _, n := range r.items {
		if n.RecipientID == recipientID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memoryRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok || n.Status == StatusRead {
		return nil
	}
	n.Status = StatusRead
	readAt := at
	n.ReadAt = &readAt
	r.items[id] = n
	return nil
}

func (r *memoryRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := map[uuid.UUID]bool{}
	for _, id := range ids {
		wanted[id] = true
	}

	for id, n := range r.items {
		if n.RecipientID != recipientID || n.Status == StatusRead {
			continue
		}
		if len(wanted) > 0 && !wanted[id] {
			continue
		}
		n.Status = StatusRead
		readAt := at
		n.ReadAt = &readAt
		r.items[id] = n
	}
	return nil
}

func (r *memoryRepository) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, n := range r.items {
		if n.RecipientID == recipientID && n.Status == StatusUnread {
			count++
		}
	}
	return count, nil
}
