package fraud

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepository is an in-memory alert store for development and tests.
type memoryRepository struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]Alert
}

// NewMemoryRepository creates an empty in-memory fraud alert repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{alerts: make(map[uuid.UUID]Alert)}
}

func (r *memoryRepository) CreateAlert(ctx context.Context, alert *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[alert.ID] = *alert
	return nil
}

func (r *memoryRepository) GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, nil
	}
	return &alert, nil
}

func (r *memoryRepository) GetActiveAlertByCredit(ctx context.Context, creditID string) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Alert
	for _, alert := range r.alerts {
		if alert.CreditID != creditID || alert.Status != AlertStatusActive {
			continue
		}
		match := alert
		if latest == nil || match.CreatedAt.After(latest.CreatedAt) {
			latest = &match
		}
	}
	return latest, nil
}

func (r *memoryRepository) ListByCredit(ctx context.Context, creditID string) ([]Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Alert{}
	for _, alert := range r.alerts {
		if alert.CreditID == creditID {
			result = append(result, alert)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status AlertStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return false, nil
	}
	alert.Status = status
	alert.UpdatedAt = time.Now()
	r.alerts[id] = alert
	return true, nil
}
