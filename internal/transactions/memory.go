package transactions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepository is an in-memory transaction store for development and
// tests. The single mutex makes the conditional insert linearizable, which
// is what the concurrency tests lean on.
type memoryRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]PurchaseTransaction
}

// NewMemoryRepository creates an empty in-memory transaction repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{items: make(map[uuid.UUID]PurchaseTransaction)}
}

func (r *memoryRepository) CreateRequested(ctx context.Context, txn *PurchaseTransaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.CreditID == txn.CreditID && existing.State == StateRequested {
			return false, nil
		}
	}
	stored := *txn
	stored.State = StateRequested
	r.items[txn.ID] = stored
	return true, nil
}

func (r *memoryRepository) Get(ctx context.Context, id uuid.UUID) (*PurchaseTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	txn, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &txn, nil
}

func (r *memoryRepository) GetRequestedByCredit(ctx context.Context, creditID string) (*PurchaseTransaction, error) {
	return r.findByCreditAndState(creditID, StateRequested)
}

func (r *memoryRepository) GetCompletedByCredit(ctx context.Context, creditID string) (*PurchaseTransaction, error) {
	return r.findByCreditAndState(creditID, StateCompleted)
}

func (r *memoryRepository) findByCreditAndState(creditID string, state State) (*PurchaseTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, txn := range r.items {
		if txn.CreditID == creditID && txn.State == state {
			match := txn
			return &match, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) CountByCreditAndState(ctx context.Context, creditID string, state State) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, txn := range r.items {
		if txn.CreditID == creditID && txn.State == state {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) Transition(ctx context.Context, id uuid.UUID, from, to State, decidedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.items[id]
	if !ok || txn.State != from {
		return false, nil
	}
	txn.State = to
	at := decidedAt
	txn.DecidedAt = &at
	r.items[id] = txn
	return true, nil
}

func (r *memoryRepository) ListRequestedBefore(ctx context.Context, cutoff time.Time) ([]PurchaseTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []PurchaseTransaction{}
	for _, txn := range r.items {
		if txn.State == StateRequested && txn.CreatedAt.Before(cutoff) {
			result = append(result, txn)
		}
	}
	return result, nil
}

func (r *memoryRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]PurchaseTransaction, error) {
	return r.list(func(txn PurchaseTransaction) bool { return txn.BuyerID == buyerID })
}

func (r *memoryRepository) ListByProducer(ctx context.Context, producerID uuid.UUID) ([]PurchaseTransaction, error) {
	return r.list(func(txn PurchaseTransaction) bool { return txn.ProducerID == producerID })
}

func (r *memoryRepository) list(match func(PurchaseTransaction) bool) ([]PurchaseTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []PurchaseTransaction{}
	for _, txn := range r.items {
		if match(txn) {
			result = append(result, txn)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
