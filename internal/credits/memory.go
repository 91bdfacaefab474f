package credits

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepository is an in-memory Repository used for development mode and
// tests. All conditional writes are linearizable under a single mutex.
type memoryRepository struct {
	mu       sync.RWMutex
	credits  map[string]Credit
	requests map[uuid.UUID]CreditRequest
}

// NewMemoryRepository creates an empty in-memory credit repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		credits:  make(map[string]Credit),
		requests: make(map[uuid.UUID]CreditRequest),
	}
}

func (r *memoryRepository) CreateCredit(ctx context.Context, credit *Credit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credits[credit.ID] = *credit
	return nil
}

func (r *memoryRepository) GetCredit(ctx context.Context, id string) (*Credit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	credit, ok := r.credits[id]
	if !ok {
		return nil, nil
	}
	return &credit, nil
}

func (r *memoryRepository) ListAvailable(ctx context.Context, filter ListFilter) ([]Credit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Credit{}
	for _, credit := range r.credits {
		if credit.Status != StatusCertified || credit.IsSold {
			continue
		}
		if filter.EnergySource != nil && credit.EnergySource != *filter.EnergySource {
			continue
		}
		if filter.ProducerID != nil && credit.ProducerID != *filter.ProducerID {
			continue
		}
		result = append(result, credit)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		at, bt := time.Time{}, time.Time{}
		if a.CertificationDate != nil {
			at = *a.CertificationDate
		}
		if b.CertificationDate != nil {
			bt = *b.CertificationDate
		}
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return a.ID < b.ID
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *memoryRepository) ListByProducer(ctx context.Context, producerID uuid.UUID) ([]Credit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Credit{}
	for _, credit := range r.credits {
		if credit.ProducerID == producerID {
			result = append(result, credit)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memoryRepository) TransitionStatus(ctx context.Context, creditID string, from, to CreditStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	credit, ok := r.credits[creditID]
	if !ok || credit.Status != from {
		return false, nil
	}
	credit.Status = to
	credit.UpdatedAt = time.Now()
	r.credits[creditID] = credit
	return true, nil
}

func (r *memoryRepository) Certify(ctx context.Context, creditID string, certifierID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	credit, ok := r.credits[creditID]
	if !ok || credit.Status != StatusUnderReview {
		return false, nil
	}
	credit.Status = StatusCertified
	credit.CertifierID = &certifierID
	credit.CertificationDate = &at
	credit.UpdatedAt = time.Now()
	r.credits[creditID] = credit
	return true, nil
}

func (r *memoryRepository) MarkSold(ctx context.Context, creditID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	credit, ok := r.credits[creditID]
	if !ok || credit.Status != StatusCertified || credit.IsSold {
		return false, nil
	}
	credit.Status = StatusSold
	credit.IsSold = true
	credit.UpdatedAt = time.Now()
	r.credits[creditID] = credit
	return true, nil
}

func (r *memoryRepository) MarkRetired(ctx context.Context, creditID, certificateNumber string, purpose *string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	credit, ok := r.credits[creditID]
	if !ok || credit.Status != StatusSold {
		return false, nil
	}
	credit.Status = StatusRetired
	credit.RetiredAt = &at
	credit.RetirementPurpose = purpose
	credit.CertificateNumber = &certificateNumber
	credit.UpdatedAt = time.Now()
	r.credits[creditID] = credit
	return true, nil
}

func (r *memoryRepository) SetTokenID(ctx context.Context, creditID, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	credit, ok := r.credits[creditID]
	if !ok || credit.TokenID != nil {
		return nil
	}
	credit.TokenID = &tokenID
	credit.UpdatedAt = time.Now()
	r.credits[creditID] = credit
	return nil
}

func (r *memoryRepository) CreateRequest(ctx context.Context, req *CreditRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = *req
	return nil
}

func (r *memoryRepository) GetRequest(ctx context.Context, id uuid.UUID) (*CreditRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (r *memoryRepository) GetRequestByCredit(ctx context.Context, creditID string) (*CreditRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, req := range r.requests {
		if req.CreditID == creditID {
			match := req
			return &match, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) AssignRequest(ctx context.Context, requestID, certifierID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok || req.AssignedCertifierID != nil || req.DecidedAt != nil {
		return false, nil
	}
	req.AssignedCertifierID = &certifierID
	r.requests[requestID] = req
	return true, nil
}

func (r *memoryRepository) RecordDecision(ctx context.Context, requestID uuid.UUID, review Review) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok || req.DecidedAt != nil {
		return false, nil
	}
	req.Comments = review.Comments
	req.RejectionReason = review.RejectionReason
	req.RejectionDetails = review.RejectionDetails
	decidedAt := review.DecidedAt
	req.DecidedAt = &decidedAt
	r.requests[requestID] = req
	return true, nil
}
