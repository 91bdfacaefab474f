package marketplace

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/transactions"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
)

// Service is the buyer-facing surface of the marketplace: browsing the
// catalog of certified, unsold credits and opening purchase transactions
// against them.
type Service struct {
	registry    *credits.Registry
	coordinator *transactions.Coordinator
	logger      *zap.Logger
}

// NewService creates a marketplace service.
func NewService(registry *credits.Registry, coordinator *transactions.Coordinator, logger *zap.Logger) *Service {
	return &Service{
		registry:    registry,
		coordinator: coordinator,
		logger:      logger,
	}
}

// ListAvailable returns the purchasable catalog: certified, unsold credits
// ordered by certification date descending. A credit with an active purchase
// request still appears here; availability only changes on completion.
func (s *Service) ListAvailable(ctx context.Context, filter credits.ListFilter) ([]Listing, error) {
	if filter.EnergySource != nil && !credits.ValidSource(*filter.EnergySource) {
		return nil, errs.Validation("unknown energy source %q", *filter.EnergySource)
	}

	available, err := s.registry.ListAvailable(ctx, filter)
	if err != nil {
		return nil, err
	}

	listings := make([]Listing, 0, len(available))
	for i := range available {
		listings = append(listings, newListing(&available[i]))
	}
	return listings, nil
}

// RequestPurchase opens a purchase transaction for a buyer against an
// available credit. At most one request per credit is active at a time.
func (s *Service) RequestPurchase(ctx context.Context, creditID string, buyerID uuid.UUID) (*transactions.PurchaseTransaction, error) {
	if creditID == "" {
		return nil, errs.Validation("creditId is required")
	}
	return s.coordinator.Create(ctx, creditID, buyerID)
}
