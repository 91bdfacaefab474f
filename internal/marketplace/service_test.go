package marketplace

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/notifications"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/transactions"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
)

type marketEnv struct {
	service  *Service
	registry *credits.Registry
}

func newMarketEnv(t *testing.T) *marketEnv {
	t.Helper()
	logger := zap.NewNop()
	registry := credits.NewRegistry(credits.NewMemoryRepository(), logger)
	notifier := notifications.NewDispatcher(notifications.NewMemoryRepository(), nil, logger)
	coordinator := transactions.NewCoordinator(
		transactions.NewMemoryRepository(), registry, notifier, nil, time.Hour, logger)
	return &marketEnv{
		service:  NewService(registry, coordinator, logger),
		registry: registry,
	}
}

func (e *marketEnv) addCredit(t *testing.T, producerID uuid.UUID, source credits.EnergySource, status credits.CreditStatus, certifiedAt time.Time) *credits.Credit {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	credit := &credits.Credit{
		ID:               credits.NewCreditID(now),
		ProducerID:       producerID,
		FacilityName:     fmt.Sprintf("Plant %s", source),
		FacilityLocation: "Rotterdam, NL",
		EnergySource:     source,
		EnergyAmountMWh:  50,
		ProductionDate:   now.AddDate(0, -2, 0),
		CO2AvoidedTonnes: credits.CO2Avoided(source, 50),
		ProofDocumentRef: "proofs/doc.pdf",
		Status:           credits.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	req := &credits.CreditRequest{ID: uuid.New(), CreditID: credit.ID, ProducerID: producerID, SubmittedAt: now}
	require.NoError(t, e.registry.CreateSubmission(ctx, credit, req))

	if status == credits.StatusPending {
		return credit
	}
	require.NoError(t, e.registry.Transition(ctx, credit.ID, credits.StatusPending, credits.StatusUnderReview))
	if status == credits.StatusUnderReview {
		return credit
	}
	require.NoError(t, e.registry.Certify(ctx, credit.ID, uuid.New(), certifiedAt))
	if status == credits.StatusRejected {
		t.Fatal("use Transition for rejected credits")
	}
	if status == credits.StatusSold {
		require.NoError(t, e.registry.MarkSold(ctx, credit.ID))
	}
	return credit
}

func TestListAvailableShowsOnlyCertifiedUnsold(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	producerID := uuid.New()
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	env.addCredit(t, producerID, credits.SourceWind, credits.StatusPending, time.Time{})
	env.addCredit(t, producerID, credits.SourceWind, credits.StatusUnderReview, time.Time{})
	env.addCredit(t, producerID, credits.SourceSolar, credits.StatusSold, base)
	listed := env.addCredit(t, producerID, credits.SourceHydro, credits.StatusCertified, base)

	listings, err := env.service.ListAvailable(ctx, credits.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, listed.ID, listings[0].CreditID)
}

func TestListAvailableOrderingIsDeterministic(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	producerID := uuid.New()
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	older := env.addCredit(t, producerID, credits.SourceWind, credits.StatusCertified, base.Add(-time.Hour))
	newest := env.addCredit(t, producerID, credits.SourceWind, credits.StatusCertified, base.Add(time.Hour))
	tiedA := env.addCredit(t, producerID, credits.SourceSolar, credits.StatusCertified, base)
	tiedB := env.addCredit(t, producerID, credits.SourceSolar, credits.StatusCertified, base)

	listings, err := env.service.ListAvailable(ctx, credits.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listings, 4)

	// Newest certification first; equal dates break ties on credit id.
	assert.Equal(t, newest.ID, listings[0].CreditID)
	assert.Equal(t, older.ID, listings[3].CreditID)
	first, second := tiedA.ID, tiedB.ID
	if second < first {
		first, second = second, first
	}
	assert.Equal(t, first, listings[1].CreditID)
	assert.Equal(t, second, listings[2].CreditID)
}

func TestListAvailableFilters(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	producerA := uuid.New()
	producerB := uuid.New()
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	wind := env.addCredit(t, producerA, credits.SourceWind, credits.StatusCertified, base)
	env.addCredit(t, producerB, credits.SourceSolar, credits.StatusCertified, base.Add(time.Minute))

	source := credits.SourceWind
	listings, err := env.service.ListAvailable(ctx, credits.ListFilter{EnergySource: &source})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, wind.ID, listings[0].CreditID)

	listings, err = env.service.ListAvailable(ctx, credits.ListFilter{ProducerID: &producerA})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, wind.ID, listings[0].CreditID)

	listings, err = env.service.ListAvailable(ctx, credits.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, listings, 1)

	bogus := credits.EnergySource("FUSION")
	_, err = env.service.ListAvailable(ctx, credits.ListFilter{EnergySource: &bogus})
	assert.True(t, errs.IsValidation(err))
}

func TestListingHidesReviewInternals(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	credit := env.addCredit(t, uuid.New(), credits.SourceGeothermal, credits.StatusCertified, base)

	listings, err := env.service.ListAvailable(ctx, credits.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listings, 1)

	listing := listings[0]
	assert.Equal(t, credit.ID, listing.CreditID)
	assert.Equal(t, credit.CO2AvoidedTonnes, listing.CO2AvoidedTonnes)
	require.NotNil(t, listing.CertificationDate)
	assert.True(t, base.Equal(*listing.CertificationDate))
}

func TestRequestPurchaseDelegatesToCoordinator(t *testing.T) {
	env := newMarketEnv(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	credit := env.addCredit(t, uuid.New(), credits.SourceWind, credits.StatusCertified, base)
	buyerID := uuid.New()

	_, err := env.service.RequestPurchase(ctx, "", buyerID)
	assert.True(t, errs.IsValidation(err))

	txn, err := env.service.RequestPurchase(ctx, credit.ID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, transactions.StateRequested, txn.State)
	assert.Equal(t, buyerID, txn.BuyerID)

	// A credit with an active request still shows in the catalog.
	listings, err := env.service.ListAvailable(ctx, credits.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}
