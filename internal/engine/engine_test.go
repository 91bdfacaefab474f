package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/certification"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/fraud"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/identity"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/marketplace"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/notifications"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/transactions"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := zap.NewNop()
	registry := credits.NewRegistry(credits.NewMemoryRepository(), logger)
	fraudSvc := fraud.NewService(fraud.NewMemoryRepository(), fraud.DefaultThresholds(), nil, logger)
	notifier := notifications.NewDispatcher(notifications.NewMemoryRepository(), nil, logger)
	coordinator := transactions.NewCoordinator(
		transactions.NewMemoryRepository(), registry, notifier, nil, time.Hour, logger)
	certificationSvc := certification.NewService(registry, fraudSvc, notifier, nil, logger)
	marketplaceSvc := marketplace.NewService(registry, coordinator, logger)
	return New(certificationSvc, marketplaceSvc, coordinator, notifier, fraudSvc, registry)
}

func producer() identity.Identity {
	return identity.Identity{UserID: uuid.New(), Role: identity.RoleProducer}
}

func certifier() identity.Identity {
	return identity.Identity{UserID: uuid.New(), Role: identity.RoleCertifier}
}

func buyer() identity.Identity {
	return identity.Identity{UserID: uuid.New(), Role: identity.RoleBuyer}
}

func submitInput() certification.SubmitInput {
	return certification.SubmitInput{
		FacilityName:     "Delta Electrolyzer Park",
		FacilityLocation: "Groningen, NL",
		EnergySource:     credits.SourceSolar,
		EnergyAmountMWh:  64,
		ProductionDate:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		ProofDocumentRef: "proofs/delta-june.pdf",
	}
}

func cleanIndicators() *fraud.Indicators {
	return &fraud.Indicators{DataInconsistency: 12, PatternMatching: 4, DocumentAuthenticity: 9}
}

func TestFullCreditLifecycle(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	prod, cert, buy := producer(), certifier(), buyer()

	// Submission is producer-only.
	_, _, err := eng.SubmitCreditRequest(ctx, buy, submitInput())
	assert.True(t, errs.IsUnauthorized(err))

	req, credit, err := eng.SubmitCreditRequest(ctx, prod, submitInput())
	require.NoError(t, err)
	assert.Equal(t, prod.UserID, credit.ProducerID)

	// Assignment and decision are certifier-only.
	_, err = eng.AssignCertifier(ctx, prod, req.ID)
	assert.True(t, errs.IsUnauthorized(err))
	_, err = eng.AssignCertifier(ctx, cert, req.ID)
	require.NoError(t, err)

	certified, err := eng.DecideCreditRequest(ctx, cert, certification.DecideInput{
		RequestID:  req.ID,
		Decision:   certification.DecisionApprove,
		Indicators: cleanIndicators(),
	})
	require.NoError(t, err)
	assert.Equal(t, credits.StatusCertified, certified.Status)

	// The credit shows up in the marketplace for everyone.
	listings, err := eng.ListAvailableCredits(ctx, buy, credits.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, credit.ID, listings[0].CreditID)

	// Purchasing is buyer-only; accepting is producer-only.
	_, err = eng.RequestPurchase(ctx, prod, credit.ID)
	assert.True(t, errs.IsUnauthorized(err))

	txn, err := eng.RequestPurchase(ctx, buy, credit.ID)
	require.NoError(t, err)

	_, err = eng.AcceptPurchase(ctx, buy, txn.ID)
	assert.True(t, errs.IsUnauthorized(err))

	accepted, err := eng.AcceptPurchase(ctx, prod, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, transactions.StateCompleted, accepted.State)

	// Sold credits leave the catalog.
	listings, err = eng.ListAvailableCredits(ctx, buy, credits.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, listings)

	// The purchasing buyer retires the credit.
	purpose := "Corporate offset report 2026"
	retired, err := eng.RetireCredit(ctx, buy, credit.ID, &purpose)
	require.NoError(t, err)
	assert.Equal(t, credits.StatusRetired, retired.Status)

	// Everyone involved got their notifications.
	prodNotifs, err := eng.GetNotifications(ctx, prod, 0)
	require.NoError(t, err)
	types := map[notifications.Type]bool{}
	for _, n := range prodNotifs {
		types[n.Type] = true
	}
	assert.True(t, types[notifications.TypeCreditRequestSubmitted])
	assert.True(t, types[notifications.TypeCreditRequestApproved])
	assert.True(t, types[notifications.TypePurchaseRequested])

	buyNotifs, err := eng.GetNotifications(ctx, buy, 0)
	require.NoError(t, err)
	types = map[notifications.Type]bool{}
	for _, n := range buyNotifs {
		types[n.Type] = true
	}
	assert.True(t, types[notifications.TypePurchaseAccepted])
	assert.True(t, types[notifications.TypeCreditRetired])
}

func TestCompetingBuyersScenario(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	prod, cert := producer(), certifier()
	buyerA, buyerB := buyer(), buyer()

	req, credit, err := eng.SubmitCreditRequest(ctx, prod, submitInput())
	require.NoError(t, err)
	_, err = eng.AssignCertifier(ctx, cert, req.ID)
	require.NoError(t, err)
	_, err = eng.DecideCreditRequest(ctx, cert, certification.DecideInput{
		RequestID:  req.ID,
		Decision:   certification.DecisionApprove,
		Indicators: cleanIndicators(),
	})
	require.NoError(t, err)

	txnA, err := eng.RequestPurchase(ctx, buyerA, credit.ID)
	require.NoError(t, err)

	// Second buyer is locked out while the first request is pending.
	_, err = eng.RequestPurchase(ctx, buyerB, credit.ID)
	assert.True(t, errs.IsConflict(err))
	assert.Equal(t, errs.ReasonAlreadyRequested, errs.ReasonOf(err))

	// A declined request reopens the credit for the second buyer.
	_, err = eng.DeclinePurchase(ctx, prod, txnA.ID)
	require.NoError(t, err)

	txnB, err := eng.RequestPurchase(ctx, buyerB, credit.ID)
	require.NoError(t, err)

	// Buyers may withdraw their own requests only.
	_, err = eng.CancelPurchase(ctx, buyerA, txnB.ID)
	assert.True(t, errs.IsUnauthorized(err))
	cancelled, err := eng.CancelPurchase(ctx, buyerB, txnB.ID)
	require.NoError(t, err)
	assert.Equal(t, transactions.StateCancelled, cancelled.State)

	history, err := eng.ListMyTransactions(ctx, buyerB)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, txnB.ID, history[0].ID)
}

func TestFraudHoldScenario(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	prod, cert := producer(), certifier()

	req, credit, err := eng.SubmitCreditRequest(ctx, prod, submitInput())
	require.NoError(t, err)
	_, err = eng.AssignCertifier(ctx, cert, req.ID)
	require.NoError(t, err)

	decide := certification.DecideInput{
		RequestID:  req.ID,
		Decision:   certification.DecisionApprove,
		Indicators: &fraud.Indicators{DataInconsistency: 95, PatternMatching: 85, DocumentAuthenticity: 87},
	}
	_, err = eng.DecideCreditRequest(ctx, cert, decide)
	assert.True(t, errs.IsFraudHold(err))

	// Alert triage is certifier-only.
	alerts, err := eng.ListFraudAlerts(ctx, cert, credit.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, fraud.AlertStatusActive, alerts[0].Status)

	_, err = eng.ListFraudAlerts(ctx, prod, credit.ID)
	assert.True(t, errs.IsUnauthorized(err))

	require.NoError(t, eng.UpdateFraudAlertStatus(ctx, cert, alerts[0].ID, fraud.AlertStatusInvestigating))

	// Override certifies despite the open alert.
	decide.Override = true
	certified, err := eng.DecideCreditRequest(ctx, cert, decide)
	require.NoError(t, err)
	assert.Equal(t, credits.StatusCertified, certified.Status)
}

func TestNotificationReadFlow(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	prod := producer()

	_, _, err := eng.SubmitCreditRequest(ctx, prod, submitInput())
	require.NoError(t, err)

	count, err := eng.UnreadNotificationCount(ctx, prod)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	list, err := eng.GetNotifications(ctx, prod, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Reading someone else's notification is refused.
	err = eng.MarkNotificationRead(ctx, buyer(), list[0].ID)
	assert.True(t, errs.IsUnauthorized(err))

	require.NoError(t, eng.MarkNotificationRead(ctx, prod, list[0].ID))
	count, err = eng.UnreadNotificationCount(ctx, prod)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, eng.MarkAllNotificationsRead(ctx, prod, nil))
}
