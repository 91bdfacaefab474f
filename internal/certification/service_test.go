package certification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/fraud"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/notifications"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
)

type fakeTokenIssuer struct {
	mu     sync.Mutex
	issued []string
}

func (f *fakeTokenIssuer) IssueAsync(credit *credits.Credit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, credit.ID)
}

func (f *fakeTokenIssuer) issuedFor(creditID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.issued {
		if id == creditID {
			return true
		}
	}
	return false
}

type testEnv struct {
	service  *Service
	registry *credits.Registry
	fraud    *fraud.Service
	notifier *notifications.Dispatcher
	tokens   *fakeTokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	registry := credits.NewRegistry(credits.NewMemoryRepository(), logger)
	fraudSvc := fraud.NewService(fraud.NewMemoryRepository(), fraud.DefaultThresholds(), nil, logger)
	notifier := notifications.NewDispatcher(notifications.NewMemoryRepository(), nil, logger)
	tokens := &fakeTokenIssuer{}
	return &testEnv{
		service:  NewService(registry, fraudSvc, notifier, tokens, logger),
		registry: registry,
		fraud:    fraudSvc,
		notifier: notifier,
		tokens:   tokens,
	}
}

func validSubmitInput(producerID uuid.UUID) SubmitInput {
	return SubmitInput{
		ProducerID:       producerID,
		FacilityName:     "Nordsee Electrolyzer 3",
		FacilityLocation: "Wilhelmshaven, DE",
		EnergySource:     credits.SourceWind,
		EnergyAmountMWh:  120.5,
		ProductionDate:   time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		ProofDocumentRef: "proofs/nordsee-may.pdf",
	}
}

func (e *testEnv) submitted(t *testing.T, producerID uuid.UUID) (*credits.CreditRequest, *credits.Credit) {
	t.Helper()
	req, credit, err := e.service.Submit(context.Background(), validSubmitInput(producerID))
	require.NoError(t, err)
	return req, credit
}

func (e *testEnv) underReview(t *testing.T, producerID, certifierID uuid.UUID) (*credits.CreditRequest, *credits.Credit) {
	t.Helper()
	req, credit := e.submitted(t, producerID)
	_, err := e.service.Assign(context.Background(), req.ID, certifierID)
	require.NoError(t, err)
	return req, credit
}

func TestSubmitCreatesPendingCredit(t *testing.T) {
	env := newTestEnv(t)
	producerID := uuid.New()

	req, credit, err := env.service.Submit(context.Background(), validSubmitInput(producerID))
	require.NoError(t, err)

	assert.Equal(t, credits.StatusPending, credit.Status)
	assert.Equal(t, producerID, credit.ProducerID)
	assert.Equal(t, credit.ID, req.CreditID)
	assert.Nil(t, req.AssignedCertifierID)
	assert.Nil(t, req.DecidedAt)
	assert.InDelta(t, 0.46*120.5, credit.CO2AvoidedTonnes, 1e-9)

	list, err := env.notifier.List(context.Background(), producerID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notifications.TypeCreditRequestSubmitted, list[0].Type)
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	producerID := uuid.New()

	cases := []struct {
		name   string
		mutate func(*SubmitInput)
	}{
		{"missing facility name", func(in *SubmitInput) { in.FacilityName = "" }},
		{"missing facility location", func(in *SubmitInput) { in.FacilityLocation = "" }},
		{"missing production date", func(in *SubmitInput) { in.ProductionDate = time.Time{} }},
		{"zero energy amount", func(in *SubmitInput) { in.EnergyAmountMWh = 0 }},
		{"negative energy amount", func(in *SubmitInput) { in.EnergyAmountMWh = -5 }},
		{"missing proof document", func(in *SubmitInput) { in.ProofDocumentRef = "" }},
		{"unknown energy source", func(in *SubmitInput) { in.EnergySource = "FUSION" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validSubmitInput(producerID)
			tc.mutate(&in)
			_, _, err := env.service.Submit(context.Background(), in)
			assert.True(t, errs.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestAssignMovesCreditUnderReview(t *testing.T) {
	env := newTestEnv(t)
	certifierID := uuid.New()
	req, credit := env.submitted(t, uuid.New())

	assigned, err := env.service.Assign(context.Background(), req.ID, certifierID)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedCertifierID)
	assert.Equal(t, certifierID, *assigned.AssignedCertifierID)

	reloaded, err := env.registry.GetCredit(context.Background(), credit.ID)
	require.NoError(t, err)
	assert.Equal(t, credits.StatusUnderReview, reloaded.Status)
}

func TestAssignIsIdempotentForSameCertifier(t *testing.T) {
	env := newTestEnv(t)
	certifierID := uuid.New()
	req, credit := env.underReview(t, uuid.New(), certifierID)

	again, err := env.service.Assign(context.Background(), req.ID, certifierID)
	require.NoError(t, err)
	assert.Equal(t, certifierID, *again.AssignedCertifierID)

	reloaded, err := env.registry.GetCredit(context.Background(), credit.ID)
	require.NoError(t, err)
	assert.Equal(t, credits.StatusUnderReview, reloaded.Status)
}

func TestAssignConflictsForDifferentCertifier(t *testing.T) {
	env := newTestEnv(t)
	req, _ := env.underReview(t, uuid.New(), uuid.New())

	_, err := env.service.Assign(context.Background(), req.ID, uuid.New())
	assert.True(t, errs.IsConflict(err))
	assert.Equal(t, errs.ReasonAlreadyAssigned, errs.ReasonOf(err))
}

func TestDecideRequiresAssignedCertifier(t *testing.T) {
	env := newTestEnv(t)
	req, _ := env.underReview(t, uuid.New(), uuid.New())

	_, err := env.service.Decide(context.Background(), DecideInput{
		RequestID:   req.ID,
		CertifierID: uuid.New(),
		Decision:    DecisionApprove,
		Indicators:  &fraud.Indicators{},
	})
	assert.True(t, errs.IsUnauthorized(err))
}

func TestApproveRequiresIndicators(t *testing.T) {
	env := newTestEnv(t)
	certifierID := uuid.New()
	req, _ := env.underReview(t, uuid.New(), certifierID)

	_, err := env.service.Decide(context.Background(), DecideInput{
		RequestID:   req.ID,
		CertifierID: certifierID,
		Decision:    DecisionApprove,
	})
	assert.True(t, errs.IsValidation(err))
}

func TestApproveCertifiesCredit(t *testing.T) {
	env := newTestEnv(t)
	producerID := uuid.New()
	certifierID := uuid.New()
	req, _ := env.underReview(t, producerID, certifierID)

	credit, err := env.service.Decide(context.Background(), DecideInput{
		RequestID:   req.ID,
		CertifierID: certifierID,
		Decision:    DecisionApprove,
		Comments:    "Meter readings match the proof documents.",
		Indicators:  &fraud.Indicators{DataInconsistency: 10, PatternMatching: 5, DocumentAuthenticity: 8},
	})
	require.NoError(t, err)

	assert.Equal(t, credits.StatusCertified, credit.Status)
	require.NotNil(t, credit.CertifierID)
	assert.Equal(t, certifierID, *credit.CertifierID)
	assert.NotNil(t, credit.CertificationDate)
	assert.True(t, env.tokens.issuedFor(credit.ID))

	// No alert below the high threshold.
	alert, err := env.fraud.ActiveAlert(context.Background(), credit.ID)
	require.NoError(t, err)
	assert.Nil(t, alert)

	list, err := env.notifier.List(context.Background(), producerID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, notifications.TypeCreditRequestApproved, list[0].Type)
}

func TestApproveHeldOnHighFraudScore(t *testing.T) {
	env := newTestEnv(t)
	certifierID := uuid.New()
	req, credit := env.underReview(t, uuid.New(), certifierID)

	highRisk := DecideInput{
		RequestID:   req.ID,
		CertifierID: certifierID,
		Decision:    DecisionApprove,
		Indicators:  &fraud.Indicators{DataInconsistency: 95, PatternMatching: 85, DocumentAuthenticity: 87},
	}

	_, err := env.service.Decide(context.Background(), highRisk)
	assert.True(t, errs.IsFraudHold(err))

	// The hold leaves the credit reviewable and raises an alert.
	reloaded, err := env.registry.GetCredit(context.Background(), credit.ID)
	require.NoError(t, err)
	assert.Equal(t, credits.StatusUnderReview, reloaded.Status)

	alert, err := env.fraud.ActiveAlert(context.Background(), credit.ID)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, fraud.AlertStatusActive, alert.Status)
	assert.InDelta(t, 0.89, alert.AnomalyScore, 1e-9)
	assert.Equal(t, fraud.SeverityHigh, alert.Severity)

	// A repeated hold reuses the alert instead of duplicating it.
	_, err = env.service.Decide(context.Background(), highRisk)
	assert.True(t, errs.IsFraudHold(err))
	alerts, err := env.fraud.ListAlerts(context.Background(), credit.ID)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	// An explicit override certifies anyway; the alert stays active.
	highRisk.Override = true
	certified, err := env.service.Decide(context.Background(), highRisk)
	require.NoError(t, err)
	assert.Equal(t, credits.StatusCertified, certified.Status)

	alert, err = env.fraud.ActiveAlert(context.Background(), credit.ID)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, fraud.AlertStatusActive, alert.Status)
}

func TestRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	certifierID := uuid.New()
	req, _ := env.underReview(t, uuid.New(), certifierID)

	_, err := env.service.Decide(context.Background(), DecideInput{
		RequestID:   req.ID,
		CertifierID: certifierID,
		Decision:    DecisionReject,
	})
	assert.True(t, errs.IsValidation(err))
}

func TestRejectIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	producerID := uuid.New()
	certifierID := uuid.New()
	req, _ := env.underReview(t, producerID, certifierID)

	credit, err := env.service.Decide(context.Background(), DecideInput{
		RequestID:       req.ID,
		CertifierID:     certifierID,
		Decision:        DecisionReject,
		RejectionReason: "INSUFFICIENT_PROOF",
	})
	require.NoError(t, err)
	assert.Equal(t, credits.StatusRejected, credit.Status)

	reloaded, err := env.registry.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.RejectionReason)
	assert.Equal(t, "INSUFFICIENT_PROOF", *reloaded.RejectionReason)
	assert.NotNil(t, reloaded.DecidedAt)

	// Decisions are immutable.
	_, err = env.service.Decide(context.Background(), DecideInput{
		RequestID:   req.ID,
		CertifierID: certifierID,
		Decision:    DecisionApprove,
		Indicators:  &fraud.Indicators{},
	})
	assert.True(t, errs.IsConflict(err))
	assert.Equal(t, errs.ReasonAlreadyDecided, errs.ReasonOf(err))

	list, err := env.notifier.List(context.Background(), producerID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, notifications.TypeCreditRequestRejected, list[0].Type)
}

func TestDecideRejectsUnknownVerdict(t *testing.T) {
	env := newTestEnv(t)
	certifierID := uuid.New()
	req, _ := env.underReview(t, uuid.New(), certifierID)

	_, err := env.service.Decide(context.Background(), DecideInput{
		RequestID:   req.ID,
		CertifierID: certifierID,
		Decision:    "maybe",
	})
	assert.True(t, errs.IsValidation(err))
}
