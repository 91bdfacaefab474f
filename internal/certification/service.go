package certification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/fraud"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/notifications"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/locks"
)

// Decision is the certifier's verdict on a credit request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// TokenIssuer requests an opaque token identifier for a certified credit
// from the external issuance service. Best-effort enrichment; nil skips it.
type TokenIssuer interface {
	IssueAsync(credit *credits.Credit)
}

// SubmitInput is a producer's production claim.
type SubmitInput struct {
	ProducerID       uuid.UUID
	FacilityName     string
	FacilityLocation string
	EnergySource     credits.EnergySource
	EnergyAmountMWh  float64
	ProductionDate   time.Time
	ProofDocumentRef string
	PricePerMWh      *float64
}

// DecideInput is a certifier's decision on an assigned request. Indicators
// are the certifier's declared anomaly indicators and are required for
// approval; there is no implicit defaulting.
type DecideInput struct {
	RequestID        uuid.UUID
	CertifierID      uuid.UUID
	Decision         Decision
	Comments         string
	RejectionReason  string
	RejectionDetails string
	Indicators       *fraud.Indicators
	Override         bool
}

// Service drives a credit from submission to Certified or Rejected,
// consulting the fraud scorer before any approval. Transitions for one
// credit are serialized per-credit; different credits are independent.
type Service struct {
	registry *credits.Registry
	fraud    *fraud.Service
	notifier *notifications.Dispatcher
	tokens   TokenIssuer
	locks    *locks.Keyed
	logger   *zap.Logger
}

// NewService creates a certification workflow. tokens may be nil.
func NewService(registry *credits.Registry, fraudSvc *fraud.Service, notifier *notifications.Dispatcher, tokens TokenIssuer, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		fraud:    fraudSvc,
		notifier: notifier,
		tokens:   tokens,
		locks:    locks.NewKeyed(),
		logger:   logger,
	}
}

// Submit validates a production claim and creates the credit in PENDING
// together with its one-to-one submission request.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*credits.CreditRequest, *credits.Credit, error) {
	switch {
	case in.ProducerID == uuid.Nil:
		return nil, nil, errs.Validation("producerId is required")
	case in.FacilityName == "":
		return nil, nil, errs.Validation("facilityName is required")
	case in.FacilityLocation == "":
		return nil, nil, errs.Validation("facilityLocation is required")
	case in.ProductionDate.IsZero():
		return nil, nil, errs.Validation("productionDate is required")
	case in.EnergyAmountMWh <= 0:
		return nil, nil, errs.Validation("energyAmountMWh must be positive")
	case in.ProofDocumentRef == "":
		return nil, nil, errs.Validation("proofDocumentRef is required")
	case !credits.ValidSource(in.EnergySource):
		return nil, nil, errs.Validation("unknown energy source %q", in.EnergySource)
	}

	now := time.Now()
	credit := &credits.Credit{
		ID:               credits.NewCreditID(now),
		ProducerID:       in.ProducerID,
		FacilityName:     in.FacilityName,
		FacilityLocation: in.FacilityLocation,
		EnergySource:     in.EnergySource,
		EnergyAmountMWh:  in.EnergyAmountMWh,
		ProductionDate:   in.ProductionDate,
		CO2AvoidedTonnes: credits.CO2Avoided(in.EnergySource, in.EnergyAmountMWh),
		ProofDocumentRef: in.ProofDocumentRef,
		Status:           credits.StatusPending,
		PricePerMWh:      in.PricePerMWh,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	req := &credits.CreditRequest{
		ID:          uuid.New(),
		CreditID:    credit.ID,
		ProducerID:  in.ProducerID,
		SubmittedAt: now,
	}

	if err := s.registry.CreateSubmission(ctx, credit, req); err != nil {
		return nil, nil, err
	}

	s.emit(ctx, in.ProducerID, notifications.TypeCreditRequestSubmitted, req.ID, credit.ID)
	return req, credit, nil
}

// Assign puts a pending request under review by a certifier. Reassigning
// the same certifier is a no-op; a different certifier while under review
// is a conflict.
func (s *Service) Assign(ctx context.Context, requestID, certifierID uuid.UUID) (*credits.CreditRequest, error) {
	req, err := s.registry.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(req.CreditID)
	defer s.locks.Unlock(req.CreditID)

	req, err = s.registry.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.DecidedAt != nil {
		return nil, errs.Conflict(errs.ReasonAlreadyDecided, "request %s is already decided", requestID)
	}

	alreadyAssigned := req.AssignedCertifierID != nil
	req, err = s.registry.AssignRequest(ctx, requestID, certifierID)
	if err != nil {
		return nil, err
	}
	if !alreadyAssigned {
		if err := s.registry.Transition(ctx, req.CreditID, credits.StatusPending, credits.StatusUnderReview); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Decide applies a certifier's verdict to an assigned request. Approval is
// fraud-gated: a score at or above the high threshold raises an alert and
// refuses approval unless the certifier explicitly overrides. Terminal
// decisions are immutable.
func (s *Service) Decide(ctx context.Context, in DecideInput) (*credits.Credit, error) {
	req, err := s.registry.GetRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(req.CreditID)
	defer s.locks.Unlock(req.CreditID)

	req, err = s.registry.GetRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.AssignedCertifierID == nil || *req.AssignedCertifierID != in.CertifierID {
		return nil, errs.Unauthorized("caller is not the assigned certifier of request %s", in.RequestID)
	}
	if req.DecidedAt != nil {
		return nil, errs.Conflict(errs.ReasonAlreadyDecided, "request %s is already decided", in.RequestID)
	}

	switch in.Decision {
	case DecisionApprove:
		return s.approve(ctx, req, in)
	case DecisionReject:
		return s.reject(ctx, req, in)
	default:
		return nil, errs.Validation("unknown decision %q", in.Decision)
	}
}

func (s *Service) approve(ctx context.Context, req *credits.CreditRequest, in DecideInput) (*credits.Credit, error) {
	if in.Indicators == nil {
		return nil, errs.Validation("anomaly indicators are required for approval")
	}

	result, err := s.fraud.ScoreCredit(*in.Indicators)
	if err != nil {
		return nil, err
	}
	if result.Score >= s.fraud.HighThreshold() {
		if _, err := s.fraud.RaiseAlert(ctx, req.CreditID, result); err != nil {
			return nil, err
		}
		if !in.Override {
			return nil, errs.FraudHold(
				"credit %s scored %.2f (%s); approval requires an explicit override",
				req.CreditID, result.Score, result.Severity)
		}
		// The override lets certification proceed; the alert stays ACTIVE
		// for later audit.
		s.logger.Warn("fraud hold overridden",
			zap.String("credit_id", req.CreditID),
			zap.String("certifier_id", in.CertifierID.String()),
			zap.Float64("score", result.Score))
	}

	now := time.Now()
	review := credits.Review{DecidedAt: now}
	if in.Comments != "" {
		review.Comments = &in.Comments
	}
	if err := s.registry.RecordDecision(ctx, req.ID, review); err != nil {
		return nil, err
	}
	if err := s.registry.Certify(ctx, req.CreditID, in.CertifierID, now); err != nil {
		return nil, err
	}

	credit, err := s.registry.GetCredit(ctx, req.CreditID)
	if err != nil {
		return nil, err
	}

	if s.tokens != nil {
		s.tokens.IssueAsync(credit)
	}
	s.emit(ctx, req.ProducerID, notifications.TypeCreditRequestApproved, req.ID, req.CreditID)
	return credit, nil
}

func (s *Service) reject(ctx context.Context, req *credits.CreditRequest, in DecideInput) (*credits.Credit, error) {
	if in.RejectionReason == "" {
		return nil, errs.Validation("rejectionReason is required when rejecting")
	}

	now := time.Now()
	review := credits.Review{
		RejectionReason: &in.RejectionReason,
		DecidedAt:       now,
	}
	if in.Comments != "" {
		review.Comments = &in.Comments
	}
	if in.RejectionDetails != "" {
		review.RejectionDetails = &in.RejectionDetails
	}
	if err := s.registry.RecordDecision(ctx, req.ID, review); err != nil {
		return nil, err
	}
	if err := s.registry.Transition(ctx, req.CreditID, credits.StatusUnderReview, credits.StatusRejected); err != nil {
		return nil, err
	}

	s.emit(ctx, req.ProducerID, notifications.TypeCreditRequestRejected, req.ID, req.CreditID)
	return s.registry.GetCredit(ctx, req.CreditID)
}

func (s *Service) emit(ctx context.Context, recipientID uuid.UUID, typ notifications.Type, requestID uuid.UUID, creditID string) {
	_, err := s.notifier.Emit(ctx, recipientID, typ, requestID.String(), map[string]interface{}{
		"request_id": requestID.String(),
		"credit_id":  creditID,
	})
	if err != nil {
		s.logger.Warn("failed to emit notification",
			zap.String("type", string(typ)),
			zap.String("credit_id", creditID),
			zap.Error(err))
	}
}
