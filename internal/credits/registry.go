package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/workflows"
)

// Registry is the sole writer of credit state. Every status mutation goes
// through it and is checked against the credit state machine before the
// conditional write is attempted.
type Registry struct {
	repo   Repository
	sm     *workflows.StateMachine
	logger *zap.Logger
}

// NewRegistry creates a credit registry over the given repository.
func NewRegistry(repo Repository, logger *zap.Logger) *Registry {
	return &Registry{
		repo:   repo,
		sm:     workflows.NewCreditStateMachine(),
		logger: logger,
	}
}

// GetCredit returns a credit or a NotFoundError.
func (r *Registry) GetCredit(ctx context.Context, creditID string) (*Credit, error) {
	credit, err := r.repo.GetCredit(ctx, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit %s: %w", creditID, err)
	}
	if credit == nil {
		return nil, errs.NotFound("credit %s not found", creditID)
	}
	return credit, nil
}

// GetRequest returns a submission request or a NotFoundError.
func (r *Registry) GetRequest(ctx context.Context, requestID uuid.UUID) (*CreditRequest, error) {
	req, err := r.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", requestID, err)
	}
	if req == nil {
		return nil, errs.NotFound("credit request %s not found", requestID)
	}
	return req, nil
}

// ListAvailable returns certified, unsold credits ordered by certification
// date descending with creditId as the deterministic tie-break.
func (r *Registry) ListAvailable(ctx context.Context, filter ListFilter) ([]Credit, error) {
	return r.repo.ListAvailable(ctx, filter)
}

// ListByProducer returns all credits submitted by a producer.
func (r *Registry) ListByProducer(ctx context.Context, producerID uuid.UUID) ([]Credit, error) {
	return r.repo.ListByProducer(ctx, producerID)
}

// CreateSubmission stores a new credit and its one-to-one request.
func (r *Registry) CreateSubmission(ctx context.Context, credit *Credit, req *CreditRequest) error {
	if err := r.repo.CreateCredit(ctx, credit); err != nil {
		return fmt.Errorf("failed to create credit: %w", err)
	}
	if err := r.repo.CreateRequest(ctx, req); err != nil {
		return fmt.Errorf("failed to create credit request: %w", err)
	}
	r.logger.Info("credit submitted",
		zap.String("credit_id", credit.ID),
		zap.String("producer_id", credit.ProducerID.String()))
	return nil
}

// Transition moves a credit between lifecycle statuses, failing with a
// ConflictError when the transition is not allowed or the credit moved
// concurrently.
func (r *Registry) Transition(ctx context.Context, creditID string, from, to CreditStatus) error {
	if !r.sm.CanTransition(string(from), string(to)) {
		return errs.Conflict(errs.ReasonAlreadyDecided, "credit %s cannot move %s -> %s", creditID, from, to)
	}
	ok, err := r.repo.TransitionStatus(ctx, creditID, from, to)
	if err != nil {
		return fmt.Errorf("failed to transition credit %s: %w", creditID, err)
	}
	if !ok {
		return errs.Conflict(errs.ReasonAlreadyDecided, "credit %s is no longer %s", creditID, from)
	}
	return nil
}

// Certify marks an under-review credit as certified.
func (r *Registry) Certify(ctx context.Context, creditID string, certifierID uuid.UUID, at time.Time) error {
	ok, err := r.repo.Certify(ctx, creditID, certifierID, at)
	if err != nil {
		return fmt.Errorf("failed to certify credit %s: %w", creditID, err)
	}
	if !ok {
		return errs.Conflict(errs.ReasonAlreadyDecided, "credit %s is not under review", creditID)
	}
	r.logger.Info("credit certified",
		zap.String("credit_id", creditID),
		zap.String("certifier_id", certifierID.String()))
	return nil
}

// MarkSold flips the sold flag on a certified, unsold credit.
func (r *Registry) MarkSold(ctx context.Context, creditID string) error {
	ok, err := r.repo.MarkSold(ctx, creditID)
	if err != nil {
		return fmt.Errorf("failed to mark credit %s sold: %w", creditID, err)
	}
	if !ok {
		return errs.Conflict(errs.ReasonNotAvailable, "credit %s is not available for sale", creditID)
	}
	return nil
}

// MarkRetired permanently removes a sold credit from circulation.
func (r *Registry) MarkRetired(ctx context.Context, creditID, certificateNumber string, purpose *string, at time.Time) error {
	ok, err := r.repo.MarkRetired(ctx, creditID, certificateNumber, purpose, at)
	if err != nil {
		return fmt.Errorf("failed to retire credit %s: %w", creditID, err)
	}
	if !ok {
		return errs.Conflict(errs.ReasonNotAvailable, "credit %s is not sold", creditID)
	}
	r.logger.Info("credit retired", zap.String("credit_id", creditID))
	return nil
}

// SetTokenID records the opaque token identifier returned by the external
// issuance service. Best-effort enrichment; the first write wins.
func (r *Registry) SetTokenID(ctx context.Context, creditID, tokenID string) error {
	return r.repo.SetTokenID(ctx, creditID, tokenID)
}

// AssignRequest assigns a certifier to a pending request. Reassigning the
// same certifier is a no-op; a different certifier is a conflict.
func (r *Registry) AssignRequest(ctx context.Context, requestID, certifierID uuid.UUID) (*CreditRequest, error) {
	req, err := r.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.AssignedCertifierID != nil {
		if *req.AssignedCertifierID == certifierID {
			return req, nil
		}
		return nil, errs.Conflict(errs.ReasonAlreadyAssigned,
			"request %s is already assigned to another certifier", requestID)
	}

	ok, err := r.repo.AssignRequest(ctx, requestID, certifierID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign request %s: %w", requestID, err)
	}
	if !ok {
		return nil, errs.Conflict(errs.ReasonAlreadyAssigned,
			"request %s was assigned concurrently", requestID)
	}

	req.AssignedCertifierID = &certifierID
	return req, nil
}

// RecordDecision stores the review outcome on an undecided request.
func (r *Registry) RecordDecision(ctx context.Context, requestID uuid.UUID, review Review) error {
	ok, err := r.repo.RecordDecision(ctx, requestID, review)
	if err != nil {
		return fmt.Errorf("failed to record decision for request %s: %w", requestID, err)
	}
	if !ok {
		return errs.Conflict(errs.ReasonAlreadyDecided, "request %s is already decided", requestID)
	}
	return nil
}
