package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
)

// Service scores submitted credits and manages the resulting alerts.
// Scoring itself never mutates anything; alert writes happen only when the
// certification workflow asks for them or a certifier acts on an alert.
type Service struct {
	repo       Repository
	thresholds Thresholds
	policy     *WeightPolicy
	logger     *zap.Logger
}

// NewService creates a fraud service with the given severity thresholds and
// optional weight policy override.
func NewService(repo Repository, thresholds Thresholds, policy *WeightPolicy, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		thresholds: thresholds,
		policy:     policy,
		logger:     logger,
	}
}

// ScoreCredit computes the anomaly score for the declared indicators.
func (s *Service) ScoreCredit(ind Indicators) (Result, error) {
	return Score(ind, s.policy, s.thresholds)
}

// HighThreshold returns the score at or above which certification is held.
func (s *Service) HighThreshold() float64 {
	return s.thresholds.High
}

// RaiseAlert records an alert for a credit whose score crossed the high
// threshold. An already-active alert for the credit is reused so repeated
// decide attempts do not pile up duplicates.
func (s *Service) RaiseAlert(ctx context.Context, creditID string, result Result) (*Alert, error) {
	existing, err := s.repo.GetActiveAlertByCredit(ctx, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active alert for credit %s: %w", creditID, err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	alert := &Alert{
		ID:           uuid.New(),
		CreditID:     creditID,
		AnomalyScore: result.Score,
		Severity:     result.Severity,
		Indicators:   result.Indicators,
		Status:       AlertStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create fraud alert: %w", err)
	}

	s.logger.Warn("fraud alert raised",
		zap.String("credit_id", creditID),
		zap.Float64("score", result.Score),
		zap.String("severity", string(result.Severity)))
	return alert, nil
}

// ActiveAlert returns the active alert for a credit, if any.
func (s *Service) ActiveAlert(ctx context.Context, creditID string) (*Alert, error) {
	return s.repo.GetActiveAlertByCredit(ctx, creditID)
}

// ListAlerts returns all alerts ever raised for a credit, newest first.
func (s *Service) ListAlerts(ctx context.Context, creditID string) ([]Alert, error) {
	return s.repo.ListByCredit(ctx, creditID)
}

// UpdateAlertStatus applies a certifier's triage action to an alert.
func (s *Service) UpdateAlertStatus(ctx context.Context, alertID uuid.UUID, status AlertStatus) error {
	switch status {
	case AlertStatusActive, AlertStatusInvestigating, AlertStatusResolved:
	default:
		return errs.Validation("unknown alert status %q", status)
	}

	ok, err := s.repo.UpdateStatus(ctx, alertID, status)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", alertID, err)
	}
	if !ok {
		return errs.NotFound("fraud alert %s not found", alertID)
	}
	return nil
}
