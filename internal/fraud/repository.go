package fraud

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines data access for fraud alerts.
type Repository interface {
	CreateAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error)
	GetActiveAlertByCredit(ctx context.Context, creditID string) (*Alert, error)
	ListByCredit(ctx context.Context, creditID string) ([]Alert, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status AlertStatus) (bool, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a sqlx-backed fraud alert repository.
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateAlert(ctx context.Context, alert *Alert) error {
	query := `
		INSERT INTO fraud_alerts (
			id, credit_id, anomaly_score, severity, indicators, status, created_at, updated_at
		) VALUES (
			:id, :credit_id, :anomaly_score, :severity, :indicators, :status, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, alert)
	return err
}

func (r *postgresRepository) GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	var alert Alert
	err := r.db.GetContext(ctx, &alert, "SELECT * FROM fraud_alerts WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &alert, err
}

func (r *postgresRepository) GetActiveAlertByCredit(ctx context.Context, creditID string) (*Alert, error) {
	var alert Alert
	err := r.db.GetContext(ctx, &alert,
		"SELECT * FROM fraud_alerts WHERE credit_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1",
		creditID, AlertStatusActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &alert, err
}

func (r *postgresRepository) ListByCredit(ctx context.Context, creditID string) ([]Alert, error) {
	alerts := []Alert{}
	err := r.db.SelectContext(ctx, &alerts,
		"SELECT * FROM fraud_alerts WHERE credit_id = $1 ORDER BY created_at DESC", creditID)
	return alerts, err
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status AlertStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE fraud_alerts SET status = $1, updated_at = now() WHERE id = $2", status, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
