package credits

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines data access for credits and their submission requests.
// Conditional writes return false when the expected preconditions no longer
// hold, so callers can surface conflicts instead of clobbering state.
type Repository interface {
	CreateCredit(ctx context.Context, credit *Credit) error
	GetCredit(ctx context.Context, id string) (*Credit, error)
	ListAvailable(ctx context.Context, filter ListFilter) ([]Credit, error)
	ListByProducer(ctx context.Context, producerID uuid.UUID) ([]Credit, error)
	TransitionStatus(ctx context.Context, creditID string, from, to CreditStatus) (bool, error)
	Certify(ctx context.Context, creditID string, certifierID uuid.UUID, at time.Time) (bool, error)
	MarkSold(ctx context.Context, creditID string) (bool, error)
	MarkRetired(ctx context.Context, creditID, certificateNumber string, purpose *string, at time.Time) (bool, error)
	SetTokenID(ctx context.Context, creditID, tokenID string) error

	CreateRequest(ctx context.Context, req *CreditRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*CreditRequest, error)
	GetRequestByCredit(ctx context.Context, creditID string) (*CreditRequest, error)
	AssignRequest(ctx context.Context, requestID, certifierID uuid.UUID) (bool, error)
	RecordDecision(ctx context.Context, requestID uuid.UUID, review Review) (bool, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a sqlx-backed credit repository.
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateCredit(ctx context.Context, credit *Credit) error {
	query := `
		INSERT INTO credits (
			id, producer_id, facility_name, facility_location, energy_source,
			energy_amount_mwh, production_date, co2_avoided_tonnes, proof_document_ref,
			status, certifier_id, certification_date, token_id, is_sold, price_per_mwh,
			retired_at, retirement_purpose, certificate_number, created_at, updated_at
		) VALUES (
			:id, :producer_id, :facility_name, :facility_location, :energy_source,
			:energy_amount_mwh, :production_date, :co2_avoided_tonnes, :proof_document_ref,
			:status, :certifier_id, :certification_date, :token_id, :is_sold, :price_per_mwh,
			:retired_at, :retirement_purpose, :certificate_number, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, credit)
	return err
}

func (r *postgresRepository) GetCredit(ctx context.Context, id string) (*Credit, error) {
	var credit Credit
	err := r.db.GetContext(ctx, &credit, "SELECT * FROM credits WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &credit, err
}

func (r *postgresRepository) ListAvailable(ctx context.Context, filter ListFilter) ([]Credit, error) {
	credits := []Credit{}
	query := "SELECT * FROM credits WHERE status = $1 AND is_sold = false"
	args := []interface{}{StatusCertified}
	argCount := 2

	if filter.EnergySource != nil {
		query += fmt.Sprintf(" AND energy_source = $%d", argCount)
		args = append(args, *filter.EnergySource)
		argCount++
	}
	if filter.ProducerID != nil {
		query += fmt.Sprintf(" AND producer_id = $%d", argCount)
		args = append(args, *filter.ProducerID)
		argCount++
	}

	query += " ORDER BY certification_date DESC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
	}

	err := r.db.SelectContext(ctx, &credits, query, args...)
	return credits, err
}

func (r *postgresRepository) ListByProducer(ctx context.Context, producerID uuid.UUID) ([]Credit, error) {
	credits := []Credit{}
	err := r.db.SelectContext(ctx, &credits,
		"SELECT * FROM credits WHERE producer_id = $1 ORDER BY created_at DESC", producerID)
	return credits, err
}

func (r *postgresRepository) TransitionStatus(ctx context.Context, creditID string, from, to CreditStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE credits SET status = $1, updated_at = now() WHERE id = $2 AND status = $3",
		to, creditID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) Certify(ctx context.Context, creditID string, certifierID uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credits
		SET status = $1, certifier_id = $2, certification_date = $3, updated_at = now()
		WHERE id = $4 AND status = $5`,
		StatusCertified, certifierID, at, creditID, StatusUnderReview)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) MarkSold(ctx context.Context, creditID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credits
		SET status = $1, is_sold = true, updated_at = now()
		WHERE id = $2 AND status = $3 AND is_sold = false`,
		StatusSold, creditID, StatusCertified)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) MarkRetired(ctx context.Context, creditID, certificateNumber string, purpose *string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credits
		SET status = $1, retired_at = $2, retirement_purpose = $3, certificate_number = $4, updated_at = now()
		WHERE id = $5 AND status = $6`,
		StatusRetired, at, purpose, certificateNumber, creditID, StatusSold)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) SetTokenID(ctx context.Context, creditID, tokenID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE credits SET token_id = $1, updated_at = now() WHERE id = $2 AND token_id IS NULL",
		tokenID, creditID)
	return err
}

func (r *postgresRepository) CreateRequest(ctx context.Context, req *CreditRequest) error {
	query := `
		INSERT INTO credit_requests (
			id, credit_id, producer_id, submitted_at, assigned_certifier_id,
			comments, rejection_reason, rejection_details, decided_at
		) VALUES (
			:id, :credit_id, :producer_id, :submitted_at, :assigned_certifier_id,
			:comments, :rejection_reason, :rejection_details, :decided_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, req)
	return err
}

func (r *postgresRepository) GetRequest(ctx context.Context, id uuid.UUID) (*CreditRequest, error) {
	var req CreditRequest
	err := r.db.GetContext(ctx, &req, "SELECT * FROM credit_requests WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &req, err
}

func (r *postgresRepository) GetRequestByCredit(ctx context.Context, creditID string) (*CreditRequest, error) {
	var req CreditRequest
	err := r.db.GetContext(ctx, &req, "SELECT * FROM credit_requests WHERE credit_id = $1", creditID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &req, err
}

func (r *postgresRepository) AssignRequest(ctx context.Context, requestID, certifierID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credit_requests
		SET assigned_certifier_id = $1
		WHERE id = $2 AND assigned_certifier_id IS NULL AND decided_at IS NULL`,
		certifierID, requestID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) RecordDecision(ctx context.Context, requestID uuid.UUID, review Review) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credit_requests
		SET comments = $1, rejection_reason = $2, rejection_details = $3, decided_at = $4
		WHERE id = $5 AND decided_at IS NULL`,
		review.Comments, review.RejectionReason, review.RejectionDetails, review.DecidedAt, requestID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
