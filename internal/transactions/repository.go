package transactions

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines data access for purchase transactions. CreateRequested
// and Transition are conditional so the single-active-request invariant also
// holds across processes, not just behind the in-process credit lock.
type Repository interface {
	CreateRequested(ctx context.Context, txn *PurchaseTransaction) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (*PurchaseTransaction, error)
	GetRequestedByCredit(ctx context.Context, creditID string) (*PurchaseTransaction, error)
	GetCompletedByCredit(ctx context.Context, creditID string) (*PurchaseTransaction, error)
	CountByCreditAndState(ctx context.Context, creditID string, state State) (int, error)
	Transition(ctx context.Context, id uuid.UUID, from, to State, decidedAt time.Time) (bool, error)
	ListRequestedBefore(ctx context.Context, cutoff time.Time) ([]PurchaseTransaction, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]PurchaseTransaction, error)
	ListByProducer(ctx context.Context, producerID uuid.UUID) ([]PurchaseTransaction, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a sqlx-backed transaction repository.
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateRequested(ctx context.Context, txn *PurchaseTransaction) (bool, error) {
	// The NOT EXISTS guard plus the partial unique index on
	// (credit_id) WHERE state = 'REQUESTED' keeps two processes from both
	// inserting an active request.
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO purchase_transactions (id, credit_id, buyer_id, producer_id, state, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM purchase_transactions WHERE credit_id = $2 AND state = $5
		)`,
		txn.ID, txn.CreditID, txn.BuyerID, txn.ProducerID, StateRequested, txn.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*PurchaseTransaction, error) {
	var txn PurchaseTransaction
	err := r.db.GetContext(ctx, &txn, "SELECT * FROM purchase_transactions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &txn, err
}

func (r *postgresRepository) GetRequestedByCredit(ctx context.Context, creditID string) (*PurchaseTransaction, error) {
	var txn PurchaseTransaction
	err := r.db.GetContext(ctx, &txn,
		"SELECT * FROM purchase_transactions WHERE credit_id = $1 AND state = $2",
		creditID, StateRequested)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &txn, err
}

func (r *postgresRepository) GetCompletedByCredit(ctx context.Context, creditID string) (*PurchaseTransaction, error) {
	var txn PurchaseTransaction
	err := r.db.GetContext(ctx, &txn,
		"SELECT * FROM purchase_transactions WHERE credit_id = $1 AND state = $2",
		creditID, StateCompleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &txn, err
}

func (r *postgresRepository) CountByCreditAndState(ctx context.Context, creditID string, state State) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM purchase_transactions WHERE credit_id = $1 AND state = $2",
		creditID, state)
	return count, err
}

func (r *postgresRepository) Transition(ctx context.Context, id uuid.UUID, from, to State, decidedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE purchase_transactions SET state = $1, decided_at = $2 WHERE id = $3 AND state = $4",
		to, decidedAt, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) ListRequestedBefore(ctx context.Context, cutoff time.Time) ([]PurchaseTransaction, error) {
	txns := []PurchaseTransaction{}
	err := r.db.SelectContext(ctx, &txns,
		"SELECT * FROM purchase_transactions WHERE state = $1 AND created_at < $2",
		StateRequested, cutoff)
	return txns, err
}

func (r *postgresRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]PurchaseTransaction, error) {
	txns := []PurchaseTransaction{}
	err := r.db.SelectContext(ctx, &txns,
		"SELECT * FROM purchase_transactions WHERE buyer_id = $1 ORDER BY created_at DESC", buyerID)
	return txns, err
}

func (r *postgresRepository) ListByProducer(ctx context.Context, producerID uuid.UUID) ([]PurchaseTransaction, error) {
	txns := []PurchaseTransaction{}
	err := r.db.SelectContext(ctx, &txns,
		"SELECT * FROM purchase_transactions WHERE producer_id = $1 ORDER BY created_at DESC", producerID)
	return txns, err
}
