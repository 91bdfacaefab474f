package transactions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/notifications"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/locks"
)

// CertificateIssuer renders and stores a retirement certificate, returning
// the stored document reference. Best-effort; a nil issuer skips it.
type CertificateIssuer interface {
	Issue(ctx context.Context, credit *credits.Credit, txn *PurchaseTransaction, certificateNumber string, purpose *string) (string, error)
}

// Coordinator owns the purchase transaction lifecycle and performs the
// atomic credit transfer. All mutations of the (credit sold-state,
// active-request-existence) pair happen under a per-credit lock; unrelated
// credits never contend.
type Coordinator struct {
	repo     Repository
	registry *credits.Registry
	notifier *notifications.Dispatcher
	issuer   CertificateIssuer
	locks    *locks.Keyed
	ttl      time.Duration
	logger   *zap.Logger
}

// NewCoordinator creates a transaction coordinator. issuer may be nil.
func NewCoordinator(repo Repository, registry *credits.Registry, notifier *notifications.Dispatcher, issuer CertificateIssuer, ttl time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		repo:     repo,
		registry: registry,
		notifier: notifier,
		issuer:   issuer,
		locks:    locks.NewKeyed(),
		ttl:      ttl,
		logger:   logger,
	}
}

// TTL returns the configured time-to-live for requested transactions.
func (c *Coordinator) TTL() time.Duration { return c.ttl }

// Create performs the atomic check-and-create for a purchase intent. Two
// concurrent calls for the same credit resolve to exactly one REQUESTED
// transaction; the loser observes ConflictError(AlreadyRequested).
func (c *Coordinator) Create(ctx context.Context, creditID string, buyerID uuid.UUID) (*PurchaseTransaction, error) {
	c.locks.Lock(creditID)
	defer c.locks.Unlock(creditID)

	credit, err := c.registry.GetCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if err := c.checkSoldIntegrity(ctx, credit); err != nil {
		return nil, err
	}
	if credit.Status != credits.StatusCertified || credit.IsSold {
		return nil, errs.Conflict(errs.ReasonNotAvailable,
			"credit %s is not available for purchase", creditID)
	}

	existing, err := c.repo.GetRequestedByCredit(ctx, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active requests for credit %s: %w", creditID, err)
	}
	if existing != nil {
		return nil, errs.Conflict(errs.ReasonAlreadyRequested,
			"credit %s already has an active purchase request", creditID)
	}

	txn := &PurchaseTransaction{
		ID:         uuid.New(),
		CreditID:   creditID,
		BuyerID:    buyerID,
		ProducerID: credit.ProducerID,
		State:      StateRequested,
		CreatedAt:  time.Now(),
	}
	ok, err := c.repo.CreateRequested(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase transaction: %w", err)
	}
	if !ok {
		return nil, errs.Conflict(errs.ReasonAlreadyRequested,
			"credit %s already has an active purchase request", creditID)
	}

	c.emit(ctx, credit.ProducerID, notifications.TypePurchaseRequested, txn)
	c.logger.Info("purchase requested",
		zap.String("credit_id", creditID),
		zap.String("transaction_id", txn.ID.String()),
		zap.String("buyer_id", buyerID.String()))
	return txn, nil
}

// Accept completes a requested transaction: the transaction moves to
// COMPLETED and the credit is marked sold as one unit under the credit lock.
func (c *Coordinator) Accept(ctx context.Context, txnID, producerID uuid.UUID) (*PurchaseTransaction, error) {
	txn, err := c.get(ctx, txnID)
	if err != nil {
		return nil, err
	}

	c.locks.Lock(txn.CreditID)
	defer c.locks.Unlock(txn.CreditID)

	txn, err = c.get(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.ProducerID != producerID {
		return nil, errs.Unauthorized("caller is not the producer of transaction %s", txnID)
	}
	if txn.State != StateRequested {
		return nil, errs.Conflict(errs.ReasonNotRequested,
			"transaction %s is %s, not %s", txnID, txn.State, StateRequested)
	}

	now := time.Now()
	ok, err := c.repo.Transition(ctx, txnID, StateRequested, StateCompleted, now)
	if err != nil {
		return nil, fmt.Errorf("failed to complete transaction %s: %w", txnID, err)
	}
	if !ok {
		return nil, errs.Conflict(errs.ReasonNotRequested,
			"transaction %s was decided concurrently", txnID)
	}

	if err := c.registry.MarkSold(ctx, txn.CreditID); err != nil {
		// The transaction completed but the credit refused the sold flag.
		// Under the per-credit lock this cannot happen unless the data is
		// already inconsistent, so treat it as fatal.
		c.logger.Error("credit transfer integrity failure",
			zap.String("credit_id", txn.CreditID),
			zap.String("transaction_id", txnID.String()),
			zap.Error(err))
		return nil, errs.Integrity("transaction %s completed but credit %s could not be marked sold", txnID, txn.CreditID)
	}

	txn.State = StateCompleted
	txn.DecidedAt = &now

	c.emit(ctx, txn.BuyerID, notifications.TypePurchaseAccepted, txn)
	c.logger.Info("purchase accepted",
		zap.String("credit_id", txn.CreditID),
		zap.String("transaction_id", txnID.String()))
	return txn, nil
}

// Decline rejects a requested transaction; the credit stays available.
func (c *Coordinator) Decline(ctx context.Context, txnID, producerID uuid.UUID) (*PurchaseTransaction, error) {
	return c.decide(ctx, txnID, StateDeclined, func(txn *PurchaseTransaction) error {
		if txn.ProducerID != producerID {
			return errs.Unauthorized("caller is not the producer of transaction %s", txnID)
		}
		return nil
	}, func(txn *PurchaseTransaction) {
		c.emit(ctx, txn.BuyerID, notifications.TypePurchaseDeclined, txn)
	})
}

// Cancel is the buyer-initiated withdrawal of a requested transaction.
func (c *Coordinator) Cancel(ctx context.Context, txnID, buyerID uuid.UUID) (*PurchaseTransaction, error) {
	return c.decide(ctx, txnID, StateCancelled, func(txn *PurchaseTransaction) error {
		if txn.BuyerID != buyerID {
			return errs.Unauthorized("caller is not the buyer of transaction %s", txnID)
		}
		return nil
	}, func(txn *PurchaseTransaction) {
		c.emit(ctx, txn.ProducerID, notifications.TypePurchaseCancelled, txn)
	})
}

// Expire moves a stale requested transaction to EXPIRED. Expiring an
// already-terminal transaction is a no-op, not an error.
func (c *Coordinator) Expire(ctx context.Context, txnID uuid.UUID) error {
	txn, err := c.get(ctx, txnID)
	if err != nil {
		return err
	}

	c.locks.Lock(txn.CreditID)
	defer c.locks.Unlock(txn.CreditID)

	txn, err = c.get(ctx, txnID)
	if err != nil {
		return err
	}
	if txn.State != StateRequested {
		return nil
	}

	ok, err := c.repo.Transition(ctx, txnID, StateRequested, StateExpired, time.Now())
	if err != nil {
		return fmt.Errorf("failed to expire transaction %s: %w", txnID, err)
	}
	if ok {
		c.emit(ctx, txn.BuyerID, notifications.TypePurchaseExpired, txn)
		c.logger.Info("purchase request expired",
			zap.String("credit_id", txn.CreditID),
			zap.String("transaction_id", txnID.String()))
	}
	return nil
}

// SweepExpired expires every requested transaction older than the TTL and
// returns how many were swept.
func (c *Coordinator) SweepExpired(ctx context.Context) (int, error) {
	stale, err := c.repo.ListRequestedBefore(ctx, time.Now().Add(-c.ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale transactions: %w", err)
	}

	swept := 0
	for _, txn := range stale {
		if err := c.Expire(ctx, txn.ID); err != nil {
			c.logger.Warn("failed to expire transaction",
				zap.String("transaction_id", txn.ID.String()), zap.Error(err))
			continue
		}
		swept++
	}
	return swept, nil
}

// Retire permanently removes a purchased credit from circulation on behalf
// of the buyer who completed its purchase, recording a certificate for
// sustainability claims.
func (c *Coordinator) Retire(ctx context.Context, creditID string, buyerID uuid.UUID, purpose *string) (*credits.Credit, error) {
	c.locks.Lock(creditID)
	defer c.locks.Unlock(creditID)

	credit, err := c.registry.GetCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if credit.Status != credits.StatusSold {
		return nil, errs.Conflict(errs.ReasonNotAvailable, "credit %s is not sold", creditID)
	}

	completed, err := c.repo.GetCompletedByCredit(ctx, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed transaction for credit %s: %w", creditID, err)
	}
	if completed == nil {
		c.logger.Error("sold credit has no completed transaction",
			zap.String("credit_id", creditID))
		return nil, errs.Integrity("credit %s is sold but has no completed transaction", creditID)
	}
	if completed.BuyerID != buyerID {
		return nil, errs.Unauthorized("caller did not purchase credit %s", creditID)
	}

	now := time.Now()
	certificateNumber := newCertificateNumber(now)
	if err := c.registry.MarkRetired(ctx, creditID, certificateNumber, purpose, now); err != nil {
		return nil, err
	}

	if c.issuer != nil {
		if ref, err := c.issuer.Issue(ctx, credit, completed, certificateNumber, purpose); err != nil {
			c.logger.Warn("retirement certificate generation failed",
				zap.String("credit_id", creditID), zap.Error(err))
		} else {
			c.logger.Info("retirement certificate stored",
				zap.String("credit_id", creditID), zap.String("document_ref", ref))
		}
	}

	c.emit(ctx, buyerID, notifications.TypeCreditRetired, completed)

	return c.registry.GetCredit(ctx, creditID)
}

// ListByBuyer returns a buyer's transactions, newest first.
func (c *Coordinator) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]PurchaseTransaction, error) {
	return c.repo.ListByBuyer(ctx, buyerID)
}

// ListByProducer returns a producer's transactions, newest first.
func (c *Coordinator) ListByProducer(ctx context.Context, producerID uuid.UUID) ([]PurchaseTransaction, error) {
	return c.repo.ListByProducer(ctx, producerID)
}

// decide applies a terminal decision that frees the credit.
func (c *Coordinator) decide(ctx context.Context, txnID uuid.UUID, to State, authorize func(*PurchaseTransaction) error, notify func(*PurchaseTransaction)) (*PurchaseTransaction, error) {
	txn, err := c.get(ctx, txnID)
	if err != nil {
		return nil, err
	}

	c.locks.Lock(txn.CreditID)
	defer c.locks.Unlock(txn.CreditID)

	txn, err = c.get(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if err := authorize(txn); err != nil {
		return nil, err
	}
	if txn.State != StateRequested {
		return nil, errs.Conflict(errs.ReasonNotRequested,
			"transaction %s is %s, not %s", txnID, txn.State, StateRequested)
	}

	now := time.Now()
	ok, err := c.repo.Transition(ctx, txnID, StateRequested, to, now)
	if err != nil {
		return nil, fmt.Errorf("failed to move transaction %s to %s: %w", txnID, to, err)
	}
	if !ok {
		return nil, errs.Conflict(errs.ReasonNotRequested,
			"transaction %s was decided concurrently", txnID)
	}

	txn.State = to
	txn.DecidedAt = &now
	notify(txn)
	return txn, nil
}

func (c *Coordinator) get(ctx context.Context, txnID uuid.UUID) (*PurchaseTransaction, error) {
	txn, err := c.repo.Get(ctx, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", txnID, err)
	}
	if txn == nil {
		return nil, errs.NotFound("transaction %s not found", txnID)
	}
	return txn, nil
}

// checkSoldIntegrity verifies the central invariant: isSold implies exactly
// one completed transaction. Violations abort the operation.
func (c *Coordinator) checkSoldIntegrity(ctx context.Context, credit *credits.Credit) error {
	count, err := c.repo.CountByCreditAndState(ctx, credit.ID, StateCompleted)
	if err != nil {
		return fmt.Errorf("failed to count completed transactions for credit %s: %w", credit.ID, err)
	}
	if credit.IsSold && count != 1 {
		c.logger.Error("sold-flag integrity violation",
			zap.String("credit_id", credit.ID), zap.Int("completed_count", count))
		return errs.Integrity("credit %s has is_sold=%t but %d completed transactions", credit.ID, credit.IsSold, count)
	}
	if !credit.IsSold && count > 0 {
		c.logger.Error("sold-flag integrity violation",
			zap.String("credit_id", credit.ID), zap.Int("completed_count", count))
		return errs.Integrity("credit %s has is_sold=%t but %d completed transactions", credit.ID, credit.IsSold, count)
	}
	return nil
}

func (c *Coordinator) emit(ctx context.Context, recipientID uuid.UUID, typ notifications.Type, txn *PurchaseTransaction) {
	_, err := c.notifier.Emit(ctx, recipientID, typ, txn.ID.String(), map[string]interface{}{
		"transaction_id": txn.ID.String(),
		"credit_id":      txn.CreditID,
		"buyer_id":       txn.BuyerID.String(),
		"producer_id":    txn.ProducerID.String(),
	})
	if err != nil {
		c.logger.Warn("failed to emit notification",
			zap.String("type", string(typ)),
			zap.String("transaction_id", txn.ID.String()),
			zap.Error(err))
	}
}

func newCertificateNumber(now time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:10]
	return fmt.Sprintf("HLR-%d-%s", now.Year(), short)
}
