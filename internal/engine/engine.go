package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/certification"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/fraud"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/identity"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/marketplace"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/notifications"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/transactions"
)

// Engine is the single entry point for every credit, marketplace and
// notification operation. It enforces the role checks; the services behind
// it enforce ownership and state. Callers construct an identity.Identity
// from their session layer and pass it to every call.
type Engine struct {
	certification *certification.Service
	marketplace   *marketplace.Service
	coordinator   *transactions.Coordinator
	notifier      *notifications.Dispatcher
	fraud         *fraud.Service
	registry      *credits.Registry
}

// New assembles the engine facade.
func New(
	certificationSvc *certification.Service,
	marketplaceSvc *marketplace.Service,
	coordinator *transactions.Coordinator,
	notifier *notifications.Dispatcher,
	fraudSvc *fraud.Service,
	registry *credits.Registry,
) *Engine {
	return &Engine{
		certification: certificationSvc,
		marketplace:   marketplaceSvc,
		coordinator:   coordinator,
		notifier:      notifier,
		fraud:         fraudSvc,
		registry:      registry,
	}
}

// SubmitCreditRequest files a production claim on the producer's own behalf.
func (e *Engine) SubmitCreditRequest(ctx context.Context, actor identity.Identity, in certification.SubmitInput) (*credits.CreditRequest, *credits.Credit, error) {
	if err := actor.Require(identity.RoleProducer); err != nil {
		return nil, nil, err
	}
	in.ProducerID = actor.UserID
	return e.certification.Submit(ctx, in)
}

// AssignCertifier takes a pending request under review by the calling
// certifier.
func (e *Engine) AssignCertifier(ctx context.Context, actor identity.Identity, requestID uuid.UUID) (*credits.CreditRequest, error) {
	if err := actor.Require(identity.RoleCertifier); err != nil {
		return nil, err
	}
	return e.certification.Assign(ctx, requestID, actor.UserID)
}

// DecideCreditRequest applies the calling certifier's verdict.
func (e *Engine) DecideCreditRequest(ctx context.Context, actor identity.Identity, in certification.DecideInput) (*credits.Credit, error) {
	if err := actor.Require(identity.RoleCertifier); err != nil {
		return nil, err
	}
	in.CertifierID = actor.UserID
	return e.certification.Decide(ctx, in)
}

// GetCredit returns a single credit. Any authenticated actor may look one up.
func (e *Engine) GetCredit(ctx context.Context, actor identity.Identity, creditID string) (*credits.Credit, error) {
	if err := actor.Require(identity.RoleProducer, identity.RoleCertifier, identity.RoleBuyer); err != nil {
		return nil, err
	}
	return e.registry.GetCredit(ctx, creditID)
}

// ListMyCredits returns the calling producer's submissions.
func (e *Engine) ListMyCredits(ctx context.Context, actor identity.Identity) ([]credits.Credit, error) {
	if err := actor.Require(identity.RoleProducer); err != nil {
		return nil, err
	}
	return e.registry.ListByProducer(ctx, actor.UserID)
}

// ListAvailableCredits returns the marketplace catalog.
func (e *Engine) ListAvailableCredits(ctx context.Context, actor identity.Identity, filter credits.ListFilter) ([]marketplace.Listing, error) {
	if err := actor.Require(identity.RoleProducer, identity.RoleCertifier, identity.RoleBuyer); err != nil {
		return nil, err
	}
	return e.marketplace.ListAvailable(ctx, filter)
}

// RequestPurchase opens a purchase transaction for the calling buyer.
func (e *Engine) RequestPurchase(ctx context.Context, actor identity.Identity, creditID string) (*transactions.PurchaseTransaction, error) {
	if err := actor.Require(identity.RoleBuyer); err != nil {
		return nil, err
	}
	return e.marketplace.RequestPurchase(ctx, creditID, actor.UserID)
}

// AcceptPurchase completes a requested transaction as the selling producer.
func (e *Engine) AcceptPurchase(ctx context.Context, actor identity.Identity, txnID uuid.UUID) (*transactions.PurchaseTransaction, error) {
	if err := actor.Require(identity.RoleProducer); err != nil {
		return nil, err
	}
	return e.coordinator.Accept(ctx, txnID, actor.UserID)
}

// DeclinePurchase rejects a requested transaction as the selling producer.
func (e *Engine) DeclinePurchase(ctx context.Context, actor identity.Identity, txnID uuid.UUID) (*transactions.PurchaseTransaction, error) {
	if err := actor.Require(identity.RoleProducer); err != nil {
		return nil, err
	}
	return e.coordinator.Decline(ctx, txnID, actor.UserID)
}

// CancelPurchase withdraws the calling buyer's own requested transaction.
func (e *Engine) CancelPurchase(ctx context.Context, actor identity.Identity, txnID uuid.UUID) (*transactions.PurchaseTransaction, error) {
	if err := actor.Require(identity.RoleBuyer); err != nil {
		return nil, err
	}
	return e.coordinator.Cancel(ctx, txnID, actor.UserID)
}

// RetireCredit permanently removes a purchased credit from circulation.
func (e *Engine) RetireCredit(ctx context.Context, actor identity.Identity, creditID string, purpose *string) (*credits.Credit, error) {
	if err := actor.Require(identity.RoleBuyer); err != nil {
		return nil, err
	}
	return e.coordinator.Retire(ctx, creditID, actor.UserID, purpose)
}

// ListMyTransactions returns the actor's purchase transactions, as buyer or
// as producer depending on their role.
func (e *Engine) ListMyTransactions(ctx context.Context, actor identity.Identity) ([]transactions.PurchaseTransaction, error) {
	switch actor.Role {
	case identity.RoleBuyer:
		return e.coordinator.ListByBuyer(ctx, actor.UserID)
	case identity.RoleProducer:
		return e.coordinator.ListByProducer(ctx, actor.UserID)
	default:
		return nil, actor.Require(identity.RoleBuyer, identity.RoleProducer)
	}
}

// GetNotifications returns the actor's notifications, newest first.
func (e *Engine) GetNotifications(ctx context.Context, actor identity.Identity, limit int) ([]notifications.Notification, error) {
	return e.notifier.List(ctx, actor.UserID, limit)
}

// UnreadNotificationCount returns how many notifications the actor has not
// read yet.
func (e *Engine) UnreadNotificationCount(ctx context.Context, actor identity.Identity) (int64, error) {
	return e.notifier.UnreadCount(ctx, actor.UserID)
}

// MarkNotificationRead marks one of the actor's notifications read.
func (e *Engine) MarkNotificationRead(ctx context.Context, actor identity.Identity, notificationID uuid.UUID) error {
	return e.notifier.MarkRead(ctx, notificationID, actor.UserID)
}

// MarkAllNotificationsRead marks the given notifications, or all of them,
// read for the actor.
func (e *Engine) MarkAllNotificationsRead(ctx context.Context, actor identity.Identity, ids []uuid.UUID) error {
	return e.notifier.MarkAllRead(ctx, actor.UserID, ids)
}

// ListFraudAlerts returns the alerts recorded against a credit.
func (e *Engine) ListFraudAlerts(ctx context.Context, actor identity.Identity, creditID string) ([]fraud.Alert, error) {
	if err := actor.Require(identity.RoleCertifier); err != nil {
		return nil, err
	}
	return e.fraud.ListAlerts(ctx, creditID)
}

// UpdateFraudAlertStatus moves an alert through its investigation states.
func (e *Engine) UpdateFraudAlertStatus(ctx context.Context, actor identity.Identity, alertID uuid.UUID, status fraud.AlertStatus) error {
	if err := actor.Require(identity.RoleCertifier); err != nil {
		return err
	}
	return e.fraud.UpdateAlertStatus(ctx, alertID, status)
}
