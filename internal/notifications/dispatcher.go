package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
)

// Transport delivers a notification over an external channel. Delivery is
// best-effort: a transport failure never affects the state transition that
// produced the notification.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, n *Notification) error
}

// Dispatcher fans out state-change events to the affected actors.
type Dispatcher struct {
	repo       Repository
	transports []Transport
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher over the given store and transports.
func NewDispatcher(repo Repository, transports []Transport, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		transports: transports,
		logger:     logger,
	}
}

// Emit records a notification for a recipient. Emission is idempotent per
// (recipient, event): re-emitting the same event returns the existing
// record without fanning out again.
func (d *Dispatcher) Emit(ctx context.Context, recipientID uuid.UUID, typ Type, subjectID string, metadata map[string]interface{}) (*Notification, error) {
	eventKey := fmt.Sprintf("%s:%s", typ, subjectID)

	existing, err := d.repo.GetByEventKey(ctx, recipientID, eventKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate notification: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	var meta datatypes.JSON
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notification metadata: %w", err)
		}
		meta = datatypes.JSON(data)
	}

	n := &Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Type:        typ,
		EventKey:    eventKey,
		Metadata:    meta,
		Status:      StatusUnread,
		CreatedAt:   time.Now(),
	}
	if err := d.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	// External channels are fire-and-forget, outside the consistency
	// boundary of the emitting transition.
	for _, t := range d.transports {
		go func(t Transport, n Notification) {
			deliverCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := t.Deliver(deliverCtx, &n); err != nil {
				d.logger.Warn("notification delivery failed",
					zap.String("transport", t.Name()),
					zap.String("notification_id", n.ID.String()),
					zap.Error(err))
			}
		}(t, *n)
	}

	return n, nil
}

// List returns a recipient's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, recipientID uuid.UUID, limit int) ([]Notification, error) {
	return d.repo.ListByRecipient(ctx, recipientID, limit)
}

// UnreadCount returns the number of unread notifications for a recipient.
func (d *Dispatcher) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return d.repo.UnreadCount(ctx, recipientID)
}

// MarkRead marks one notification read. Re-marking a read notification is a
// no-op, not an error.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID, recipientID uuid.UUID) error {
	n, err := d.repo.Get(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("failed to load notification %s: %w", notificationID, err)
	}
	if n == nil {
		return errs.NotFound("notification %s not found", notificationID)
	}
	if n.RecipientID != recipientID {
		return errs.Unauthorized("notification %s does not belong to the caller", notificationID)
	}
	if n.Status == StatusRead {
		return nil
	}
	return d.repo.MarkRead(ctx, notificationID, time.Now())
}

// MarkAllRead marks the given notifications (or all of them when ids is
// empty) read for a recipient. Idempotent.
func (d *Dispatcher) MarkAllRead(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) error {
	return d.repo.MarkAllRead(ctx, recipientID, ids, time.Now())
}
