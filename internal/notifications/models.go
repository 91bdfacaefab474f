package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Type enumerates the state-change events fanned out to actors
type Type string

const (
	TypeCreditRequestSubmitted Type = "credit_request_submitted"
	TypeCreditRequestApproved  Type = "credit_request_approved"
	TypeCreditRequestRejected  Type = "credit_request_rejected"
	TypePurchaseRequested      Type = "purchase_requested"
	TypePurchaseAccepted       Type = "purchase_accepted"
	TypePurchaseDeclined       Type = "purchase_declined"
	TypePurchaseCancelled      Type = "purchase_cancelled"
	TypePurchaseExpired        Type = "purchase_expired"
	TypeCreditRetired          Type = "credit_retired"
)

// Status represents the read state of a notification
type Status string

const (
	StatusUnread Status = "UNREAD"
	StatusRead   Status = "READ"
)

// Notification represents a state-change event delivered to one recipient.
// The (recipient_id, event_key) pair is unique, which is what makes emission
// idempotent under at-least-once delivery.
type Notification struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	RecipientID uuid.UUID      `json:"recipient_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_notifications_recipient_event"`
	Type        Type           `json:"type" gorm:"not null"`
	EventKey    string         `json:"event_key" gorm:"not null;uniqueIndex:idx_notifications_recipient_event"`
	Metadata    datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	Status      Status         `json:"status" gorm:"not null;default:'UNREAD'"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
}
