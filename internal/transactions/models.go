package transactions

import (
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle state of a purchase transaction
type State string

const (
	StateRequested State = "REQUESTED"
	StateCompleted State = "COMPLETED"
	StateDeclined  State = "DECLINED"
	StateCancelled State = "CANCELLED"
	StateExpired   State = "EXPIRED"
)

// PurchaseTransaction represents the negotiation record between a buyer's
// purchase intent and the producer's confirmation. For a given credit at
// most one transaction is ever in state REQUESTED.
type PurchaseTransaction struct {
	ID         uuid.UUID  `json:"transaction_id" db:"id"`
	CreditID   string     `json:"credit_id" db:"credit_id"`
	BuyerID    uuid.UUID  `json:"buyer_id" db:"buyer_id"`
	ProducerID uuid.UUID  `json:"producer_id" db:"producer_id"`
	State      State      `json:"state" db:"state"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	DecidedAt  *time.Time `json:"decided_at,omitempty" db:"decided_at"`
}
