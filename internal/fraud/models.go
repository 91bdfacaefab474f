package fraud

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AlertStatus represents the investigation status of a fraud alert
type AlertStatus string

const (
	AlertStatusActive        AlertStatus = "ACTIVE"
	AlertStatusInvestigating AlertStatus = "INVESTIGATING"
	AlertStatusResolved      AlertStatus = "RESOLVED"
)

// Alert represents a fraud alert raised against a submitted credit
type Alert struct {
	ID           uuid.UUID      `json:"alert_id" db:"id"`
	CreditID     string         `json:"credit_id" db:"credit_id"`
	AnomalyScore float64        `json:"anomaly_score" db:"anomaly_score"`
	Severity     Severity       `json:"severity" db:"severity"`
	Indicators   pq.StringArray `json:"indicators" db:"indicators"`
	Status       AlertStatus    `json:"status" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}
