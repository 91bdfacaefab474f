package credits

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreditStatus represents the lifecycle status of a credit
type CreditStatus string

const (
	StatusPending     CreditStatus = "PENDING"
	StatusUnderReview CreditStatus = "UNDER_REVIEW"
	StatusCertified   CreditStatus = "CERTIFIED"
	StatusRejected    CreditStatus = "REJECTED"
	StatusSold        CreditStatus = "SOLD"
	StatusRetired     CreditStatus = "RETIRED"
)

// EnergySource represents the declared production source of a credit
type EnergySource string

const (
	SourceSolar      EnergySource = "SOLAR"
	SourceWind       EnergySource = "WIND"
	SourceHydro      EnergySource = "HYDRO"
	SourceGeothermal EnergySource = "GEOTHERMAL"
	SourceBiomass    EnergySource = "BIOMASS"
)

// ValidSource reports whether s is a known energy source.
func ValidSource(s EnergySource) bool {
	switch s {
	case SourceSolar, SourceWind, SourceHydro, SourceGeothermal, SourceBiomass:
		return true
	}
	return false
}

// co2FactorTonnesPerMWh is the avoided-emissions factor against the grid
// baseline, per declared source.
var co2FactorTonnesPerMWh = map[EnergySource]float64{
	SourceSolar:      0.45,
	SourceWind:       0.46,
	SourceHydro:      0.44,
	SourceGeothermal: 0.43,
	SourceBiomass:    0.23,
}

// CO2Avoided computes the environmental impact for a declared production claim.
func CO2Avoided(source EnergySource, energyMWh float64) float64 {
	return co2FactorTonnesPerMWh[source] * energyMWh
}

// NewCreditID derives a human-readable credit identifier.
func NewCreditID(now time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:10]
	return fmt.Sprintf("HLC-%d-%s", now.Year(), short)
}

// Credit represents a green energy credit through its whole lifecycle
type Credit struct {
	ID                string       `json:"credit_id" db:"id"`
	ProducerID        uuid.UUID    `json:"producer_id" db:"producer_id"`
	FacilityName      string       `json:"facility_name" db:"facility_name"`
	FacilityLocation  string       `json:"facility_location" db:"facility_location"`
	EnergySource      EnergySource `json:"energy_source" db:"energy_source"`
	EnergyAmountMWh   float64      `json:"energy_amount_mwh" db:"energy_amount_mwh"`
	ProductionDate    time.Time    `json:"production_date" db:"production_date"`
	CO2AvoidedTonnes  float64      `json:"co2_avoided_tonnes" db:"co2_avoided_tonnes"`
	ProofDocumentRef  string       `json:"proof_document_ref" db:"proof_document_ref"`
	Status            CreditStatus `json:"status" db:"status"`
	CertifierID       *uuid.UUID   `json:"certifier_id,omitempty" db:"certifier_id"`
	CertificationDate *time.Time   `json:"certification_date,omitempty" db:"certification_date"`
	TokenID           *string      `json:"token_id,omitempty" db:"token_id"`
	IsSold            bool         `json:"is_sold" db:"is_sold"`
	PricePerMWh       *float64     `json:"price_per_mwh,omitempty" db:"price_per_mwh"`
	RetiredAt         *time.Time   `json:"retired_at,omitempty" db:"retired_at"`
	RetirementPurpose *string      `json:"retirement_purpose,omitempty" db:"retirement_purpose"`
	CertificateNumber *string      `json:"certificate_number,omitempty" db:"certificate_number"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// CreditRequest represents the submission envelope prior to certification
type CreditRequest struct {
	ID                  uuid.UUID  `json:"request_id" db:"id"`
	CreditID            string     `json:"credit_id" db:"credit_id"`
	ProducerID          uuid.UUID  `json:"producer_id" db:"producer_id"`
	SubmittedAt         time.Time  `json:"submitted_at" db:"submitted_at"`
	AssignedCertifierID *uuid.UUID `json:"assigned_certifier_id,omitempty" db:"assigned_certifier_id"`
	Comments            *string    `json:"comments,omitempty" db:"comments"`
	RejectionReason     *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	RejectionDetails    *string    `json:"rejection_details,omitempty" db:"rejection_details"`
	DecidedAt           *time.Time `json:"decided_at,omitempty" db:"decided_at"`
}

// Review carries the certifier's decision details onto a request
type Review struct {
	Comments         *string
	RejectionReason  *string
	RejectionDetails *string
	DecidedAt        time.Time
}

// ListFilter narrows the marketplace listing of available credits
type ListFilter struct {
	EnergySource *EnergySource
	ProducerID   *uuid.UUID
	Limit        int
}
