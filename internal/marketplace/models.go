package marketplace

import (
	"time"

	"github.com/google/uuid"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
)

// Listing is the buyer's view of a purchasable credit. Producer review
// details and fraud data never leave the certification side.
type Listing struct {
	CreditID          string               `json:"credit_id"`
	ProducerID        uuid.UUID            `json:"producer_id"`
	FacilityName      string               `json:"facility_name"`
	FacilityLocation  string               `json:"facility_location"`
	EnergySource      credits.EnergySource `json:"energy_source"`
	EnergyAmountMWh   float64              `json:"energy_amount_mwh"`
	CO2AvoidedTonnes  float64              `json:"co2_avoided_tonnes"`
	CertificationDate *time.Time           `json:"certification_date,omitempty"`
	PricePerMWh       *float64             `json:"price_per_mwh,omitempty"`
	TokenID           *string              `json:"token_id,omitempty"`
}

func newListing(c *credits.Credit) Listing {
	return Listing{
		CreditID:          c.ID,
		ProducerID:        c.ProducerID,
		FacilityName:      c.FacilityName,
		FacilityLocation:  c.FacilityLocation,
		EnergySource:      c.EnergySource,
		EnergyAmountMWh:   c.EnergyAmountMWh,
		CO2AvoidedTonnes:  c.CO2AvoidedTonnes,
		CertificationDate: c.CertificationDate,
		PricePerMWh:       c.PricePerMWh,
		TokenID:           c.TokenID,
	}
}
