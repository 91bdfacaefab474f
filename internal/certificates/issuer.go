package certificates

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PR-ODINSON/HydroLink-sub000/internal/credits"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/docstore"
	"github.com/PR-ODINSON/HydroLink-sub000/internal/transactions"
	"github.com/PR-ODINSON/HydroLink-sub000/pkg/pdf"
)

// Issuer renders retirement certificates as PDF documents and files them in
// the document store.
type Issuer struct {
	generator pdf.Generator
	store     docstore.Store
	logger    *zap.Logger
}

// NewIssuer creates a certificate issuer.
func NewIssuer(generator pdf.Generator, store docstore.Store, logger *zap.Logger) *Issuer {
	return &Issuer{
		generator: generator,
		store:     store,
		logger:    logger,
	}
}

// Issue renders and stores the certificate for a retired credit, returning
// the document reference.
func (i *Issuer) Issue(ctx context.Context, credit *credits.Credit, txn *transactions.PurchaseTransaction, certificateNumber string, purpose *string) (string, error) {
	data := pdf.CertificateData{
		CertificateNumber: certificateNumber,
		CreditID:          credit.ID,
		FacilityName:      credit.FacilityName,
		FacilityLocation:  credit.FacilityLocation,
		EnergySource:      string(credit.EnergySource),
		EnergyAmountMWh:   credit.EnergyAmountMWh,
		CO2AvoidedTonnes:  credit.CO2AvoidedTonnes,
	}
	if txn.DecidedAt != nil {
		data.RetiredAt = *txn.DecidedAt
	}
	if credit.RetiredAt != nil {
		data.RetiredAt = *credit.RetiredAt
	}
	if purpose != nil {
		data.Purpose = *purpose
	}
	if credit.TokenID != nil {
		data.TokenID = *credit.TokenID
	}

	doc, err := i.generator.RetirementCertificate(ctx, data)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("certificates/%s/%s.pdf", credit.ID, certificateNumber)
	ref, err := i.store.Put(ctx, key, "application/pdf", doc)
	if err != nil {
		return "", fmt.Errorf("failed to store certificate %s: %w", certificateNumber, err)
	}

	i.logger.Info("retirement certificate issued",
		zap.String("credit_id", credit.ID),
		zap.String("certificate_number", certificateNumber),
		zap.String("document_ref", ref))
	return ref, nil
}
