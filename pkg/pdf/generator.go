package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData is everything a retirement certificate shows.
type CertificateData struct {
	CertificateNumber string
	CreditID          string
	FacilityName      string
	FacilityLocation  string
	EnergySource      string
	EnergyAmountMWh   float64
	CO2AvoidedTonnes  float64
	RetiredAt         time.Time
	Purpose           string
	TokenID           string
}

// Generator renders retirement certificates.
type Generator interface {
	RetirementCertificate(ctx context.Context, data CertificateData) (io.Reader, error)
}

type gofpdfGenerator struct{}

// NewGenerator creates a gofpdf-backed certificate generator.
func NewGenerator() Generator {
	return &gofpdfGenerator{}
}

func (g *gofpdfGenerator) RetirementCertificate(ctx context.Context, data CertificateData) (io.Reader, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Credit Retirement Certificate", false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 22)
	doc.CellFormat(0, 14, "Certificate of Retirement", "", 1, "C", false, 0, "")

	doc.SetFont("Helvetica", "", 11)
	doc.CellFormat(0, 8, data.CertificateNumber, "", 1, "C", false, 0, "")
	doc.Ln(8)

	doc.SetFont("Helvetica", "", 12)
	doc.MultiCell(0, 7, fmt.Sprintf(
		"This certifies that credit %s has been permanently retired from circulation on %s.",
		data.CreditID, data.RetiredAt.Format("2 January 2006")), "", "L", false)
	doc.Ln(4)

	rows := [][2]string{
		{"Facility", fmt.Sprintf("%s, %s", data.FacilityName, data.FacilityLocation)},
		{"Energy source", data.EnergySource},
		{"Energy amount", fmt.Sprintf("%.2f MWh", data.EnergyAmountMWh)},
		{"CO2 avoided", fmt.Sprintf("%.2f tonnes", data.CO2AvoidedTonnes)},
	}
	if data.TokenID != "" {
		rows = append(rows, [2]string{"Token", data.TokenID})
	}
	if data.Purpose != "" {
		rows = append(rows, [2]string{"Retirement purpose", data.Purpose})
	}

	doc.SetFont("Helvetica", "", 11)
	for _, row := range rows {
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(55, 8, row[0], "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		doc.MultiCell(0, 8, row[1], "", "L", false)
	}

	doc.Ln(10)
	doc.SetFont("Helvetica", "I", 9)
	doc.MultiCell(0, 5,
		"A retired credit can no longer be listed, transferred or sold. "+
			"This certificate is the sole record intended for sustainability claims.",
		"", "L", false)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate %s: %w", data.CertificateNumber, err)
	}
	return &buf, nil
}
