// Package document renders the legal notice that accompanies authority
// notifications.
package document

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/crypto/blake2b"

	"fraudcase/internal/config"
	"fraudcase/internal/models"
)

const (
	// KindLegalNotice is the only document kind the service produces
	KindLegalNotice = "crpc_notice"
	// ContentTypePDF is the media type of rendered notices
	ContentTypePDF = "application/pdf"
)

// Notice is the input for a legal notice
type Notice struct {
	Case     models.Case
	Scammer  *models.ScammerProfile
	IssuedAt time.Time
}

// Renderer produces document bytes for a notice
type Renderer interface {
	Render(notice Notice) ([]byte, error)
}

// PDFRenderer renders notices as A4 PDFs
type PDFRenderer struct {
	authority string
	footer    string
}

// NewPDFRenderer creates a PDF renderer
func NewPDFRenderer(cfg config.DocumentsConfig) *PDFRenderer {
	return &PDFRenderer{authority: cfg.Authority, footer: cfg.Footer}
}

// Render builds the notice
func (r *PDFRenderer) Render(notice Notice) ([]byte, error) {
	c := notice.Case
	if c.CaseCode == "" {
		return nil, fmt.Errorf("case code is required to render a notice")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Notice "+c.CaseCode, true)
	pdf.SetAuthor(r.authority, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(r.authority), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, "Notice under Section 91 CrPC", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(60, 6, "Case reference:")
	pdf.Cell(0, 6, c.CaseCode)
	pdf.Ln(6)
	pdf.Cell(60, 6, "Date of issue:")
	pdf.Cell(0, 6, notice.IssuedAt.Format("02 Jan 2006"))
	pdf.Ln(6)
	pdf.Cell(60, 6, "Incident date:")
	pdf.Cell(0, 6, c.IncidentDate.Format("02 Jan 2006"))
	pdf.Ln(6)
	pdf.Cell(60, 6, "Fraud type:")
	pdf.Cell(0, 6, tr(c.CaseType))
	pdf.Ln(6)
	pdf.Cell(60, 6, "Amount involved:")
	pdf.Cell(0, 6, fmt.Sprintf("INR %.2f", c.Amount))
	pdf.Ln(6)
	pdf.Cell(60, 6, "Reported by:")
	pdf.Cell(0, 6, tr(reporter(c)))
	pdf.Ln(10)

	section(pdf, "Incident summary")
	pdf.MultiCell(0, 5, tr(c.Description), "", "L", false)
	pdf.Ln(4)

	if notice.Scammer != nil {
		section(pdf, "Suspect details")
		for _, row := range suspectRows(notice.Scammer) {
			pdf.Cell(60, 6, row[0])
			pdf.Cell(0, 6, tr(row[1]))
			pdf.Ln(6)
		}
		pdf.Ln(4)
	}

	section(pdf, "Information requested")
	pdf.MultiCell(0, 5, tr(strings.Join([]string{
		"1. Subscriber and KYC details for the identifiers listed above.",
		"2. Transaction and call records from the incident date to the date of this notice.",
		"3. Confirmation of any hold or freeze placed on the beneficiary accounts.",
	}, "\n")), "", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 4, tr(r.footer), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 11)
}

func reporter(c models.Case) string {
	if name := c.Form.ReporterName(); name != "" {
		return name
	}
	if c.ReporterName != "" {
		return c.ReporterName
	}
	return c.ReporterID
}

func suspectRows(p *models.ScammerProfile) [][2]string {
	var rows [][2]string
	add := func(label, value string) {
		if value != "" {
			rows = append(rows, [2]string{label, value})
		}
	}
	add("Name:", p.Name)
	add("Phone:", p.Phone)
	add("Email:", p.Email)
	add("Payment handle:", p.PaymentHandle)
	add("Bank account:", p.BankAccount)
	add("Routing code:", p.RoutingCode)
	add("Address:", p.Address)
	return rows
}

// Digest returns the hex BLAKE2b-256 digest of content
func Digest(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}
