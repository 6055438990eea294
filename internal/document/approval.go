// Package document renders the purchase approval document that an ADMIN
// prints, signs and uploads back. Rendering is a pure function of the
// snapshot it receives.
package document

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
)

// Person is the part of a user printed on the document.
type Person struct {
	Name       string
	Email      string
	Department string
}

// QuoteSnapshot is one quote as it stood when the document was generated.
type QuoteSnapshot struct {
	ID           string
	SupplierName string
	SupplierCNPJ string
	Status       domain.QuoteStatus
	Items        []domain.QuoteItem
	TotalValue   decimal.Decimal
	DeliveryDays *int
	Selected     bool
}

// Snapshot carries everything printed on the approval document.
type Snapshot struct {
	Order               *domain.ServiceOrder
	Requester           Person
	Technician          *Person
	Quotes              []QuoteSnapshot
	PurchaseOrderNumber string
	GeneratedBy         Person
	GeneratedAt         time.Time
}

// Renderer produces approval documents.
type Renderer interface {
	RenderApproval(snap Snapshot) ([]byte, error)
}

// PDFRenderer renders with fpdf. The zero value is ready to use.
type PDFRenderer struct {
	// Organization is printed in the header.
	Organization string
}

const (
	pageWidth  = 190.0
	lineHeight = 6.0
)

// RenderApproval returns the approval document as PDF bytes.
func (r PDFRenderer) RenderApproval(snap Snapshot) ([]byte, error) {
	if snap.Order == nil {
		return nil, fmt.Errorf("render approval document: missing service order")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Aprovação de compra "+snap.Order.Number, true)
	pdf.SetCreationDate(snap.GeneratedAt)
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	org := r.Organization
	if org == "" {
		org = "Prefeitura Municipal de Monções"
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(pageWidth, 8, tr(org), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(pageWidth, 7, tr("Departamento de Tecnologia da Informação"), "", 1, "C", false, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(pageWidth, 8, tr("Autorização de Compra de Material"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	o := snap.Order
	section(pdf, tr, "Ordem de serviço")
	field(pdf, tr, "Número", o.Number)
	field(pdf, tr, "Título", o.Title)
	field(pdf, tr, "Categoria", string(o.Category))
	field(pdf, tr, "Prioridade", string(o.Priority))
	if o.Location != nil {
		field(pdf, tr, "Local", *o.Location)
	}
	field(pdf, tr, "Aberta em", o.CreatedAt.Format("02/01/2006 15:04"))
	paragraph(pdf, tr, "Descrição", o.Description)

	section(pdf, tr, "Solicitante")
	field(pdf, tr, "Nome", snap.Requester.Name)
	field(pdf, tr, "E-mail", snap.Requester.Email)
	if snap.Requester.Department != "" {
		field(pdf, tr, "Departamento", snap.Requester.Department)
	}

	if snap.Technician != nil {
		section(pdf, tr, "Técnico responsável")
		field(pdf, tr, "Nome", snap.Technician.Name)
		field(pdf, tr, "E-mail", snap.Technician.Email)
	}

	section(pdf, tr, "Material")
	if o.MaterialDescription != nil {
		paragraph(pdf, tr, "Descrição", *o.MaterialDescription)
	}
	if o.MaterialJustification != nil {
		paragraph(pdf, tr, "Justificativa", *o.MaterialJustification)
	}

	section(pdf, tr, "Orçamentos")
	for _, q := range snap.Quotes {
		quoteTable(pdf, tr, q)
	}

	if snap.PurchaseOrderNumber != "" {
		pdf.Ln(2)
		field(pdf, tr, "Pedido de compra", snap.PurchaseOrderNumber)
	}

	pdf.Ln(14)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(pageWidth, lineHeight, "_____________________________________________", "", 1, "C", false, 0, "")
	pdf.CellFormat(pageWidth, lineHeight, tr("Assinatura do responsável"), "", 1, "C", false, 0, "")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(pageWidth, 5, tr(fmt.Sprintf("Gerado por %s em %s",
		snap.GeneratedBy.Name, snap.GeneratedAt.Format("02/01/2006 15:04"))), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render approval document: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(pageWidth, 7, tr(title), "", 1, "L", true, 0, "")
	pdf.Ln(1)
}

func field(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(45, lineHeight, tr(label+":"), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(pageWidth-45, lineHeight, tr(value), "", 1, "L", false, 0, "")
}

func paragraph(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(pageWidth, lineHeight, tr(label+":"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(pageWidth, 5, tr(value), "", "L", false)
}

func quoteTable(pdf *fpdf.Fpdf, tr func(string) string, q QuoteSnapshot) {
	title := q.SupplierName
	if q.SupplierCNPJ != "" {
		title += " (CNPJ " + q.SupplierCNPJ + ")"
	}
	if q.Selected {
		title += " - SELECIONADO"
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(pageWidth, lineHeight, tr(title), "", 1, "L", false, 0, "")

	widths := []float64{100, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range []string{"Item", "Qtd.", "Valor unit.", "Total"} {
		pdf.CellFormat(widths[i], lineHeight, tr(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range q.Items {
		pdf.CellFormat(widths[0], lineHeight, tr(item.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], lineHeight, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], lineHeight, FormatBRL(item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], lineHeight, FormatBRL(item.TotalPrice), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 9)
	summary := "Total " + FormatBRL(q.TotalValue)
	if q.DeliveryDays != nil {
		summary = fmt.Sprintf("Prazo de entrega: %d dias   %s", *q.DeliveryDays, summary)
	}
	pdf.CellFormat(pageWidth, lineHeight, tr(summary), "", 1, "R", false, 0, "")
	pdf.Ln(2)
}

// FormatBRL formats an amount as Brazilian reais, e.g. "R$ 1.234,50".
func FormatBRL(v decimal.Decimal) string {
	s := v.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}

	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	return sign + "R$ " + b.String() + "," + frac
}
