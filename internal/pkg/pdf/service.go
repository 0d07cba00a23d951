// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
)

// Service handles PDF generation
type Service struct {
	config *config.Config
	tmpl   *template.Template
}

// NewService creates a new PDF service
func NewService(cfg *config.Config) *Service {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
	}
	return &Service{
		config: cfg,
		tmpl:   template.Must(template.New("receipt").Funcs(funcs).Parse(receiptTemplate)),
	}
}

// ReceiptData represents the data passed to the receipt template
type ReceiptData struct {
	ReceiptNumber string          `json:"receipt_number"`
	PaidOn        string          `json:"paid_on"`
	Payment       *payment.Record `json:"payment"`
	Company       CompanyInfo     `json:"company"`
}

// CompanyInfo represents company information
type CompanyInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Website string `json:"website"`
}

// ReceiptHTML renders the receipt page for a record
func (s *Service) ReceiptHTML(record *payment.Record) (string, error) {
	paidOn := record.UpdatedAt
	if record.CompletedAt != nil {
		paidOn = *record.CompletedAt
	}

	data := ReceiptData{
		ReceiptNumber: "RCPT-" + strings.ToUpper(record.ID.String()[:8]),
		PaidOn:        paidOn.Format("January 2, 2006"),
		Payment:       record,
		Company: CompanyInfo{
			Name:    s.config.Company.Name,
			Address: s.config.Company.Address,
			Email:   s.config.Company.Email,
			Website: s.config.Company.Website,
		},
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// GenerateReceipt renders a succeeded payment as a PDF
func (s *Service) GenerateReceipt(record *payment.Record) (*bytes.Buffer, error) {
	if record.Status != payment.StatusSucceeded {
		return nil, fmt.Errorf("receipt unavailable for %s payment", record.Status)
	}

	htmlContent, err := s.ReceiptHTML(record)
	if err != nil {
		return nil, fmt.Errorf("failed to generate HTML: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)

	page := wkhtmltopdf.NewPageReader(strings.NewReader(htmlContent))
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}
	return bytes.NewBuffer(pdfg.Bytes()), nil
}

const receiptTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Receipt {{.ReceiptNumber}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
        .header { border-bottom: 2px solid #eee; padding-bottom: 20px; margin-bottom: 30px; }
        .title { font-size: 28px; font-weight: bold; color: #2563eb; }
        table.items { width: 100%; border-collapse: collapse; }
        table.items th { background: #f8fafc; text-align: left; padding: 8px; border-bottom: 1px solid #e5e7eb; }
        table.items td { padding: 8px; border-bottom: 1px solid #f1f5f9; }
        .num { text-align: right; }
        .total { font-size: 18px; font-weight: bold; text-align: right; margin-top: 20px; }
        .footer { margin-top: 40px; font-size: 12px; color: #6b7280; }
    </style>
</head>
<body>
    <div class="header">
        <div class="title">Payment Receipt</div>
        <div>{{.Company.Name}}</div>
        {{if .Company.Address}}<div>{{.Company.Address}}</div>{{end}}
        <div>{{.Company.Email}} &middot; {{.Company.Website}}</div>
    </div>

    <p><strong>Receipt:</strong> {{.ReceiptNumber}}<br>
       <strong>Date:</strong> {{.PaidOn}}<br>
       <strong>Payment ID:</strong> {{.Payment.ID}}</p>

    <table class="items">
        <thead>
            <tr><th>Item</th><th class="num">Unit price</th><th class="num">Qty</th><th class="num">Total</th></tr>
        </thead>
        <tbody>
        {{range .Payment.LineItems}}
            <tr>
                <td>{{.Title}}</td>
                <td class="num">{{.UnitPrice.StringFixed 2}}</td>
                <td class="num">{{.Quantity}}</td>
                <td class="num">{{.LineTotal.StringFixed 2}}</td>
            </tr>
        {{end}}
        </tbody>
    </table>

    <div class="total">Total paid: {{.Payment.Amount.StringFixed 2}} {{upper .Payment.Currency}}</div>

    <div class="footer">Thank you for using {{.Company.Name}}.</div>
</body>
</html>`
