package invoice

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

type Line struct {
	Name      string
	Variant   string
	Quantity  int64
	UnitPrice string
	LineTotal string
}

// 請求書に載せる内容（金額は表示用の文字列）
type Input struct {
	OrderNumber   string
	PlacedAt      time.Time
	CustomerName  string
	CustomerEmail string
	Currency      string
	Lines         []Line
	ItemsSubtotal string
	DiscountTotal string
	ShippingFee   string
	TotalAmount   string
}

type Renderer interface {
	Render(in Input) ([]byte, error)
}

type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) Render(in Input) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+in.OrderNumber, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Invoice", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Order Number: "+in.OrderNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+in.PlacedAt.Format("2006-01-02"), "", 1, "L", false, 0, "")
	customer := in.CustomerName
	if customer == "" {
		customer = in.CustomerEmail
	}
	pdf.CellFormat(0, 6, "Customer: "+customer, "", 1, "L", false, 0, "")
	pdf.Ln(6)

	// 明細
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, 8, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Unit", "B", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, l := range in.Lines {
		name := l.Name
		if l.Variant != "" {
			name = fmt.Sprintf("%s (%s)", l.Name, l.Variant)
		}
		pdf.CellFormat(90, 7, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", l.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, l.UnitPrice, "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, l.LineTotal, "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	summary := [][2]string{
		{"Subtotal", in.ItemsSubtotal},
		{"Discount", in.DiscountTotal},
		{"Shipping", in.ShippingFee},
	}
	for _, s := range summary {
		pdf.CellFormat(150, 7, s[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, s[1], "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(150, 8, "Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, in.TotalAmount+" "+in.Currency, "T", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func FileName(orderNumber string) string {
	return "invoice-" + orderNumber + ".pdf"
}
