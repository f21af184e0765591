package invoice

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFRenderer_Render(t *testing.T) {
	r := NewPDFRenderer()
	out, err := r.Render(Input{
		OrderNumber:  "ORD-01J0000000",
		PlacedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		CustomerName: "Taro",
		Currency:     "EGP",
		Lines: []Line{
			{Name: "T-shirt", Variant: "M / black", Quantity: 2, UnitPrice: "100.00", LineTotal: "200.00"},
		},
		ItemsSubtotal: "200.00",
		DiscountTotal: "0.00",
		ShippingFee:   "50.00",
		TotalAmount:   "250.00",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "invoice-ORD-1.pdf", FileName("ORD-1"))
}
