package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thredvault/backend/internal/domain"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestDistributeProportionally(t *testing.T) {
	lines := []domain.PurchaseOrderLine{
		{OrderID: 1, WACGroup: "Ess_HoodiePant", TotalCost: d("1000")},
		{OrderID: 1, WACGroup: "Ess_TeeShort", TotalCost: d("500")},
	}

	Distribute(lines, d("750"))

	assert.Equal(t, "500.00", lines[0].AmountPaid.StringFixed(2))
	assert.Equal(t, "250.00", lines[1].AmountPaid.StringFixed(2))
	assert.Equal(t, domain.PaymentPartial, lines[0].PaymentStatus)
	assert.Equal(t, domain.PaymentPartial, lines[1].PaymentStatus)
	assert.True(t, Paid(lines).Equal(d("750")))
}

func TestDistributeZeroTotalKeepsPaymentOnLastLine(t *testing.T) {
	lines := []domain.PurchaseOrderLine{{TotalCost: d("0")}, {TotalCost: d("0")}}
	Distribute(lines, d("100"))
	assert.True(t, lines[0].AmountPaid.IsZero())
	assert.True(t, lines[1].AmountPaid.Equal(d("100")))
	assert.True(t, Paid(lines).Equal(d("100")))
	for _, line := range lines {
		assert.Equal(t, domain.PaymentPaid, line.PaymentStatus)
	}
}

func TestDistributePutsRemainderOnLastCostedLine(t *testing.T) {
	lines := []domain.PurchaseOrderLine{{TotalCost: d("1")}, {TotalCost: d("1")}, {TotalCost: d("1")}}
	Distribute(lines, d("1"))
	assert.Equal(t, "0.33", lines[0].AmountPaid.StringFixed(2))
	assert.Equal(t, "0.33", lines[1].AmountPaid.StringFixed(2))
	assert.Equal(t, "0.34", lines[2].AmountPaid.StringFixed(2))
	assert.True(t, Paid(lines).Equal(d("1")))
	for _, line := range lines {
		assert.Equal(t, domain.PaymentPartial, line.PaymentStatus)
	}

	withFreebie := []domain.PurchaseOrderLine{{TotalCost: d("100")}, {TotalCost: d("100")}, {TotalCost: d("100")}, {TotalCost: d("0")}}
	Distribute(withFreebie, d("100"))
	assert.Equal(t, "33.34", withFreebie[2].AmountPaid.StringFixed(2))
	assert.True(t, withFreebie[3].AmountPaid.IsZero())
	assert.True(t, Paid(withFreebie).Equal(d("100")))
}

func TestDistributeFullPaymentMarksEveryLinePaid(t *testing.T) {
	lines := []domain.PurchaseOrderLine{{TotalCost: d("100")}, {TotalCost: d("100")}, {TotalCost: d("100")}}
	Distribute(lines, d("300"))
	for _, line := range lines {
		assert.True(t, line.AmountPaid.Equal(d("100")))
		assert.Equal(t, domain.PaymentPaid, line.PaymentStatus)
	}
}

func TestPaymentStatus(t *testing.T) {
	assert.Equal(t, domain.PaymentPaid, PaymentStatus(d("10"), d("10")))
	assert.Equal(t, domain.PaymentPaid, PaymentStatus(d("12"), d("10")))
	assert.Equal(t, domain.PaymentUnpaid, PaymentStatus(d("0"), d("10")))
	assert.Equal(t, domain.PaymentPartial, PaymentStatus(d("0.01"), d("10")))
}

func TestUnitCost(t *testing.T) {
	assert.True(t, UnitCost(d("100"), 3).Equal(d("33.33")))
	assert.True(t, UnitCost(d("100"), 0).IsZero())
}

func TestNextIDReusesAfterDelete(t *testing.T) {
	assert.Equal(t, 1, NextID(nil))
	lines := []domain.PurchaseOrderLine{{OrderID: 3}, {OrderID: 7}, {OrderID: 7}}
	assert.Equal(t, 8, NextID(lines))
	assert.Equal(t, 4, NextID(lines[:1]))
}

func TestFindLinePrefersOpen(t *testing.T) {
	lines := []domain.PurchaseOrderLine{
		{OrderID: 2, WACGroup: "A", Status: domain.OrderStatusReceived},
		{OrderID: 2, WACGroup: "A", Status: domain.OrderStatusOrdered},
		{OrderID: 2, WACGroup: "B", Status: domain.OrderStatusReceived},
	}
	assert.Equal(t, 1, FindLine(lines, 2, "A"))
	assert.Equal(t, 2, FindLine(lines, 2, "B"))
	assert.Equal(t, -1, FindLine(lines, 3, "A"))
}

func TestSummarize(t *testing.T) {
	lines := []domain.PurchaseOrderLine{
		{OrderID: 1, Supplier: "Acme", TotalPieces: 10, TotalCost: d("100"), AmountPaid: d("100"), Status: domain.OrderStatusReceived},
		{OrderID: 2, Supplier: "Zed", TotalPieces: 4, TotalCost: d("80"), AmountPaid: d("20"), Status: domain.OrderStatusOrdered},
		{OrderID: 2, Supplier: "Zed", TotalPieces: 6, TotalCost: d("120"), AmountPaid: d("30"), Status: domain.OrderStatusReceived},
	}

	summaries := Summarize(lines)
	require.Len(t, summaries, 2)
	assert.Equal(t, 2, summaries[0].OrderID)
	assert.Equal(t, 10, summaries[0].TotalPieces)
	assert.True(t, summaries[0].BalanceDue.Equal(d("150")))
	assert.Equal(t, domain.PaymentPartial, summaries[0].PaymentStatus)
	assert.Equal(t, "Partially Received", summaries[0].Status)
	assert.Equal(t, domain.OrderStatusReceived, summaries[1].Status)
}

func TestInTransitAndDerivedPayables(t *testing.T) {
	lines := []domain.PurchaseOrderLine{
		{TotalCost: d("100"), AmountPaid: d("40"), Status: domain.OrderStatusOrdered},
		{TotalCost: d("50"), AmountPaid: d("0"), Status: domain.OrderStatusReceived},
		{TotalCost: d("30"), AmountPaid: d("30"), Status: ""},
		{TotalCost: d("70"), AmountPaid: d("0"), Status: domain.OrderStatusCancelled},
	}
	assert.True(t, InTransit(lines).Equal(d("130")))
	assert.True(t, DerivedPayables(lines).Equal(d("60")))
}
