// Package orders holds the pure rules for purchase-order lines: id
// allocation, proportional payment distribution and payment status.
package orders

import (
	"sort"

	"github.com/shopspring/decimal"

	"thredvault/backend/internal/domain"
)

// NextID is one more than the largest id present, so ids freed by deleting
// the newest order are reused.
func NextID(lines []domain.PurchaseOrderLine) int {
	max := 0
	for _, line := range lines {
		if line.OrderID > max {
			max = line.OrderID
		}
	}
	return max + 1
}

// UnitCost is cost per piece rounded to cents, or zero for a zero-piece line.
func UnitCost(totalCost decimal.Decimal, pieces int) decimal.Decimal {
	if pieces <= 0 {
		return decimal.Zero
	}
	return totalCost.Div(decimal.NewFromInt(int64(pieces))).Round(2)
}

// PaymentStatus: Paid when paid covers cost, Unpaid when nothing is paid,
// Partial otherwise. A zero-cost line is therefore Paid.
func PaymentStatus(paid decimal.Decimal, cost decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(cost):
		return domain.PaymentPaid
	case paid.IsZero():
		return domain.PaymentUnpaid
	default:
		return domain.PaymentPartial
	}
}

// Distribute spreads totalPaid across lines in proportion to each line's
// cost. Shares are rounded to cents and the rounding remainder lands on the
// last line with a positive cost (the last line when none has one), so the
// stored amounts always add up to totalPaid. Status follows the stored amount.
func Distribute(lines []domain.PurchaseOrderLine, totalPaid decimal.Decimal) {
	if len(lines) == 0 {
		return
	}
	total := Total(lines)
	carrier := len(lines) - 1
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].TotalCost.IsPositive() {
			carrier = i
			break
		}
	}

	assigned := decimal.Zero
	for i := range lines {
		share := decimal.Zero
		if total.IsPositive() {
			share = totalPaid.Mul(lines[i].TotalCost).Div(total).Round(2)
		}
		lines[i].AmountPaid = share
		assigned = assigned.Add(share)
	}
	lines[carrier].AmountPaid = lines[carrier].AmountPaid.Add(totalPaid.Sub(assigned))

	for i := range lines {
		lines[i].PaymentStatus = PaymentStatus(lines[i].AmountPaid, lines[i].TotalCost)
	}
}

func Total(lines []domain.PurchaseOrderLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.TotalCost)
	}
	return sum
}

func Paid(lines []domain.PurchaseOrderLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.AmountPaid)
	}
	return sum
}

// Select returns the indices of the lines of one order.
func Select(lines []domain.PurchaseOrderLine, orderID int) []int {
	out := make([]int, 0, 4)
	for i, line := range lines {
		if line.OrderID == orderID {
			out = append(out, i)
		}
	}
	return out
}

// FindLine locates the line of an order for a group. An open line is
// preferred over one already received.
func FindLine(lines []domain.PurchaseOrderLine, orderID int, group string) int {
	found := -1
	for i, line := range lines {
		if line.OrderID != orderID || line.WACGroup != group {
			continue
		}
		if line.Status != domain.OrderStatusReceived {
			return i
		}
		if found < 0 {
			found = i
		}
	}
	return found
}

// Summarize groups lines by order id, newest order first.
func Summarize(lines []domain.PurchaseOrderLine) []domain.OrderSummary {
	byID := make(map[int][]domain.PurchaseOrderLine)
	for _, line := range lines {
		byID[line.OrderID] = append(byID[line.OrderID], line)
	}
	out := make([]domain.OrderSummary, 0, len(byID))
	for _, group := range byID {
		out = append(out, Summary(group))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID > out[j].OrderID })
	return out
}

// Summary consolidates the lines of a single order.
func Summary(lines []domain.PurchaseOrderLine) domain.OrderSummary {
	if len(lines) == 0 {
		return domain.OrderSummary{}
	}
	first := lines[0]
	s := domain.OrderSummary{
		OrderID:      first.OrderID,
		Date:         first.Date,
		DeliveryDate: first.DeliveryDate,
		Supplier:     first.Supplier,
		Lines:        append([]domain.PurchaseOrderLine(nil), lines...),
		TotalCost:    Total(lines),
		AmountPaid:   Paid(lines),
	}
	for _, line := range lines {
		s.TotalPieces += line.TotalPieces
	}
	s.BalanceDue = s.TotalCost.Sub(s.AmountPaid)
	s.PaymentStatus = PaymentStatus(s.AmountPaid, s.TotalCost)
	s.Status = consolidatedStatus(lines)
	return s
}

func consolidatedStatus(lines []domain.PurchaseOrderLine) string {
	received := 0
	for _, line := range lines {
		if line.Status == domain.OrderStatusReceived {
			received++
		}
	}
	switch {
	case received == len(lines):
		return domain.OrderStatusReceived
	case received == 0:
		return domain.OrderStatusOrdered
	default:
		return "Partially Received"
	}
}

// InTransit is the cost of lines neither received nor cancelled.
func InTransit(lines []domain.PurchaseOrderLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		if line.Open() {
			sum = sum.Add(line.TotalCost)
		}
	}
	return sum
}

// DerivedPayables is the unpaid balance of open lines.
func DerivedPayables(lines []domain.PurchaseOrderLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		if !line.Open() {
			continue
		}
		if due := line.TotalCost.Sub(line.AmountPaid); due.IsPositive() {
			sum = sum.Add(due)
		}
	}
	return sum
}
