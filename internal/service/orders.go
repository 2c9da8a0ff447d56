package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/orders"
	"thredvault/backend/internal/store"
)

var priceWarningFactor = decimal.RequireFromString("1.1")

func orderRef(id int) string {
	return fmt.Sprintf("order:%d", id)
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.OrderSummary, error) {
	lines, err := store.LoadOrders(ctx, s.records)
	if err != nil {
		return nil, err
	}
	return orders.Summarize(lines), nil
}

func (s *Service) GetOrder(ctx context.Context, orderID int) (domain.OrderSummary, error) {
	lines, err := store.LoadOrders(ctx, s.records)
	if err != nil {
		return domain.OrderSummary{}, err
	}
	idx := orders.Select(lines, orderID)
	if len(idx) == 0 {
		return domain.OrderSummary{}, fmt.Errorf("%w: #%d", domain.ErrOrderNotFound, orderID)
	}
	selected := make([]domain.PurchaseOrderLine, 0, len(idx))
	for _, i := range idx {
		selected = append(selected, lines[i])
	}
	return orders.Summary(selected), nil
}

func (s *Service) calendarDate(raw string, fallback string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if raw == domain.DefaultDeliveryDate {
		return raw, nil
	}
	t, ok := domain.ParseDate(raw)
	if !ok {
		return "", fmt.Errorf("%w: unrecognised date %q", domain.ErrInvalidInput, raw)
	}
	return domain.FormatDate(t), nil
}

// lineGroup resolves the WAC group of an order line. An explicit group wins;
// otherwise brand and type are classified, and an unclassified pair becomes
// BRAND_TYPE unless the catalog is strict.
func (s *Service) lineGroup(in domain.OrderLineInput) (string, error) {
	group := strings.TrimSpace(in.Group)
	if group == domain.GroupUnknown {
		return "", fmt.Errorf("%w: %s is not a purchasable group", domain.ErrInvalidInput, group)
	}
	if group != "" {
		if _, known := s.catalog.BrandForGroup(group); !known && s.strictCatalog {
			return "", fmt.Errorf("%w: group %s is not in the catalog", domain.ErrInvalidInput, group)
		}
		return group, nil
	}

	brand, garmentType := domain.NormalizeKey(in.Brand), domain.NormalizeKey(in.Type)
	if brand == "" || garmentType == "" {
		return "", fmt.Errorf("%w: each line needs a group or a brand and type", domain.ErrInvalidInput)
	}
	group = s.catalog.GroupFor(brand, garmentType)
	if group != domain.GroupUnknown {
		return group, nil
	}
	if s.strictCatalog {
		return "", fmt.Errorf("%w: %s %s is not in the catalog", domain.ErrInvalidInput, brand, garmentType)
	}
	return brand + "_" + garmentType, nil
}

// CreateOrder books a purchase order under the next free id, spreads the
// up-front payment across its lines and takes the payment out of cash.
func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	var resp domain.CreateOrderResponse
	err := s.write(ctx, "create_order", func(b *books) error {
		supplier := strings.TrimSpace(req.Supplier)
		if supplier == "" {
			return fmt.Errorf("%w: supplier is required", domain.ErrInvalidInput)
		}
		if len(req.Lines) == 0 {
			return fmt.Errorf("%w: an order needs at least one line", domain.ErrInvalidInput)
		}
		if req.AmountPaid.IsNegative() {
			return fmt.Errorf("%w: amount paid must not be negative", domain.ErrInvalidInput)
		}
		date, err := s.calendarDate(req.Date, domain.FormatDate(s.now()))
		if err != nil {
			return err
		}
		delivery, err := s.calendarDate(req.DeliveryDate, domain.DefaultDeliveryDate)
		if err != nil {
			return err
		}

		id := orders.NextID(b.orders)
		paid := req.AmountPaid.Round(2)
		created := make([]domain.PurchaseOrderLine, 0, len(req.Lines))
		// One line per group: inputs resolving to the same group are merged.
		byGroup := make(map[string]int, len(req.Lines))
		for _, in := range req.Lines {
			group, err := s.lineGroup(in)
			if err != nil {
				return err
			}
			if in.Pieces < 0 || in.TotalCost.IsNegative() {
				return fmt.Errorf("%w: pieces and cost must not be negative", domain.ErrInvalidInput)
			}
			cost := in.TotalCost.Round(2)
			if i, ok := byGroup[group]; ok {
				created[i].TotalPieces += in.Pieces
				created[i].TotalCost = created[i].TotalCost.Add(cost)
				created[i].UnitCost = orders.UnitCost(created[i].TotalCost, created[i].TotalPieces)
				continue
			}
			byGroup[group] = len(created)
			created = append(created, domain.PurchaseOrderLine{
				OrderID:      id,
				Date:         date,
				DeliveryDate: delivery,
				WACGroup:     group,
				Supplier:     supplier,
				TotalPieces:  in.Pieces,
				TotalCost:    cost,
				UnitCost:     orders.UnitCost(cost, in.Pieces),
				Status:       domain.OrderStatusOrdered,
			})
		}
		orders.Distribute(created, paid)

		resp.Warnings = []domain.PriceWarning{}
		for _, line := range created {
			if line.TotalPieces == 0 {
				continue
			}
			avg, ok := b.inventory.GroupAverage(line.WACGroup)
			if ok && avg.IsPositive() && line.UnitCost.GreaterThan(avg.Mul(priceWarningFactor)) {
				resp.Warnings = append(resp.Warnings, domain.PriceWarning{
					Group:       line.WACGroup,
					UnitCost:    line.UnitCost,
					AverageCost: avg.Round(2),
				})
			}
		}

		b.orders = append(b.orders, created...)
		b.touch(store.Orders)
		b.post(paid.Neg(), domain.LedgerOrderPayment, orderRef(id), supplier)
		resp.Order = orders.Summary(created)
		return nil
	})
	return resp, err
}

func (b *books) findLine(orderID int, group string) (int, error) {
	if len(orders.Select(b.orders, orderID)) == 0 {
		return -1, fmt.Errorf("%w: #%d", domain.ErrOrderNotFound, orderID)
	}
	idx := orders.FindLine(b.orders, orderID, strings.TrimSpace(group))
	if idx < 0 {
		return -1, fmt.Errorf("%w: #%d %s", domain.ErrLineNotFound, orderID, group)
	}
	return idx, nil
}

// ReceiveLine books received stock against one open order line at the
// line's unit cost, then recomputes the affected groups.
func (s *Service) ReceiveLine(ctx context.Context, orderID int, group string, req domain.ReceiveLineRequest) (domain.ReceiveLineResponse, error) {
	var resp domain.ReceiveLineResponse
	err := s.write(ctx, "receive_line", func(b *books) error {
		idx, err := b.findLine(orderID, group)
		if err != nil {
			return err
		}
		line := &b.orders[idx]
		if !line.Open() {
			return fmt.Errorf("%w: #%d %s is %s", domain.ErrLineClosed, orderID, line.WACGroup, line.Status)
		}

		items, units, err := receipts(req.Items)
		if err != nil {
			return err
		}
		if brand, known := s.catalog.BrandForGroup(line.WACGroup); known {
			for _, item := range items {
				if item.Identity.Brand != brand {
					return fmt.Errorf("%w: %s belongs to %s, not %s", domain.ErrInvalidInput, line.WACGroup, brand, item.Identity.Brand)
				}
			}
		}

		resp.Recomputed = b.inventory.ReceiveBatch(items, line.UnitCost, line.WACGroup)
		if req.Close {
			line.Status = domain.OrderStatusReceived
			b.touch(store.Orders)
		}
		b.touch(store.Inventory)
		if s.metrics != nil {
			s.metrics.UnitsReceived.Add(float64(units))
		}
		resp.Line = *line
		resp.Lines = touchedLines(b.inventory, items)
		return nil
	})
	return resp, err
}

// CloseLine marks an order line received. It cannot be reopened.
func (s *Service) CloseLine(ctx context.Context, orderID int, group string) (domain.PurchaseOrderLine, error) {
	var out domain.PurchaseOrderLine
	err := s.write(ctx, "close_line", func(b *books) error {
		idx, err := b.findLine(orderID, group)
		if err != nil {
			return err
		}
		if b.orders[idx].Status == domain.OrderStatusReceived {
			return fmt.Errorf("%w: #%d %s", domain.ErrLineClosed, orderID, group)
		}
		b.orders[idx].Status = domain.OrderStatusReceived
		b.touch(store.Orders)
		out = b.orders[idx]
		return nil
	})
	return out, err
}

// AdjustPayment sets the total paid on an order, redistributes it across the
// lines and moves cash by the difference.
func (s *Service) AdjustPayment(ctx context.Context, orderID int, req domain.AdjustPaymentRequest) (domain.OrderSummary, error) {
	var out domain.OrderSummary
	err := s.write(ctx, "adjust_payment", func(b *books) error {
		if req.AmountPaid.IsNegative() {
			return fmt.Errorf("%w: amount paid must not be negative", domain.ErrInvalidInput)
		}
		idx := orders.Select(b.orders, orderID)
		if len(idx) == 0 {
			return fmt.Errorf("%w: #%d", domain.ErrOrderNotFound, orderID)
		}
		lines := make([]domain.PurchaseOrderLine, 0, len(idx))
		for _, i := range idx {
			lines = append(lines, b.orders[i])
		}
		paid := req.AmountPaid.Round(2)
		previous := orders.Paid(lines)
		orders.Distribute(lines, paid)
		for n, i := range idx {
			b.orders[i] = lines[n]
		}

		b.touch(store.Orders)
		b.post(paid.Sub(previous).Neg(), domain.LedgerPaymentAdjustment, orderRef(orderID), "")
		out = orders.Summary(lines)
		return nil
	})
	return out, err
}

// DeleteLine removes one line of an order. Cash only moves when the supplier
// refunded what was paid for it.
func (s *Service) DeleteLine(ctx context.Context, orderID int, group string, refund bool) (domain.DeleteOrderResponse, error) {
	resp := domain.DeleteOrderResponse{OrderID: orderID, Refunded: decimal.Zero}
	err := s.write(ctx, "delete_line", func(b *books) error {
		idx, err := b.findLine(orderID, group)
		if err != nil {
			return err
		}
		paid := b.orders[idx].AmountPaid
		b.orders = append(b.orders[:idx], b.orders[idx+1:]...)
		b.touch(store.Orders)
		resp.LinesRemoved = 1

		if refund && paid.IsPositive() {
			b.post(paid, domain.LedgerOrderRefund, orderRef(orderID), group)
			resp.Refunded = paid
		}
		return nil
	})
	return resp, err
}

// DeleteOrder removes every line of an order. Cash only moves when refund
// is set.
func (s *Service) DeleteOrder(ctx context.Context, orderID int, refund bool) (domain.DeleteOrderResponse, error) {
	resp := domain.DeleteOrderResponse{OrderID: orderID, Refunded: decimal.Zero}
	err := s.write(ctx, "delete_order", func(b *books) error {
		kept := make([]domain.PurchaseOrderLine, 0, len(b.orders))
		paid := decimal.Zero
		for _, line := range b.orders {
			if line.OrderID == orderID {
				paid = paid.Add(line.AmountPaid)
				resp.LinesRemoved++
				continue
			}
			kept = append(kept, line)
		}
		if resp.LinesRemoved == 0 {
			return fmt.Errorf("%w: #%d", domain.ErrOrderNotFound, orderID)
		}
		b.orders = kept
		b.touch(store.Orders)

		if refund && paid.IsPositive() {
			b.post(paid, domain.LedgerOrderRefund, orderRef(orderID), "")
			resp.Refunded = paid
		}
		return nil
	})
	return resp, err
}
