package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"thredvault/backend/internal/domain"
)

const (
	keyCash     = "Cash_On_Hand"
	keyPayables = "Outstanding_Payables"
)

func LoadInventory(ctx context.Context, rs RecordStore) ([]domain.InventoryLine, error) {
	records, err := rs.Load(ctx, Inventory)
	if err != nil {
		return nil, err
	}
	out := make([]domain.InventoryLine, 0, len(records))
	for i, r := range records {
		qty, err := parseInt(r["Quantity"])
		if err != nil {
			return nil, rowError(Inventory, i, "Quantity", err)
		}
		cost, err := parseMoney(r["WAC_Cost"])
		if err != nil {
			return nil, rowError(Inventory, i, "WAC_Cost", err)
		}
		out = append(out, domain.InventoryLine{
			Brand:    domain.NormalizeKey(r["Brand"]),
			Type:     domain.NormalizeKey(r["Type"]),
			Color:    domain.NormalizeKey(r["Color"]),
			Size:     domain.NormalizeKey(r["Size"]),
			Quantity: qty,
			WACCost:  cost,
			WACGroup: strings.TrimSpace(r["WAC_Group"]),
		})
	}
	return out, nil
}

func SaveInventory(ctx context.Context, rs RecordStore, lines []domain.InventoryLine) error {
	records := make([]Record, 0, len(lines))
	for _, l := range lines {
		records = append(records, Record{
			"Brand":     l.Brand,
			"Type":      l.Type,
			"Color":     l.Color,
			"Size":      l.Size,
			"Quantity":  strconv.Itoa(l.Quantity),
			"WAC_Cost":  formatMoney(l.WACCost),
			"WAC_Group": l.WACGroup,
		})
	}
	return rs.Save(ctx, Inventory, records)
}

func LoadSales(ctx context.Context, rs RecordStore) ([]domain.SaleRecord, error) {
	records, err := rs.Load(ctx, Sales)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SaleRecord, 0, len(records))
	for i, r := range records {
		saleID, err := parseInt(r["ID"])
		if err != nil {
			return nil, rowError(Sales, i, "ID", err)
		}
		qty := 1
		if strings.TrimSpace(r["Quantity"]) != "" {
			if qty, err = parseInt(r["Quantity"]); err != nil {
				return nil, rowError(Sales, i, "Quantity", err)
			}
		}
		price, err := parseMoney(r["Sale_Price"])
		if err != nil {
			return nil, rowError(Sales, i, "Sale_Price", err)
		}
		profit, err := parseMoney(r["Profit"])
		if err != nil {
			return nil, rowError(Sales, i, "Profit", err)
		}
		status := strings.TrimSpace(r["Status"])
		if status == "" {
			status = domain.SaleCompleted
		}
		out = append(out, domain.SaleRecord{
			ID:        saleID,
			Date:      strings.TrimSpace(r["Date"]),
			Brand:     domain.NormalizeKey(r["Brand"]),
			Type:      domain.NormalizeKey(r["Type"]),
			Color:     domain.NormalizeKey(r["Color"]),
			Size:      domain.NormalizeKey(r["Size"]),
			Quantity:  qty,
			SalePrice: price,
			Profit:    profit,
			WACGroup:  strings.TrimSpace(r["WAC_Group"]),
			Status:    status,
		})
	}
	return out, nil
}

func SaveSales(ctx context.Context, rs RecordStore, sales []domain.SaleRecord) error {
	records := make([]Record, 0, len(sales))
	for _, s := range sales {
		records = append(records, Record{
			"ID":         strconv.Itoa(s.ID),
			"Date":       s.Date,
			"Brand":      s.Brand,
			"Type":       s.Type,
			"Color":      s.Color,
			"Size":       s.Size,
			"Quantity":   strconv.Itoa(s.Quantity),
			"Sale_Price": formatMoney(s.SalePrice),
			"Profit":     formatMoney(s.Profit),
			"WAC_Group":  s.WACGroup,
			"Status":     s.Status,
		})
	}
	return rs.Save(ctx, Sales, records)
}

func LoadOrders(ctx context.Context, rs RecordStore) ([]domain.PurchaseOrderLine, error) {
	records, err := rs.Load(ctx, Orders)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PurchaseOrderLine, 0, len(records))
	for i, r := range records {
		orderID, err := parseInt(r["Order_ID"])
		if err != nil {
			return nil, rowError(Orders, i, "Order_ID", err)
		}
		pieces, err := parseInt(r["Total_Pieces"])
		if err != nil {
			return nil, rowError(Orders, i, "Total_Pieces", err)
		}
		line := domain.PurchaseOrderLine{
			OrderID:       orderID,
			Date:          strings.TrimSpace(r["Date"]),
			DeliveryDate:  strings.TrimSpace(r["Delivery_Date"]),
			WACGroup:      strings.TrimSpace(r["WAC_Group"]),
			Supplier:      strings.TrimSpace(r["Supplier"]),
			TotalPieces:   pieces,
			PaymentStatus: strings.TrimSpace(r["Payment_Status"]),
			Status:        strings.TrimSpace(r["Status"]),
		}
		if line.DeliveryDate == "" {
			line.DeliveryDate = domain.DefaultDeliveryDate
		}
		for col, dest := range map[string]*decimal.Decimal{
			"Total_Cost":  &line.TotalCost,
			"Unit_Cost":   &line.UnitCost,
			"Amount_Paid": &line.AmountPaid,
		} {
			v, err := parseMoney(r[col])
			if err != nil {
				return nil, rowError(Orders, i, col, err)
			}
			*dest = v
		}
		out = append(out, line)
	}
	return out, nil
}

func SaveOrders(ctx context.Context, rs RecordStore, lines []domain.PurchaseOrderLine) error {
	records := make([]Record, 0, len(lines))
	for _, l := range lines {
		records = append(records, Record{
			"Order_ID":       strconv.Itoa(l.OrderID),
			"Date":           l.Date,
			"Delivery_Date":  l.DeliveryDate,
			"WAC_Group":      l.WACGroup,
			"Supplier":       l.Supplier,
			"Total_Pieces":   strconv.Itoa(l.TotalPieces),
			"Total_Cost":     formatMoney(l.TotalCost),
			"Unit_Cost":      formatMoney(l.UnitCost),
			"Amount_Paid":    formatMoney(l.AmountPaid),
			"Payment_Status": l.PaymentStatus,
			"Status":         l.Status,
		})
	}
	return rs.Save(ctx, Orders, records)
}

func LoadFinancials(ctx context.Context, rs RecordStore) (domain.FinancialLedger, error) {
	records, err := rs.Load(ctx, Financials)
	if err != nil {
		return domain.FinancialLedger{}, err
	}
	var fin domain.FinancialLedger
	for i, r := range records {
		v, err := parseMoney(r["Value"])
		if err != nil {
			return domain.FinancialLedger{}, rowError(Financials, i, "Value", err)
		}
		switch strings.TrimSpace(r["Key"]) {
		case keyCash:
			fin.CashOnHand = v
		case keyPayables:
			fin.OutstandingPayables = v
		}
	}
	return fin, nil
}

func SaveFinancials(ctx context.Context, rs RecordStore, fin domain.FinancialLedger) error {
	return rs.Save(ctx, Financials, []Record{
		{"Key": keyCash, "Value": formatMoney(fin.CashOnHand)},
		{"Key": keyPayables, "Value": formatMoney(fin.OutstandingPayables)},
	})
}

func LoadLedgerEvents(ctx context.Context, rs RecordStore) ([]domain.LedgerEvent, error) {
	records, err := rs.Load(ctx, LedgerEvents)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEvent, 0, len(records))
	for i, r := range records {
		at, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(r["At"]))
		if err != nil {
			return nil, rowError(LedgerEvents, i, "At", err)
		}
		amount, err := parseMoney(r["Amount"])
		if err != nil {
			return nil, rowError(LedgerEvents, i, "Amount", err)
		}
		balance, err := parseMoney(r["Balance_After"])
		if err != nil {
			return nil, rowError(LedgerEvents, i, "Balance_After", err)
		}
		out = append(out, domain.LedgerEvent{
			ID:           r["ID"],
			At:           at,
			Kind:         r["Kind"],
			Amount:       amount,
			Reference:    r["Reference"],
			Note:         r["Note"],
			BalanceAfter: balance,
		})
	}
	return out, nil
}

func SaveLedgerEvents(ctx context.Context, rs RecordStore, events []domain.LedgerEvent) error {
	records := make([]Record, 0, len(events))
	for _, e := range events {
		records = append(records, Record{
			"ID":            e.ID,
			"At":            e.At.UTC().Format(time.RFC3339Nano),
			"Kind":          e.Kind,
			"Amount":        formatMoney(e.Amount),
			"Reference":     e.Reference,
			"Note":          e.Note,
			"Balance_After": formatMoney(e.BalanceAfter),
		})
	}
	return rs.Save(ctx, LedgerEvents, records)
}

// parseInt accepts integer text and whole-number decimals such as "3.0".
// Blank is zero.
func parseInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || !v.Equal(v.Truncate(0)) {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return int(v.IntPart()), nil
}

// parseMoney reads a decimal amount, tolerating "$" and thousands
// separators. Blank is zero.
func parseMoney(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(raw))
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// formatMoney writes cents, rounding half away from zero.
func formatMoney(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func rowError(collection string, row int, column string, err error) error {
	return fmt.Errorf("%w: %s row %d column %s: %v", ErrMalformedRecord, collection, row+1, column, err)
}
