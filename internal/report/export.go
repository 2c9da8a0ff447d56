package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"thredvault/backend/internal/domain"
)

// Workbook is the input of ExportWorkbook.
type Workbook struct {
	Inventory InventorySnapshot
	Sales     []domain.SaleRecord
	Orders    []domain.PurchaseOrderLine
	Events    []domain.LedgerEvent
}

type sheet struct {
	name     string
	headings []string
	rows     [][]any
}

// ExportWorkbook renders inventory, sales, orders and the ledger into one
// xlsx file, one sheet each.
func ExportWorkbook(w Workbook) ([]byte, error) {
	sheets := []sheet{
		{
			name:     "Inventory",
			headings: []string{"Brand", "Type", "Color", "Size", "Quantity", "WAC_Cost", "WAC_Group", "Total_Value"},
			rows:     inventoryRows(w.Inventory),
		},
		{
			name:     "Sales",
			headings: []string{"ID", "Date", "Brand", "Type", "Color", "Size", "Quantity", "Sale_Price", "Profit", "WAC_Group", "Status"},
			rows:     salesRows(w.Sales),
		},
		{
			name:     "Orders",
			headings: []string{"Order_ID", "Date", "Delivery_Date", "WAC_Group", "Supplier", "Total_Pieces", "Total_Cost", "Unit_Cost", "Amount_Paid", "Payment_Status", "Status"},
			rows:     orderRows(w.Orders),
		},
		{
			name:     "Ledger",
			headings: []string{"At", "Kind", "Amount", "Reference", "Note", "Balance_After"},
			rows:     eventRows(w.Events),
		},
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, s sheet) error {
	for col, h := range s.headings {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(s.name, cell, h); err != nil {
			return fmt.Errorf("write %s heading: %w", s.name, err)
		}
	}
	for r, row := range s.rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(s.name, cell, value); err != nil {
				return fmt.Errorf("write %s row %d: %w", s.name, r+2, err)
			}
		}
	}
	return nil
}

func inventoryRows(snap InventorySnapshot) [][]any {
	rows := make([][]any, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		rows = append(rows, []any{
			r.Brand, r.Type, r.Color, r.Size, r.Quantity,
			r.WACCost.InexactFloat64(), r.Group, r.TotalValue.InexactFloat64(),
		})
	}
	return rows
}

func salesRows(sales []domain.SaleRecord) [][]any {
	rows := make([][]any, 0, len(sales))
	for _, s := range sales {
		rows = append(rows, []any{
			s.ID, s.Date, s.Brand, s.Type, s.Color, s.Size, s.Quantity,
			s.SalePrice.InexactFloat64(), s.Profit.InexactFloat64(), s.WACGroup, s.Status,
		})
	}
	return rows
}

func orderRows(lines []domain.PurchaseOrderLine) [][]any {
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{
			l.OrderID, l.Date, l.DeliveryDate, l.WACGroup, l.Supplier, l.TotalPieces,
			l.TotalCost.InexactFloat64(), l.UnitCost.InexactFloat64(), l.AmountPaid.InexactFloat64(),
			l.PaymentStatus, l.Status,
		})
	}
	return rows
}

func eventRows(events []domain.LedgerEvent) [][]any {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{
			e.At.Format(time.RFC3339), e.Kind, e.Amount.InexactFloat64(), e.Reference, e.Note,
			e.BalanceAfter.InexactFloat64(),
		})
	}
	return rows
}
