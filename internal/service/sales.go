package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/report"
	"thredvault/backend/internal/store"
)

func saleRef(id int) string {
	return fmt.Sprintf("sale:%d", id)
}

func nextSaleID(sales []domain.SaleRecord) int {
	max := 0
	for _, sale := range sales {
		if sale.ID > max {
			max = sale.ID
		}
	}
	return max + 1
}

func (b *books) findSale(id int) (int, error) {
	for i, sale := range b.sales {
		if sale.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: #%d", domain.ErrSaleNotFound, id)
}

func (s *Service) ListSales(ctx context.Context, filter report.SalesFilter) (report.SalesSnapshot, error) {
	sales, err := store.LoadSales(ctx, s.records)
	if err != nil {
		return report.SalesSnapshot{}, err
	}
	return report.Sales(sales, filter), nil
}

// RecordSale sells every item at its current average cost. If any item
// cannot be sold nothing is recorded. Completed sales are credited to cash
// straight away; pending ones wait for CompleteSale.
func (s *Service) RecordSale(ctx context.Context, req domain.RecordSaleRequest) (domain.RecordSaleResponse, error) {
	resp := domain.RecordSaleResponse{Total: decimal.Zero}
	err := s.write(ctx, "record_sale", func(b *books) error {
		status := req.Status
		if status == "" {
			status = domain.SaleCompleted
		}
		if status != domain.SaleCompleted && status != domain.SalePending {
			return fmt.Errorf("%w: unknown sale status %q", domain.ErrInvalidInput, status)
		}
		if len(req.Items) == 0 {
			return fmt.Errorf("%w: no items", domain.ErrInvalidInput)
		}
		date := ""
		if status == domain.SaleCompleted {
			date = domain.FormatDate(s.now())
		}

		nextID := nextSaleID(b.sales)
		units := 0
		for _, item := range req.Items {
			id, err := normalizeIdentity(item.Identity)
			if err != nil {
				return err
			}
			if item.Price.IsNegative() {
				return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
			}
			cost, err := b.inventory.Sell(id, item.Quantity)
			if err != nil {
				return err
			}
			line, _ := b.inventory.Get(id)
			price := item.Price.Round(2)

			sale := domain.SaleRecord{
				ID:        nextID,
				Date:      date,
				Brand:     id.Brand,
				Type:      id.Type,
				Color:     id.Color,
				Size:      id.Size,
				Quantity:  item.Quantity,
				SalePrice: price,
				Profit:    price.Sub(cost.Mul(decimal.NewFromInt(int64(item.Quantity)))).Round(2),
				WACGroup:  b.inventory.EffectiveGroup(line),
				Status:    status,
			}
			nextID++
			units += item.Quantity
			b.sales = append(b.sales, sale)
			resp.Sales = append(resp.Sales, sale)
			resp.Total = resp.Total.Add(sale.SalePrice)
			if status == domain.SaleCompleted {
				b.post(sale.SalePrice, domain.LedgerSale, saleRef(sale.ID), sale.Identity().String())
			}
		}

		b.touch(store.Inventory, store.Sales)
		if s.metrics != nil {
			s.metrics.UnitsSold.Add(float64(units))
		}
		resp.Cash = b.ledger.Cash()
		return nil
	})
	return resp, err
}

// EditSalePrice corrects the price of a sale holding its cost basis fixed.
// Cash moves by the difference only for completed sales.
func (s *Service) EditSalePrice(ctx context.Context, id int, req domain.EditSalePriceRequest) (domain.SaleRecord, error) {
	var out domain.SaleRecord
	err := s.write(ctx, "edit_sale_price", func(b *books) error {
		if req.Price.IsNegative() {
			return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
		}
		idx, err := b.findSale(id)
		if err != nil {
			return err
		}
		sale := &b.sales[idx]
		cost := sale.CostBasis()
		price := req.Price.Round(2)
		diff := price.Sub(sale.SalePrice)
		sale.SalePrice = price
		sale.Profit = price.Sub(cost)
		b.touch(store.Sales)

		if sale.Completed() {
			b.post(diff, domain.LedgerSalePriceEdit, saleRef(id), "")
		}
		out = *sale
		return nil
	})
	return out, err
}

// CompleteSale settles a pending sale: it is dated today and credited.
func (s *Service) CompleteSale(ctx context.Context, id int) (domain.SaleRecord, error) {
	var out domain.SaleRecord
	err := s.write(ctx, "complete_sale", func(b *books) error {
		idx, err := b.findSale(id)
		if err != nil {
			return err
		}
		sale := &b.sales[idx]
		if sale.Completed() {
			return fmt.Errorf("%w: sale #%d is already completed", domain.ErrInvalidInput, id)
		}
		sale.Status = domain.SaleCompleted
		sale.Date = domain.FormatDate(s.now())
		b.touch(store.Sales)
		b.post(sale.SalePrice, domain.LedgerSaleCompleted, saleRef(id), "")
		out = *sale
		return nil
	})
	return out, err
}

// ReturnSale puts the sold units back on the shelf at the cost they left
// with, deletes the sale and refunds a completed sale's price.
func (s *Service) ReturnSale(ctx context.Context, id int) (domain.SaleRecord, error) {
	var out domain.SaleRecord
	err := s.write(ctx, "return_sale", func(b *books) error {
		idx, err := b.findSale(id)
		if err != nil {
			return err
		}
		sale := b.sales[idx]
		qty := sale.Quantity
		if qty < 1 {
			qty = 1
		}
		basis := sale.CostBasis().Div(decimal.NewFromInt(int64(qty))).Round(2)
		identity := sale.Identity()

		b.inventory.Restock(identity, qty, basis, sale.WACGroup)
		if s.recomputeOnReturn {
			if line, ok := b.inventory.Get(identity); ok {
				s.recompute(b, b.inventory.EffectiveGroup(line))
			}
		}
		b.sales = append(b.sales[:idx], b.sales[idx+1:]...)
		b.touch(store.Inventory, store.Sales)

		if sale.Completed() {
			b.post(sale.SalePrice.Neg(), domain.LedgerSaleReturn, saleRef(id), identity.String())
		}
		out = sale
		return nil
	})
	return out, err
}
