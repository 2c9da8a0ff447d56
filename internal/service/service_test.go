package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"thredvault/backend/internal/catalog"
	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/ledger"
	"thredvault/backend/internal/report"
	"thredvault/backend/internal/store"
	"thredvault/backend/internal/store/memory"
)

var testNow = time.Date(2026, time.March, 14, 10, 30, 0, 0, time.Local)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestService(opts ...Option) (*Service, *memory.Store) {
	records := memory.NewSeeded()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(records, catalog.Default(), opts...), records
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func hoodie(size string) domain.Identity {
	return domain.Identity{Brand: "ESSENTIALS", Type: "HOODIE", Color: "BLACK", Size: size}
}

func cash(t *testing.T, svc *Service) string {
	t.Helper()
	snap, err := svc.Ledger(context.Background())
	if err != nil {
		t.Fatalf("ledger snapshot failed: %v", err)
	}
	return snap.CashOnHand.StringFixed(2)
}

func line(t *testing.T, svc *Service, id domain.Identity) domain.InventoryLine {
	t.Helper()
	lines, err := store.LoadInventory(context.Background(), svc.records)
	if err != nil {
		t.Fatalf("load inventory failed: %v", err)
	}
	for _, l := range lines {
		if l.Identity() == id {
			return l
		}
	}
	t.Fatalf("line %s not found", id)
	return domain.InventoryLine{}
}

func assertLedgerConsistent(t *testing.T, svc *Service) {
	t.Helper()
	drift, err := svc.VerifyLedger(context.Background())
	if err != nil {
		t.Fatalf("verify ledger failed: %v", err)
	}
	if !drift.Consistent {
		t.Fatalf("ledger drifted: stored=%s folded=%s", drift.Stored, drift.Folded)
	}
}

func TestWritesRequireAdmin(t *testing.T) {
	svc, _ := newTestService()
	viewer := WithActor(context.Background(), domain.Actor{Username: "viewer", Role: "viewer"})

	_, err := svc.RecordSale(viewer, domain.RecordSaleRequest{Items: []domain.SaleItem{{Identity: hoodie("M"), Quantity: 1, Price: d("60")}}})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.SetCash(context.Background(), domain.AmountRequest{Amount: d("1")}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden without actor, got %v", err)
	}
}

func TestReceiveOrderLineBlendsGroup(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Supplier:   "Acme",
		Lines:      []domain.OrderLineInput{{Group: "Ess_HoodiePant", Pieces: 5, TotalCost: d("150")}},
		AmountPaid: d("150"),
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if created.Order.OrderID != 1 {
		t.Fatalf("expected order #1, got %d", created.Order.OrderID)
	}
	if created.Order.Date != "03/14/2026" || created.Order.DeliveryDate != domain.DefaultDeliveryDate {
		t.Fatalf("unexpected dates %s / %s", created.Order.Date, created.Order.DeliveryDate)
	}
	if len(created.Warnings) != 1 || !created.Warnings[0].AverageCost.Equal(d("20")) {
		t.Fatalf("expected a price warning against 20.00, got %+v", created.Warnings)
	}
	if got := cash(t, svc); got != "850.00" {
		t.Fatalf("expected cash 850.00, got %s", got)
	}

	resp, err := svc.ReceiveLine(ctx, 1, "Ess_HoodiePant", domain.ReceiveLineRequest{
		Items: []domain.StockItem{{Identity: hoodie("m"), Quantity: 5}},
		Close: true,
	})
	if err != nil {
		t.Fatalf("receive line failed: %v", err)
	}
	if resp.Line.Status != domain.OrderStatusReceived {
		t.Fatalf("expected line to be closed, got %s", resp.Line.Status)
	}

	m, l := line(t, svc, hoodie("M")), line(t, svc, hoodie("L"))
	if m.Quantity != 15 {
		t.Fatalf("expected 15 M, got %d", m.Quantity)
	}
	if m.WACCost.StringFixed(2) != "22.50" || l.WACCost.StringFixed(2) != "22.50" {
		t.Fatalf("expected both lines at 22.50, got %s and %s", m.WACCost, l.WACCost)
	}

	_, err = svc.ReceiveLine(ctx, 1, "Ess_HoodiePant", domain.ReceiveLineRequest{Items: []domain.StockItem{{Identity: hoodie("M"), Quantity: 1}}})
	if !errors.Is(err, domain.ErrLineClosed) {
		t.Fatalf("expected closed line error, got %v", err)
	}
	assertLedgerConsistent(t, svc)
}

func TestReceiveLineRejectsForeignBrand(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	if _, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Supplier: "Acme",
		Lines:    []domain.OrderLineInput{{Group: "YZY_Slides", Pieces: 2, TotalCost: d("120")}},
	}); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	_, err := svc.ReceiveLine(ctx, 1, "YZY_Slides", domain.ReceiveLineRequest{Items: []domain.StockItem{{Identity: hoodie("M"), Quantity: 2}}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if line(t, svc, hoodie("M")).Quantity != 10 {
		t.Fatalf("inventory must be untouched")
	}
}

func TestOrderPaymentIsDistributedProportionally(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Supplier: "Acme",
		Lines: []domain.OrderLineInput{
			{Group: "Ess_HoodiePant", Pieces: 40, TotalCost: d("1000")},
			{Brand: "essentials", Type: "tee", Pieces: 50, TotalCost: d("500")},
		},
		AmountPaid: d("750"),
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	lines := created.Order.Lines
	if lines[1].WACGroup != "Ess_TeeShort" {
		t.Fatalf("expected classified group, got %s", lines[1].WACGroup)
	}
	if !lines[0].AmountPaid.Equal(d("500")) || !lines[1].AmountPaid.Equal(d("250")) {
		t.Fatalf("expected 500/250, got %s/%s", lines[0].AmountPaid, lines[1].AmountPaid)
	}
	if lines[0].PaymentStatus != domain.PaymentPartial || lines[1].PaymentStatus != domain.PaymentPartial {
		t.Fatalf("expected both partial")
	}
	if got := cash(t, svc); got != "250.00" {
		t.Fatalf("expected cash 250.00, got %s", got)
	}

	summary, err := svc.AdjustPayment(ctx, 1, domain.AdjustPaymentRequest{AmountPaid: d("1500")})
	if err != nil {
		t.Fatalf("adjust payment failed: %v", err)
	}
	if summary.PaymentStatus != domain.PaymentPaid || !summary.BalanceDue.IsZero() {
		t.Fatalf("expected order paid in full, got %s due %s", summary.PaymentStatus, summary.BalanceDue)
	}
	if got := cash(t, svc); got != "-500.00" {
		t.Fatalf("expected cash -500.00, got %s", got)
	}
	assertLedgerConsistent(t, svc)
}

func TestOrderPaymentCentsStayPairedWithCash(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	start := cash(t, svc)

	created, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Supplier: "Acme",
		Lines: []domain.OrderLineInput{
			{Group: "Ess_HoodiePant", Pieces: 4, TotalCost: d("100")},
			{Group: "Ess_TeeShort", Pieces: 4, TotalCost: d("100")},
			{Group: "Spdr_HoodiePant", Pieces: 4, TotalCost: d("100")},
		},
		AmountPaid: d("100"),
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if !created.Order.AmountPaid.Equal(d("100")) {
		t.Fatalf("expected lines to record 100 paid, got %s", created.Order.AmountPaid)
	}
	if got := created.Order.Lines[2].AmountPaid.StringFixed(2); got != "33.34" {
		t.Fatalf("expected the last line to carry the remainder, got %s", got)
	}

	if _, err := svc.AdjustPayment(ctx, created.Order.OrderID, domain.AdjustPaymentRequest{AmountPaid: d("100")}); err != nil {
		t.Fatalf("adjust payment failed: %v", err)
	}
	events, err := svc.LedgerEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("ledger events failed: %v", err)
	}
	if events[0].Kind == domain.LedgerPaymentAdjustment {
		t.Fatalf("re-stating the same payment must not move cash, got %s", events[0].Amount)
	}

	if _, err := svc.AdjustPayment(ctx, created.Order.OrderID, domain.AdjustPaymentRequest{AmountPaid: d("200")}); err != nil {
		t.Fatalf("adjust payment failed: %v", err)
	}
	deleted, err := svc.DeleteOrder(ctx, created.Order.OrderID, true)
	if err != nil {
		t.Fatalf("delete order failed: %v", err)
	}
	if !deleted.Refunded.Equal(d("200")) {
		t.Fatalf("expected refund of 200, got %s", deleted.Refunded)
	}
	if got := cash(t, svc); got != start {
		t.Fatalf("expected cash back at %s after full undo, got %s", start, got)
	}
	assertLedgerConsistent(t, svc)
}

func TestCreateOrderMergesLinesOfTheSameGroup(t *testing.T) {
	svc, _ := newTestService()
	resp, err := svc.CreateOrder(adminCtx(), domain.CreateOrderRequest{
		Supplier: "Acme",
		Lines: []domain.OrderLineInput{
			{Brand: "essentials", Type: "hoodie", Pieces: 10, TotalCost: d("200")},
			{Group: "Ess_TeeShort", Pieces: 5, TotalCost: d("50")},
			{Brand: "Essentials", Type: "Pant", Pieces: 5, TotalCost: d("150")},
		},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	lines := resp.Order.Lines
	if len(lines) != 2 {
		t.Fatalf("expected one line per group, got %d", len(lines))
	}
	if lines[0].WACGroup != "Ess_HoodiePant" || lines[0].TotalPieces != 15 || !lines[0].TotalCost.Equal(d("350")) {
		t.Fatalf("unexpected merged line %+v", lines[0])
	}
	if got := lines[0].UnitCost.StringFixed(2); got != "23.33" {
		t.Fatalf("expected unit cost from merged totals, got %s", got)
	}

	order, err := svc.GetOrder(context.Background(), resp.Order.OrderID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if len(order.Lines) != 2 {
		t.Fatalf("expected two stored lines, got %d", len(order.Lines))
	}
}

func TestUnclassifiedReceiptIsStoredInCents(t *testing.T) {
	svc, records := newTestService()
	ctx := adminCtx()
	capID := domain.Identity{Brand: "STUSSY", Type: "CAP", Color: "BLACK", Size: "OS"}

	for _, receipt := range []struct {
		qty  int
		cost string
	}{{1, "10.00"}, {2, "10.50"}} {
		if _, err := svc.ReceiveStock(ctx, domain.ReceiveStockRequest{
			Items:    []domain.StockItem{{Identity: capID, Quantity: receipt.qty}},
			UnitCost: d(receipt.cost),
		}); err != nil {
			t.Fatalf("receive failed: %v", err)
		}
	}

	raw, err := records.Load(context.Background(), store.Inventory)
	if err != nil {
		t.Fatalf("load inventory failed: %v", err)
	}
	for _, row := range raw {
		if row["Brand"] != "STUSSY" {
			continue
		}
		if row["WAC_Group"] != domain.GroupUnknown {
			t.Fatalf("expected the cap to stay unclassified, got %s", row["WAC_Group"])
		}
		if row["WAC_Cost"] != "10.33" {
			t.Fatalf("expected cost stored in cents, got %s", row["WAC_Cost"])
		}
		return
	}
	t.Fatalf("received cap not found")
}

func TestCreateOrderUnclassifiedGroup(t *testing.T) {
	svc, _ := newTestService()
	resp, err := svc.CreateOrder(adminCtx(), domain.CreateOrderRequest{
		Supplier: "Acme",
		Lines:    []domain.OrderLineInput{{Brand: "Stussy", Type: "Cap", Pieces: 3, TotalCost: d("45")}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if resp.Order.Lines[0].WACGroup != "STUSSY_CAP" {
		t.Fatalf("expected STUSSY_CAP, got %s", resp.Order.Lines[0].WACGroup)
	}
	if resp.Order.PaymentStatus != domain.PaymentUnpaid {
		t.Fatalf("expected unpaid, got %s", resp.Order.PaymentStatus)
	}

	strict, _ := newTestService(WithStrictCatalog(true))
	_, err = strict.CreateOrder(adminCtx(), domain.CreateOrderRequest{
		Supplier: "Acme",
		Lines:    []domain.OrderLineInput{{Brand: "Stussy", Type: "Cap", Pieces: 3, TotalCost: d("45")}},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("strict catalog should reject unknown pairs, got %v", err)
	}
}

func TestDeletedOrderIDIsReused(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	req := domain.CreateOrderRequest{
		Supplier:   "Acme",
		Lines:      []domain.OrderLineInput{{Group: "Ess_HoodiePant", Pieces: 1, TotalCost: d("20")}},
		AmountPaid: d("20"),
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.CreateOrder(ctx, req); err != nil {
			t.Fatalf("create order failed: %v", err)
		}
	}

	deleted, err := svc.DeleteOrder(ctx, 2, true)
	if err != nil {
		t.Fatalf("delete order failed: %v", err)
	}
	if !deleted.Refunded.Equal(d("20")) || deleted.LinesRemoved != 1 {
		t.Fatalf("unexpected delete result %+v", deleted)
	}
	if got := cash(t, svc); got != "980.00" {
		t.Fatalf("expected refund back to 980.00, got %s", got)
	}

	again, err := svc.CreateOrder(ctx, req)
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if again.Order.OrderID != 2 {
		t.Fatalf("expected id 2 to be reused, got %d", again.Order.OrderID)
	}

	if _, err := svc.DeleteLine(ctx, 1, "Ess_HoodiePant", false); err != nil {
		t.Fatalf("delete line failed: %v", err)
	}
	if got := cash(t, svc); got != "960.00" {
		t.Fatalf("delete without refund must not move cash, got %s", got)
	}
	if _, err := svc.GetOrder(context.Background(), 1); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order #1 to be gone, got %v", err)
	}
	assertLedgerConsistent(t, svc)
}

func TestCloseLineIsOneWay(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	if _, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Supplier: "Acme",
		Lines:    []domain.OrderLineInput{{Group: "Ess_HoodiePant", Pieces: 1, TotalCost: d("20")}},
	}); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if _, err := svc.CloseLine(ctx, 1, "Ess_HoodiePant"); err != nil {
		t.Fatalf("close line failed: %v", err)
	}
	if _, err := svc.CloseLine(ctx, 1, "Ess_HoodiePant"); !errors.Is(err, domain.ErrLineClosed) {
		t.Fatalf("expected second close to fail, got %v", err)
	}
	if _, err := svc.CloseLine(ctx, 1, "YZY_Slides"); !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected missing line, got %v", err)
	}
}

func TestOutOfStockSaleLeavesEverythingUntouched(t *testing.T) {
	svc, records := newTestService()

	_, err := svc.RecordSale(adminCtx(), domain.RecordSaleRequest{Items: []domain.SaleItem{
		{Identity: hoodie("M"), Quantity: 1, Price: d("60")},
		{Identity: domain.Identity{Brand: "YZY", Type: "SLIDES", Color: "ONYX", Size: "9"}, Quantity: 1, Price: d("150")},
	}})
	if !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}
	if got := cash(t, svc); got != "1000.00" {
		t.Fatalf("cash moved to %s", got)
	}
	if records.Saves(store.LedgerEvents) != 0 || records.Saves(store.Inventory) != 0 || records.Saves(store.Sales) != 0 {
		t.Fatalf("nothing should have been saved")
	}
}

func TestRecordSaleAndEditPrice(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	resp, err := svc.RecordSale(ctx, domain.RecordSaleRequest{Items: []domain.SaleItem{{Identity: hoodie("M"), Quantity: 1, Price: d("100")}}})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	sale := resp.Sales[0]
	if sale.ID != 1 || sale.Date != "03/14/2026" || sale.WACGroup != "Ess_HoodiePant" {
		t.Fatalf("unexpected sale %+v", sale)
	}
	if !sale.Profit.Equal(d("80")) {
		t.Fatalf("expected profit 80, got %s", sale.Profit)
	}
	if resp.Cash.StringFixed(2) != "1100.00" {
		t.Fatalf("expected cash 1100.00, got %s", resp.Cash)
	}
	if line(t, svc, hoodie("M")).Quantity != 9 {
		t.Fatalf("expected 9 left")
	}

	edited, err := svc.EditSalePrice(ctx, 1, domain.EditSalePriceRequest{Price: d("90")})
	if err != nil {
		t.Fatalf("edit price failed: %v", err)
	}
	if !edited.Profit.Equal(d("70")) {
		t.Fatalf("expected profit 70, got %s", edited.Profit)
	}
	if got := cash(t, svc); got != "1090.00" {
		t.Fatalf("expected cash 1090.00, got %s", got)
	}

	if _, err := svc.EditSalePrice(ctx, 99, domain.EditSalePriceRequest{Price: d("1")}); !errors.Is(err, domain.ErrSaleNotFound) {
		t.Fatalf("expected sale not found, got %v", err)
	}
	assertLedgerConsistent(t, svc)
}

func TestPendingSaleIsCreditedOnCompletion(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	resp, err := svc.RecordSale(ctx, domain.RecordSaleRequest{
		Items:  []domain.SaleItem{{Identity: hoodie("L"), Quantity: 2, Price: d("130")}},
		Status: domain.SalePending,
	})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if resp.Sales[0].Date != "" || resp.Cash.StringFixed(2) != "1000.00" {
		t.Fatalf("pending sale must not be dated or credited: %+v cash %s", resp.Sales[0], resp.Cash)
	}

	packing, err := svc.PackingList(context.Background())
	if err != nil {
		t.Fatalf("packing list failed: %v", err)
	}
	if len(packing.Pending) != 1 {
		t.Fatalf("expected the pending sale on the packing list")
	}

	done, err := svc.CompleteSale(ctx, resp.Sales[0].ID)
	if err != nil {
		t.Fatalf("complete sale failed: %v", err)
	}
	if done.Date != "03/14/2026" || done.Status != domain.SaleCompleted {
		t.Fatalf("unexpected completed sale %+v", done)
	}
	if got := cash(t, svc); got != "1130.00" {
		t.Fatalf("expected cash 1130.00, got %s", got)
	}
	if _, err := svc.CompleteSale(ctx, done.ID); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected second completion to fail, got %v", err)
	}
	assertLedgerConsistent(t, svc)
}

func TestReturnSaleRestocksAndRefunds(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	resp, err := svc.RecordSale(ctx, domain.RecordSaleRequest{Items: []domain.SaleItem{{Identity: hoodie("M"), Quantity: 2, Price: d("100")}}})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	returned, err := svc.ReturnSale(ctx, resp.Sales[0].ID)
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if returned.Quantity != 2 {
		t.Fatalf("expected the returned sale back, got %+v", returned)
	}
	if line(t, svc, hoodie("M")).Quantity != 10 {
		t.Fatalf("expected stock restored to 10")
	}
	if got := cash(t, svc); got != "1000.00" {
		t.Fatalf("expected cash back to 1000.00, got %s", got)
	}
	sales, err := svc.ListSales(context.Background(), report.SalesFilter{})
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales.Sales) != 0 {
		t.Fatalf("expected the sale record to be removed")
	}
	assertLedgerConsistent(t, svc)
}

func sellOutAndPurgeL(t *testing.T, svc *Service) int {
	t.Helper()
	ctx := adminCtx()
	resp, err := svc.RecordSale(ctx, domain.RecordSaleRequest{Items: []domain.SaleItem{{Identity: hoodie("L"), Quantity: 5, Price: d("250")}}})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if _, err := svc.Purge(ctx, domain.PurgeRequest{ZeroQuantity: true}); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if _, err := svc.SetGroupCost(ctx, "Ess_HoodiePant", domain.GroupCostRequest{Cost: d("25")}); err != nil {
		t.Fatalf("set group cost failed: %v", err)
	}
	return resp.Sales[0].ID
}

func TestReturnRecreatesLineWithoutRecompute(t *testing.T) {
	svc, _ := newTestService()
	id := sellOutAndPurgeL(t, svc)

	if _, err := svc.ReturnSale(adminCtx(), id); err != nil {
		t.Fatalf("return failed: %v", err)
	}
	l := line(t, svc, hoodie("L"))
	if l.Quantity != 5 || l.WACCost.StringFixed(2) != "20.00" || l.WACGroup != "Ess_HoodiePant" {
		t.Fatalf("unexpected recreated line %+v", l)
	}
	if line(t, svc, hoodie("M")).WACCost.StringFixed(2) != "25.00" {
		t.Fatalf("group must not be recomputed by default")
	}
}

func TestReturnRecomputesWhenEnabled(t *testing.T) {
	svc, _ := newTestService(WithRecomputeOnReturn(true))
	id := sellOutAndPurgeL(t, svc)

	if _, err := svc.ReturnSale(adminCtx(), id); err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if got := line(t, svc, hoodie("L")).WACCost.StringFixed(2); got != "23.33" {
		t.Fatalf("expected recomputed 23.33, got %s", got)
	}
	if got := line(t, svc, hoodie("M")).WACCost.StringFixed(2); got != "23.33" {
		t.Fatalf("expected recomputed 23.33, got %s", got)
	}
}

func TestSetQuantityRecomputesGroup(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	if _, err := svc.SetGroupCost(ctx, "Ess_HoodiePant", domain.GroupCostRequest{Cost: d("20")}); err != nil {
		t.Fatalf("set group cost failed: %v", err)
	}
	if _, err := svc.ReceiveStock(ctx, domain.ReceiveStockRequest{
		Items:    []domain.StockItem{{Identity: hoodie("S"), Quantity: 5}},
		UnitCost: d("26"),
	}); err != nil {
		t.Fatalf("receive stock failed: %v", err)
	}
	if got := line(t, svc, hoodie("S")).WACCost.StringFixed(2); got != "21.50" {
		t.Fatalf("expected 21.50 after receive, got %s", got)
	}

	updated, err := svc.SetQuantity(ctx, domain.SetQuantityRequest{Identity: hoodie("S"), Quantity: 0})
	if err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if updated.Quantity != 0 {
		t.Fatalf("expected quantity 0")
	}
	if _, err := svc.SetQuantity(ctx, domain.SetQuantityRequest{Identity: hoodie("XL"), Quantity: 1}); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected item not found, got %v", err)
	}
}

func TestRecomputeGroupReportsNoopGroups(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	resp, err := svc.RecomputeGroup(ctx, "YZY_Slides")
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if resp.Changed || !resp.Cost.Equal(d("61")) {
		t.Fatalf("zero stock group must keep its cost, got %+v", resp)
	}
	resp, err = svc.RecomputeGroup(ctx, domain.GroupUnknown)
	if err != nil || resp.Changed {
		t.Fatalf("UNKNOWN must be a silent no-op, got %+v %v", resp, err)
	}

	rebuilt, err := svc.RebuildAll(ctx)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if len(rebuilt.Changed) != 0 {
		t.Fatalf("seeded book is already averaged, got %v", rebuilt.Changed)
	}
}

func TestLedgerEventsFoldToCash(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	if _, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		Supplier:   "Acme",
		Lines:      []domain.OrderLineInput{{Group: "Ess_HoodiePant", Pieces: 4, TotalCost: d("80")}},
		AmountPaid: d("33.33"),
	}); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if _, err := svc.RecordSale(ctx, domain.RecordSaleRequest{Items: []domain.SaleItem{{Identity: hoodie("M"), Quantity: 1, Price: d("49.99")}}}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if _, err := svc.SetCash(ctx, domain.AmountRequest{Amount: d("1200"), Note: "counted drawer"}); err != nil {
		t.Fatalf("set cash failed: %v", err)
	}
	if _, err := svc.SetPayables(ctx, domain.AmountRequest{Amount: d("46.67")}); err != nil {
		t.Fatalf("set payables failed: %v", err)
	}

	events, err := svc.LedgerEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("ledger events failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected opening, payment, sale and adjustment events, got %d", len(events))
	}
	if events[0].Kind != domain.LedgerManualAdjustment || events[3].Kind != domain.LedgerOpeningBalance {
		t.Fatalf("expected newest first, got %s ... %s", events[0].Kind, events[3].Kind)
	}
	if !ledger.Fold(events).Equal(d("1200")) {
		t.Fatalf("expected fold 1200, got %s", ledger.Fold(events))
	}

	snap, err := svc.Ledger(context.Background())
	if err != nil {
		t.Fatalf("ledger failed: %v", err)
	}
	if !snap.ManualPayables.Equal(d("46.67")) || !snap.DerivedPayables.Equal(d("46.67")) {
		t.Fatalf("unexpected payables %s / %s", snap.ManualPayables, snap.DerivedPayables)
	}
	assertLedgerConsistent(t, svc)
}

func TestFailedSaveReturnsError(t *testing.T) {
	svc, records := newTestService()
	records.FailNextSave(store.Orders, errors.New("disk full"))

	_, err := svc.CreateOrder(adminCtx(), domain.CreateOrderRequest{
		Supplier:   "Acme",
		Lines:      []domain.OrderLineInput{{Group: "Ess_HoodiePant", Pieces: 1, TotalCost: d("20")}},
		AmountPaid: d("20"),
	})
	if err == nil {
		t.Fatalf("expected the save failure to surface")
	}
	if got := cash(t, svc); got != "1000.00" {
		t.Fatalf("ledger must not be written after a failed orders save, got %s", got)
	}
}

func TestDashboardAndExport(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	if _, err := svc.RecordSale(ctx, domain.RecordSaleRequest{Items: []domain.SaleItem{{Identity: hoodie("M"), Quantity: 1, Price: d("60")}}}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}

	dash, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if !dash.Horizons[0].Revenue.Equal(d("60")) {
		t.Fatalf("expected month-to-date revenue 60, got %s", dash.Horizons[0].Revenue)
	}
	if got := dash.Liquidity.NetWorth.StringFixed(2); got != "1340.00" {
		t.Fatalf("expected net worth 1340.00, got %s", got)
	}
	if len(dash.Packing.Today) != 1 {
		t.Fatalf("expected today's sale on the packing list")
	}

	period, err := svc.Period(context.Background(), "03/01/2026", "")
	if err != nil {
		t.Fatalf("period failed: %v", err)
	}
	if period.Units != 1 {
		t.Fatalf("expected one unit in period, got %d", period.Units)
	}
	if _, err := svc.Period(context.Background(), "not a date", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid date, got %v", err)
	}

	raw, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("expected workbook bytes")
	}
}

func TestBackupNeedsCapableStore(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Backup(adminCtx()); !errors.Is(err, ErrBackupUnsupported) {
		t.Fatalf("expected unsupported backup, got %v", err)
	}
}
