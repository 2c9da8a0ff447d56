package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"thredvault/backend/internal/catalog"
	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/ledger"
	"thredvault/backend/internal/orders"
)

var hundred = decimal.NewFromInt(100)

type InventoryRow struct {
	domain.InventoryLine
	Group      string          `json:"group"`
	TotalValue decimal.Decimal `json:"total_value"`
}

type InventorySnapshot struct {
	Rows       []InventoryRow  `json:"rows"`
	Units      int             `json:"units"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// InventoryFilter narrows an inventory snapshot. Zero values match everything.
type InventoryFilter struct {
	Brand       string
	Group       string
	InStockOnly bool
}

func effectiveGroup(cat catalog.Catalog, line domain.InventoryLine) string {
	if line.WACGroup != "" {
		return line.WACGroup
	}
	if cat == nil {
		return domain.GroupUnknown
	}
	return cat.GroupFor(line.Brand, line.Type)
}

// Inventory values every row at its current average cost, sorted by brand
// priority, type, color and size rank.
func Inventory(cat catalog.Catalog, lines []domain.InventoryLine, filter InventoryFilter) InventorySnapshot {
	brand := domain.NormalizeKey(filter.Brand)
	snap := InventorySnapshot{Rows: []InventoryRow{}, TotalValue: decimal.Zero}
	for _, line := range lines {
		group := effectiveGroup(cat, line)
		if brand != "" && line.Brand != brand {
			continue
		}
		if filter.Group != "" && group != filter.Group {
			continue
		}
		if filter.InStockOnly && line.Quantity <= 0 {
			continue
		}
		row := InventoryRow{InventoryLine: line, Group: group, TotalValue: line.Value()}
		snap.Rows = append(snap.Rows, row)
		snap.Units += line.Quantity
		snap.TotalValue = snap.TotalValue.Add(row.TotalValue)
	}
	sortRows(cat, snap.Rows)
	return snap
}

func sortRows(cat catalog.Catalog, rows []InventoryRow) {
	priority := map[string]int{}
	if cat != nil {
		for i, b := range cat.Brands() {
			priority[b] = i
		}
	}
	rank := func(brand string) int {
		if p, ok := priority[brand]; ok {
			return p
		}
		return len(priority)
	}
	sizeRank := func(size string) int {
		if cat == nil {
			return 0
		}
		return cat.SizeRank(size)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ra, rb := rank(a.Brand), rank(b.Brand); ra != rb {
			return ra < rb
		}
		if a.Brand != b.Brand {
			return a.Brand < b.Brand
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Color != b.Color {
			return a.Color < b.Color
		}
		if sa, sb := sizeRank(a.Size), sizeRank(b.Size); sa != sb {
			return sa < sb
		}
		return a.Size < b.Size
	})
}

// SalesFilter selects sales by status and an inclusive date range. Sales
// without a date only match when no range is given.
type SalesFilter struct {
	From   time.Time
	To     time.Time
	Status string
}

type SalesSnapshot struct {
	Sales   []domain.SaleRecord `json:"sales"`
	Units   int                 `json:"units"`
	Revenue decimal.Decimal     `json:"revenue"`
	Profit  decimal.Decimal     `json:"profit"`
}

func Sales(sales []domain.SaleRecord, filter SalesFilter) SalesSnapshot {
	snap := SalesSnapshot{Sales: []domain.SaleRecord{}, Revenue: decimal.Zero, Profit: decimal.Zero}
	ranged := !filter.From.IsZero() || !filter.To.IsZero()
	for _, sale := range sales {
		if filter.Status != "" && saleStatus(sale) != filter.Status {
			continue
		}
		if ranged && !inRange(sale.Date, filter.From, filter.To) {
			continue
		}
		snap.Sales = append(snap.Sales, sale)
		snap.Units += sale.Quantity
		snap.Revenue = snap.Revenue.Add(sale.SalePrice)
		snap.Profit = snap.Profit.Add(sale.Profit)
	}
	return snap
}

func saleStatus(sale domain.SaleRecord) string {
	if sale.Completed() {
		return domain.SaleCompleted
	}
	return sale.Status
}

func inRange(date string, from time.Time, to time.Time) bool {
	d, ok := domain.ParseDate(date)
	if !ok {
		return false
	}
	if !from.IsZero() && d.Before(dayOf(from)) {
		return false
	}
	if !to.IsZero() && d.After(dayOf(to)) {
		return false
	}
	return true
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

type LedgerSnapshot struct {
	CashOnHand      decimal.Decimal `json:"cash_on_hand"`
	ManualPayables  decimal.Decimal `json:"manual_payables"`
	DerivedPayables decimal.Decimal `json:"derived_payables"`
	PayablesGap     decimal.Decimal `json:"payables_gap"`
	Drift           ledger.Drift    `json:"drift"`
}

// Ledger reports both payables figures side by side. They are never unified.
func Ledger(l *ledger.Ledger, lines []domain.PurchaseOrderLine) LedgerSnapshot {
	derived := orders.DerivedPayables(lines)
	return LedgerSnapshot{
		CashOnHand:      l.Cash(),
		ManualPayables:  l.Payables(),
		DerivedPayables: derived,
		PayablesGap:     l.Payables().Sub(derived),
		Drift:           l.Verify(),
	}
}

type Liquidity struct {
	CashOnHand     decimal.Decimal `json:"cash_on_hand"`
	Payables       decimal.Decimal `json:"payables"`
	InTransit      decimal.Decimal `json:"in_transit"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
	NetWorth       decimal.Decimal `json:"net_worth"`
}

func ComputeLiquidity(fin domain.FinancialLedger, lines []domain.InventoryLine, po []domain.PurchaseOrderLine) Liquidity {
	onHand := decimal.Zero
	for _, line := range lines {
		onHand = onHand.Add(line.Value())
	}
	inTransit := orders.InTransit(po)
	return Liquidity{
		CashOnHand:     fin.CashOnHand,
		Payables:       fin.OutstandingPayables,
		InTransit:      inTransit,
		InventoryValue: onHand,
		NetWorth:       ledger.NetWorth(fin.CashOnHand, onHand, inTransit, fin.OutstandingPayables),
	}
}

type Performance struct {
	Label   string          `json:"label"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
	Margin  decimal.Decimal `json:"margin_pct"`
	Units   int             `json:"units"`
}

// Period totals completed sales dated within [from, to]. A zero from means
// no lower bound.
func Period(sales []domain.SaleRecord, from time.Time, to time.Time, label string) Performance {
	p := Performance{Label: label, Revenue: decimal.Zero, Profit: decimal.Zero, Margin: decimal.Zero}
	if !from.IsZero() {
		p.From = domain.FormatDate(from)
	}
	if !to.IsZero() {
		p.To = domain.FormatDate(to)
	}
	for _, sale := range sales {
		if !sale.Completed() {
			continue
		}
		if (!from.IsZero() || !to.IsZero()) && !inRange(sale.Date, from, to) {
			continue
		}
		p.Revenue = p.Revenue.Add(sale.SalePrice)
		p.Profit = p.Profit.Add(sale.Profit)
		p.Units += sale.Quantity
	}
	p.Margin = margin(p.Profit, p.Revenue)
	return p
}

func margin(profit decimal.Decimal, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return profit.Div(revenue).Mul(hundred).Round(2)
}

// Horizons is month-to-date, quarter-to-date, the last 180 days,
// year-to-date and all time, each ending today.
func Horizons(sales []domain.SaleRecord, now time.Time) []Performance {
	today := dayOf(now)
	quarterMonth := time.Month((int(today.Month())-1)/3*3 + 1)
	return []Performance{
		Period(sales, time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.Local), today, "Month-to-Date"),
		Period(sales, time.Date(today.Year(), quarterMonth, 1, 0, 0, 0, 0, time.Local), today, "Quarter-to-Date"),
		Period(sales, today.AddDate(0, 0, -180), today, "Last 6 Months"),
		Period(sales, time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.Local), today, "Year-to-Date"),
		Period(sales, time.Time{}, time.Time{}, "All Time"),
	}
}

type Lifetime struct {
	Revenue        decimal.Decimal `json:"revenue"`
	Cost           decimal.Decimal `json:"cost"`
	Profit         decimal.Decimal `json:"profit"`
	Margin         decimal.Decimal `json:"margin_pct"`
	UnitsBought    int             `json:"units_bought"`
	UnitsSold      int             `json:"units_sold"`
	UnitsOnHand    int             `json:"units_on_hand"`
	CostPerPiece   decimal.Decimal `json:"cost_per_piece"`
	RevenuePerUnit decimal.Decimal `json:"revenue_per_piece"`
}

// ComputeLifetime counts every piece ever bought as what is on hand plus
// what has been sold.
func ComputeLifetime(lines []domain.InventoryLine, sales []domain.SaleRecord) Lifetime {
	out := Lifetime{Revenue: decimal.Zero, Profit: decimal.Zero, CostPerPiece: decimal.Zero, RevenuePerUnit: decimal.Zero}
	for _, line := range lines {
		out.UnitsOnHand += line.Quantity
	}
	for _, sale := range sales {
		if !sale.Completed() {
			continue
		}
		out.Revenue = out.Revenue.Add(sale.SalePrice)
		out.Profit = out.Profit.Add(sale.Profit)
		out.UnitsSold += sale.Quantity
	}
	out.Cost = out.Revenue.Sub(out.Profit)
	out.Margin = margin(out.Profit, out.Revenue)
	out.UnitsBought = out.UnitsOnHand + out.UnitsSold
	if out.UnitsSold > 0 {
		sold := decimal.NewFromInt(int64(out.UnitsSold))
		out.CostPerPiece = out.Cost.Div(sold).Round(2)
		out.RevenuePerUnit = out.Revenue.Div(sold).Round(2)
	}
	return out
}

type GroupPerformance struct {
	Group       string          `json:"group"`
	Stock       int             `json:"stock"`
	Value       decimal.Decimal `json:"value"`
	AverageCost decimal.Decimal `json:"average_cost"`
	UnitsSold   int             `json:"units_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
	Profit      decimal.Decimal `json:"profit"`
}

// Groups reports stock and sales per WAC group. Groups with neither stock
// nor revenue are left out.
func Groups(cat catalog.Catalog, lines []domain.InventoryLine, sales []domain.SaleRecord) []GroupPerformance {
	stats := map[string]*GroupPerformance{}
	get := func(group string) *GroupPerformance {
		if group == "" {
			group = domain.GroupUnknown
		}
		g, ok := stats[group]
		if !ok {
			g = &GroupPerformance{Group: group, Value: decimal.Zero, AverageCost: decimal.Zero, Revenue: decimal.Zero, Profit: decimal.Zero}
			stats[group] = g
		}
		return g
	}
	for _, line := range lines {
		g := get(effectiveGroup(cat, line))
		g.Stock += line.Quantity
		g.Value = g.Value.Add(line.Value())
	}
	for _, sale := range sales {
		if !sale.Completed() {
			continue
		}
		group := sale.WACGroup
		if group == "" && cat != nil {
			group = cat.GroupFor(sale.Brand, sale.Type)
		}
		g := get(group)
		g.UnitsSold += sale.Quantity
		g.Revenue = g.Revenue.Add(sale.SalePrice)
		g.Profit = g.Profit.Add(sale.Profit)
	}

	out := make([]GroupPerformance, 0, len(stats))
	for _, g := range stats {
		if g.Stock <= 0 && !g.Revenue.IsPositive() {
			continue
		}
		if g.Stock > 0 {
			g.AverageCost = g.Value.Div(decimal.NewFromInt(int64(g.Stock))).Round(2)
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

type CostBasisRow struct {
	Group       string          `json:"group"`
	Brand       string          `json:"brand"`
	Type        string          `json:"type"`
	Units       int             `json:"units"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// CostBasis summarises on-hand cost by group, brand and type. Rows without
// a color are half-entered and are skipped.
func CostBasis(cat catalog.Catalog, lines []domain.InventoryLine) []CostBasisRow {
	type key struct{ group, brand, kind string }
	index := map[key]int{}
	out := []CostBasisRow{}
	for _, line := range lines {
		if line.Color == "" {
			continue
		}
		k := key{effectiveGroup(cat, line), line.Brand, line.Type}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, CostBasisRow{Group: k.group, Brand: k.brand, Type: k.kind, TotalCost: decimal.Zero, AverageCost: decimal.Zero})
		}
		out[i].Units += line.Quantity
		out[i].TotalCost = out[i].TotalCost.Add(line.Value())
	}
	for i := range out {
		if out[i].Units > 0 {
			out[i].AverageCost = out[i].TotalCost.Div(decimal.NewFromInt(int64(out[i].Units))).Round(2)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		if out[i].Brand != out[j].Brand {
			return out[i].Brand < out[j].Brand
		}
		return out[i].Type < out[j].Type
	})
	return out
}

type PackingList struct {
	Date    string              `json:"date"`
	Today   []domain.SaleRecord `json:"today"`
	Pending []domain.SaleRecord `json:"pending"`
}

// Packing lists the sales dated today and every pending sale still waiting
// to ship.
func Packing(sales []domain.SaleRecord, now time.Time) PackingList {
	today := domain.FormatDate(now)
	out := PackingList{Date: today, Today: []domain.SaleRecord{}, Pending: []domain.SaleRecord{}}
	for _, sale := range sales {
		switch {
		case !sale.Completed():
			out.Pending = append(out.Pending, sale)
		case sale.Date == today:
			out.Today = append(out.Today, sale)
		}
	}
	return out
}

type Dashboard struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Horizons    []Performance      `json:"horizons"`
	Liquidity   Liquidity          `json:"liquidity"`
	Lifetime    Lifetime           `json:"lifetime"`
	Groups      []GroupPerformance `json:"groups"`
	CostBasis   []CostBasisRow     `json:"cost_basis"`
	Packing     PackingList        `json:"packing_list"`
}

// Data is everything a dashboard is computed from.
type Data struct {
	Inventory  []domain.InventoryLine
	Sales      []domain.SaleRecord
	Orders     []domain.PurchaseOrderLine
	Financials domain.FinancialLedger
}

func BuildDashboard(cat catalog.Catalog, data Data, now time.Time) Dashboard {
	return Dashboard{
		GeneratedAt: now,
		Horizons:    Horizons(data.Sales, now),
		Liquidity:   ComputeLiquidity(data.Financials, data.Inventory, data.Orders),
		Lifetime:    ComputeLifetime(data.Inventory, data.Sales),
		Groups:      Groups(cat, data.Inventory, data.Sales),
		CostBasis:   CostBasis(cat, data.Inventory),
		Packing:     Packing(data.Sales, now),
	}
}
