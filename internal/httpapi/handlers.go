package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/report"
)

type brandView struct {
	Brand  string   `json:"brand"`
	Types  []string `json:"types"`
	Sizes  []string `json:"sizes"`
	Colors []string `json:"colors"`
}

type groupView struct {
	Group string   `json:"group"`
	Brand string   `json:"brand"`
	Types []string `json:"types"`
}

func (a *API) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	cat := a.service.Catalog()
	brands := make([]brandView, 0, len(cat.Brands()))
	for _, brand := range cat.Brands() {
		brands = append(brands, brandView{
			Brand:  brand,
			Types:  cat.TypesForBrand(brand),
			Sizes:  cat.SizesForBrand(brand),
			Colors: cat.ColorsForBrand(brand),
		})
	}
	groups := make([]groupView, 0, len(cat.Groups()))
	for _, group := range cat.Groups() {
		brand, _ := cat.BrandForGroup(group)
		groups = append(groups, groupView{Group: group, Brand: brand, Types: cat.TypesForGroup(group)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"brands": brands, "groups": groups})
}

func (a *API) handleInventory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := report.InventoryFilter{
		Brand: strings.TrimSpace(q.Get("brand")),
		Group: strings.TrimSpace(q.Get("group")),
	}
	if raw := q.Get("in_stock"); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, fmt.Errorf("in_stock: %w", err))
			return
		}
		filter.InStockOnly = inStock
	}

	resp, err := a.service.ListInventory(r.Context(), filter)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleReceiveStock(w http.ResponseWriter, r *http.Request) {
	var req domain.ReceiveStockRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.ReceiveStock(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req domain.SetQuantityRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	line, err := a.service.SetQuantity(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (a *API) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req domain.PurgeRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.Purge(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRecomputeGroup(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.RecomputeGroup(r.Context(), r.PathValue("group"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSetGroupCost(w http.ResponseWriter, r *http.Request) {
	var req domain.GroupCostRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.SetGroupCost(r.Context(), r.PathValue("group"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRebuild(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.RebuildAll(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.service.ListOrders(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.CreateOrder(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	order, err := a.service.GetOrder(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func refundParam(r *http.Request) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("refund"))
	if raw == "" {
		return false, nil
	}
	refund, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: refund must be true or false", domain.ErrInvalidInput)
	}
	return refund, nil
}

func (a *API) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	refund, err := refundParam(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	resp, err := a.service.DeleteOrder(r.Context(), id, refund)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAdjustPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req domain.AdjustPaymentRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.AdjustPayment(r.Context(), id, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleReceiveLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req domain.ReceiveLineRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.ReceiveLine(r.Context(), id, r.PathValue("group"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCloseLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	line, err := a.service.CloseLine(r.Context(), id, r.PathValue("group"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (a *API) handleDeleteLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	refund, err := refundParam(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	resp, err := a.service.DeleteLine(r.Context(), id, r.PathValue("group"), refund)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// dateParam parses an optional calendar date query parameter.
func dateParam(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, ok := domain.ParseDate(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s is not a date: %q", domain.ErrInvalidInput, name, raw)
	}
	return t, nil
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	from, err := dateParam(r, "from")
	if err != nil {
		a.fail(w, err)
		return
	}
	to, err := dateParam(r, "to")
	if err != nil {
		a.fail(w, err)
		return
	}
	filter := report.SalesFilter{From: from, To: to, Status: strings.TrimSpace(r.URL.Query().Get("status"))}
	resp, err := a.service.ListSales(r.Context(), filter)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRecordSale(w http.ResponseWriter, r *http.Request) {
	var req domain.RecordSaleRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.RecordSale(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleEditSalePrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req domain.EditSalePriceRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	sale, err := a.service.EditSalePrice(r.Context(), id, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleCompleteSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	sale, err := a.service.CompleteSale(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleReturnSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	sale, err := a.service.ReturnSale(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleLedger(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.Ledger(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLedgerEvents(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 1000)
	events, err := a.service.LedgerEvents(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *API) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	drift, err := a.service.VerifyLedger(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drift)
}

func (a *API) handleSetCash(w http.ResponseWriter, r *http.Request) {
	var req domain.AmountRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.SetCash(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSetPayables(w http.ResponseWriter, r *http.Request) {
	var req domain.AmountRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.SetPayables(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleBackup(w http.ResponseWriter, r *http.Request) {
	location, err := a.service.Backup(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"location": location})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.Dashboard(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePeriod(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := a.service.Period(r.Context(), strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to")))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGroupReport(w http.ResponseWriter, r *http.Request) {
	groups, err := a.service.GroupPerformance(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (a *API) handleCostBasis(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.CostBasis(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (a *API) handlePackingList(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.PackingList(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	raw, err := a.service.Export(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	filename := fmt.Sprintf("thredvault-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
