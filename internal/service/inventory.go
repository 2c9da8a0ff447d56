package service

import (
	"context"
	"fmt"
	"strings"

	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/report"
	"thredvault/backend/internal/store"
	"thredvault/backend/internal/wac"
)

func (s *Service) ListInventory(ctx context.Context, filter report.InventoryFilter) (report.InventorySnapshot, error) {
	lines, err := store.LoadInventory(ctx, s.records)
	if err != nil {
		return report.InventorySnapshot{}, err
	}
	return report.Inventory(s.catalog, lines, filter), nil
}

func normalizeIdentity(id domain.Identity) (domain.Identity, error) {
	id = id.Normalize()
	if id.Brand == "" || id.Type == "" || id.Color == "" || id.Size == "" {
		return domain.Identity{}, fmt.Errorf("%w: brand, type, color and size are required", domain.ErrInvalidInput)
	}
	return id, nil
}

func receipts(items []domain.StockItem) ([]wac.Receipt, int, error) {
	if len(items) == 0 {
		return nil, 0, fmt.Errorf("%w: no items", domain.ErrInvalidInput)
	}
	out := make([]wac.Receipt, 0, len(items))
	units := 0
	for _, item := range items {
		id, err := normalizeIdentity(item.Identity)
		if err != nil {
			return nil, 0, err
		}
		if item.Quantity < 1 {
			return nil, 0, fmt.Errorf("%w: quantity must be positive for %s", domain.ErrInvalidInput, id)
		}
		out = append(out, wac.Receipt{Identity: id, Quantity: item.Quantity})
		units += item.Quantity
	}
	return out, units, nil
}

func touchedLines(book *wac.Book, items []wac.Receipt) []domain.InventoryLine {
	out := make([]domain.InventoryLine, 0, len(items))
	seen := map[domain.Identity]bool{}
	for _, item := range items {
		if seen[item.Identity] {
			continue
		}
		seen[item.Identity] = true
		if line, ok := book.Get(item.Identity); ok {
			out = append(out, line)
		}
	}
	return out
}

// ReceiveStock adds stock outside of any purchase order and recomputes
// every group the receipt touched.
func (s *Service) ReceiveStock(ctx context.Context, req domain.ReceiveStockRequest) (domain.ReceiveStockResponse, error) {
	var resp domain.ReceiveStockResponse
	err := s.write(ctx, "receive_stock", func(b *books) error {
		items, units, err := receipts(req.Items)
		if err != nil {
			return err
		}
		if req.UnitCost.IsNegative() {
			return fmt.Errorf("%w: unit cost must not be negative", domain.ErrInvalidInput)
		}

		groups := b.inventory.ReceiveBatch(items, req.UnitCost, strings.TrimSpace(req.Group))
		if s.metrics != nil {
			s.metrics.UnitsReceived.Add(float64(units))
		}
		b.touch(store.Inventory)
		resp = domain.ReceiveStockResponse{Recomputed: groups, Lines: touchedLines(b.inventory, items)}
		return nil
	})
	return resp, err
}

// SetQuantity overwrites the count of one line and re-averages its group.
func (s *Service) SetQuantity(ctx context.Context, req domain.SetQuantityRequest) (domain.InventoryLine, error) {
	var line domain.InventoryLine
	err := s.write(ctx, "set_quantity", func(b *books) error {
		id, err := normalizeIdentity(req.Identity)
		if err != nil {
			return err
		}
		group, err := b.inventory.SetQuantity(id, req.Quantity)
		if err != nil {
			return err
		}
		s.recompute(b, group)
		b.touch(store.Inventory)
		line, _ = b.inventory.Get(id)
		return nil
	})
	return line, err
}

func (s *Service) Purge(ctx context.Context, req domain.PurgeRequest) (domain.PurgeResponse, error) {
	var resp domain.PurgeResponse
	err := s.write(ctx, "purge_inventory", func(b *books) error {
		resp.Removed = b.inventory.Purge(req.ZeroQuantity)
		if resp.Removed > 0 {
			b.touch(store.Inventory)
		}
		return nil
	})
	return resp, err
}

// RecomputeGroup re-averages one group on demand. UNKNOWN and stockless groups
// are reported unchanged rather than rejected.
func (s *Service) RecomputeGroup(ctx context.Context, group string) (domain.GroupCostResponse, error) {
	group = strings.TrimSpace(group)
	resp := domain.GroupCostResponse{Group: group}
	err := s.write(ctx, "recompute_group", func(b *books) error {
		if group == "" {
			return fmt.Errorf("%w: group is required", domain.ErrInvalidInput)
		}
		resp.Changed = s.recompute(b, group)
		if resp.Changed {
			b.touch(store.Inventory)
		}
		for _, line := range b.inventory.Lines() {
			if b.inventory.EffectiveGroup(line) == group {
				resp.Updated++
				resp.Cost = line.WACCost
			}
		}
		return nil
	})
	return resp, err
}

// SetGroupCost writes cost verbatim onto every line of the group.
func (s *Service) SetGroupCost(ctx context.Context, group string, req domain.GroupCostRequest) (domain.GroupCostResponse, error) {
	group = strings.TrimSpace(group)
	resp := domain.GroupCostResponse{Group: group, Cost: req.Cost}
	err := s.write(ctx, "set_group_cost", func(b *books) error {
		if group == "" {
			return fmt.Errorf("%w: group is required", domain.ErrInvalidInput)
		}
		if req.Cost.IsNegative() {
			return fmt.Errorf("%w: cost must not be negative", domain.ErrInvalidInput)
		}
		resp.Updated = b.inventory.ManualSetGroupCost(group, req.Cost)
		resp.Changed = resp.Updated > 0
		if resp.Changed {
			b.touch(store.Inventory)
		}
		return nil
	})
	return resp, err
}

// RebuildResult lists the groups a full rebuild changed.
type RebuildResult struct {
	Groups  []string `json:"groups"`
	Changed []string `json:"changed"`
}

// RebuildAll recomputes every group present in the inventory.
func (s *Service) RebuildAll(ctx context.Context) (RebuildResult, error) {
	result := RebuildResult{Changed: []string{}}
	err := s.write(ctx, "rebuild_all", func(b *books) error {
		result.Groups = b.inventory.Groups()
		for _, g := range result.Groups {
			if s.recompute(b, g) {
				result.Changed = append(result.Changed, g)
			}
		}
		if len(result.Changed) > 0 {
			b.touch(store.Inventory)
		}
		return nil
	})
	return result, err
}
