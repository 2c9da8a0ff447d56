// Package wac maintains weighted-average cost across an inventory collection.
//
// Every line carries the average unit cost of its cost-pooling group. When
// stock arrives, the receiving line gets a local blend and the whole group
// is then collapsed to one average, rounded to cents.
package wac

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"thredvault/backend/internal/domain"
)

// Classifier maps a brand and garment type to a group name, or UNKNOWN.
type Classifier interface {
	GroupFor(brand string, garmentType string) string
}

// Book is an in-memory inventory collection. It is not safe for concurrent
// use; callers serialise writers.
type Book struct {
	classifier Classifier
	lines      []domain.InventoryLine
}

func NewBook(classifier Classifier, lines []domain.InventoryLine) *Book {
	copied := make([]domain.InventoryLine, len(lines))
	copy(copied, lines)
	return &Book{classifier: classifier, lines: copied}
}

// Lines returns a copy of the current collection.
func (b *Book) Lines() []domain.InventoryLine {
	out := make([]domain.InventoryLine, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *Book) ClassifyGroup(brand string, garmentType string) string {
	if b.classifier == nil {
		return domain.GroupUnknown
	}
	return b.classifier.GroupFor(brand, garmentType)
}

// EffectiveGroup is the stored tag, or the classification when the tag is blank.
func (b *Book) EffectiveGroup(line domain.InventoryLine) string {
	if line.WACGroup != "" {
		return line.WACGroup
	}
	return b.ClassifyGroup(line.Brand, line.Type)
}

// Find returns the index of the line with the exact identity, or -1.
func (b *Book) Find(id domain.Identity) int {
	for i, line := range b.lines {
		if line.Brand == id.Brand && line.Type == id.Type && line.Color == id.Color && line.Size == id.Size {
			return i
		}
	}
	return -1
}

func (b *Book) Get(id domain.Identity) (domain.InventoryLine, bool) {
	idx := b.Find(id)
	if idx < 0 {
		return domain.InventoryLine{}, false
	}
	return b.lines[idx], true
}

// Receive adds qty units at unitCost. An existing line is blended locally
// from its stored cost and rounded to cents; a new line starts at unitCost. A non-empty group re-tags
// the line. The previous effective group is returned so the caller can
// recompute it when the tag moved.
//
// Receive does not recompute the group. Callers must follow it with
// RecomputeGroup, or use ReceiveBatch.
func (b *Book) Receive(id domain.Identity, qty int, unitCost decimal.Decimal, group string) (previous string) {
	idx := b.Find(id)
	if idx < 0 {
		if group == "" {
			group = b.ClassifyGroup(id.Brand, id.Type)
		}
		b.lines = append(b.lines, domain.InventoryLine{
			Brand:    id.Brand,
			Type:     id.Type,
			Color:    id.Color,
			Size:     id.Size,
			Quantity: qty,
			WACCost:  unitCost.Round(2),
			WACGroup: group,
		})
		return ""
	}

	line := &b.lines[idx]
	previous = b.EffectiveGroup(*line)
	newQty := line.Quantity + qty
	if newQty > 0 {
		held := line.WACCost.Mul(decimal.NewFromInt(int64(line.Quantity)))
		added := unitCost.Mul(decimal.NewFromInt(int64(qty)))
		line.WACCost = held.Add(added).Div(decimal.NewFromInt(int64(newQty))).Round(2)
	} else {
		line.WACCost = unitCost.Round(2)
	}
	line.Quantity = newQty
	if group != "" {
		line.WACGroup = group
	}
	return previous
}

// Receipt is one identity and quantity of a batch receive.
type Receipt struct {
	Identity domain.Identity
	Quantity int
}

// ReceiveBatch receives every item at the same unit cost and then
// recomputes each affected group once. It returns the recomputed groups.
func (b *Book) ReceiveBatch(items []Receipt, unitCost decimal.Decimal, group string) []string {
	touched := make(map[string]struct{})
	for _, item := range items {
		previous := b.Receive(item.Identity, item.Quantity, unitCost, group)
		if previous != "" {
			touched[previous] = struct{}{}
		}
		if line, ok := b.Get(item.Identity); ok {
			touched[b.EffectiveGroup(line)] = struct{}{}
		}
	}

	groups := make([]string, 0, len(touched))
	for g := range touched {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		b.RecomputeGroup(g)
	}
	return groups
}

// RecomputeGroup collapses every line of group to the quantity-weighted
// average cost, rounded to cents, and backfills blank tags. It is a no-op
// for UNKNOWN and when the group holds no stock. It reports whether any
// line changed.
func (b *Book) RecomputeGroup(group string) bool {
	if group == "" || group == domain.GroupUnknown {
		return false
	}

	totalQty := int64(0)
	totalValue := decimal.Zero
	members := make([]int, 0, 8)
	for i, line := range b.lines {
		if b.EffectiveGroup(line) != group {
			continue
		}
		members = append(members, i)
		totalQty += int64(line.Quantity)
		totalValue = totalValue.Add(line.Value())
	}
	if totalQty == 0 {
		return false
	}

	average := totalValue.Div(decimal.NewFromInt(totalQty)).Round(2)
	changed := false
	for _, i := range members {
		line := &b.lines[i]
		if !line.WACCost.Equal(average) || line.WACGroup != group {
			changed = true
		}
		line.WACCost = average
		line.WACGroup = group
	}
	return changed
}

// ManualSetGroupCost overwrites the cost of every line in group without any
// blending and returns how many lines it touched.
func (b *Book) ManualSetGroupCost(group string, cost decimal.Decimal) int {
	updated := 0
	for i := range b.lines {
		if b.EffectiveGroup(b.lines[i]) != group {
			continue
		}
		b.lines[i].WACCost = cost
		updated++
	}
	return updated
}

// Sell removes qty units and returns their cost basis per unit.
func (b *Book) Sell(id domain.Identity, qty int) (decimal.Decimal, error) {
	if qty < 1 {
		return decimal.Zero, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}
	idx := b.Find(id)
	if idx < 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
	}
	line := &b.lines[idx]
	if line.Quantity <= 0 || line.Quantity < qty {
		return decimal.Zero, fmt.Errorf("%w: %s has %d", domain.ErrOutOfStock, id, line.Quantity)
	}
	line.Quantity -= qty
	return line.WACCost, nil
}

// Restock puts qty units back. A missing line is recreated at costBasis
// with the given group. An existing line keeps its cost.
func (b *Book) Restock(id domain.Identity, qty int, costBasis decimal.Decimal, group string) {
	idx := b.Find(id)
	if idx >= 0 {
		b.lines[idx].Quantity += qty
		return
	}
	if group == "" {
		group = b.ClassifyGroup(id.Brand, id.Type)
	}
	b.lines = append(b.lines, domain.InventoryLine{
		Brand:    id.Brand,
		Type:     id.Type,
		Color:    id.Color,
		Size:     id.Size,
		Quantity: qty,
		WACCost:  costBasis,
		WACGroup: group,
	})
}

// SetQuantity corrects the on-hand count of an existing line and returns its
// effective group.
func (b *Book) SetQuantity(id domain.Identity, qty int) (string, error) {
	if qty < 0 {
		return "", fmt.Errorf("%w: quantity must not be negative", domain.ErrInvalidInput)
	}
	idx := b.Find(id)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
	}
	b.lines[idx].Quantity = qty
	return b.EffectiveGroup(b.lines[idx]), nil
}

// Purge drops lines with a blank color, and zero-quantity lines when asked.
func (b *Book) Purge(zeroQuantity bool) int {
	kept := b.lines[:0]
	removed := 0
	for _, line := range b.lines {
		if line.Color == "" || (zeroQuantity && line.Quantity == 0) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	b.lines = kept
	return removed
}

// GroupAverage is the quantity-weighted cost of a group at full precision.
func (b *Book) GroupAverage(group string) (decimal.Decimal, bool) {
	totalQty := int64(0)
	totalValue := decimal.Zero
	for _, line := range b.lines {
		if b.EffectiveGroup(line) != group {
			continue
		}
		totalQty += int64(line.Quantity)
		totalValue = totalValue.Add(line.Value())
	}
	if totalQty == 0 {
		return decimal.Zero, false
	}
	return totalValue.Div(decimal.NewFromInt(totalQty)), true
}

// Groups lists the distinct effective groups present, sorted.
func (b *Book) Groups() []string {
	seen := make(map[string]struct{})
	for _, line := range b.lines {
		seen[b.EffectiveGroup(line)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Value is the on-hand value of the whole collection.
func (b *Book) Value() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b.lines {
		total = total.Add(line.Value())
	}
	return total
}
