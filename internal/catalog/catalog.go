// Package catalog holds the static product reference data: which brands and
// garment types belong to each cost-pooling group, and the sizes and colors
// offered per brand.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"thredvault/backend/internal/domain"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is the read-only reference the valuation engine and the order
// manager depend on.
type Catalog interface {
	GroupFor(brand string, garmentType string) string
	BrandForGroup(group string) (string, bool)
	TypesForGroup(group string) []string
	SizesForBrand(brand string) []string
	ColorsForBrand(brand string) []string
	TypesForBrand(brand string) []string
	Groups() []string
	Brands() []string
	SizeRank(size string) int
}

type GroupSpec struct {
	Name  string   `yaml:"name" json:"name"`
	Brand string   `yaml:"brand" json:"brand"`
	Types []string `yaml:"types" json:"types"`
}

type BrandSpec struct {
	Name   string   `yaml:"name" json:"name"`
	Types  []string `yaml:"types" json:"types"`
	Colors []string `yaml:"colors" json:"colors"`
	Sizes  []string `yaml:"sizes" json:"sizes"`
}

// Tables is the serialisable form of a catalog. Brands are listed in
// display priority order.
type Tables struct {
	Groups       []GroupSpec    `yaml:"groups" json:"groups"`
	Brands       []BrandSpec    `yaml:"brands" json:"brands"`
	DefaultSizes []string       `yaml:"default_sizes" json:"default_sizes"`
	SizeOrder    map[string]int `yaml:"size_order" json:"size_order"`
}

type Static struct {
	tables  Tables
	groups  map[string]GroupSpec
	brands  map[string]BrandSpec
	byPair  map[string]string
	ordered []string
}

// New normalises and indexes the tables. Group names are kept verbatim;
// brands, types, colors and sizes are upper-cased.
func New(tables Tables) (*Static, error) {
	s := &Static{
		groups: make(map[string]GroupSpec, len(tables.Groups)),
		brands: make(map[string]BrandSpec, len(tables.Brands)),
		byPair: make(map[string]string),
	}

	for _, g := range tables.Groups {
		g.Name = strings.TrimSpace(g.Name)
		g.Brand = domain.NormalizeKey(g.Brand)
		g.Types = normalizeList(g.Types)
		if g.Name == "" || g.Name == domain.GroupUnknown {
			return nil, fmt.Errorf("%w: group name %q is reserved or empty", ErrInvalidCatalog, g.Name)
		}
		if g.Brand == "" || len(g.Types) == 0 {
			return nil, fmt.Errorf("%w: group %s needs a brand and at least one type", ErrInvalidCatalog, g.Name)
		}
		if _, dup := s.groups[g.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate group %s", ErrInvalidCatalog, g.Name)
		}
		for _, t := range g.Types {
			key := pairKey(g.Brand, t)
			if other, taken := s.byPair[key]; taken {
				return nil, fmt.Errorf("%w: %s %s claimed by both %s and %s", ErrInvalidCatalog, g.Brand, t, other, g.Name)
			}
			s.byPair[key] = g.Name
		}
		s.groups[g.Name] = g
		s.ordered = append(s.ordered, g.Name)
	}

	brands := make([]BrandSpec, 0, len(tables.Brands))
	for _, b := range tables.Brands {
		b.Name = domain.NormalizeKey(b.Name)
		if b.Name == "" {
			return nil, fmt.Errorf("%w: brand name empty", ErrInvalidCatalog)
		}
		b.Types = normalizeList(b.Types)
		b.Colors = normalizeList(b.Colors)
		b.Sizes = normalizeList(b.Sizes)
		s.brands[b.Name] = b
		brands = append(brands, b)
	}
	tables.Brands = brands
	tables.DefaultSizes = normalizeList(tables.DefaultSizes)
	if tables.SizeOrder == nil {
		tables.SizeOrder = map[string]int{}
	}
	s.tables = tables
	return s, nil
}

// LoadFile reads catalog tables from a YAML document.
func LoadFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var tables Tables
	if err := yaml.Unmarshal(raw, &tables); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return New(tables)
}

// GroupFor is an exact match on normalised brand and type. Anything not in
// the tables is UNKNOWN.
func (s *Static) GroupFor(brand string, garmentType string) string {
	if group, ok := s.byPair[pairKey(domain.NormalizeKey(brand), domain.NormalizeKey(garmentType))]; ok {
		return group
	}
	return domain.GroupUnknown
}

func (s *Static) BrandForGroup(group string) (string, bool) {
	g, ok := s.groups[group]
	if !ok {
		return "", false
	}
	return g.Brand, true
}

func (s *Static) TypesForGroup(group string) []string {
	return clone(s.groups[group].Types)
}

func (s *Static) SizesForBrand(brand string) []string {
	b, ok := s.brands[domain.NormalizeKey(brand)]
	if !ok || len(b.Sizes) == 0 {
		return clone(s.tables.DefaultSizes)
	}
	return clone(b.Sizes)
}

func (s *Static) ColorsForBrand(brand string) []string {
	return clone(s.brands[domain.NormalizeKey(brand)].Colors)
}

func (s *Static) TypesForBrand(brand string) []string {
	return clone(s.brands[domain.NormalizeKey(brand)].Types)
}

func (s *Static) Groups() []string {
	return clone(s.ordered)
}

func (s *Static) Brands() []string {
	out := make([]string, 0, len(s.tables.Brands))
	for _, b := range s.tables.Brands {
		out = append(out, b.Name)
	}
	return out
}

// SizeRank orders sizes for display. Unlisted sizes sort last.
func (s *Static) SizeRank(size string) int {
	if rank, ok := s.tables.SizeOrder[domain.NormalizeKey(size)]; ok {
		return rank
	}
	return 999
}

// Tables returns a copy of the indexed tables.
func (s *Static) Tables() Tables {
	out := Tables{
		Groups:       make([]GroupSpec, 0, len(s.ordered)),
		Brands:       append([]BrandSpec(nil), s.tables.Brands...),
		DefaultSizes: clone(s.tables.DefaultSizes),
		SizeOrder:    make(map[string]int, len(s.tables.SizeOrder)),
	}
	for _, name := range s.ordered {
		out.Groups = append(out.Groups, s.groups[name])
	}
	for k, v := range s.tables.SizeOrder {
		out.SizeOrder[k] = v
	}
	return out
}

// SortSizes sorts sizes in place by catalog rank, then lexically.
func SortSizes(c Catalog, sizes []string) {
	sort.SliceStable(sizes, func(i, j int) bool {
		ri, rj := c.SizeRank(sizes[i]), c.SizeRank(sizes[j])
		if ri != rj {
			return ri < rj
		}
		return sizes[i] < sizes[j]
	})
}

func pairKey(brand string, garmentType string) string {
	return brand + "\x00" + garmentType
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := domain.NormalizeKey(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func clone(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return append([]string(nil), values...)
}
