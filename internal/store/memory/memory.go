package memory

import (
	"context"
	"sync"

	"thredvault/backend/internal/store"
)

// Store keeps every collection in process memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]store.Record
	saves       map[string]int
	failures    map[string]error
}

func New() *Store {
	return &Store{
		collections: make(map[string][]store.Record),
		saves:       make(map[string]int),
		failures:    make(map[string]error),
	}
}

// NewSeeded returns a store holding a small demo book: two pooled hoodie
// lines and opening cash.
func NewSeeded() *Store {
	s := New()
	s.collections[store.Inventory] = []store.Record{
		{"Brand": "ESSENTIALS", "Type": "HOODIE", "Color": "BLACK", "Size": "M", "Quantity": "10", "WAC_Cost": "20.00", "WAC_Group": "Ess_HoodiePant"},
		{"Brand": "ESSENTIALS", "Type": "HOODIE", "Color": "BLACK", "Size": "L", "Quantity": "5", "WAC_Cost": "20.00", "WAC_Group": "Ess_HoodiePant"},
		{"Brand": "YZY", "Type": "SLIDES", "Color": "ONYX", "Size": "9", "Quantity": "0", "WAC_Cost": "61.00", "WAC_Group": "YZY_Slides"},
	}
	s.collections[store.Financials] = []store.Record{
		{"Key": "Cash_On_Hand", "Value": "1000.00"},
		{"Key": "Outstanding_Payables", "Value": "0.00"},
	}
	return s
}

func (s *Store) Load(_ context.Context, name string) ([]store.Record, error) {
	if _, err := store.Lookup(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.collections[name]), nil
}

func (s *Store) Save(_ context.Context, name string, records []store.Record) error {
	if _, err := store.Lookup(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[name]; ok {
		delete(s.failures, name)
		return err
	}
	s.collections[name] = cloneRecords(records)
	s.saves[name]++
	return nil
}

// FailNextSave makes the next Save of name return err without writing.
func (s *Store) FailNextSave(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[name] = err
}

// Saves reports how many successful saves name has seen.
func (s *Store) Saves(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves[name]
}

func cloneRecords(records []store.Record) []store.Record {
	out := make([]store.Record, 0, len(records))
	for _, r := range records {
		c := make(store.Record, len(r))
		for k, v := range r {
			c[k] = v
		}
		out = append(out, c)
	}
	return out
}
