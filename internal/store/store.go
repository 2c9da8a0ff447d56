package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrMalformedRecord   = errors.New("malformed record")
)

// Record is one row of a collection keyed by column name. Values are the
// persisted text form.
type Record map[string]string

const (
	Inventory    = "inventory"
	Sales        = "sales"
	Orders       = "orders"
	Financials   = "financials"
	LedgerEvents = "ledger_events"
)

// Collection describes a named collection and its column order.
type Collection struct {
	Name    string
	Columns []string
	// Headerless collections are stored as bare key,value rows.
	Headerless bool
}

var collections = map[string]Collection{
	Inventory: {
		Name:    Inventory,
		Columns: []string{"Brand", "Type", "Color", "Size", "Quantity", "WAC_Cost", "WAC_Group"},
	},
	Sales: {
		Name:    Sales,
		Columns: []string{"ID", "Date", "Brand", "Type", "Color", "Size", "Quantity", "Sale_Price", "Profit", "WAC_Group", "Status"},
	},
	Orders: {
		Name: Orders,
		Columns: []string{
			"Order_ID", "Date", "Delivery_Date", "WAC_Group", "Supplier",
			"Total_Pieces", "Total_Cost", "Unit_Cost",
			"Amount_Paid", "Payment_Status", "Status",
		},
	},
	Financials: {
		Name:       Financials,
		Columns:    []string{"Key", "Value"},
		Headerless: true,
	},
	LedgerEvents: {
		Name:    LedgerEvents,
		Columns: []string{"ID", "At", "Kind", "Amount", "Reference", "Note", "Balance_After"},
	},
}

func Lookup(name string) (Collection, error) {
	c, ok := collections[name]
	if !ok {
		return Collection{}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return c, nil
}

// Names lists every collection in a stable order.
func Names() []string {
	return []string{Inventory, Sales, Orders, Financials, LedgerEvents}
}

// RecordStore loads and saves whole collections. A missing collection loads
// as empty. Save replaces the collection; a failed Save leaves the previous
// contents in place.
type RecordStore interface {
	Load(ctx context.Context, name string) ([]Record, error)
	Save(ctx context.Context, name string, records []Record) error
}

// Backupper is implemented by stores that can snapshot every collection.
type Backupper interface {
	Backup(ctx context.Context) (string, error)
}
