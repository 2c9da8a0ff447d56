// Package ledger keeps cash on hand as the running sum of an append-only
// list of signed events, next to the manually entered payables figure.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/xid"
)

type Option func(*Ledger)

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDs replaces the event id generator.
func WithIDs(next func() string) Option {
	return func(l *Ledger) { l.nextID = next }
}

type Ledger struct {
	financials domain.FinancialLedger
	events     []domain.LedgerEvent
	appended   int
	now        func() time.Time
	nextID     func() string
}

// New wraps loaded state. Stored data with a non-zero cash figure and no
// events is given an opening_balance event so the fold matches.
func New(financials domain.FinancialLedger, events []domain.LedgerEvent, opts ...Option) *Ledger {
	l := &Ledger{
		financials: financials,
		events:     append([]domain.LedgerEvent(nil), events...),
		now:        func() time.Time { return time.Now().UTC() },
		nextID:     func() string { return xid.New("led") },
	}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.events) == 0 && !financials.CashOnHand.IsZero() {
		l.events = append(l.events, domain.LedgerEvent{
			ID:           l.nextID(),
			At:           l.now(),
			Kind:         domain.LedgerOpeningBalance,
			Amount:       financials.CashOnHand,
			BalanceAfter: financials.CashOnHand,
		})
		l.appended++
	}
	return l
}

// ApplyDelta moves cash by amount, rounded to cents, and records why. A zero
// amount records nothing and reports false.
func (l *Ledger) ApplyDelta(amount decimal.Decimal, kind string, reference string, note string) (domain.LedgerEvent, bool) {
	amount = amount.Round(2)
	if amount.IsZero() {
		return domain.LedgerEvent{}, false
	}
	l.financials.CashOnHand = l.financials.CashOnHand.Add(amount)
	event := domain.LedgerEvent{
		ID:           l.nextID(),
		At:           l.now(),
		Kind:         kind,
		Amount:       amount,
		Reference:    reference,
		Note:         note,
		BalanceAfter: l.financials.CashOnHand,
	}
	l.events = append(l.events, event)
	l.appended++
	return event, true
}

// SetCash records a manual correction taking cash to value.
func (l *Ledger) SetCash(value decimal.Decimal, note string) (domain.LedgerEvent, bool) {
	return l.ApplyDelta(value.Sub(l.financials.CashOnHand), domain.LedgerManualAdjustment, "", note)
}

// SetPayables overwrites the manual payables figure. It has no event.
func (l *Ledger) SetPayables(value decimal.Decimal) {
	l.financials.OutstandingPayables = value.Round(2)
}

func (l *Ledger) Cash() decimal.Decimal {
	return l.financials.CashOnHand
}

func (l *Ledger) Payables() decimal.Decimal {
	return l.financials.OutstandingPayables
}

func (l *Ledger) Financials() domain.FinancialLedger {
	return l.financials
}

func (l *Ledger) Events() []domain.LedgerEvent {
	return append([]domain.LedgerEvent(nil), l.events...)
}

// Dirty reports whether events were appended since New.
func (l *Ledger) Dirty() bool {
	return l.appended > 0
}

// Fold sums event amounts.
func Fold(events []domain.LedgerEvent) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range events {
		sum = sum.Add(e.Amount)
	}
	return sum
}

type Drift struct {
	Stored     decimal.Decimal `json:"stored"`
	Folded     decimal.Decimal `json:"folded"`
	Difference decimal.Decimal `json:"difference"`
	Events     int             `json:"events"`
	Consistent bool            `json:"consistent"`
}

// Verify compares the stored cash figure with the fold of the events.
func (l *Ledger) Verify() Drift {
	folded := Fold(l.events)
	diff := l.financials.CashOnHand.Sub(folded)
	return Drift{
		Stored:     l.financials.CashOnHand,
		Folded:     folded,
		Difference: diff,
		Events:     len(l.events),
		Consistent: diff.Round(2).IsZero(),
	}
}

// NetWorth is cash plus stock on hand plus stock in transit, less payables.
func NetWorth(cash, onHand, inTransit, payables decimal.Decimal) decimal.Decimal {
	return cash.Add(onHand).Add(inTransit).Sub(payables)
}
