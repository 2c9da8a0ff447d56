package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"thredvault/backend/internal/cache"
	"thredvault/backend/internal/catalog"
	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/ledger"
	"thredvault/backend/internal/lock"
	"thredvault/backend/internal/logging"
	"thredvault/backend/internal/metrics"
	"thredvault/backend/internal/store"
	"thredvault/backend/internal/wac"
)

const writeLockKey = "thredvault:write"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.ErrForbidden
	}
	return nil
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithReportCache caches dashboard snapshots for ttl. Every write clears it.
func WithReportCache(c cache.ReportCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecomputeOnReturn makes returns recompute the restocked group.
func WithRecomputeOnReturn(enabled bool) Option {
	return func(s *Service) { s.recomputeOnReturn = enabled }
}

// WithStrictCatalog rejects order lines whose group the catalog does not know.
func WithStrictCatalog(enabled bool) Option {
	return func(s *Service) { s.strictCatalog = enabled }
}

type Service struct {
	records           store.RecordStore
	catalog           catalog.Catalog
	locker            lock.Locker
	cache             cache.ReportCache
	cacheTTL          time.Duration
	metrics           *metrics.Metrics
	logger            *logrus.Logger
	now               func() time.Time
	recomputeOnReturn bool
	strictCatalog     bool
}

func New(records store.RecordStore, cat catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		records:  records,
		catalog:  cat,
		locker:   lock.NewLocal(),
		cache:    cache.NoopReportCache{},
		cacheTTL: time.Minute,
		logger:   logging.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Catalog() catalog.Catalog {
	return s.catalog
}

// books is one consistent load of every collection. Mutations work on it in
// memory and only the collections marked dirty are written back.
type books struct {
	inventory *wac.Book
	sales     []domain.SaleRecord
	orders    []domain.PurchaseOrderLine
	ledger    *ledger.Ledger
	dirty     map[string]bool
	events    []domain.LedgerEvent
}

func (b *books) touch(names ...string) {
	for _, name := range names {
		b.dirty[name] = true
	}
}

// post moves cash through the ledger and marks it for saving. A zero
// amount records nothing.
func (b *books) post(amount decimal.Decimal, kind string, reference string, note string) {
	b.record(b.ledger.ApplyDelta(amount, kind, reference, note))
}

func (b *books) record(event domain.LedgerEvent, ok bool) {
	if !ok {
		return
	}
	b.events = append(b.events, event)
	b.touch(store.LedgerEvents, store.Financials)
}

func (s *Service) load(ctx context.Context) (*books, error) {
	lines, err := store.LoadInventory(ctx, s.records)
	if err != nil {
		return nil, err
	}
	sales, err := store.LoadSales(ctx, s.records)
	if err != nil {
		return nil, err
	}
	po, err := store.LoadOrders(ctx, s.records)
	if err != nil {
		return nil, err
	}
	fin, err := store.LoadFinancials(ctx, s.records)
	if err != nil {
		return nil, err
	}
	events, err := store.LoadLedgerEvents(ctx, s.records)
	if err != nil {
		return nil, err
	}

	b := &books{
		inventory: wac.NewBook(s.catalog, lines),
		sales:     sales,
		orders:    po,
		ledger:    ledger.New(fin, events, ledger.WithClock(func() time.Time { return s.now().UTC() })),
		dirty:     map[string]bool{},
	}
	if b.ledger.Dirty() {
		// legacy data: the opening balance event has to be persisted
		b.touch(store.LedgerEvents)
	}
	return b, nil
}

func (s *Service) persist(ctx context.Context, b *books) error {
	if b.dirty[store.Inventory] {
		if err := store.SaveInventory(ctx, s.records, b.inventory.Lines()); err != nil {
			return err
		}
	}
	if b.dirty[store.Orders] {
		if err := store.SaveOrders(ctx, s.records, b.orders); err != nil {
			return err
		}
	}
	if b.dirty[store.Sales] {
		if err := store.SaveSales(ctx, s.records, b.sales); err != nil {
			return err
		}
	}
	if b.dirty[store.LedgerEvents] {
		if err := store.SaveLedgerEvents(ctx, s.records, b.ledger.Events()); err != nil {
			return err
		}
	}
	if b.dirty[store.Financials] {
		if err := store.SaveFinancials(ctx, s.records, b.ledger.Financials()); err != nil {
			return err
		}
	}
	return nil
}

// write runs fn under the writer lock against a fresh load and saves what it
// changed. Nothing is saved when fn fails.
func (s *Service) write(ctx context.Context, op string, fn func(b *books) error) error {
	err := s.writeLocked(ctx, op, fn)
	s.metrics.RecordOperation(op, err)
	if err != nil && !isCallerError(err) {
		logging.LogError(s.logger, "service", op, nil, err)
	}
	return err
}

func (s *Service) writeLocked(ctx context.Context, op string, fn func(b *books) error) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	waitStart := time.Now()
	release, err := s.locker.Acquire(ctx, writeLockKey)
	if err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	defer release()
	s.metrics.ObserveLockWait(time.Since(waitStart))

	b, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	if err := s.persist(ctx, b); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, event := range b.events {
		s.metrics.RecordLedgerEvent(event.Kind)
	}
	if s.metrics != nil {
		s.metrics.CashOnHand.Set(b.ledger.Cash().InexactFloat64())
		s.metrics.InventoryValue.Set(b.inventory.Value().InexactFloat64())
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WithError(err).WithField("op", op).Warn("report cache invalidation failed")
	}
	s.audit(ctx, op, b)
	return nil
}

func (s *Service) audit(ctx context.Context, op string, b *books) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	entry := s.logger.WithFields(logrus.Fields{
		"module": "audit",
		"op":     op,
		"actor":  actor.Username,
		"role":   actor.Role,
		"cash":   b.ledger.Cash().StringFixed(2),
	})
	if len(b.events) > 0 {
		entry = entry.WithField("ledger_events", len(b.events))
	}
	entry.Info("write committed")
}

func (s *Service) recompute(b *books, group string) bool {
	changed := b.inventory.RecomputeGroup(group)
	s.metrics.RecordRecompute(group, changed)
	return changed
}

// isCallerError reports errors caused by the request rather than the system.
func isCallerError(err error) bool {
	for _, target := range []error{
		domain.ErrItemNotFound,
		domain.ErrOutOfStock,
		domain.ErrOrderNotFound,
		domain.ErrLineNotFound,
		domain.ErrLineClosed,
		domain.ErrSaleNotFound,
		domain.ErrInvalidInput,
		domain.ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
