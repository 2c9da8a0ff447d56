package service

import (
	"context"
	"fmt"
	"time"

	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/report"
)

func (s *Service) reportData(ctx context.Context) (report.Data, *books, error) {
	b, err := s.load(ctx)
	if err != nil {
		return report.Data{}, nil, err
	}
	return report.Data{
		Inventory:  b.inventory.Lines(),
		Sales:      b.sales,
		Orders:     b.orders,
		Financials: b.ledger.Financials(),
	}, b, nil
}

// Dashboard is served from the report cache until the next write or the
// end of the day.
func (s *Service) Dashboard(ctx context.Context) (report.Dashboard, error) {
	now := s.now()
	key := "dashboard:" + now.Format("2006-01-02")

	var cached report.Dashboard
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).WithField("module", "reports").Warn("report cache read failed")
	}
	if hit {
		return cached, nil
	}

	data, _, err := s.reportData(ctx)
	if err != nil {
		return report.Dashboard{}, err
	}
	dash := report.BuildDashboard(s.catalog, data, now)
	if err := s.cache.Set(ctx, key, dash, s.cacheTTL); err != nil {
		s.logger.WithError(err).WithField("module", "reports").Warn("report cache write failed")
	}
	return dash, nil
}

// Period totals completed sales between two calendar dates inclusive. A
// blank from means since the beginning and a blank to means today.
func (s *Service) Period(ctx context.Context, from string, to string) (report.Performance, error) {
	var start, end time.Time
	if from != "" {
		t, ok := domain.ParseDate(from)
		if !ok {
			return report.Performance{}, fmt.Errorf("%w: unrecognised date %q", domain.ErrInvalidInput, from)
		}
		start = t
	}
	end = s.now()
	if to != "" {
		t, ok := domain.ParseDate(to)
		if !ok {
			return report.Performance{}, fmt.Errorf("%w: unrecognised date %q", domain.ErrInvalidInput, to)
		}
		end = t
	}
	if !start.IsZero() && start.After(end) {
		return report.Performance{}, fmt.Errorf("%w: from is after to", domain.ErrInvalidInput)
	}

	data, _, err := s.reportData(ctx)
	if err != nil {
		return report.Performance{}, err
	}
	return report.Period(data.Sales, start, end, "Custom"), nil
}

func (s *Service) GroupPerformance(ctx context.Context) ([]report.GroupPerformance, error) {
	data, _, err := s.reportData(ctx)
	if err != nil {
		return nil, err
	}
	return report.Groups(s.catalog, data.Inventory, data.Sales), nil
}

func (s *Service) CostBasis(ctx context.Context) ([]report.CostBasisRow, error) {
	data, _, err := s.reportData(ctx)
	if err != nil {
		return nil, err
	}
	return report.CostBasis(s.catalog, data.Inventory), nil
}

func (s *Service) PackingList(ctx context.Context) (report.PackingList, error) {
	data, _, err := s.reportData(ctx)
	if err != nil {
		return report.PackingList{}, err
	}
	return report.Packing(data.Sales, s.now()), nil
}

// Export renders every collection into an xlsx workbook.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	data, b, err := s.reportData(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := report.ExportWorkbook(report.Workbook{
		Inventory: report.Inventory(s.catalog, data.Inventory, report.InventoryFilter{}),
		Sales:     data.Sales,
		Orders:    data.Orders,
		Events:    b.ledger.Events(),
	})
	if err != nil {
		return nil, fmt.Errorf("export workbook: %w", err)
	}
	return raw, nil
}
