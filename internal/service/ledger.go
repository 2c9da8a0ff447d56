package service

import (
	"context"
	"errors"
	"fmt"

	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/ledger"
	"thredvault/backend/internal/logging"
	"thredvault/backend/internal/report"
	"thredvault/backend/internal/store"
)

var ErrBackupUnsupported = errors.New("record store does not support backups")

func (s *Service) Ledger(ctx context.Context) (report.LedgerSnapshot, error) {
	b, err := s.load(ctx)
	if err != nil {
		return report.LedgerSnapshot{}, err
	}
	return report.Ledger(b.ledger, b.orders), nil
}

// LedgerEvents returns the newest events first. A limit below one returns
// every event.
func (s *Service) LedgerEvents(ctx context.Context, limit int) ([]domain.LedgerEvent, error) {
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	events := b.ledger.Events()
	out := make([]domain.LedgerEvent, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		out = append(out, events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SetCash corrects cash on hand to an observed figure through a
// manual_adjustment event.
func (s *Service) SetCash(ctx context.Context, req domain.AmountRequest) (domain.FinancialLedger, error) {
	var out domain.FinancialLedger
	err := s.write(ctx, "set_cash", func(b *books) error {
		b.record(b.ledger.SetCash(req.Amount, req.Note))
		out = b.ledger.Financials()
		return nil
	})
	return out, err
}

func (s *Service) SetPayables(ctx context.Context, req domain.AmountRequest) (domain.FinancialLedger, error) {
	var out domain.FinancialLedger
	err := s.write(ctx, "set_payables", func(b *books) error {
		if req.Amount.IsNegative() {
			return fmt.Errorf("%w: payables must not be negative", domain.ErrInvalidInput)
		}
		b.ledger.SetPayables(req.Amount)
		b.touch(store.Financials)
		out = b.ledger.Financials()
		return nil
	})
	return out, err
}

func (s *Service) VerifyLedger(ctx context.Context) (ledger.Drift, error) {
	b, err := s.load(ctx)
	if err != nil {
		return ledger.Drift{}, err
	}
	drift := b.ledger.Verify()
	if !drift.Consistent {
		s.logger.WithField("module", "ledger").
			WithField("difference", drift.Difference.String()).
			Warn("stored cash does not match ledger events")
	}
	return drift, nil
}

// Backup copies the current collections aside when the store supports it.
func (s *Service) Backup(ctx context.Context) (string, error) {
	if err := requireAdmin(ctx); err != nil {
		return "", err
	}
	backupper, ok := s.records.(store.Backupper)
	if !ok {
		return "", ErrBackupUnsupported
	}
	release, err := s.locker.Acquire(ctx, writeLockKey)
	if err != nil {
		return "", fmt.Errorf("acquire write lock: %w", err)
	}
	defer release()

	location, err := backupper.Backup(ctx)
	s.metrics.RecordOperation("backup", err)
	if err != nil {
		logging.LogError(s.logger, "service", "backup", nil, err)
		return "", err
	}
	s.logger.WithField("module", "service").WithField("location", location).Info("backup written")
	return location, nil
}
