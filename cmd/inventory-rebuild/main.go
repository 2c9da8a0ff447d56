package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"thredvault/backend/internal/bootstrap"
	"thredvault/backend/internal/config"
	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/logging"
	"thredvault/backend/internal/service"
)

// Recomputes every WAC group in the configured store and checks the cash
// ledger against its event log.
func main() {
	backup := flag.Bool("backup", true, "Copy the collections aside before rewriting them (csv backend only)")
	verifyOnly := flag.Bool("verify-only", false, "Only check the ledger; do not recompute costs")
	timeout := flag.Duration("timeout", 2*time.Minute, "Give up after this long")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, logger, *backup, *verifyOnly); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger, backup bool, verifyOnly bool) error {
	records, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	if closeStore != nil {
		defer closeStore()
	}
	cat, err := bootstrap.LoadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	svc := service.New(records, cat,
		service.WithLogger(logger),
		service.WithStrictCatalog(cfg.StrictCatalog),
	)
	ctx = service.WithActor(ctx, domain.Actor{Username: "inventory-rebuild", Role: "admin"})

	if !verifyOnly {
		if backup {
			location, err := svc.Backup(ctx)
			switch {
			case err == nil:
				logger.WithField("location", location).Info("backup written")
			case errors.Is(err, service.ErrBackupUnsupported):
				logger.WithField("backend", cfg.StoreBackend).Warn("store has no backups; continuing without one")
			default:
				return fmt.Errorf("backup: %w", err)
			}
		}

		result, err := svc.RebuildAll(ctx)
		if err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"groups":  len(result.Groups),
			"changed": result.Changed,
		}).Info("weighted-average costs rebuilt")
	}

	drift, err := svc.VerifyLedger(ctx)
	if err != nil {
		return fmt.Errorf("verify ledger: %w", err)
	}
	entry := logger.WithFields(logrus.Fields{
		"stored": drift.Stored.StringFixed(2),
		"folded": drift.Folded.StringFixed(2),
		"events": drift.Events,
	})
	if !drift.Consistent {
		entry.WithField("difference", drift.Difference.StringFixed(2)).Warn("ledger drift found")
		return fmt.Errorf("cash on hand differs from the event log by %s", drift.Difference.StringFixed(2))
	}
	entry.Info("ledger consistent")
	return nil
}
