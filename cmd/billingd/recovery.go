package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/subscription"
)

// runRecovery re-applies pending reconciliations every interval until ctx is done.
func runRecovery(ctx context.Context, svc subscription.Service, interval time.Duration, batch int, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		started := time.Now()
		report, err := svc.RetryPending(ctx, batch)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.ErrorContext(ctx, "pending reconciliation sweep failed", logger.Error(err))
			continue
		}
		if report.Attempted > 0 {
			log.InfoContext(ctx, "pending reconciliation sweep",
				logger.Group("report",
					slog.Int("attempted", report.Attempted),
					slog.Int("resolved", report.Resolved),
					slog.Int("failed", report.Failed),
				),
				logger.Duration(time.Since(started)),
			)
		}
	}
}
