// Package pipeline holds the background jobs that sit beside the price
// pipeline: the archive cron, the Redis mirror and the opportunity bus.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Pruner deletes rows older than a cutoff.
type Pruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiverConfig controls retention.
type ArchiverConfig struct {
	Cron          string
	RetentionDays int
	// Prune deletes archived rows from Postgres after a successful upload.
	Prune bool
}

// Archiver moves rows older than the retention window into cold storage.
type Archiver struct {
	blob   domain.Archiver
	prices Pruner
	opps   Pruner
	cfg    ArchiverConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewArchiver creates an Archiver. prices and opps may be nil when Prune
// is off.
func NewArchiver(blob domain.Archiver, prices, opps Pruner, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	return &Archiver{
		blob:   blob,
		prices: prices,
		opps:   opps,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// RunOnce archives, and optionally prunes, everything older than the
// retention window.
func (a *Archiver) RunOnce(ctx context.Context) error {
	cutoff := a.now().UTC().Add(-time.Duration(a.cfg.RetentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.cfg.RetentionDays),
	)

	prices, err := a.blob.ArchivePrices(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive prices before %v: %w", cutoff, err)
	}
	opps, err := a.blob.ArchiveOpportunities(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive opportunities before %v: %w", cutoff, err)
	}

	var prunedPrices, prunedOpps int64
	if a.cfg.Prune {
		if prices > 0 && a.prices != nil {
			if prunedPrices, err = a.prices.DeleteBefore(ctx, cutoff); err != nil {
				return fmt.Errorf("pipeline: prune prices: %w", err)
			}
		}
		if opps > 0 && a.opps != nil {
			if prunedOpps, err = a.opps.DeleteBefore(ctx, cutoff); err != nil {
				return fmt.Errorf("pipeline: prune opportunities: %w", err)
			}
		}
	}

	a.logger.Info("archive run complete",
		slog.Int64("prices_archived", prices),
		slog.Int64("opportunities_archived", opps),
		slog.Int64("prices_pruned", prunedPrices),
		slog.Int64("opportunities_pruned", prunedOpps),
	)
	return nil
}

// Run triggers RunOnce on the configured cron schedule until ctx ends.
// A failed run is logged and the schedule continues.
func (a *Archiver) Run(ctx context.Context) error {
	sched, err := cron.ParseStandard(a.cfg.Cron)
	if err != nil {
		return fmt.Errorf("pipeline: cron %q: %w", a.cfg.Cron, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", a.cfg.Cron))

	for {
		next := sched.Next(a.now().UTC())
		if next.IsZero() {
			return fmt.Errorf("pipeline: cron %q: no future activation", a.cfg.Cron)
		}
		a.logger.Debug("archiver waiting", slog.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			if err := a.RunOnce(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
