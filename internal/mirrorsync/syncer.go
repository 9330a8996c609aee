// Package mirrorsync periodically brings the mirror and the local ledger back in line.
package mirrorsync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexZinkM/sovereign-ledger/internal/client"
	"github.com/AlexZinkM/sovereign-ledger/internal/metrics"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
)

// Recoverer finishes interrupted settlements and resolves account keys.
type Recoverer interface {
	client.KeyResolver
	Recover(ctx context.Context) (settlement.RecoveryReport, error)
}

// Reconciler republishes local entries missing from the mirror.
type Reconciler interface {
	ReconcileMissing(ctx context.Context, local []model.LedgerEntry, resolver client.KeyResolver,
		onProgress func(client.ReconcileProgress)) (client.ReconcileResult, error)
}

// EntryLister reads the local ledger.
type EntryLister interface {
	ListEntries(ctx context.Context) ([]model.LedgerEntry, error)
}

// Result summarizes one sync pass.
type Result struct {
	Recovery  settlement.RecoveryReport `json:"recovery"`
	Reconcile client.ReconcileResult    `json:"reconcile"`
}

type Syncer struct {
	recoverer  Recoverer
	reconciler Reconciler
	entries    EntryLister
	interval   time.Duration
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Syncer)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Syncer) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

func New(recoverer Recoverer, reconciler Reconciler, entries EntryLister, interval time.Duration, opts ...Option) *Syncer {
	s := &Syncer{
		recoverer:  recoverer,
		reconciler: reconciler,
		entries:    entries,
		interval:   interval,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce recovers interrupted settlements, then publishes every committed
// entry the mirror does not have yet.
func (s *Syncer) RunOnce(ctx context.Context) (Result, error) {
	var result Result
	recovery, err := s.recoverer.Recover(ctx)
	result.Recovery = recovery
	if err != nil {
		return result, fmt.Errorf("recovery failed: %w", err)
	}

	local, err := s.entries.ListEntries(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list local entries: %w", err)
	}
	reconcile, err := s.reconciler.ReconcileMissing(ctx, local, s.recoverer, func(p client.ReconcileProgress) {
		ev := s.logger.Debug()
		if p.Err != nil {
			ev = s.logger.Warn().Err(p.Err)
		}
		ev.Int("done", p.Done).Int("total", p.Total).Str("tx_id", p.TxID).Msg("reconcile progress")
	})
	result.Reconcile = reconcile
	if err != nil {
		return result, fmt.Errorf("reconcile failed: %w", err)
	}
	s.metrics.AddReconciled(reconcile.Published, reconcile.Skipped, reconcile.Failed)

	s.logger.Info().
		Int("published", reconcile.Published).
		Int("skipped", reconcile.Skipped).
		Int("failed", reconcile.Failed).
		Int("recovered", recovery.Committed).
		Msg("mirror sync finished")
	return result, nil
}

// Run syncs immediately and then on every interval until ctx is done.
// Failed passes are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", s.interval)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("mirror sync failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
