package client

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
)

// LegacyKeyPrefix tags identifiers that have no resolvable public key, such
// as system accounts and identities created before keys were recorded.
const LegacyKeyPrefix = "LEGACY:"

// KeyResolver maps an account id to its encoded public key.
type KeyResolver interface {
	ResolvePublicKey(ctx context.Context, accountID string) (string, bool)
}

// KeyResolverFunc adapts a function to KeyResolver.
type KeyResolverFunc func(ctx context.Context, accountID string) (string, bool)

func (f KeyResolverFunc) ResolvePublicKey(ctx context.Context, accountID string) (string, bool) {
	return f(ctx, accountID)
}

// ReconcileProgress is reported after each missing entry is handled.
type ReconcileProgress struct {
	Done  int
	Total int
	TxID  string
	Err   error
}

// ReconcileResult summarizes a ReconcileMissing run.
type ReconcileResult struct {
	Published int      `json:"published"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failedIds,omitempty"`
}

// NewMirrorRecord builds the published form of tx with resolved public keys.
func NewMirrorRecord(ctx context.Context, tx model.Transaction, resolver KeyResolver) *model.MirrorRecord {
	return &model.MirrorRecord{
		Transaction:       tx,
		PayloadVersion:    crypto.PayloadVersion,
		SenderPublicKey:   resolveKey(ctx, resolver, tx.SenderID),
		ReceiverPublicKey: resolveKey(ctx, resolver, tx.ReceiverID),
	}
}

func resolveKey(ctx context.Context, resolver KeyResolver, accountID string) string {
	if resolver != nil {
		if key, ok := resolver.ResolvePublicKey(ctx, accountID); ok && key != "" {
			return key
		}
	}
	return LegacyKeyPrefix + accountID
}

// ReconcileMissing publishes every local entry whose id is absent from the
// mirror listing. The set of mirrored ids is rebuilt from the remote listing
// on every run, so re-running after a partial failure never duplicates
// entries. A failed publish is counted and reported but does not stop the run.
func (c *MirrorClient) ReconcileMissing(
	ctx context.Context,
	local []model.LedgerEntry,
	resolver KeyResolver,
	onProgress func(ReconcileProgress),
) (ReconcileResult, error) {
	remote, err := c.ListEntries(ctx, LedgerPrefix, 0)
	if err != nil {
		return ReconcileResult{}, err
	}
	mirrored := make(map[string]struct{}, len(remote))
	for _, e := range remote {
		if _, id, ok := ParseEntryName(e.Name); ok {
			mirrored[id] = struct{}{}
		}
	}

	var (
		result  ReconcileResult
		missing []model.LedgerEntry
		queued  = make(map[string]struct{})
	)
	for _, e := range local {
		if _, ok := mirrored[e.ID]; ok {
			result.Skipped++
			continue
		}
		if _, ok := queued[e.ID]; ok {
			continue
		}
		queued[e.ID] = struct{}{}
		missing = append(missing, e)
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.reconcileLimit)
	for _, entry := range missing {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := c.Publish(gctx, NewMirrorRecord(gctx, entry.Transaction, resolver))

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				result.Failed++
				result.FailedIDs = append(result.FailedIDs, entry.ID)
				c.logger.Error().Err(err).Str("tx_id", entry.ID).Msg("reconcile publish failed")
			} else {
				result.Published++
			}
			if onProgress != nil {
				onProgress(ReconcileProgress{Done: done, Total: len(missing), TxID: entry.ID, Err: err})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	c.metrics.AddReconciled(result.Published, result.Skipped, result.Failed)
	c.logger.Info().
		Int("published", result.Published).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("mirror reconcile finished")
	return result, nil
}
