package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlexZinkM/sovereign-ledger/internal/model"
)

// RecoveryReport counts what a recovery pass did with unfinished intents.
type RecoveryReport struct {
	Committed int `json:"committed"`
	Voided    int `json:"voided"`
	Aborted   int `json:"aborted"`
	Pending   int `json:"pending"` // left for a later pass
}

// Recover finishes intents interrupted between publish and commit.
// PUBLISHED intents are committed. PENDING intents older than the grace
// period are looked up on the mirror: found means the publish landed and the
// intent is committed, missing means it never did and the intent is aborted.
func (s *Service) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport
	intents, err := s.store.ListIntents(ctx, model.IntentPending, model.IntentPublished)
	if err != nil {
		return report, fmt.Errorf("failed to list intents: %w", err)
	}

	cutoff := s.now().Add(-s.pendingGrace).UnixMilli()
	for _, intent := range intents {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log := s.logger.With().Str("tx_id", intent.TxID).Str("status", string(intent.Status)).Logger()

		if intent.Status == model.IntentPending {
			if intent.UpdatedAt > cutoff {
				report.Pending++
				continue
			}
			ref, found, err := s.mirror.Stat(ctx, intent.Transaction.MirrorPath())
			if err != nil {
				log.Warn().Err(err).Msg("mirror lookup failed, leaving intent pending")
				report.Pending++
				continue
			}
			if !found {
				intent.Status = model.IntentAborted
				intent.Reason = "publish not found on mirror"
				intent.UpdatedAt = s.now().UnixMilli()
				if err := s.putIntent(ctx, &intent); err != nil {
					return report, fmt.Errorf("failed to abort intent %s: %w", intent.TxID, err)
				}
				log.Info().Msg("stale intent aborted")
				report.Aborted++
				continue
			}
			intent.Status = model.IntentPublished
			intent.MirrorRef = &ref
		}

		_, err := s.complete(ctx, intent)
		switch {
		case err == nil:
			report.Committed++
		case errors.Is(err, ErrTreasuryLocked), errors.Is(err, ErrSettlementConflict):
			report.Pending++
		case errors.Is(err, ErrInsufficientLiquidity),
			errors.Is(err, ErrUnknownAccount),
			errors.Is(err, ErrInvalidTransaction),
			errors.Is(err, ErrDuplicateTransaction):
			report.Voided++
		default:
			return report, err
		}
	}

	if report != (RecoveryReport{}) {
		s.logger.Info().
			Int("committed", report.Committed).
			Int("voided", report.Voided).
			Int("aborted", report.Aborted).
			Int("pending", report.Pending).
			Msg("recovery pass finished")
	}
	return report, nil
}
