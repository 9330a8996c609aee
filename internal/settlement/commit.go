package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/sentinel"
	"github.com/AlexZinkM/sovereign-ledger/internal/store"
)

// complete commits a published intent. Transient conflicts are retried up to
// maxAttempts; a rule violation found at commit time voids the intent since
// the mirror record can no longer be withdrawn.
func (s *Service) complete(ctx context.Context, intent model.SettlementIntent) (*model.SettledResult, error) {
	if intent.MirrorRef == nil {
		return nil, fmt.Errorf("intent %s has no mirror reference", intent.TxID)
	}
	log := s.logger.With().Str("tx_id", intent.TxID).Logger()

	var (
		result *model.SettledResult
		err    error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result, err = s.commit(ctx, intent)
		if !errors.Is(err, sentinel.ErrConflict) {
			break
		}
		s.metrics.IncrementCommitRetry()
		log.Debug().Int("attempt", attempt).Msg("commit conflict, retrying")
		if attempt < s.maxAttempts && s.retryDelay > 0 {
			time.Sleep(s.retryDelay * time.Duration(attempt))
		}
	}

	switch {
	case err == nil:
		s.metrics.IncrementSettlement("committed")
		log.Info().
			Str("sender", result.Transaction.SenderID).
			Str("receiver", result.Transaction.ReceiverID).
			Str("amount", result.Transaction.Amount.String()).
			Str("mirror_path", result.MirrorRef.Path).
			Msg("transaction settled")
		return result, nil

	case errors.Is(err, sentinel.ErrConflict):
		s.metrics.IncrementSettlement("conflict")
		log.Warn().Int("attempts", s.maxAttempts).Msg("commit gave up after repeated conflicts")
		return nil, fmt.Errorf("%w: %s", ErrSettlementConflict, intent.TxID)

	case errors.Is(err, ErrTreasuryLocked):
		// Left PUBLISHED: it commits once the vault is unlocked and the id is resubmitted or recovered.
		s.metrics.IncrementSettlement("treasury_locked")
		return nil, err

	case errors.Is(err, ErrDuplicateTransaction) && s.committedAs(ctx, intent.Transaction):
		// A concurrent submission of the same transaction won the commit.
		return s.committedResult(ctx, intent.TxID)

	case errors.Is(err, ErrInsufficientLiquidity),
		errors.Is(err, ErrUnknownAccount),
		errors.Is(err, ErrInvalidTransaction),
		errors.Is(err, ErrDuplicateTransaction):
		s.void(ctx, intent, err)
		s.metrics.IncrementSettlement(outcomeLabel(err))
		return nil, err
	}

	log.Error().Err(err).Msg("commit failed")
	return nil, fmt.Errorf("failed to commit %s: %w", intent.TxID, err)
}

// commit applies the intent in a single store transaction.
func (s *Service) commit(ctx context.Context, intent model.SettlementIntent) (*model.SettledResult, error) {
	tx := intent.Transaction
	now := s.now().UnixMilli()
	result := &model.SettledResult{
		Transaction: tx,
		MirrorRef:   *intent.MirrorRef,
		CommittedAt: now,
	}

	err := s.store.RunInTx(ctx, func(st store.Tx) error {
		if !tx.Type.Issues() {
			sender, err := lookup(ctx, st, tx.SenderID)
			if err != nil {
				return err
			}
			if err := checkSender(sender, tx); err != nil {
				return err
			}
			sender.Balance = sender.Balance.Sub(tx.Amount)
			sender.UpdatedAt = now
			if err := st.UpdateAccount(ctx, sender); err != nil {
				return err
			}
			result.SenderBalance = sender.Balance
		}
		if !tx.Type.Burns() {
			receiver, err := lookup(ctx, st, tx.ReceiverID)
			if err != nil {
				return err
			}
			receiver.Balance = receiver.Balance.Add(tx.Amount)
			receiver.UpdatedAt = now
			if err := st.UpdateAccount(ctx, receiver); err != nil {
				return err
			}
			result.ReceiverBalance = receiver.Balance
		}

		err := st.InsertEntry(ctx, &model.LedgerEntry{
			Transaction: tx,
			MirrorRef:   *intent.MirrorRef,
			CommittedAt: now,
		})
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return fmt.Errorf("%w: %s or its signature is already committed", ErrDuplicateTransaction, tx.ID)
		}
		if err != nil {
			return err
		}

		committed := intent
		committed.Status = model.IntentCommitted
		committed.Reason = ""
		committed.UpdatedAt = now
		return st.PutIntent(ctx, &committed)
	})
	if err != nil {
		return nil, err
	}
	if tx.Type.Issues() {
		result.SenderBalance = decimal.Zero
	}
	return result, nil
}

func (s *Service) void(ctx context.Context, intent model.SettlementIntent, cause error) {
	intent.Status = model.IntentVoided
	intent.Reason = cause.Error()
	intent.UpdatedAt = s.now().UnixMilli()
	if err := s.putIntent(ctx, &intent); err != nil {
		s.logger.Error().Err(err).Str("tx_id", intent.TxID).Msg("failed to void intent")
		return
	}
	s.logger.Warn().Err(cause).Str("tx_id", intent.TxID).
		Str("mirror_path", intent.MirrorRef.Path).
		Msg("published transaction voided, mirror record has no local effect")
}

func (s *Service) committedAs(ctx context.Context, tx model.Transaction) bool {
	entry, err := s.store.GetEntry(ctx, tx.ID)
	return err == nil && sameTransaction(entry.Transaction, tx)
}

func lookup(ctx context.Context, st store.Tx, id string) (*model.Account, error) {
	account, err := st.GetAccount(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return account, err
}
