package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/sentinel"
	"github.com/AlexZinkM/sovereign-ledger/internal/store"
)

// AccountSpec describes an account to open.
type AccountSpec struct {
	ID        string
	Kind      model.AccountKind
	PublicKey string
	Genesis   decimal.Decimal
}

// OpenAccount registers an account with its genesis stake as the opening balance.
func (s *Service) OpenAccount(ctx context.Context, spec AccountSpec) (*model.Account, error) {
	if strings.TrimSpace(spec.ID) == "" || strings.Contains(spec.ID, ":") {
		return nil, fmt.Errorf("%w: account id is required and cannot contain ':'", ErrInvalidTransaction)
	}
	if spec.Kind == "" {
		spec.Kind = model.AccountKindIdentity
	}
	if spec.Kind != model.AccountKindIdentity && spec.Kind != model.AccountKindVault {
		return nil, fmt.Errorf("%w: unknown account kind %q", ErrInvalidTransaction, spec.Kind)
	}
	if spec.Genesis.IsNegative() {
		return nil, fmt.Errorf("%w: genesis stake cannot be negative", ErrInvalidAmount)
	}

	now := s.now().UnixMilli()
	account := &model.Account{
		ID:        spec.ID,
		Kind:      spec.Kind,
		PublicKey: spec.PublicKey,
		Balance:   spec.Genesis,
		Genesis:   spec.Genesis,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		return tx.CreateAccount(ctx, account)
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, spec.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open account %s: %w", spec.ID, err)
	}
	s.logger.Info().Str("account_id", account.ID).Str("kind", string(account.Kind)).
		Str("genesis", account.Genesis.String()).Msg("account opened")
	return account, nil
}

// Account returns the local record of an account.
func (s *Service) Account(ctx context.Context, id string) (*model.Account, error) {
	return s.account(ctx, id)
}

// History returns the committed entries touching an account in commit order.
func (s *Service) History(ctx context.Context, id string) ([]model.LedgerEntry, error) {
	if _, err := s.account(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.store.EntriesForAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history of %s: %w", id, err)
	}
	return entries, nil
}

// SetVaultLock locks or unlocks outflows from a treasury vault.
func (s *Service) SetVaultLock(ctx context.Context, id string, locked bool) (*model.Account, error) {
	var (
		account *model.Account
		err     error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		account, err = s.setLock(ctx, id, locked)
		if !errors.Is(err, sentinel.ErrConflict) {
			break
		}
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return nil, fmt.Errorf("%w: %s", ErrSettlementConflict, id)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("account_id", id).Bool("locked", locked).Msg("treasury lock changed")
	return account, nil
}

func (s *Service) setLock(ctx context.Context, id string, locked bool) (*model.Account, error) {
	var account *model.Account
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		a, err := lookup(ctx, tx, id)
		if err != nil {
			return err
		}
		if !a.IsVault() {
			return fmt.Errorf("%w: %s is not a treasury vault", ErrInvalidTransaction, id)
		}
		if a.Locked == locked {
			account = a
			return nil
		}
		a.Locked = locked
		a.UpdatedAt = s.now().UnixMilli()
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	return account, err
}
