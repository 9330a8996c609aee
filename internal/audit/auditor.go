// Package audit replays an account's history to verify its stored balance.
package audit

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/AlexZinkM/sovereign-ledger/internal/authority"
	"github.com/AlexZinkM/sovereign-ledger/internal/client"
	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/metrics"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/sentinel"
	"github.com/AlexZinkM/sovereign-ledger/internal/store"
)

// Epsilon is the largest tolerated gap between replayed and stored balance.
var Epsilon = decimal.New(1, -4)

// ErrUnknownAccount is returned when auditing an account that does not exist.
var ErrUnknownAccount = errors.New("unknown account")

// MirrorLister lists published mirror entries.
type MirrorLister interface {
	ListEntries(ctx context.Context, prefix string, limit int) ([]client.MirrorEntry, error)
}

// Auditor replays history read-only; it is safe to run alongside settlement.
type Auditor struct {
	store       store.Reader
	authorities *authority.Registry
	mirror      MirrorLister
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Auditor)

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Auditor) { a.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Auditor) { a.metrics = m }
}

// WithMirror makes audits report local entries that are missing from the mirror.
func WithMirror(mirror MirrorLister) Option {
	return func(a *Auditor) { a.mirror = mirror }
}

func New(st store.Reader, authorities *authority.Registry, opts ...Option) *Auditor {
	a := &Auditor{
		store:       st,
		authorities: authorities,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Audit replays every committed transaction touching accountID from its
// genesis stake. Authority-sourced transactions are accepted as they are;
// every other transaction must carry a valid signature of the sender over
// its canonical payload. Failures are recorded as breaches and skipped.
// The scan stops between transactions when ctx is cancelled.
func (a *Auditor) Audit(ctx context.Context, accountID string) (*model.AuditReport, error) {
	account, err := a.store.GetAccount(ctx, accountID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	entries, err := a.store.EntriesForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history of %s: %w", accountID, err)
	}
	slices.SortStableFunc(entries, func(x, y model.LedgerEntry) int {
		return cmp.Compare(x.CommittedAt, y.CommittedAt)
	})

	report := &model.AuditReport{
		AccountID:      accountID,
		GenesisStake:   account.Genesis,
		RunningBalance: account.Genesis,
		StoredBalance:  account.Balance,
		Total:          len(entries),
		Breaches:       []model.IntegrityBreach{},
		Log:            make([]model.AuditLogLine, 0, len(entries)),
	}
	senders := map[string]*model.Account{accountID: account}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tx := entry.Transaction
		line := model.AuditLogLine{TxID: tx.ID}

		sender, err := a.sender(ctx, senders, tx.SenderID)
		if err != nil {
			return nil, err
		}
		line.Authority = a.authoritySourced(tx, sender)

		if !line.Authority {
			if reason := verify(tx, sender); reason != "" {
				report.Breaches = append(report.Breaches, model.IntegrityBreach{TxID: tx.ID, Reason: reason})
				line.Note = reason
				line.RunningBalance = report.RunningBalance
				report.Log = append(report.Log, line)
				a.logger.Warn().Str("account_id", accountID).Str("tx_id", tx.ID).Str("reason", reason).Msg("integrity breach")
				continue
			}
		}

		line.Accepted = true
		report.Verified++
		switch accountID {
		case tx.ReceiverID:
			line.Delta = tx.Amount
		case tx.SenderID:
			line.Delta = tx.Amount.Neg()
		}
		report.RunningBalance = report.RunningBalance.Add(line.Delta)
		line.RunningBalance = report.RunningBalance
		report.Log = append(report.Log, line)
	}

	report.Difference = report.StoredBalance.Sub(report.RunningBalance)
	report.Verdict = model.AuditVerified
	if report.Difference.Abs().GreaterThan(Epsilon) {
		report.Verdict = model.AuditMirrorMismatch
	}

	if a.mirror != nil {
		report.Unmirrored = a.unmirrored(ctx, entries)
	}

	a.metrics.IncrementAudit(string(report.Verdict))
	a.logger.Info().
		Str("account_id", accountID).
		Str("verdict", string(report.Verdict)).
		Int("verified", report.Verified).
		Int("total", report.Total).
		Int("breaches", len(report.Breaches)).
		Str("difference", report.Difference.String()).
		Msg("audit finished")
	return report, nil
}

// authoritySourced covers registered authorities, issuance and redemption
// types, and transfers out of treasury vaults, none of which carry a signature.
func (a *Auditor) authoritySourced(tx model.Transaction, sender *model.Account) bool {
	if a.authorities.IsAuthority(tx.SenderID) || tx.Type.AuthoritySourced() {
		return true
	}
	return tx.Type == model.TransactionTypeTreasury && sender != nil && sender.IsVault()
}

func verify(tx model.Transaction, sender *model.Account) string {
	if tx.Payload != crypto.BuildPayload(tx.SenderID, tx.ReceiverID, tx.Amount, tx.Timestamp, tx.Nonce) {
		return "stored payload does not match transaction fields"
	}
	if sender == nil || sender.PublicKey == "" {
		return "sender has no registered public key"
	}
	if !crypto.Verify(tx.Payload, tx.Signature, sender.PublicKey) {
		return "signature verification failed"
	}
	return ""
}

func (a *Auditor) sender(ctx context.Context, cache map[string]*model.Account, id string) (*model.Account, error) {
	if account, ok := cache[id]; ok {
		return account, nil
	}
	account, err := a.store.GetAccount(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		account, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", id, err)
	}
	cache[id] = account
	return account, nil
}

func (a *Auditor) unmirrored(ctx context.Context, entries []model.LedgerEntry) []string {
	remote, err := a.mirror.ListEntries(ctx, client.LedgerPrefix, 0)
	if err != nil {
		a.logger.Warn().Err(err).Msg("mirror listing failed, skipping mirror comparison")
		return nil
	}
	mirrored := make(map[string]struct{}, len(remote))
	for _, e := range remote {
		if _, id, ok := client.ParseEntryName(e.Name); ok {
			mirrored[id] = struct{}{}
		}
	}
	var missing []string
	for _, e := range entries {
		if _, ok := mirrored[e.ID]; !ok {
			missing = append(missing, e.ID)
		}
	}
	return missing
}
