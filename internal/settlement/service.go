package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexZinkM/sovereign-ledger/internal/authority"
	"github.com/AlexZinkM/sovereign-ledger/internal/client"
	"github.com/AlexZinkM/sovereign-ledger/internal/common"
	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/metrics"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/sentinel"
	"github.com/AlexZinkM/sovereign-ledger/internal/store"
)

const (
	defaultMaxAttempts  = 5
	defaultRetryDelay   = 10 * time.Millisecond
	defaultPendingGrace = time.Minute
)

// Mirror is the durable external log transactions are published to before
// they take local effect.
type Mirror interface {
	Publish(ctx context.Context, record *model.MirrorRecord) (model.RevisionRef, error)
	Stat(ctx context.Context, path string) (model.RevisionRef, bool, error)
}

// Service applies transactions to local balances after publishing them to the mirror.
type Service struct {
	store        store.Store
	mirror       Mirror
	authorities  *authority.Registry
	treasurer    string
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	maxAttempts  int
	retryDelay   time.Duration
	pendingGrace time.Duration
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxAttempts bounds commit attempts lost to concurrent writers.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the base delay between commit attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) { s.retryDelay = d }
}

// WithPendingGrace sets how old a PENDING intent must be before Recover resolves it.
func WithPendingGrace(d time.Duration) Option {
	return func(s *Service) { s.pendingGrace = d }
}

// WithTreasuryAuthority names the only authority allowed to move value
// between treasury vaults. Without it every TREASURY transaction is refused.
func WithTreasuryAuthority(id string) Option {
	return func(s *Service) { s.treasurer = id }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a settlement service.
func New(st store.Store, mirror Mirror, authorities *authority.Registry, opts ...Option) *Service {
	s := &Service{
		store:        st,
		mirror:       mirror,
		authorities:  authorities,
		logger:       zerolog.Nop(),
		maxAttempts:  defaultMaxAttempts,
		retryDelay:   defaultRetryDelay,
		pendingGrace: defaultPendingGrace,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates tx, publishes it to the mirror and applies it to local
// balances in one atomic step. Nothing moves locally unless the publish
// succeeded; once it has, the local commit runs to completion even if ctx is
// cancelled.
//
// Resubmitting a transaction id with an identical payload resumes it: a
// publish that already succeeded is not repeated, and a committed
// transaction returns its original result.
func (s *Service) Submit(ctx context.Context, tx model.Transaction, sender Sender) (*model.SettledResult, error) {
	tx, err := s.prepare(tx, sender)
	if err != nil {
		s.metrics.IncrementSettlement("invalid")
		return nil, err
	}
	log := s.logger.With().Str("tx_id", tx.ID).Str("type", string(tx.Type)).Logger()

	if err := s.authorize(ctx, tx, sender); err != nil {
		s.metrics.IncrementSettlement("unauthorized")
		log.Warn().Err(err).Str("sender", sender.SenderID()).Msg("transaction rejected")
		return nil, err
	}

	intent, err := s.store.GetIntent(ctx, tx.ID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		intent = nil
	case err != nil:
		return nil, fmt.Errorf("failed to load intent: %w", err)
	}

	if intent != nil {
		if !sameTransaction(intent.Transaction, tx) {
			s.metrics.IncrementSettlement("duplicate")
			return nil, fmt.Errorf("%w: %s was submitted with different contents", ErrDuplicateTransaction, tx.ID)
		}
		switch intent.Status {
		case model.IntentCommitted:
			return s.committedResult(ctx, tx.ID)
		case model.IntentVoided:
			s.metrics.IncrementSettlement("duplicate")
			return nil, fmt.Errorf("%w: %s was voided: %s", ErrDuplicateTransaction, tx.ID, intent.Reason)
		case model.IntentPublished:
			log.Info().Msg("resuming published transaction")
			result, err := s.complete(context.WithoutCancel(ctx), *intent)
			if result != nil {
				result.Resumed = true
			}
			return result, err
		}
		// PENDING or ABORTED: the publish has to be (re)done.
	} else if err := s.checkUnused(ctx, tx); err != nil {
		s.metrics.IncrementSettlement("duplicate")
		return nil, err
	}

	if err := s.precheck(ctx, tx); err != nil {
		s.metrics.IncrementSettlement(outcomeLabel(err))
		return nil, err
	}

	now := s.now().UnixMilli()
	pending := model.SettlementIntent{
		TxID:        tx.ID,
		Status:      model.IntentPending,
		Transaction: tx,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if intent != nil {
		pending.CreatedAt = intent.CreatedAt
	}
	if err := s.putIntent(ctx, &pending); err != nil {
		return nil, fmt.Errorf("failed to record intent: %w", err)
	}

	ref, err := s.mirror.Publish(ctx, client.NewMirrorRecord(ctx, tx, s))
	if err != nil {
		pending.Status = model.IntentAborted
		pending.Reason = err.Error()
		pending.UpdatedAt = s.now().UnixMilli()
		if perr := s.putIntent(context.WithoutCancel(ctx), &pending); perr != nil {
			log.Error().Err(perr).Msg("failed to mark intent aborted")
		}
		s.metrics.IncrementSettlement("handshake_failed")
		log.Warn().Err(err).Msg("mirror publish failed, nothing committed")
		return nil, fmt.Errorf("%w: %w", ErrSovereignHandshakeFailed, err)
	}

	// From here on the transaction exists publicly and must not be abandoned.
	ctx = context.WithoutCancel(ctx)
	pending.Status = model.IntentPublished
	pending.MirrorRef = &ref
	pending.UpdatedAt = s.now().UnixMilli()
	if err := s.putIntent(ctx, &pending); err != nil {
		log.Error().Err(err).Msg("failed to mark intent published; recovery will confirm it on the mirror")
	}
	return s.complete(ctx, pending)
}

// prepare validates the fields of tx and sets its canonical payload.
func (s *Service) prepare(tx model.Transaction, sender Sender) (model.Transaction, error) {
	if sender == nil {
		return tx, fmt.Errorf("%w: sender is required", ErrInvalidTransaction)
	}
	if !tx.Amount.IsPositive() {
		return tx, ErrInvalidAmount
	}
	if !tx.Amount.Equal(tx.Amount.Truncate(common.AmountDecimals)) {
		return tx, fmt.Errorf("%w: more than %d decimals", ErrInvalidTransaction, common.AmountDecimals)
	}
	if tx.Type == "" {
		tx.Type = model.TransactionTypeTransfer
	}
	switch {
	case !tx.Type.Valid():
		return tx, fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, tx.Type)
	case strings.TrimSpace(tx.ID) == "" || strings.ContainsAny(tx.ID, "/\\"):
		return tx, fmt.Errorf("%w: id is required and cannot contain path separators", ErrInvalidTransaction)
	case tx.SenderID == "" || tx.ReceiverID == "":
		return tx, fmt.Errorf("%w: sender and receiver are required", ErrInvalidTransaction)
	case strings.Contains(tx.SenderID, ":") || strings.Contains(tx.ReceiverID, ":"):
		return tx, fmt.Errorf("%w: account ids cannot contain ':'", ErrInvalidTransaction)
	case tx.SenderID == tx.ReceiverID:
		return tx, fmt.Errorf("%w: sender and receiver must differ", ErrInvalidTransaction)
	case tx.Timestamp <= 0:
		return tx, fmt.Errorf("%w: timestamp is required", ErrInvalidTransaction)
	case tx.Nonce == "":
		return tx, fmt.Errorf("%w: nonce is required", ErrInvalidTransaction)
	}

	payload := crypto.BuildPayload(tx.SenderID, tx.ReceiverID, tx.Amount, tx.Timestamp, tx.Nonce)
	if tx.Payload != "" && tx.Payload != payload {
		return tx, fmt.Errorf("%w: payload does not match transaction fields", ErrInvalidSignature)
	}
	tx.Payload = payload
	return tx, nil
}

// authorize checks that sender may move value as tx describes.
func (s *Service) authorize(ctx context.Context, tx model.Transaction, sender Sender) error {
	switch snd := sender.(type) {
	case Identity:
		if tx.Type != model.TransactionTypeTransfer && tx.Type != model.TransactionTypeRedemption {
			return fmt.Errorf("%w: identities cannot send %s", ErrUnauthorizedAuthority, tx.Type)
		}
		if snd.ID != tx.SenderID {
			return fmt.Errorf("%w: signer %s is not the sender", ErrInvalidSignature, snd.ID)
		}
		account, err := s.account(ctx, tx.SenderID)
		if err != nil {
			return err
		}
		if account.PublicKey == "" || (snd.PublicKey != "" && snd.PublicKey != account.PublicKey) {
			return fmt.Errorf("%w: key does not belong to %s", ErrInvalidSignature, tx.SenderID)
		}
		if !crypto.Verify(tx.Payload, tx.Signature, account.PublicKey) {
			return ErrInvalidSignature
		}
		return nil

	case Authority:
		if !s.authorities.Verify(snd.ID, snd.Capability) {
			return fmt.Errorf("%w: %s", ErrUnauthorizedAuthority, snd.ID)
		}
		switch {
		case tx.Type.Issues():
			if !s.authorities.IsIssuer(snd.ID) || snd.ID != tx.SenderID {
				return fmt.Errorf("%w: %s cannot issue", ErrUnauthorizedAuthority, snd.ID)
			}
		case tx.Type == model.TransactionTypeTreasury:
			// Only the multi-sig gate acts on behalf of the source vault.
			if s.treasurer == "" || snd.ID != s.treasurer {
				return fmt.Errorf("%w: %s cannot move treasury funds", ErrUnauthorizedAuthority, snd.ID)
			}
		default:
			if snd.ID != tx.SenderID {
				return fmt.Errorf("%w: %s cannot send for %s", ErrUnauthorizedAuthority, snd.ID, tx.SenderID)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unsupported sender", ErrInvalidTransaction)
}

// checkUnused rejects a new transaction id that is already committed or a
// signature that was already spent under another id.
func (s *Service) checkUnused(ctx context.Context, tx model.Transaction) error {
	if _, err := s.store.GetEntry(ctx, tx.ID); err == nil {
		return fmt.Errorf("%w: %s already committed", ErrDuplicateTransaction, tx.ID)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("failed to check transaction id: %w", err)
	}
	if tx.Signature == "" {
		return nil
	}
	used, err := s.store.SignatureUsed(ctx, tx.Signature)
	if err != nil {
		return fmt.Errorf("failed to check signature: %w", err)
	}
	if used {
		return fmt.Errorf("%w: signature already spent", ErrDuplicateTransaction)
	}
	return nil
}

// precheck rejects transactions that would fail at commit before anything is
// published. The commit repeats every check against fresh state.
func (s *Service) precheck(ctx context.Context, tx model.Transaction) error {
	if !tx.Type.Burns() {
		receiver, err := s.account(ctx, tx.ReceiverID)
		if err != nil {
			return err
		}
		if tx.Type == model.TransactionTypeTreasury && !receiver.IsVault() {
			return fmt.Errorf("%w: %s is not a treasury vault", ErrInvalidTransaction, tx.ReceiverID)
		}
	}
	if tx.Type.Issues() {
		return nil
	}
	sender, err := s.account(ctx, tx.SenderID)
	if err != nil {
		return err
	}
	return checkSender(sender, tx)
}

func checkSender(sender *model.Account, tx model.Transaction) error {
	if tx.Type == model.TransactionTypeTreasury && !sender.IsVault() {
		return fmt.Errorf("%w: %s is not a treasury vault", ErrInvalidTransaction, sender.ID)
	}
	if sender.IsVault() && sender.Locked {
		return fmt.Errorf("%w: %s", ErrTreasuryLocked, sender.ID)
	}
	if sender.Balance.LessThan(tx.Amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientLiquidity, sender.ID,
			common.FormatAmount(sender.Balance), common.FormatAmount(tx.Amount))
	}
	return nil
}

func (s *Service) account(ctx context.Context, id string) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", id, err)
	}
	return account, nil
}

func (s *Service) putIntent(ctx context.Context, intent *model.SettlementIntent) error {
	return s.store.RunInTx(ctx, func(tx store.Tx) error {
		return tx.PutIntent(ctx, intent)
	})
}

func (s *Service) committedResult(ctx context.Context, txID string) (*model.SettledResult, error) {
	entry, err := s.store.GetEntry(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("failed to load committed entry %s: %w", txID, err)
	}
	result := &model.SettledResult{
		Transaction: entry.Transaction,
		MirrorRef:   entry.MirrorRef,
		CommittedAt: entry.CommittedAt,
		Resumed:     true,
	}
	if a, err := s.store.GetAccount(ctx, entry.SenderID); err == nil {
		result.SenderBalance = a.Balance
	}
	if a, err := s.store.GetAccount(ctx, entry.ReceiverID); err == nil {
		result.ReceiverBalance = a.Balance
	}
	return result, nil
}

// ResolvePublicKey returns the registered key of an account for mirror records.
func (s *Service) ResolvePublicKey(ctx context.Context, accountID string) (string, bool) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil || account.PublicKey == "" {
		return "", false
	}
	return account.PublicKey, true
}

func sameTransaction(a, b model.Transaction) bool {
	return a.ID == b.ID &&
		a.Type == b.Type &&
		a.Payload == b.Payload &&
		a.Signature == b.Signature
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, ErrTreasuryLocked):
		return "treasury_locked"
	case errors.Is(err, ErrUnknownAccount):
		return "unknown_account"
	case errors.Is(err, ErrSettlementConflict):
		return "conflict"
	case errors.Is(err, ErrDuplicateTransaction):
		return "duplicate"
	}
	return "rejected"
}
