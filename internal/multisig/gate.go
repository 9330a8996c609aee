// Package multisig gates large treasury transfers behind N-of-M signer approval.
package multisig

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/AlexZinkM/sovereign-ledger/internal/common"
	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/metrics"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/sentinel"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
	"github.com/AlexZinkM/sovereign-ledger/internal/store"
)

const numShards = 32

var (
	ErrUnauthorizedSigner     = errors.New("signer is not authorized for treasury proposals")
	ErrDuplicateSignature     = errors.New("signer has already signed this proposal")
	ErrProposalNotFound       = errors.New("proposal not found")
	ErrProposalClosed         = errors.New("proposal has already been executed")
	ErrInsufficientSignatures = errors.New("proposal does not have enough signatures")
)

// executionNamespace derives the id of the transaction that executes a proposal.
var executionNamespace = uuid.MustParse("6f1b7c52-9a43-4b8e-a3f4-2d0c5e8b7a91")

// Settler is the part of the settlement service the gate drives.
type Settler interface {
	Submit(ctx context.Context, tx model.Transaction, sender settlement.Sender) (*model.SettledResult, error)
	Account(ctx context.Context, id string) (*model.Account, error)
}

// Config holds the gating policy.
type Config struct {
	// Threshold is the smallest amount that needs approval.
	Threshold       decimal.Decimal
	RequiredSigners int
	Signers         []string
	// Authority is the capability the gate settles treasury transfers with.
	Authority settlement.Authority
}

// Gate routes treasury transfers either straight to settlement or through a proposal.
type Gate struct {
	settler   Settler
	store     store.Store
	cfg       Config
	signers   map[string]struct{}
	shards    [numShards]sync.Mutex
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	newNonce  func() (string, error)
	newTxID   func() string
	newPropID func() string
}

// Option configures a Gate.
type Option func(*Gate)

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a gate. At least RequiredSigners distinct signers must be configured.
func NewGate(settler Settler, st store.Store, cfg Config, opts ...Option) (*Gate, error) {
	if cfg.RequiredSigners < 1 {
		return nil, errors.New("multisig: at least one signature must be required")
	}
	if !cfg.Threshold.IsPositive() {
		return nil, errors.New("multisig: threshold must be greater than zero")
	}
	signers := make(map[string]struct{}, len(cfg.Signers))
	for _, id := range cfg.Signers {
		if id != "" {
			signers[id] = struct{}{}
		}
	}
	if len(signers) < cfg.RequiredSigners {
		return nil, fmt.Errorf("multisig: %d signers configured, %d required", len(signers), cfg.RequiredSigners)
	}

	g := &Gate{
		settler:   settler,
		store:     st,
		cfg:       cfg,
		signers:   signers,
		logger:    zerolog.Nop(),
		now:       time.Now,
		newNonce:  crypto.GenerateNonce,
		newTxID:   uuid.NewString,
		newPropID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// RequestTransfer moves value between two treasury vaults. Below the
// threshold the transfer settles immediately; at or above it a proposal is
// created and nothing moves until enough signers approve.
func (g *Gate) RequestTransfer(ctx context.Context, req model.ProposeRequest) (*model.TransferOutcome, error) {
	amount, err := common.ParsePositiveAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", settlement.ErrInvalidAmount, err)
	}
	if req.FromVaultID == "" || req.ToVaultID == "" || req.FromVaultID == req.ToVaultID {
		return nil, fmt.Errorf("%w: two distinct vaults are required", settlement.ErrInvalidTransaction)
	}
	for _, id := range []string{req.FromVaultID, req.ToVaultID} {
		account, err := g.settler.Account(ctx, id)
		if err != nil {
			return nil, err
		}
		if !account.IsVault() {
			return nil, fmt.Errorf("%w: %s is not a treasury vault", settlement.ErrInvalidTransaction, id)
		}
	}

	if amount.LessThan(g.cfg.Threshold) {
		tx, err := g.transaction(g.newTxID(), req.FromVaultID, req.ToVaultID, amount)
		if err != nil {
			return nil, err
		}
		result, err := g.settler.Submit(ctx, tx, g.cfg.Authority)
		if err != nil {
			return nil, err
		}
		return &model.TransferOutcome{Settled: result}, nil
	}

	proposal := &model.MultiSigProposal{
		ID:          g.newPropID(),
		FromVaultID: req.FromVaultID,
		ToVaultID:   req.ToVaultID,
		Amount:      amount,
		Reason:      req.Reason,
		ProposerID:  req.ProposerID,
		Signatures:  []string{},
		Status:      model.ProposalPending,
		CreatedAt:   g.now().UnixMilli(),
	}
	err = g.store.RunInTx(ctx, func(tx store.Tx) error {
		return tx.CreateProposal(ctx, proposal)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}
	g.metrics.IncrementProposal("created")
	g.logger.Info().
		Str("proposal_id", proposal.ID).
		Str("from", proposal.FromVaultID).
		Str("to", proposal.ToVaultID).
		Str("amount", proposal.Amount.String()).
		Msg("treasury transfer awaiting signatures")
	return &model.TransferOutcome{Proposal: proposal}, nil
}

// Sign records signerID's approval and executes the proposal once enough
// signers approved and the source vault is unlocked. A locked vault leaves the
// proposal pending without error. If execution fails for another reason the
// signature is still recorded and the error is returned with the proposal.
func (g *Gate) Sign(ctx context.Context, proposalID, signerID string) (*model.MultiSigProposal, error) {
	if _, ok := g.signers[signerID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorizedSigner, signerID)
	}

	mu := g.shard(proposalID)
	mu.Lock()
	defer mu.Unlock()

	proposal, err := g.load(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status == model.ProposalExecuted {
		return nil, ErrProposalClosed
	}
	if proposal.SignedBy(signerID) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSignature, signerID)
	}

	proposal.Signatures = append(proposal.Signatures, signerID)
	if err := g.save(ctx, proposal); err != nil {
		return nil, err
	}
	g.metrics.IncrementProposal("signed")
	g.logger.Info().Str("proposal_id", proposalID).Str("signer", signerID).
		Int("signatures", len(proposal.Signatures)).Msg("proposal signed")

	if len(proposal.Signatures) < g.cfg.RequiredSigners {
		return proposal, nil
	}
	err = g.execute(ctx, proposal)
	if errors.Is(err, settlement.ErrTreasuryLocked) {
		return proposal, nil
	}
	return proposal, err
}

// Execute retries execution of a fully signed proposal, e.g. after its source
// vault was unlocked. Executing an executed proposal returns it unchanged.
func (g *Gate) Execute(ctx context.Context, proposalID string) (*model.MultiSigProposal, error) {
	mu := g.shard(proposalID)
	mu.Lock()
	defer mu.Unlock()

	proposal, err := g.load(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status == model.ProposalExecuted {
		return proposal, nil
	}
	if len(proposal.Signatures) < g.cfg.RequiredSigners {
		return nil, fmt.Errorf("%w: %d of %d", ErrInsufficientSignatures, len(proposal.Signatures), g.cfg.RequiredSigners)
	}
	if err := g.execute(ctx, proposal); err != nil {
		return nil, err
	}
	return proposal, nil
}

// Get returns a proposal.
func (g *Gate) Get(ctx context.Context, proposalID string) (*model.MultiSigProposal, error) {
	return g.load(ctx, proposalID)
}

// execute settles a fully signed proposal. The caller holds the proposal's shard.
func (g *Gate) execute(ctx context.Context, proposal *model.MultiSigProposal) error {
	log := g.logger.With().Str("proposal_id", proposal.ID).Logger()

	// The lock flag is read at execution time; a lock applied after signing blocks execution.
	vault, err := g.settler.Account(ctx, proposal.FromVaultID)
	if err != nil {
		return err
	}
	if vault.Locked {
		g.metrics.IncrementProposal("blocked")
		log.Warn().Str("vault", vault.ID).Msg("source vault locked, proposal stays pending")
		return fmt.Errorf("%w: %s", settlement.ErrTreasuryLocked, vault.ID)
	}

	if proposal.Execution == nil {
		id := uuid.NewSHA1(executionNamespace, []byte(proposal.ID)).String()
		tx, err := g.transaction(id, proposal.FromVaultID, proposal.ToVaultID, proposal.Amount)
		if err != nil {
			return err
		}
		proposal.Execution = &tx
		if err := g.save(ctx, proposal); err != nil {
			return err
		}
	}

	result, err := g.settler.Submit(ctx, *proposal.Execution, g.cfg.Authority)
	if err != nil {
		if errors.Is(err, settlement.ErrTreasuryLocked) {
			g.metrics.IncrementProposal("blocked")
		}
		log.Warn().Err(err).Msg("proposal execution failed")
		return err
	}

	proposal.Status = model.ProposalExecuted
	proposal.TransactionID = result.Transaction.ID
	proposal.ExecutedAt = g.now().UnixMilli()
	if err := g.save(context.WithoutCancel(ctx), proposal); err != nil {
		// Settled already; a retry of Execute resumes the committed transaction.
		log.Error().Err(err).Msg("failed to mark proposal executed")
		return err
	}
	g.metrics.IncrementProposal("executed")
	log.Info().Str("tx_id", proposal.TransactionID).Msg("proposal executed")
	return nil
}

func (g *Gate) transaction(id, from, to string, amount decimal.Decimal) (model.Transaction, error) {
	nonce, err := g.newNonce()
	if err != nil {
		return model.Transaction{}, err
	}
	tx := model.Transaction{
		ID:         id,
		Type:       model.TransactionTypeTreasury,
		SenderID:   from,
		ReceiverID: to,
		Amount:     amount,
		Timestamp:  g.now().UnixMilli(),
		Nonce:      nonce,
	}
	tx.Payload = crypto.BuildPayload(tx.SenderID, tx.ReceiverID, tx.Amount, tx.Timestamp, tx.Nonce)
	return tx, nil
}

func (g *Gate) load(ctx context.Context, id string) (*model.MultiSigProposal, error) {
	proposal, err := g.store.GetProposal(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProposalNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal %s: %w", id, err)
	}
	return proposal, nil
}

func (g *Gate) save(ctx context.Context, proposal *model.MultiSigProposal) error {
	err := g.store.RunInTx(ctx, func(tx store.Tx) error {
		return tx.UpdateProposal(ctx, proposal)
	})
	if errors.Is(err, sentinel.ErrConflict) {
		return fmt.Errorf("%w: proposal %s changed concurrently", settlement.ErrSettlementConflict, proposal.ID)
	}
	return err
}

func (g *Gate) shard(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &g.shards[h.Sum32()%numShards]
}
