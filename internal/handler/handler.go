package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/AlexZinkM/sovereign-ledger/internal/authority"
	"github.com/AlexZinkM/sovereign-ledger/internal/config"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
)

// Wallet is the local identity's operations.
type Wallet interface {
	GenerateIdentity(ctx context.Context, accountID string, pin []byte) (*model.GenerateResponse, error)
	Unlock(pin []byte) (*model.IdentityResponse, error)
	Lock()
	Identity() *model.IdentityResponse
	Pay(ctx context.Context, req model.PayRequest) (*model.PayResponse, error)
	GetBalance(ctx context.Context, accountID string) (*model.BalanceResponse, error)
	GetTransactions(ctx context.Context, accountID string, req *model.LogRequest) (*model.LogResponse, error)
}

// Settlement submits pre-signed transactions and manages treasury vaults.
type Settlement interface {
	Submit(ctx context.Context, tx model.Transaction, sender settlement.Sender) (*model.SettledResult, error)
	OpenAccount(ctx context.Context, spec settlement.AccountSpec) (*model.Account, error)
	SetVaultLock(ctx context.Context, id string, locked bool) (*model.Account, error)
}

// Gate handles gated treasury transfers.
type Gate interface {
	RequestTransfer(ctx context.Context, req model.ProposeRequest) (*model.TransferOutcome, error)
	Get(ctx context.Context, proposalID string) (*model.MultiSigProposal, error)
	Sign(ctx context.Context, proposalID, signerID string) (*model.MultiSigProposal, error)
	Execute(ctx context.Context, proposalID string) (*model.MultiSigProposal, error)
}

// Auditor replays account history.
type Auditor interface {
	Audit(ctx context.Context, accountID string) (*model.AuditReport, error)
}

// LedgerHandler serves the ledger API.
type LedgerHandler struct {
	wallet     Wallet
	settlement Settlement
	gate       Gate
	auditor    Auditor
	logger     zerolog.Logger
	// pin returns the PIN prompted at startup, used when a request carries none.
	pin func() ([]byte, error)
	// signers verifies signer capabilities; nil leaves signer ids unauthenticated.
	signers    *authority.Registry
	adminToken string
}

// Option configures a LedgerHandler.
type Option func(*LedgerHandler)

// WithSigners requires every proposal signature to carry the signer's capability.
func WithSigners(signers *authority.Registry) Option {
	return func(h *LedgerHandler) { h.signers = signers }
}

// WithAdminToken guards vault management and proposal execution with a shared token.
func WithAdminToken(token string) Option {
	return func(h *LedgerHandler) { h.adminToken = token }
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(wallet Wallet, settlement Settlement, gate Gate, auditor Auditor, logger zerolog.Logger, opts ...Option) *LedgerHandler {
	h := &LedgerHandler{
		wallet:     wallet,
		settlement: settlement,
		gate:       gate,
		auditor:    auditor,
		logger:     logger,
		pin:        config.GetPINBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the ledger routes on r.
func (h *LedgerHandler) Register(r chi.Router) {
	r.Route("/identity", func(r chi.Router) {
		r.Get("/", h.Identity)
		r.Post("/genesis", h.Generate)
		r.Post("/unlock", h.Unlock)
		r.Post("/lock", h.Lock)
	})

	r.Post("/transactions", h.Submit)
	r.Post("/pay", h.Pay)

	r.Route("/accounts/{id}", func(r chi.Router) {
		r.Get("/balance", h.GetBalance)
		r.Get("/transactions", h.TransactionHistory)
		r.Get("/audit", h.Audit)
	})

	r.Route("/proposals", func(r chi.Router) {
		r.Post("/", h.Propose)
		r.Get("/{id}", h.GetProposal)
		r.Post("/{id}/signatures", h.SignProposal)
		r.With(h.requireAdmin).Post("/{id}/execute", h.ExecuteProposal)
	})

	r.Route("/vaults", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/", h.OpenVault)
		r.Post("/{id}/lock", h.LockVault)
		r.Post("/{id}/unlock", h.UnlockVault)
	})
}

// requireAdmin rejects requests without the admin token when one is configured.
func (h *LedgerHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken != "" &&
			subtle.ConstantTimeCompare([]byte(r.Header.Get(HeaderAdminToken)), []byte(h.adminToken)) != 1 {
			h.logger.Warn().Str("method", r.Method).Str("path", r.URL.Path).Msg("admin token mismatch")
			writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{Error: "admin token required", Code: "UNAUTHORIZED"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "BAD_REQUEST"})
		return false
	}
	return true
}
