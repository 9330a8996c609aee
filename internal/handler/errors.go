package handler

import (
	"errors"
	"net/http"

	"github.com/AlexZinkM/sovereign-ledger/internal/audit"
	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/multisig"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
	"github.com/AlexZinkM/sovereign-ledger/wallet"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order; the code tells a caller whether a retry is safe.
var errorMappings = []errorMapping{
	{settlement.ErrSovereignHandshakeFailed, http.StatusBadGateway, "SOVEREIGN_HANDSHAKE_FAILED"},
	{settlement.ErrSettlementConflict, http.StatusServiceUnavailable, "SETTLEMENT_CONFLICT"},
	{settlement.ErrInsufficientLiquidity, http.StatusUnprocessableEntity, "INSUFFICIENT_LIQUIDITY"},
	{settlement.ErrInvalidSignature, http.StatusUnauthorized, "INVALID_SIGNATURE"},
	{settlement.ErrDuplicateTransaction, http.StatusConflict, "DUPLICATE_TRANSACTION"},
	{settlement.ErrTreasuryLocked, http.StatusLocked, "TREASURY_LOCKED"},
	{settlement.ErrUnauthorizedAuthority, http.StatusForbidden, "UNAUTHORIZED_AUTHORITY"},
	{settlement.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{settlement.ErrInvalidTransaction, http.StatusBadRequest, "INVALID_TRANSACTION"},
	{settlement.ErrUnknownAccount, http.StatusNotFound, "UNKNOWN_ACCOUNT"},
	{settlement.ErrAccountExists, http.StatusConflict, "ACCOUNT_EXISTS"},
	{audit.ErrUnknownAccount, http.StatusNotFound, "UNKNOWN_ACCOUNT"},
	{multisig.ErrDuplicateSignature, http.StatusConflict, "DUPLICATE_SIGNATURE"},
	{multisig.ErrUnauthorizedSigner, http.StatusForbidden, "UNAUTHORIZED_SIGNER"},
	{multisig.ErrProposalNotFound, http.StatusNotFound, "PROPOSAL_NOT_FOUND"},
	{multisig.ErrProposalClosed, http.StatusConflict, "PROPOSAL_CLOSED"},
	{multisig.ErrInsufficientSignatures, http.StatusConflict, "INSUFFICIENT_SIGNATURES"},
	{crypto.ErrVaultLocked, http.StatusLocked, "VAULT_LOCKED"},
	{wallet.ErrUnlockFailed, http.StatusUnauthorized, "UNLOCK_FAILED"},
	{wallet.ErrCooldown, http.StatusTooManyRequests, "COOLDOWN_ACTIVE"},
}

func errorStatus(err error) (int, string) {
	if crypto.IsFileExistsError(err) {
		return http.StatusConflict, "VAULT_EXISTS"
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (h *LedgerHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	ev := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = h.logger.Error()
	}
	ev.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Str("code", code).Msg("request failed")
	writeJSON(w, status, model.ErrorResponse{Error: err.Error(), Code: code})
}
