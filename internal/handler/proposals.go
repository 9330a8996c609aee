package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/AlexZinkM/sovereign-ledger/internal/common"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/multisig"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
)

// Propose handles POST /proposals
// @Summary      Request treasury transfer
// @Description  Settles a vault to vault transfer below the multi-sig threshold, otherwise creates a proposal awaiting signatures
// @Tags         proposals
// @Accept       json
// @Produce      json
// @Param        request  body      model.ProposeRequest  true  "Transfer"
// @Success      200      {object}  model.TransferOutcome
// @Router       /proposals [post]
func (h *LedgerHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req model.ProposeRequest
	if !decode(w, r, &req) {
		return
	}
	outcome, err := h.gate.RequestTransfer(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// GetProposal handles GET /proposals/{id}
// @Summary      Get proposal
// @Tags         proposals
// @Produce      json
// @Param        id   path      string  true  "Proposal id"
// @Success      200  {object}  model.MultiSigProposal
// @Failure      404  {object}  model.ErrorResponse
// @Router       /proposals/{id} [get]
func (h *LedgerHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.gate.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

// SignProposal handles POST /proposals/{id}/signatures
// @Summary      Sign proposal
// @Description  Adds a signer's approval; the transfer executes once enough signers approved and the source vault is unlocked
// @Tags         proposals
// @Accept       json
// @Produce      json
// @Param        id                   path      string                     true   "Proposal id"
// @Param        request              body      model.SignProposalRequest  true   "Signer"
// @Param        X-Signer-Capability  header    string                     false  "Signer capability token"
// @Success      200      {object}  model.MultiSigProposal
// @Failure      403      {object}  model.ErrorResponse
// @Failure      409      {object}  model.ErrorResponse
// @Router       /proposals/{id}/signatures [post]
func (h *LedgerHandler) SignProposal(w http.ResponseWriter, r *http.Request) {
	var req model.SignProposalRequest
	if !decode(w, r, &req) {
		return
	}
	if h.signers != nil && !h.signers.Verify(req.SignerID, r.Header.Get(HeaderSignerCapability)) {
		h.writeError(w, r, fmt.Errorf("%w: %s did not present its capability", multisig.ErrUnauthorizedSigner, req.SignerID))
		return
	}
	proposal, err := h.gate.Sign(r.Context(), chi.URLParam(r, "id"), req.SignerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

// ExecuteProposal handles POST /proposals/{id}/execute
// @Summary      Execute proposal
// @Description  Retries execution of a fully signed proposal
// @Tags         proposals
// @Produce      json
// @Param        id             path      string  true   "Proposal id"
// @Param        X-Admin-Token  header    string  false  "Admin token"
// @Success      200  {object}  model.MultiSigProposal
// @Failure      401  {object}  model.ErrorResponse
// @Failure      423  {object}  model.ErrorResponse
// @Router       /proposals/{id}/execute [post]
func (h *LedgerHandler) ExecuteProposal(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.gate.Execute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

// OpenVault handles POST /vaults
// @Summary      Open treasury vault
// @Description  Opens a treasury vault account with its genesis stake
// @Tags         vaults
// @Accept       json
// @Produce      json
// @Param        request        body      model.OpenVaultRequest  true   "Vault"
// @Param        X-Admin-Token  header    string                  false  "Admin token"
// @Success      201  {object}  model.Account
// @Failure      401  {object}  model.ErrorResponse
// @Failure      409  {object}  model.ErrorResponse
// @Router       /vaults [post]
func (h *LedgerHandler) OpenVault(w http.ResponseWriter, r *http.Request) {
	var req model.OpenVaultRequest
	if !decode(w, r, &req) {
		return
	}

	genesis := decimal.Zero
	if req.Genesis != "" {
		var err error
		if genesis, err = common.ParseAmount(req.Genesis); err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %w", settlement.ErrInvalidAmount, err))
			return
		}
	}
	account, err := h.settlement.OpenAccount(r.Context(), settlement.AccountSpec{
		ID:      req.ID,
		Kind:    model.AccountKindVault,
		Genesis: genesis,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// LockVault handles POST /vaults/{id}/lock
// @Summary      Lock treasury vault
// @Tags         vaults
// @Produce      json
// @Param        id             path      string  true   "Vault id"
// @Param        X-Admin-Token  header    string  false  "Admin token"
// @Success      200  {object}  model.Account
// @Failure      401  {object}  model.ErrorResponse
// @Router       /vaults/{id}/lock [post]
func (h *LedgerHandler) LockVault(w http.ResponseWriter, r *http.Request) {
	h.setVaultLock(w, r, true)
}

// UnlockVault handles POST /vaults/{id}/unlock
// @Summary      Unlock treasury vault
// @Tags         vaults
// @Produce      json
// @Param        id             path      string  true   "Vault id"
// @Param        X-Admin-Token  header    string  false  "Admin token"
// @Success      200  {object}  model.Account
// @Failure      401  {object}  model.ErrorResponse
// @Router       /vaults/{id}/unlock [post]
func (h *LedgerHandler) UnlockVault(w http.ResponseWriter, r *http.Request) {
	h.setVaultLock(w, r, false)
}

func (h *LedgerHandler) setVaultLock(w http.ResponseWriter, r *http.Request, locked bool) {
	account, err := h.settlement.SetVaultLock(r.Context(), chi.URLParam(r, "id"), locked)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
