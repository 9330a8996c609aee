package handler

import (
	"net/http"

	"github.com/AlexZinkM/sovereign-ledger/internal/model"
)

// pinFrom returns the PIN of the request, or the one prompted at startup.
// The caller must clear the result.
func (h *LedgerHandler) pinFrom(pin string) ([]byte, error) {
	if pin != "" {
		return []byte(pin), nil
	}
	return h.pin()
}

// Generate handles POST /identity/genesis
// @Summary      Generate new identity
// @Description  Generates a recovery phrase, seals it into the vault file and opens the account with the genesis stake. The phrase is returned once.
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request  body      model.GenerateRequest  true  "Account id and PIN"
// @Success      200      {object}  model.GenerateResponse
// @Failure      409      {object}  model.ErrorResponse
// @Router       /identity/genesis [post]
func (h *LedgerHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if !decode(w, r, &req) {
		return
	}

	pin, err := h.pinFrom(req.PIN)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "PIN_REQUIRED"})
		return
	}
	defer clear(pin) // Always clear PIN from memory

	resp, err := h.wallet.GenerateIdentity(r.Context(), req.AccountID, pin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Unlock handles POST /identity/unlock
// @Summary      Unlock identity
// @Description  Opens the vault file with the PIN and loads the signing key into memory
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request  body      model.UnlockRequest  true  "PIN"
// @Success      200      {object}  model.IdentityResponse
// @Failure      401      {object}  model.ErrorResponse
// @Router       /identity/unlock [post]
func (h *LedgerHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req model.UnlockRequest
	if !decode(w, r, &req) {
		return
	}

	pin, err := h.pinFrom(req.PIN)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "PIN_REQUIRED"})
		return
	}
	defer clear(pin)

	resp, err := h.wallet.Unlock(pin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Lock handles POST /identity/lock
// @Summary      Lock identity
// @Description  Purges the signing key from memory
// @Tags         identity
// @Produce      json
// @Success      200  {object}  model.IdentityResponse
// @Router       /identity/lock [post]
func (h *LedgerHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.wallet.Lock()
	writeJSON(w, http.StatusOK, h.wallet.Identity())
}

// Identity handles GET /identity
// @Summary      Current identity
// @Tags         identity
// @Produce      json
// @Success      200  {object}  model.IdentityResponse
// @Router       /identity [get]
func (h *LedgerHandler) Identity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wallet.Identity())
}
