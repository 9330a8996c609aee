package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AlexZinkM/sovereign-ledger/internal/common"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
)

const (
	// HeaderAuthorityID names the authority acting on a transaction; it defaults to the sender.
	HeaderAuthorityID = "X-Authority-Id"
	// HeaderAuthorityCapability carries the authority's capability token.
	HeaderAuthorityCapability = "X-Authority-Capability"
	// HeaderSignerCapability carries a multi-sig signer's capability token.
	HeaderSignerCapability = "X-Signer-Capability"
	// HeaderAdminToken carries the token guarding vault management.
	HeaderAdminToken = "X-Admin-Token"
)

// Submit handles POST /transactions
// @Summary      Submit transaction
// @Description  Settles a pre-signed transaction. Authorities present a capability header instead of a signature.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        request                 body      model.SubmitRequest  true   "Transaction"
// @Param        X-Authority-Id          header    string               false  "Authority id (defaults to senderId)"
// @Param        X-Authority-Capability  header    string               false  "Authority capability token"
// @Success      200  {object}  model.SettledResult
// @Failure      401  {object}  model.ErrorResponse
// @Failure      422  {object}  model.ErrorResponse
// @Failure      502  {object}  model.ErrorResponse
// @Router       /transactions [post]
func (h *LedgerHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if !decode(w, r, &req) {
		return
	}

	amount, err := common.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", settlement.ErrInvalidAmount, err))
		return
	}
	tx := model.Transaction{
		ID:         req.ID,
		Type:       model.TransactionType(req.Type),
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Amount:     amount,
		Timestamp:  req.Timestamp,
		Nonce:      req.Nonce,
		Signature:  req.Signature,
	}

	var sender settlement.Sender = settlement.Identity{ID: req.SenderID, PublicKey: req.PublicKey}
	if capability := r.Header.Get(HeaderAuthorityCapability); capability != "" {
		id := r.Header.Get(HeaderAuthorityID)
		if id == "" {
			id = req.SenderID
		}
		sender = settlement.Authority{ID: id, Capability: capability}
	}

	result, err := h.settlement.Submit(r.Context(), tx, sender)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Pay handles POST /pay
// @Summary      Pay from the unlocked identity
// @Description  Signs a transfer with the unlocked identity and settles it
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        request  body      model.PayRequest  true  "Payment data"
// @Success      200      {object}  model.PayResponse
// @Failure      423      {object}  model.ErrorResponse
// @Failure      429      {object}  model.ErrorResponse
// @Router       /pay [post]
func (h *LedgerHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req model.PayRequest
	if !decode(w, r, &req) {
		return
	}

	payResp, err := h.wallet.Pay(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payResp)
}

// GetBalance handles GET /accounts/{id}/balance
// @Summary      Get account balance
// @Description  Gets the account balance with a fiat estimate when a rate source is configured
// @Tags         accounts
// @Produce      json
// @Param        id   path      string  true  "Account id"
// @Success      200  {object}  model.BalanceResponse
// @Failure      404  {object}  model.ErrorResponse
// @Router       /accounts/{id}/balance [get]
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.wallet.GetBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// TransactionHistory handles GET /accounts/{id}/transactions
// @Summary      Get account transactions
// @Description  Gets committed transactions of an account with filtering, newest first
// @Tags         accounts
// @Produce      json
// @Param        id         path      string   true   "Account id"
// @Param        type       query     string   false  "DEBIT (received) or CREDIT (sent)"
// @Param        txId       query     string   false  "Transaction ID"
// @Param        from       query     string   false  "Start date (YYYY-MM-DD)"
// @Param        to         query     string   false  "End date (YYYY-MM-DD)"
// @Param        minAmount  query     string   false  "Minimum amount"
// @Param        maxAmount  query     string   false  "Maximum amount"
// @Success      200  {object}  model.LogResponse
// @Router       /accounts/{id}/transactions [get]
func (h *LedgerHandler) TransactionHistory(w http.ResponseWriter, r *http.Request) {
	var req model.LogRequest
	query := r.URL.Query()

	// Parse date parameters (YYYY-MM-DD)
	const dateLayout = "2006-01-02"
	if fromStr := query.Get("from"); fromStr != "" {
		t, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid from date: use YYYY-MM-DD (e.g. 2006-01-02)", Code: "BAD_REQUEST"})
			return
		}
		req.From = &t
	}
	if toStr := query.Get("to"); toStr != "" {
		t, err := time.Parse(dateLayout, toStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid to date: use YYYY-MM-DD (e.g. 2006-01-02)", Code: "BAD_REQUEST"})
			return
		}
		// End of day so filter is inclusive
		t = t.Add(24*time.Hour - time.Nanosecond)
		req.To = &t
	}

	if typeStr := query.Get("type"); typeStr != "" {
		direction := model.Direction(typeStr)
		req.Direction = &direction
	}
	if txID := query.Get("txId"); txID != "" {
		req.TxID = &txID
	}
	if minAmount := query.Get("minAmount"); minAmount != "" {
		req.MinAmount = &minAmount
	}
	if maxAmount := query.Get("maxAmount"); maxAmount != "" {
		req.MaxAmount = &maxAmount
	}

	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}

	logResp, err := h.wallet.GetTransactions(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logResp)
}

// Audit handles GET /accounts/{id}/audit
// @Summary      Audit account
// @Description  Replays the account history from its genesis stake, verifying every signature, and compares the result with the stored balance
// @Tags         accounts
// @Produce      json
// @Param        id   path      string  true  "Account id"
// @Success      200  {object}  model.AuditReport
// @Failure      404  {object}  model.ErrorResponse
// @Router       /accounts/{id}/audit [get]
func (h *LedgerHandler) Audit(w http.ResponseWriter, r *http.Request) {
	report, err := h.auditor.Audit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
