package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AlexZinkM/sovereign-ledger/internal/common"
	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
)

// Pay signs a transfer from the unlocked identity and settles it.
func (w *Wallet) Pay(ctx context.Context, req model.PayRequest) (*model.PayResponse, error) {
	session := w.vault.Session()
	publicKey, ok := session.PublicKey()
	if !ok {
		return nil, crypto.ErrVaultLocked
	}
	from := session.AccountID()

	to := strings.TrimSpace(req.ToAccountID)
	if to == "" {
		return nil, fmt.Errorf("%w: recipient is required", settlement.ErrInvalidTransaction)
	}
	amount, err := common.ParsePositiveAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", settlement.ErrInvalidAmount, err)
	}

	// Check cooldown
	w.payMu.Lock()
	defer w.payMu.Unlock()

	if !w.lastPayTime.IsZero() && w.cfg.PayCooldown > 0 {
		if elapsed := w.now().Sub(w.lastPayTime); elapsed < w.cfg.PayCooldown {
			remaining := w.cfg.PayCooldown - elapsed
			return nil, fmt.Errorf("%w, please wait %v", ErrCooldown, remaining.Round(time.Second))
		}
	}

	nonce, err := crypto.GenerateNonce()
	if err != nil {
		return nil, err
	}
	tx := model.Transaction{
		ID:         uuid.NewString(),
		Type:       model.TransactionTypeTransfer,
		SenderID:   from,
		ReceiverID: to,
		Amount:     amount,
		Timestamp:  w.now().UnixMilli(),
		Nonce:      nonce,
	}
	tx.Payload = crypto.BuildPayload(tx.SenderID, tx.ReceiverID, tx.Amount, tx.Timestamp, tx.Nonce)
	if tx.Signature, err = session.Sign(tx.Payload); err != nil {
		return nil, err
	}

	result, err := w.ledger.Submit(ctx, tx, settlement.Identity{ID: from, PublicKey: publicKey})
	if err != nil {
		return nil, err
	}

	// Save transaction time
	w.lastPayTime = w.now()

	return &model.PayResponse{
		TxID:      result.Transaction.ID,
		MirrorRef: result.MirrorRef.Path,
		Balance:   common.FormatAmount(result.SenderBalance),
	}, nil
}
