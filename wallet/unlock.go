package wallet

import (
	"fmt"

	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
)

// Unlock opens the vault file with pin and loads its key into the session.
// pin must be []byte for security (caller should zero it after use)
func (w *Wallet) Unlock(pin []byte) (*model.IdentityResponse, error) {
	file, err := crypto.ReadVaultFile(w.cfg.VaultFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault file: %w", err)
	}

	payload := w.vault.Open(&file.EncryptedVault, pin)
	if payload == nil {
		w.logger.Warn().Msg("vault unlock failed")
		return nil, ErrUnlockFailed
	}
	payload.Phrase = ""

	// Refuse a vault whose sealed phrase does not match the public header.
	if key, _ := w.vault.CurrentPublicKey(); key != file.PublicKey {
		w.vault.ClearSession()
		return nil, ErrUnlockFailed
	}

	w.logger.Info().Str("account_id", file.AccountID).Msg("vault unlocked")
	return w.Identity(), nil
}

// Lock purges the signing key from memory.
func (w *Wallet) Lock() {
	w.vault.ClearSession()
	w.logger.Info().Msg("vault locked")
}

// Identity reports the unlocked identity, if any.
func (w *Wallet) Identity() *model.IdentityResponse {
	key, ok := w.vault.CurrentPublicKey()
	if !ok {
		return &model.IdentityResponse{}
	}
	return &model.IdentityResponse{
		Unlocked:  true,
		AccountID: w.vault.Session().AccountID(),
		PublicKey: key,
	}
}
