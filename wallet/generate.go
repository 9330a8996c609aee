package wallet

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
)

// GenerateIdentity creates a new identity: a fresh recovery phrase, a vault
// file sealed under pin, and a ledger account opened with the genesis stake.
// The phrase is returned once and is not stored anywhere in plaintext.
// pin must be []byte for security (caller should zero it after use)
func (w *Wallet) GenerateIdentity(ctx context.Context, accountID string, pin []byte) (*model.GenerateResponse, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", settlement.ErrInvalidTransaction)
	}
	if filepath.Ext(w.cfg.VaultFilePath) != crypto.VaultFileExt {
		return nil, fmt.Errorf("file must have %s extension", crypto.VaultFileExt)
	}
	if crypto.VaultFileExists(w.cfg.VaultFilePath) {
		return nil, &crypto.FileExistsError{Message: "file is not empty"}
	}
	if _, err := w.ledger.Account(ctx, accountID); err == nil {
		return nil, fmt.Errorf("%w: %s", settlement.ErrAccountExists, accountID)
	} else if !errors.Is(err, settlement.ErrUnknownAccount) {
		return nil, err
	}

	phrase, err := crypto.GenerateSeedPhrase()
	if err != nil {
		return nil, err
	}
	kp, err := crypto.DeriveKeyPair(phrase)
	if err != nil {
		return nil, err
	}
	defer kp.Wipe()

	qrCode, err := generateQRCode(kp.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	envelope, err := w.vault.Seal(&model.VaultPayload{
		Phrase:    phrase,
		Metadata:  map[string]string{model.MetadataAccountID: accountID},
		CreatedAt: w.now().Format(time.RFC3339),
	}, pin)
	if err != nil {
		return nil, fmt.Errorf("failed to seal vault: %w", err)
	}

	err = crypto.WriteVaultFile(w.cfg.VaultFilePath, &model.VaultFile{
		AccountID:      accountID,
		PublicKey:      kp.EncodedPublicKey(),
		Address:        kp.Address(),
		QR:             qrCode,
		EncryptedVault: *envelope,
	})
	if err != nil {
		w.vault.ClearSession()
		return nil, err
	}

	if _, err := w.ledger.OpenAccount(ctx, settlement.AccountSpec{
		ID:        accountID,
		Kind:      model.AccountKindIdentity,
		PublicKey: kp.EncodedPublicKey(),
		Genesis:   w.cfg.GenesisStake,
	}); err != nil {
		// The vault would point at an account that is not ours.
		w.vault.ClearSession()
		_ = os.Remove(w.cfg.VaultFilePath)
		return nil, err
	}

	w.logger.Info().Str("account_id", accountID).Str("address", kp.Address()).Msg("identity generated")
	return &model.GenerateResponse{
		Success:   true,
		Message:   "Identity generated. Write down the recovery phrase, it will not be shown again.",
		AccountID: accountID,
		PublicKey: kp.EncodedPublicKey(),
		Address:   kp.Address(),
		Phrase:    phrase,
	}, nil
}

// generateQRCode generates QR code of address in base64
func generateQRCode(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	// Get PNG image
	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
