package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/AlexZinkM/sovereign-ledger/internal/common"
)

const (
	// PayloadVersion identifies the canonical payload layout produced by BuildPayload.
	// Any change to field order, delimiter or amount rendering must bump it.
	PayloadVersion = 1

	payloadDelimiter = ":"
	nonceLen         = 16
)

// BuildPayload returns the canonical string a transaction signature covers:
// senderId:receiverId:amount:timestampMillis:nonce
func BuildPayload(senderID, receiverID string, amount decimal.Decimal, timestamp int64, nonce string) string {
	return strings.Join([]string{
		senderID,
		receiverID,
		common.FormatAmount(amount),
		strconv.FormatInt(timestamp, 10),
		nonce,
	}, payloadDelimiter)
}

// GenerateNonce returns a random base64 value, unique per signing operation.
func GenerateNonce() (string, error) {
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce), nil
}

// Sign produces a detached base64 signature over the UTF-8 bytes of payload.
func Sign(key solana.PrivateKey, payload string) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", ErrVaultLocked
	}
	sig, err := key.Sign([]byte(payload))
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig[:]), nil
}

// Verify reports whether signature is a valid signature of payload under publicKey.
// Malformed input of any kind yields false.
func Verify(payload, signature, publicKey string) bool {
	pub, err := DecodePublicKey(publicKey)
	if err != nil {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(raw) != ed25519.SignatureSize {
		return false
	}
	var sig solana.Signature
	copy(sig[:], raw)
	return sig.Verify(pub, []byte(payload))
}
