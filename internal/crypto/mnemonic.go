package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

const (
	// PublicKeyPrefix tags encoded public keys: "SOV-" + base64(raw key).
	PublicKeyPrefix = "SOV-"

	entropyBits = 128 // 12 words
)

// ErrInvalidPhrase is returned when a recovery phrase fails word list or checksum validation.
var ErrInvalidPhrase = errors.New("invalid recovery phrase")

// KeyPair is an ed25519 signing key pair derived from a recovery phrase.
type KeyPair struct {
	PublicKey  solana.PublicKey
	PrivateKey solana.PrivateKey
}

// EncodedPublicKey returns the prefixed base64 form used on transactions and accounts.
func (k *KeyPair) EncodedPublicKey() string {
	return EncodePublicKey(k.PublicKey)
}

// Address returns the base58 form of the public key.
func (k *KeyPair) Address() string {
	return k.PublicKey.String()
}

// Wipe zeroes the secret key.
func (k *KeyPair) Wipe() {
	clear(k.PrivateKey)
}

// GenerateSeedPhrase produces a fresh checksum-valid 12 word recovery phrase.
func GenerateSeedPhrase() (string, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer clear(entropy)

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to build mnemonic: %w", err)
	}
	return phrase, nil
}

// ValidPhrase reports whether phrase passes word list and checksum validation.
func ValidPhrase(phrase string) bool {
	return bip39.IsMnemonicValid(normalizePhrase(phrase))
}

// DeriveKeyPair deterministically derives the identity key pair from a recovery phrase.
//
// The phrase is expanded into the 64 byte BIP-39 seed (empty passphrase) and
// only the first 32 bytes are used as the ed25519 seed. Existing recovery
// phrases depend on this exact derivation.
func DeriveKeyPair(phrase string) (*KeyPair, error) {
	seed, err := bip39.NewSeedWithErrorChecking(normalizePhrase(phrase), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhrase, err)
	}
	defer clear(seed)

	privateKey := solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize]))
	return &KeyPair{
		PublicKey:  privateKey.PublicKey(),
		PrivateKey: privateKey,
	}, nil
}

// EncodePublicKey renders a public key as PublicKeyPrefix + base64.
func EncodePublicKey(pub solana.PublicKey) string {
	return PublicKeyPrefix + base64.StdEncoding.EncodeToString(pub[:])
}

// DecodePublicKey strips PublicKeyPrefix and decodes the raw key.
func DecodePublicKey(encoded string) (solana.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, PublicKeyPrefix))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return solana.PublicKey{}, fmt.Errorf("invalid public key length %d", len(raw))
	}
	return solana.PublicKeyFromBytes(raw), nil
}

func normalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}
