package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/AlexZinkM/sovereign-ledger/internal/model"
)

const (
	// PBKDF2-SHA256 parameters for the PIN-sealed vault.
	//
	// LegacyIterations is what envelopes without an "iter" field were sealed
	// with. It is far too low for a 6 digit PIN and is only accepted on open;
	// cmd/rekey_vault re-seals such envelopes.
	LegacyIterations  = 1000
	DefaultIterations = 210_000
	// MaxIterations bounds the count an envelope may ask for on open.
	MaxIterations = 10 * DefaultIterations

	vaultKeyLen = 32
	saltLen     = 16
	ivLen       = 12
)

// ErrRekeyFailed is returned when an envelope cannot be opened for re-sealing.
var ErrRekeyFailed = errors.New("vault could not be opened with this PIN")

// KeyVault seals recovery phrases under a PIN and owns the session the
// unlocked identity signs with.
type KeyVault struct {
	iterations int
	session    *Session
}

// NewKeyVault creates a vault sealing with the given PBKDF2 iteration count.
func NewKeyVault(iterations int) *KeyVault {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &KeyVault{
		iterations: iterations,
		session:    NewSession(),
	}
}

// Session returns the signing session of this vault.
func (v *KeyVault) Session() *Session {
	return v.session
}

// Seal encrypts payload under pin and activates the identity derived from its phrase.
// pin must be []byte for security (caller should zero it after use)
func (v *KeyVault) Seal(payload *model.VaultPayload, pin []byte) (*model.EncryptedVault, error) {
	kp, err := DeriveKeyPair(payload.Phrase)
	if err != nil {
		return nil, err
	}
	defer kp.Wipe()

	envelope, err := sealPayload(payload, pin, v.iterations)
	if err != nil {
		return nil, err
	}

	v.session.activate(kp, payload.AccountID())
	return envelope, nil
}

// Open decrypts envelope with pin and activates the identity on success.
// It returns nil on any failure: wrong PIN, corrupt envelope, or a phrase that
// fails checksum validation are indistinguishable to the caller.
func (v *KeyVault) Open(envelope *model.EncryptedVault, pin []byte) *model.VaultPayload {
	payload, err := openPayload(envelope, pin)
	if err != nil {
		return nil
	}

	kp, err := DeriveKeyPair(payload.Phrase)
	if err != nil {
		return nil
	}
	defer kp.Wipe()

	v.session.activate(kp, payload.AccountID())
	return payload
}

// Rekey opens envelope with pin and seals the same payload again with the
// vault's iteration count. The session is left untouched.
func (v *KeyVault) Rekey(envelope *model.EncryptedVault, pin []byte) (*model.EncryptedVault, error) {
	payload, err := openPayload(envelope, pin)
	if err != nil {
		return nil, ErrRekeyFailed
	}
	defer func() { payload.Phrase = "" }()
	if !ValidPhrase(payload.Phrase) {
		return nil, ErrRekeyFailed
	}
	return sealPayload(payload, pin, v.iterations)
}

// CurrentPublicKey returns the public key of the most recently sealed or opened identity.
func (v *KeyVault) CurrentPublicKey() (string, bool) {
	return v.session.PublicKey()
}

// ClearSession purges the signing key from memory. The sealed vault is untouched.
func (v *KeyVault) ClearSession() {
	v.session.Clear()
}

func sealPayload(payload *model.VaultPayload, pin []byte, iterations int) (*model.EncryptedVault, error) {
	if len(pin) == 0 {
		return nil, errors.New("pin cannot be empty")
	}
	sealed := *payload
	if sealed.CreatedAt == "" {
		sealed.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	// Generate salt and IV
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	iv := make([]byte, ivLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	// Derive key from PIN
	key := pbkdf2.Key(pin, salt, iterations, vaultKeyLen, sha256.New)
	defer clear(key)

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// Serialize payload
	plaintext, err := json.Marshal(&sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vault payload: %w", err)
	}
	defer clear(plaintext) // wipe plaintext bytes from memory

	ciphertext := aesGCM.Seal(nil, iv, plaintext, nil)

	return &model.EncryptedVault{
		IV:         base64.StdEncoding.EncodeToString(iv),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Data:       base64.StdEncoding.EncodeToString(ciphertext),
		Iterations: iterations,
	}, nil
}

func openPayload(envelope *model.EncryptedVault, pin []byte) (*model.VaultPayload, error) {
	if envelope == nil || len(pin) == 0 {
		return nil, errors.New("nothing to open")
	}

	// Decode salt, IV and ciphertext
	salt, err := base64.StdEncoding.DecodeString(envelope.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	iv, err := base64.StdEncoding.DecodeString(envelope.IV)
	if err != nil || len(iv) != ivLen {
		return nil, errors.New("failed to decode iv")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	iterations := envelope.Iterations
	if iterations == 0 {
		iterations = LegacyIterations
	}
	if iterations < 0 || iterations > MaxIterations {
		return nil, fmt.Errorf("iteration count %d out of range", iterations)
	}

	key := pbkdf2.Key(pin, salt, iterations, vaultKeyLen, sha256.New)
	defer clear(key)

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, errors.New("invalid pin")
	}
	defer clear(plaintext) // wipe decrypted bytes from memory

	var payload model.VaultPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vault payload: %w", err)
	}
	if !ValidPhrase(payload.Phrase) {
		return nil, ErrInvalidPhrase
	}
	return &payload, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
