package crypto

import (
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// ErrVaultLocked is returned when signing is attempted with no key loaded.
var ErrVaultLocked = errors.New("vault locked: no signing key loaded")

// Session holds the signing key of the currently unlocked identity.
// It is passed explicitly to whatever needs to sign; nothing else can reach the key.
type Session struct {
	mu        sync.RWMutex
	key       solana.PrivateKey
	publicKey string
	accountID string
}

// NewSession returns an empty, locked session.
func NewSession() *Session {
	return &Session{}
}

func (s *Session) activate(kp *KeyPair, accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.key)
	s.key = make(solana.PrivateKey, len(kp.PrivateKey))
	copy(s.key, kp.PrivateKey)
	s.publicKey = kp.EncodedPublicKey()
	s.accountID = accountID
}

// Sign signs payload with the session key.
func (s *Session) Sign(payload string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return "", ErrVaultLocked
	}
	return Sign(s.key, payload)
}

// PublicKey returns the encoded public key of the active identity.
func (s *Session) PublicKey() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publicKey, s.key != nil
}

// AccountID returns the account id of the active identity, or "" when locked.
func (s *Session) AccountID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountID
}

// Clear zeroes and drops the key material. Safe to call at any time.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.key)
	s.key = nil
	s.publicKey = ""
	s.accountID = ""
}
