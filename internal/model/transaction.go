package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TransactionType classifies how a transaction moves value.
type TransactionType string

const (
	// TransactionTypeTransfer moves value between two accounts.
	TransactionTypeTransfer TransactionType = "TRANSFER"
	// TransactionTypeTreasury moves value between two treasury vaults.
	TransactionTypeTreasury TransactionType = "TREASURY"
	// TransactionTypeMint credits the receiver from an issuer; nothing is debited.
	TransactionTypeMint TransactionType = "MINT"
	// TransactionTypeBridge credits the receiver with value bridged in from outside.
	TransactionTypeBridge TransactionType = "BRIDGE"
	// TransactionTypeRedemption debits the sender; nothing is credited.
	TransactionTypeRedemption TransactionType = "REDEMPTION"
)

// Issues reports whether the type creates value without debiting a sender.
func (t TransactionType) Issues() bool {
	return t == TransactionTypeMint || t == TransactionTypeBridge
}

// Burns reports whether the type removes value without crediting a receiver.
func (t TransactionType) Burns() bool {
	return t == TransactionTypeRedemption
}

// AuthoritySourced reports whether the type is accepted on authority rather than signature.
func (t TransactionType) AuthoritySourced() bool {
	return t.Issues() || t.Burns()
}

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeTransfer, TransactionTypeTreasury, TransactionTypeMint,
		TransactionTypeBridge, TransactionTypeRedemption:
		return true
	}
	return false
}

// Transaction is an immutable value movement. Payload is the canonical string the signature covers.
type Transaction struct {
	ID         string          `json:"id"`
	Type       TransactionType `json:"type"`
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  int64           `json:"timestamp"` // unix millis
	Nonce      string          `json:"nonce"`
	Signature  string          `json:"signature,omitempty"`
	Payload    string          `json:"payload"`
}

// Touches reports whether accountID is the sender or the receiver.
func (t *Transaction) Touches(accountID string) bool {
	return t.SenderID == accountID || t.ReceiverID == accountID
}

// MirrorPath returns the deterministic mirror location of a transaction.
func MirrorPath(timestamp int64, id string) string {
	return fmt.Sprintf("ledger/tx-%d-%s.json", timestamp, id)
}

// MirrorPath returns the deterministic mirror location of t.
func (t *Transaction) MirrorPath() string {
	return MirrorPath(t.Timestamp, t.ID)
}

// RevisionRef points at a committed mirror revision.
type RevisionRef struct {
	Path      string `json:"path"`
	SHA       string `json:"sha"`
	CommitSHA string `json:"commitSha,omitempty"`
}

// LedgerEntry is the local ledger record of a committed transaction.
type LedgerEntry struct {
	Transaction
	MirrorRef   RevisionRef `json:"mirrorRef"`
	CommittedAt int64       `json:"committedAt"`
}

// MirrorRecord is the JSON document published to the mirror.
type MirrorRecord struct {
	Transaction
	PayloadVersion    int    `json:"payloadVersion"`
	SenderPublicKey   string `json:"senderPublicKey,omitempty"`
	ReceiverPublicKey string `json:"receiverPublicKey,omitempty"`
}

// SettledResult is returned once a transaction has been committed locally.
type SettledResult struct {
	Transaction     Transaction     `json:"transaction"`
	MirrorRef       RevisionRef     `json:"mirrorRef"`
	SenderBalance   decimal.Decimal `json:"senderBalance"`
	ReceiverBalance decimal.Decimal `json:"receiverBalance"`
	CommittedAt     int64           `json:"committedAt"`
	Resumed         bool            `json:"resumed,omitempty"`
}
