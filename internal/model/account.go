package model

import "github.com/shopspring/decimal"

// AccountKind distinguishes identity accounts from pooled treasury vaults.
type AccountKind string

const (
	AccountKindIdentity AccountKind = "IDENTITY"
	AccountKindVault    AccountKind = "VAULT"
)

// Account is the local balance of record for an identity or treasury vault.
type Account struct {
	ID        string          `json:"id"`
	Kind      AccountKind     `json:"kind"`
	PublicKey string          `json:"publicKey,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	Genesis   decimal.Decimal `json:"genesis"` // stake the account was opened with
	Locked    bool            `json:"locked"`
	Version   int64           `json:"version"`
	CreatedAt int64           `json:"createdAt"`
	UpdatedAt int64           `json:"updatedAt"`
}

// IsVault reports whether the account is a treasury vault.
func (a *Account) IsVault() bool {
	return a.Kind == AccountKindVault
}
