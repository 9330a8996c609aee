package model

import "github.com/shopspring/decimal"

// AuditVerdict is the final outcome of a reconciliation audit.
type AuditVerdict string

const (
	AuditVerified       AuditVerdict = "VERIFIED"
	AuditMirrorMismatch AuditVerdict = "MIRROR_MISMATCH"
)

// IntegrityBreach records a transaction that failed verification during an audit.
type IntegrityBreach struct {
	TxID   string `json:"txId"`
	Reason string `json:"reason"`
}

// AuditLogLine is one step of the replay.
type AuditLogLine struct {
	TxID           string          `json:"txId"`
	Delta          decimal.Decimal `json:"delta"`
	Accepted       bool            `json:"accepted"`
	Authority      bool            `json:"authority"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
	Note           string          `json:"note,omitempty"`
}

// AuditReport is the result of replaying an account's history.
type AuditReport struct {
	AccountID      string            `json:"accountId"`
	GenesisStake   decimal.Decimal   `json:"genesisStake"`
	RunningBalance decimal.Decimal   `json:"runningBalance"`
	StoredBalance  decimal.Decimal   `json:"storedBalance"`
	Difference     decimal.Decimal   `json:"difference"`
	Verified       int               `json:"verified"`
	Total          int               `json:"total"`
	Breaches       []IntegrityBreach `json:"breaches"`
	Unmirrored     []string          `json:"unmirrored,omitempty"`
	Log            []AuditLogLine    `json:"log"`
	Verdict        AuditVerdict      `json:"verdict"`
}
