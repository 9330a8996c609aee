package model

import (
	"fmt"
	"time"

	"github.com/AlexZinkM/sovereign-ledger/internal/common"
)

// Direction of a history entry relative to the queried account.
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"  // value received
	DirectionCredit Direction = "CREDIT" // value sent
)

// HistoryEntry is one transaction as seen from an account
type HistoryEntry struct {
	Direction  Direction       `json:"direction"`
	TxID       string          `json:"txId"`
	Type       TransactionType `json:"type"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Amount     string          `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
	MirrorPath string          `json:"mirrorPath"`
}

// LogResponse represents response for GET /accounts/{id}/transactions
type LogResponse struct {
	AccountID    string         `json:"accountId"`
	TotalIncome  string         `json:"total_income"`
	TotalSpent   string         `json:"total_spent"`
	Transactions []HistoryEntry `json:"transactions"`
}

// LogRequest represents filter parameters for GET /accounts/{id}/transactions
type LogRequest struct {
	Direction *Direction `form:"type"`
	TxID      *string    `form:"txId"`
	From      *time.Time `form:"from"`
	To        *time.Time `form:"to"`
	MinAmount *string    `form:"minAmount"`
	MaxAmount *string    `form:"maxAmount"`
}

// Validate validates LogRequest filter parameters.
func (r *LogRequest) Validate() error {
	if r.Direction != nil && *r.Direction != DirectionDebit && *r.Direction != DirectionCredit {
		return fmt.Errorf("type must be DEBIT or CREDIT")
	}
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return fmt.Errorf("to date must be after or equal to from date")
	}
	if r.MinAmount != nil && r.MaxAmount != nil {
		cmp, err := common.CompareAmounts(*r.MinAmount, *r.MaxAmount)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		if cmp == 1 {
			return fmt.Errorf("minAmount must be less than or equal to maxAmount")
		}
	}
	return nil
}
