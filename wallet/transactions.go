package wallet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AlexZinkM/sovereign-ledger/internal/common"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
)

// GetTransactions gets account history with filtering, newest first.
func (w *Wallet) GetTransactions(ctx context.Context, accountID string, req *model.LogRequest) (*model.LogResponse, error) {
	if req == nil {
		req = &model.LogRequest{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var minAmount, maxAmount *decimal.Decimal
	if req.MinAmount != nil {
		d, err := common.ParseAmount(*req.MinAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid minAmount: %w", err)
		}
		minAmount = &d
	}
	if req.MaxAmount != nil {
		d, err := common.ParseAmount(*req.MaxAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid maxAmount: %w", err)
		}
		maxAmount = &d
	}

	entries, err := w.ledger.History(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var totalIncome, totalSpent decimal.Decimal
	result := make([]model.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		direction := model.DirectionCredit
		if e.ReceiverID == accountID {
			direction = model.DirectionDebit
		}
		timestamp := time.UnixMilli(e.Timestamp).UTC()

		// Filter by type
		if req.Direction != nil && *req.Direction != direction {
			continue
		}

		// Filter by txId
		if req.TxID != nil && *req.TxID != e.ID {
			continue
		}

		// Filter by dates
		if req.From != nil && timestamp.Before(*req.From) {
			continue
		}
		if req.To != nil && timestamp.After(*req.To) {
			continue
		}

		// Filter by amount
		if minAmount != nil && e.Amount.LessThan(*minAmount) {
			continue
		}
		if maxAmount != nil && e.Amount.GreaterThan(*maxAmount) {
			continue
		}

		switch direction {
		case model.DirectionDebit:
			totalIncome = totalIncome.Add(e.Amount)
		case model.DirectionCredit:
			totalSpent = totalSpent.Add(e.Amount)
		}

		result = append(result, model.HistoryEntry{
			Direction:  direction,
			TxID:       e.ID,
			Type:       e.Type,
			From:       e.SenderID,
			To:         e.ReceiverID,
			Amount:     common.FormatAmount(e.Amount),
			Timestamp:  timestamp,
			MirrorPath: e.MirrorRef.Path,
		})
	}

	// Sort by time DESC (newest first)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	return &model.LogResponse{
		AccountID:    accountID,
		TotalIncome:  common.FormatFixed(totalIncome),
		TotalSpent:   common.FormatFixed(totalSpent),
		Transactions: result,
	}, nil
}
