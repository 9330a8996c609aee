package wallet

import (
	"context"

	"github.com/AlexZinkM/sovereign-ledger/internal/common"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
)

// GetBalance gets the balance of an account, with a fiat estimate when a rate source is configured.
func (w *Wallet) GetBalance(ctx context.Context, accountID string) (*model.BalanceResponse, error) {
	account, err := w.ledger.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	resp := &model.BalanceResponse{
		AccountID: account.ID,
		Kind:      string(account.Kind),
		Balance:   common.FormatAmount(account.Balance),
		Locked:    account.Locked,
	}
	if !w.rates.Enabled() {
		return resp, nil
	}

	// The estimate is display only; a rate outage must not hide the balance.
	rate, err := w.rates.GetRate(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to get rate")
		return resp, nil
	}
	resp.Rate = rate.String()
	resp.Fiat = account.Balance.Mul(rate).StringFixed(2)
	resp.Currency = w.rates.Currency()
	return resp, nil
}
