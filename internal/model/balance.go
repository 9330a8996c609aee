package model

// BalanceResponse represents response for GET /accounts/{id}/balance
type BalanceResponse struct {
	AccountID string `json:"accountId"`
	Kind      string `json:"kind"`
	Balance   string `json:"balance"`
	Locked    bool   `json:"locked"`
	Rate      string `json:"rate,omitempty"`
	Fiat      string `json:"fiat,omitempty"`
	Currency  string `json:"currency,omitempty"`
}
