package model

// PayRequest represents request for POST /pay
type PayRequest struct {
	ToAccountID string `json:"toAccountId"`
	Amount      string `json:"amount"`
}

// SubmitRequest represents request for POST /transactions.
// Identity senders supply a signature; authority senders present a capability header instead.
type SubmitRequest struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Amount     string `json:"amount"`
	Timestamp  int64  `json:"timestamp"`
	Nonce      string `json:"nonce"`
	Signature  string `json:"signature"`
	PublicKey  string `json:"publicKey"`
}

// PayResponse represents response for POST /pay
type PayResponse struct {
	TxID      string `json:"txId"`
	MirrorRef string `json:"mirrorRef"`
	Balance   string `json:"balance"`
}

// ProposeRequest represents request for POST /proposals
type ProposeRequest struct {
	FromVaultID string `json:"fromVaultId"`
	ToVaultID   string `json:"toVaultId"`
	Amount      string `json:"amount"`
	Reason      string `json:"reason"`
	ProposerID  string `json:"proposerId"`
}

// SignProposalRequest represents request for POST /proposals/{id}/signatures
type SignProposalRequest struct {
	SignerID string `json:"signerId"`
}

// OpenVaultRequest represents request for POST /vaults
type OpenVaultRequest struct {
	ID      string `json:"id"`
	Genesis string `json:"genesis"`
}
