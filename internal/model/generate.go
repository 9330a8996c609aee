package model

// GenerateRequest represents request for POST /identity/genesis
type GenerateRequest struct {
	AccountID string `json:"accountId"`
	PIN       string `json:"pin"`
}

// GenerateResponse represents response for POST /identity/genesis.
// Phrase is returned exactly once and never stored in plaintext.
type GenerateResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	AccountID string `json:"accountId,omitempty"`
	PublicKey string `json:"publicKey,omitempty"`
	Address   string `json:"address,omitempty"`
	Phrase    string `json:"phrase,omitempty"`
}

// UnlockRequest represents request for POST /identity/unlock
type UnlockRequest struct {
	PIN string `json:"pin"`
}

// IdentityResponse represents response for GET /identity
type IdentityResponse struct {
	Unlocked  bool   `json:"unlocked"`
	AccountID string `json:"accountId,omitempty"`
	PublicKey string `json:"publicKey,omitempty"`
}
