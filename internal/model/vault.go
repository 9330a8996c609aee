package model

// EncryptedVault is the sealed key vault envelope.
// Iterations is omitted by legacy envelopes, which were sealed with 1000 rounds.
type EncryptedVault struct {
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
	Data       string `json:"data"`
	Iterations int    `json:"iter,omitempty"`
}

// VaultFile represents .vault file structure
type VaultFile struct {
	AccountID string `json:"accountId"`
	PublicKey string `json:"publicKey"`
	Address   string `json:"address"` // base58 form of the same key
	QR        string `json:"QR"`
	EncryptedVault
}

// VaultPayload represents decrypted vault data
type VaultPayload struct {
	Phrase    string            `json:"phrase"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"createdAt,omitempty"`
}

// MetadataAccountID is the metadata key holding the identity's account id.
const MetadataAccountID = "accountId"

// AccountID returns the account id recorded in the payload metadata.
func (p *VaultPayload) AccountID() string {
	if p == nil || p.Metadata == nil {
		return ""
	}
	return p.Metadata[MetadataAccountID]
}
