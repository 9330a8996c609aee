package model

// IntentStatus tracks a settlement through publish and commit.
type IntentStatus string

const (
	IntentPending   IntentStatus = "PENDING"   // recorded, mirror publish not confirmed
	IntentPublished IntentStatus = "PUBLISHED" // durable on the mirror, not yet committed locally
	IntentCommitted IntentStatus = "COMMITTED"
	IntentAborted   IntentStatus = "ABORTED" // publish failed; the id may be resubmitted
	IntentVoided    IntentStatus = "VOIDED"  // rejected after publish; the mirror record has no local effect
)

// SettlementIntent is written before the mirror publish so a failure between
// publish and commit can be recovered.
type SettlementIntent struct {
	TxID        string       `json:"txId"`
	Status      IntentStatus `json:"status"`
	Transaction Transaction  `json:"transaction"`
	MirrorRef   *RevisionRef `json:"mirrorRef,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	CreatedAt   int64        `json:"createdAt"`
	UpdatedAt   int64        `json:"updatedAt"`
}
