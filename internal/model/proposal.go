package model

import (
	"slices"

	"github.com/shopspring/decimal"
)

// ProposalStatus is the lifecycle state of a multi-sig proposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "PENDING"
	ProposalExecuted ProposalStatus = "EXECUTED"
)

// MultiSigProposal is a gated treasury transfer awaiting approvals.
type MultiSigProposal struct {
	ID            string          `json:"id"`
	FromVaultID   string          `json:"fromVaultId"`
	ToVaultID     string          `json:"toVaultId"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	ProposerID    string          `json:"proposerId"`
	Signatures    []string        `json:"signatures"`
	Status        ProposalStatus  `json:"status"`
	Execution     *Transaction    `json:"execution,omitempty"` // pinned once execution is attempted
	TransactionID string          `json:"transactionId,omitempty"`
	CreatedAt     int64           `json:"createdAt"`
	ExecutedAt    int64           `json:"executedAt,omitempty"`
	Version       int64           `json:"version"`
}

// SignedBy reports whether signerID has already approved the proposal.
func (p *MultiSigProposal) SignedBy(signerID string) bool {
	return slices.Contains(p.Signatures, signerID)
}

// TransferOutcome is the result of a treasury transfer request: either a
// settled transfer or a proposal waiting for signatures.
type TransferOutcome struct {
	Proposal *MultiSigProposal `json:"proposal,omitempty"`
	Settled  *SettledResult    `json:"settled,omitempty"`
}
