package store

import (
	"context"
	"slices"

	"github.com/AlexZinkM/sovereign-ledger/internal/model"
)

// Reader is the read side of the ledger store.
// Lookups of missing rows return sentinel.ErrNotFound.
type Reader interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)

	GetEntry(ctx context.Context, txID string) (*model.LedgerEntry, error)
	// EntriesForAccount returns every entry touching accountID in commit order.
	EntriesForAccount(ctx context.Context, accountID string) ([]model.LedgerEntry, error)
	// ListEntries returns all entries in commit order.
	ListEntries(ctx context.Context) ([]model.LedgerEntry, error)
	// SignatureUsed reports whether a committed entry carries signature.
	SignatureUsed(ctx context.Context, signature string) (bool, error)

	GetIntent(ctx context.Context, txID string) (*model.SettlementIntent, error)
	// ListIntents returns intents with any of the given statuses, or all when none are given.
	ListIntents(ctx context.Context, statuses ...model.IntentStatus) ([]model.SettlementIntent, error)

	GetProposal(ctx context.Context, id string) (*model.MultiSigProposal, error)
}

// Tx is a store transaction. Writes become visible to other readers only
// when the enclosing RunInTx returns nil.
type Tx interface {
	Reader

	// CreateAccount inserts a new account at version 1.
	// Returns sentinel.ErrAlreadyUsed if the id exists.
	CreateAccount(ctx context.Context, account *model.Account) error
	// UpdateAccount stores account if its Version matches the stored one and
	// increments account.Version. A mismatch returns sentinel.ErrConflict.
	UpdateAccount(ctx context.Context, account *model.Account) error

	// InsertEntry appends a committed transaction. A reused transaction id or
	// signature returns sentinel.ErrAlreadyUsed.
	InsertEntry(ctx context.Context, entry *model.LedgerEntry) error

	// PutIntent creates or replaces the intent for intent.TxID.
	PutIntent(ctx context.Context, intent *model.SettlementIntent) error

	// CreateProposal inserts a new proposal at version 1.
	CreateProposal(ctx context.Context, proposal *model.MultiSigProposal) error
	// UpdateProposal has the same compare-and-swap contract as UpdateAccount.
	UpdateProposal(ctx context.Context, proposal *model.MultiSigProposal) error
}

// Store runs transactions against the ledger.
type Store interface {
	Reader
	// RunInTx runs fn in a transaction. Conflicts with concurrent
	// transactions surface as sentinel.ErrConflict, either from a Tx method
	// or from the commit itself.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

func hasStatus(status model.IntentStatus, statuses []model.IntentStatus) bool {
	return len(statuses) == 0 || slices.Contains(statuses, status)
}

func cloneProposal(p *model.MultiSigProposal) *model.MultiSigProposal {
	out := *p
	out.Signatures = slices.Clone(p.Signatures)
	if p.Execution != nil {
		exec := *p.Execution
		out.Execution = &exec
	}
	return &out
}

func cloneIntent(i *model.SettlementIntent) *model.SettlementIntent {
	out := *i
	if i.MirrorRef != nil {
		ref := *i.MirrorRef
		out.MirrorRef = &ref
	}
	return &out
}
