package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/sentinel"
)

// notFound marks a read that observed a missing row.
const notFound int64 = -1

// Memory is an in-process Store with optimistic concurrency control.
// A transaction reads committed state, buffers its writes, and at commit
// checks that nothing it read or wrote changed underneath it.
type Memory struct {
	mu         sync.RWMutex
	accounts   map[string]model.Account
	entries    []model.LedgerEntry
	entryIndex map[string]int
	signatures map[string]string
	intents    map[string]model.SettlementIntent
	proposals  map[string]*model.MultiSigProposal
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts:   make(map[string]model.Account),
		entryIndex: make(map[string]int),
		signatures: make(map[string]string),
		intents:    make(map[string]model.SettlementIntent),
		proposals:  make(map[string]*model.MultiSigProposal),
	}
}

func (m *Memory) GetAccount(_ context.Context, id string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, sentinel.ErrNotFound)
	}
	return &a, nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) GetEntry(_ context.Context, txID string) (*model.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.entryIndex[txID]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", txID, sentinel.ErrNotFound)
	}
	e := m.entries[i]
	return &e, nil
}

func (m *Memory) EntriesForAccount(_ context.Context, accountID string) ([]model.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.LedgerEntry
	for _, e := range m.entries {
		if e.Touches(accountID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) ListEntries(_ context.Context) ([]model.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *Memory) SignatureUsed(_ context.Context, signature string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.signatures[signature]
	return ok, nil
}

func (m *Memory) GetIntent(_ context.Context, txID string) (*model.SettlementIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.intents[txID]
	if !ok {
		return nil, fmt.Errorf("intent %s: %w", txID, sentinel.ErrNotFound)
	}
	return cloneIntent(&i), nil
}

func (m *Memory) ListIntents(_ context.Context, statuses ...model.IntentStatus) ([]model.SettlementIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.SettlementIntent
	for _, i := range m.intents {
		if hasStatus(i.Status, statuses) {
			out = append(out, *cloneIntent(&i))
		}
	}
	return out, nil
}

func (m *Memory) GetProposal(_ context.Context, id string) (*model.MultiSigProposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", id, sentinel.ErrNotFound)
	}
	return cloneProposal(p), nil
}

// RunInTx runs fn against a buffered transaction and commits it atomically.
func (m *Memory) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	tx := &memoryTx{
		Memory:        m,
		readAccounts:  make(map[string]int64),
		accounts:      make(map[string]model.Account),
		readProposals: make(map[string]int64),
		proposals:     make(map[string]*model.MultiSigProposal),
		intents:       make(map[string]model.SettlementIntent),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	return m.commit(tx)
}

func (m *Memory) commit(tx *memoryTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, version := range tx.readAccounts {
		if m.accountVersion(id) != version {
			return fmt.Errorf("account %s changed: %w", id, sentinel.ErrConflict)
		}
	}
	for id, version := range tx.readProposals {
		if m.proposalVersion(id) != version {
			return fmt.Errorf("proposal %s changed: %w", id, sentinel.ErrConflict)
		}
	}
	seen := make(map[string]struct{}, len(tx.entries))
	for _, e := range tx.entries {
		if _, ok := m.entryIndex[e.ID]; ok {
			return fmt.Errorf("transaction %s: %w", e.ID, sentinel.ErrAlreadyUsed)
		}
		if e.Signature != "" {
			if _, ok := m.signatures[e.Signature]; ok {
				return fmt.Errorf("signature of %s: %w", e.ID, sentinel.ErrAlreadyUsed)
			}
			if _, ok := seen[e.Signature]; ok {
				return fmt.Errorf("signature of %s: %w", e.ID, sentinel.ErrAlreadyUsed)
			}
			seen[e.Signature] = struct{}{}
		}
	}

	for id, a := range tx.accounts {
		m.accounts[id] = a
	}
	for id, p := range tx.proposals {
		m.proposals[id] = p
	}
	for id, i := range tx.intents {
		m.intents[id] = i
	}
	for _, e := range tx.entries {
		m.entryIndex[e.ID] = len(m.entries)
		m.entries = append(m.entries, e)
		if e.Signature != "" {
			m.signatures[e.Signature] = e.ID
		}
	}
	return nil
}

func (m *Memory) accountVersion(id string) int64 {
	a, ok := m.accounts[id]
	if !ok {
		return notFound
	}
	return a.Version
}

func (m *Memory) proposalVersion(id string) int64 {
	p, ok := m.proposals[id]
	if !ok {
		return notFound
	}
	return p.Version
}

// memoryTx buffers writes until commit. Reads of rows the transaction has
// written return the buffered value.
type memoryTx struct {
	*Memory

	readAccounts  map[string]int64
	accounts      map[string]model.Account
	readProposals map[string]int64
	proposals     map[string]*model.MultiSigProposal
	intents       map[string]model.SettlementIntent
	entries       []model.LedgerEntry
}

func (t *memoryTx) observeAccount(id string) (model.Account, bool) {
	t.Memory.mu.RLock()
	defer t.Memory.mu.RUnlock()
	a, ok := t.Memory.accounts[id]
	if _, seen := t.readAccounts[id]; !seen {
		t.readAccounts[id] = t.Memory.accountVersion(id)
	}
	return a, ok
}

func (t *memoryTx) observeProposal(id string) (*model.MultiSigProposal, bool) {
	t.Memory.mu.RLock()
	defer t.Memory.mu.RUnlock()
	p, ok := t.Memory.proposals[id]
	if _, seen := t.readProposals[id]; !seen {
		t.readProposals[id] = t.Memory.proposalVersion(id)
	}
	if !ok {
		return nil, false
	}
	return cloneProposal(p), true
}

func (t *memoryTx) GetAccount(_ context.Context, id string) (*model.Account, error) {
	if a, ok := t.accounts[id]; ok {
		return &a, nil
	}
	a, ok := t.observeAccount(id)
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, sentinel.ErrNotFound)
	}
	return &a, nil
}

func (t *memoryTx) ListAccounts(ctx context.Context) ([]model.Account, error) {
	committed, err := t.Memory.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Account, 0, len(committed)+len(t.accounts))
	for _, a := range committed {
		if _, ok := t.accounts[a.ID]; !ok {
			out = append(out, a)
		}
	}
	for _, a := range t.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (t *memoryTx) GetEntry(ctx context.Context, txID string) (*model.LedgerEntry, error) {
	for _, e := range t.entries {
		if e.ID == txID {
			return &e, nil
		}
	}
	return t.Memory.GetEntry(ctx, txID)
}

func (t *memoryTx) EntriesForAccount(ctx context.Context, accountID string) ([]model.LedgerEntry, error) {
	out, err := t.Memory.EntriesForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, e := range t.entries {
		if e.Touches(accountID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memoryTx) ListEntries(ctx context.Context) ([]model.LedgerEntry, error) {
	out, err := t.Memory.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	return append(out, t.entries...), nil
}

func (t *memoryTx) SignatureUsed(ctx context.Context, signature string) (bool, error) {
	for _, e := range t.entries {
		if e.Signature == signature {
			return true, nil
		}
	}
	return t.Memory.SignatureUsed(ctx, signature)
}

func (t *memoryTx) GetIntent(ctx context.Context, txID string) (*model.SettlementIntent, error) {
	if i, ok := t.intents[txID]; ok {
		return cloneIntent(&i), nil
	}
	return t.Memory.GetIntent(ctx, txID)
}

func (t *memoryTx) ListIntents(ctx context.Context, statuses ...model.IntentStatus) ([]model.SettlementIntent, error) {
	committed, err := t.Memory.ListIntents(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	var out []model.SettlementIntent
	for _, i := range committed {
		if _, ok := t.intents[i.TxID]; !ok {
			out = append(out, i)
		}
	}
	for _, i := range t.intents {
		if hasStatus(i.Status, statuses) {
			out = append(out, *cloneIntent(&i))
		}
	}
	return out, nil
}

func (t *memoryTx) GetProposal(_ context.Context, id string) (*model.MultiSigProposal, error) {
	if p, ok := t.proposals[id]; ok {
		return cloneProposal(p), nil
	}
	p, ok := t.observeProposal(id)
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", id, sentinel.ErrNotFound)
	}
	return p, nil
}

func (t *memoryTx) CreateAccount(ctx context.Context, account *model.Account) error {
	if _, err := t.GetAccount(ctx, account.ID); err == nil {
		return fmt.Errorf("account %s: %w", account.ID, sentinel.ErrAlreadyUsed)
	}
	account.Version = 1
	t.accounts[account.ID] = *account
	return nil
}

func (t *memoryTx) UpdateAccount(ctx context.Context, account *model.Account) error {
	current, err := t.GetAccount(ctx, account.ID)
	if err != nil {
		return err
	}
	if current.Version != account.Version {
		return fmt.Errorf("account %s at version %d, have %d: %w", account.ID, current.Version, account.Version, sentinel.ErrConflict)
	}
	account.Version++
	t.accounts[account.ID] = *account
	return nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, entry *model.LedgerEntry) error {
	if _, err := t.GetEntry(ctx, entry.ID); err == nil {
		return fmt.Errorf("transaction %s: %w", entry.ID, sentinel.ErrAlreadyUsed)
	}
	if entry.Signature != "" {
		for _, e := range t.entries {
			if e.Signature == entry.Signature {
				return fmt.Errorf("signature of %s: %w", entry.ID, sentinel.ErrAlreadyUsed)
			}
		}
		if used, _ := t.Memory.SignatureUsed(ctx, entry.Signature); used {
			return fmt.Errorf("signature of %s: %w", entry.ID, sentinel.ErrAlreadyUsed)
		}
	}
	t.entries = append(t.entries, *entry)
	return nil
}

func (t *memoryTx) PutIntent(_ context.Context, intent *model.SettlementIntent) error {
	t.intents[intent.TxID] = *cloneIntent(intent)
	return nil
}

func (t *memoryTx) CreateProposal(ctx context.Context, proposal *model.MultiSigProposal) error {
	if _, err := t.GetProposal(ctx, proposal.ID); err == nil {
		return fmt.Errorf("proposal %s: %w", proposal.ID, sentinel.ErrAlreadyUsed)
	}
	proposal.Version = 1
	t.proposals[proposal.ID] = cloneProposal(proposal)
	return nil
}

func (t *memoryTx) UpdateProposal(ctx context.Context, proposal *model.MultiSigProposal) error {
	current, err := t.GetProposal(ctx, proposal.ID)
	if err != nil {
		return err
	}
	if current.Version != proposal.Version {
		return fmt.Errorf("proposal %s at version %d, have %d: %w", proposal.ID, current.Version, proposal.Version, sentinel.ErrConflict)
	}
	proposal.Version++
	t.proposals[proposal.ID] = cloneProposal(proposal)
	return nil
}
