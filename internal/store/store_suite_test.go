package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/sentinel"
)

// StoreSuite exercises the Store contract. Each implementation embeds it and
// sets newStore.
type StoreSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore()
}

func newAccount(id string, balance int64) *model.Account {
	return &model.Account{
		ID:        id,
		Kind:      model.AccountKindIdentity,
		Balance:   decimal.NewFromInt(balance),
		Genesis:   decimal.NewFromInt(balance),
		CreatedAt: 1,
		UpdatedAt: 1,
	}
}

func newEntry(id, from, to, signature string) *model.LedgerEntry {
	tx := model.Transaction{
		ID:         id,
		Type:       model.TransactionTypeTransfer,
		SenderID:   from,
		ReceiverID: to,
		Amount:     decimal.RequireFromString("1.5"),
		Timestamp:  1000,
		Nonce:      "bm9uY2U=",
		Signature:  signature,
		Payload:    from + ":" + to + ":1.5:1000:bm9uY2U=",
	}
	return &model.LedgerEntry{
		Transaction: tx,
		MirrorRef:   model.RevisionRef{Path: tx.MirrorPath(), SHA: "sha-" + id},
		CommittedAt: 2000,
	}
}

func (s *StoreSuite) create(accounts ...*model.Account) {
	err := s.store.RunInTx(context.Background(), func(tx Tx) error {
		for _, a := range accounts {
			if err := tx.CreateAccount(context.Background(), a); err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(err)
}

func (s *StoreSuite) TestAccountLifecycle() {
	ctx := context.Background()
	s.create(newAccount("alice", 10))

	got, err := s.store.GetAccount(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(1), got.Version)
	s.True(decimal.NewFromInt(10).Equal(got.Balance))

	err = s.store.RunInTx(ctx, func(tx Tx) error {
		a, err := tx.GetAccount(ctx, "alice")
		if err != nil {
			return err
		}
		a.Balance = a.Balance.Add(decimal.RequireFromString("0.25"))
		return tx.UpdateAccount(ctx, a)
	})
	s.Require().NoError(err)

	got, err = s.store.GetAccount(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(2), got.Version)
	s.Equal("10.25", got.Balance.String())

	_, err = s.store.GetAccount(ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestCreateAccountTwice() {
	s.create(newAccount("alice", 10))
	err := s.store.RunInTx(context.Background(), func(tx Tx) error {
		return tx.CreateAccount(context.Background(), newAccount("alice", 5))
	})
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *StoreSuite) TestStaleUpdateConflicts() {
	ctx := context.Background()
	s.create(newAccount("alice", 10))

	stale, err := s.store.GetAccount(ctx, "alice")
	s.Require().NoError(err)

	s.Require().NoError(s.store.RunInTx(ctx, func(tx Tx) error {
		a, err := tx.GetAccount(ctx, "alice")
		if err != nil {
			return err
		}
		a.Balance = decimal.NewFromInt(3)
		return tx.UpdateAccount(ctx, a)
	}))

	err = s.store.RunInTx(ctx, func(tx Tx) error {
		stale.Balance = decimal.NewFromInt(99)
		return tx.UpdateAccount(ctx, stale)
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	got, err := s.store.GetAccount(ctx, "alice")
	s.Require().NoError(err)
	s.Equal("3", got.Balance.String())
}

func (s *StoreSuite) TestRollbackOnError() {
	ctx := context.Background()
	s.create(newAccount("alice", 10))
	boom := errors.New("boom")

	err := s.store.RunInTx(ctx, func(tx Tx) error {
		a, err := tx.GetAccount(ctx, "alice")
		if err != nil {
			return err
		}
		a.Balance = decimal.Zero
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		if err := tx.InsertEntry(ctx, newEntry(uuid.NewString(), "alice", "bob", "sig")); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.GetAccount(ctx, "alice")
	s.Require().NoError(err)
	s.Equal("10", got.Balance.String())
	entries, err := s.store.ListEntries(ctx)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *StoreSuite) TestEntriesAreUnique() {
	ctx := context.Background()
	insert := func(e *model.LedgerEntry) error {
		return s.store.RunInTx(ctx, func(tx Tx) error { return tx.InsertEntry(ctx, e) })
	}

	s.Require().NoError(insert(newEntry("tx-1", "alice", "bob", "sig-1")))
	s.ErrorIs(insert(newEntry("tx-1", "alice", "bob", "sig-2")), sentinel.ErrAlreadyUsed)
	s.ErrorIs(insert(newEntry("tx-2", "alice", "bob", "sig-1")), sentinel.ErrAlreadyUsed)
	s.Require().NoError(insert(newEntry("tx-3", "bob", "carol", "")))
	s.Require().NoError(insert(newEntry("tx-4", "carol", "bob", "")))

	got, err := s.store.GetEntry(ctx, "tx-1")
	s.Require().NoError(err)
	s.Equal("1.5", got.Amount.String())
	s.Equal("ledger/tx-1000-tx-1.json", got.MirrorRef.Path)

	bob, err := s.store.EntriesForAccount(ctx, "bob")
	s.Require().NoError(err)
	s.Require().Len(bob, 3)
	s.Equal([]string{"tx-1", "tx-3", "tx-4"}, []string{bob[0].ID, bob[1].ID, bob[2].ID})

	alice, err := s.store.EntriesForAccount(ctx, "alice")
	s.Require().NoError(err)
	s.Len(alice, 1)

	_, err = s.store.GetEntry(ctx, "tx-2")
	s.ErrorIs(err, sentinel.ErrNotFound)

	used, err := s.store.SignatureUsed(ctx, "sig-1")
	s.Require().NoError(err)
	s.True(used)
	used, err = s.store.SignatureUsed(ctx, "sig-2")
	s.Require().NoError(err)
	s.False(used)
}

func (s *StoreSuite) TestIntents() {
	ctx := context.Background()
	entry := newEntry("tx-1", "alice", "bob", "sig")
	intent := &model.SettlementIntent{
		TxID:        "tx-1",
		Status:      model.IntentPending,
		Transaction: entry.Transaction,
		CreatedAt:   1,
		UpdatedAt:   1,
	}
	s.Require().NoError(s.store.RunInTx(ctx, func(tx Tx) error { return tx.PutIntent(ctx, intent) }))

	pending, err := s.store.ListIntents(ctx, model.IntentPending)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Nil(pending[0].MirrorRef)

	intent.Status = model.IntentPublished
	intent.MirrorRef = &entry.MirrorRef
	s.Require().NoError(s.store.RunInTx(ctx, func(tx Tx) error { return tx.PutIntent(ctx, intent) }))

	got, err := s.store.GetIntent(ctx, "tx-1")
	s.Require().NoError(err)
	s.Equal(model.IntentPublished, got.Status)
	s.Require().NotNil(got.MirrorRef)
	s.Equal("sha-tx-1", got.MirrorRef.SHA)
	s.Equal("1.5", got.Transaction.Amount.String())

	pending, err = s.store.ListIntents(ctx, model.IntentPending)
	s.Require().NoError(err)
	s.Empty(pending)
	all, err := s.store.ListIntents(ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *StoreSuite) TestProposals() {
	ctx := context.Background()
	p := &model.MultiSigProposal{
		ID:          "p-1",
		FromVaultID: "vault-a",
		ToVaultID:   "vault-b",
		Amount:      decimal.NewFromInt(60000),
		Reason:      "rebalance",
		ProposerID:  "alice",
		Status:      model.ProposalPending,
		CreatedAt:   1,
	}
	s.Require().NoError(s.store.RunInTx(ctx, func(tx Tx) error { return tx.CreateProposal(ctx, p) }))
	s.Equal(int64(1), p.Version)

	s.Require().NoError(s.store.RunInTx(ctx, func(tx Tx) error {
		got, err := tx.GetProposal(ctx, "p-1")
		if err != nil {
			return err
		}
		got.Signatures = append(got.Signatures, "alice")
		return tx.UpdateProposal(ctx, got)
	}))

	got, err := s.store.GetProposal(ctx, "p-1")
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, got.Signatures)
	s.Equal(int64(2), got.Version)
	s.Equal("60000", got.Amount.String())

	// p still carries version 1
	err = s.store.RunInTx(ctx, func(tx Tx) error { return tx.UpdateProposal(ctx, p) })
	s.ErrorIs(err, sentinel.ErrConflict)
}

// Concurrent read-modify-write transactions never lose an update.
func (s *StoreSuite) TestConcurrentIncrements() {
	ctx := context.Background()
	s.create(newAccount("alice", 0))

	const workers = 20
	var (
		wg        sync.WaitGroup
		committed atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := s.store.RunInTx(ctx, func(tx Tx) error {
					a, err := tx.GetAccount(ctx, "alice")
					if err != nil {
						return err
					}
					a.Balance = a.Balance.Add(decimal.NewFromInt(1))
					return tx.UpdateAccount(ctx, a)
				})
				if errors.Is(err, sentinel.ErrConflict) {
					continue
				}
				if err == nil {
					committed.Add(1)
				}
				return
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(workers), committed.Load())
	got, err := s.store.GetAccount(ctx, "alice")
	s.Require().NoError(err)
	s.Equal("20", got.Balance.String())
}
