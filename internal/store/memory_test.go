package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/AlexZinkM/sovereign-ledger/internal/sentinel"
)

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() Store { return NewMemory() }})
}

// A transaction that read an account conflicts when another transaction
// commits a change to it first, even if the first one never wrote it.
func TestMemoryReadSetValidation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.RunInTx(ctx, func(tx Tx) error {
		if err := tx.CreateAccount(ctx, newAccount("alice", 10)); err != nil {
			return err
		}
		return tx.CreateAccount(ctx, newAccount("bob", 0))
	}))

	err := m.RunInTx(ctx, func(tx Tx) error {
		if _, err := tx.GetAccount(ctx, "alice"); err != nil {
			return err
		}
		// concurrent writer commits in between
		require.NoError(t, m.RunInTx(ctx, func(inner Tx) error {
			a, err := inner.GetAccount(ctx, "alice")
			if err != nil {
				return err
			}
			a.Balance = decimal.Zero
			return inner.UpdateAccount(ctx, a)
		}))

		b, err := tx.GetAccount(ctx, "bob")
		if err != nil {
			return err
		}
		b.Balance = decimal.NewFromInt(10)
		return tx.UpdateAccount(ctx, b)
	})
	require.ErrorIs(t, err, sentinel.ErrConflict)

	bob, err := m.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, bob.Balance.IsZero())
}

func TestMemoryTxSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.RunInTx(ctx, func(tx Tx) error {
		a := newAccount("alice", 10)
		require.NoError(t, tx.CreateAccount(ctx, a))

		got, err := tx.GetAccount(ctx, "alice")
		require.NoError(t, err)
		got.Balance = decimal.NewFromInt(4)
		require.NoError(t, tx.UpdateAccount(ctx, got))

		again, err := tx.GetAccount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "4", again.Balance.String())
		assert.Equal(t, int64(2), again.Version)

		require.NoError(t, tx.InsertEntry(ctx, newEntry("tx-1", "alice", "bob", "sig")))
		require.ErrorIs(t, tx.InsertEntry(ctx, newEntry("tx-2", "alice", "bob", "sig")), sentinel.ErrAlreadyUsed)

		entries, err := tx.EntriesForAccount(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		_, err = m.GetAccount(ctx, "alice")
		assert.ErrorIs(t, err, sentinel.ErrNotFound, "uncommitted writes are invisible outside the transaction")
		return nil
	})
	require.NoError(t, err)

	got, err := m.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "4", got.Balance.String())
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewMemory().RunInTx(ctx, func(Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
