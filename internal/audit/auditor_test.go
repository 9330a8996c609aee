package audit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/sovereign-ledger/internal/authority"
	"github.com/AlexZinkM/sovereign-ledger/internal/client"
	"github.com/AlexZinkM/sovereign-ledger/internal/client/mirrortest"
	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/store"
)

const (
	alicePhrase = "legal winner thank year wave sausage worth useful legal winner thank yellow"
	bobPhrase   = "letter advice cage absurd amount doctor acoustic avoid letter advice cage above"
)

type fixture struct {
	store *store.Memory
	alice *crypto.KeyPair
	bob   *crypto.KeyPair
	seq   int64
}

func newFixture(t *testing.T, storedBalance string) *fixture {
	t.Helper()
	alice, err := crypto.DeriveKeyPair(alicePhrase)
	require.NoError(t, err)
	bob, err := crypto.DeriveKeyPair(bobPhrase)
	require.NoError(t, err)

	f := &fixture{store: store.NewMemory(), alice: alice, bob: bob}
	f.account(t, model.Account{
		ID: "A", Kind: model.AccountKindIdentity, PublicKey: alice.EncodedPublicKey(),
		Genesis: decimal.NewFromInt(10), Balance: decimal.RequireFromString(storedBalance),
	})
	f.account(t, model.Account{
		ID: "B", Kind: model.AccountKindIdentity, PublicKey: bob.EncodedPublicKey(),
		Genesis: decimal.NewFromInt(100), Balance: decimal.NewFromInt(101),
	})
	return f
}

func (f *fixture) account(t *testing.T, a model.Account) {
	t.Helper()
	require.NoError(t, f.store.RunInTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateAccount(context.Background(), &a)
	}))
}

func (f *fixture) commit(t *testing.T, tx model.Transaction) {
	t.Helper()
	f.seq++
	if tx.Payload == "" {
		tx.Payload = crypto.BuildPayload(tx.SenderID, tx.ReceiverID, tx.Amount, tx.Timestamp, tx.Nonce)
	}
	require.NoError(t, f.store.RunInTx(context.Background(), func(st store.Tx) error {
		return st.InsertEntry(context.Background(), &model.LedgerEntry{
			Transaction: tx,
			MirrorRef:   model.RevisionRef{Path: tx.MirrorPath()},
			CommittedAt: f.seq,
		})
	}))
}

func (f *fixture) transfer(t *testing.T, kp *crypto.KeyPair, id, from, to, amount string) model.Transaction {
	t.Helper()
	tx := model.Transaction{
		ID:         id,
		Type:       model.TransactionTypeTransfer,
		SenderID:   from,
		ReceiverID: to,
		Amount:     decimal.RequireFromString(amount),
		Timestamp:  1_700_000_000_000 + f.seq,
		Nonce:      "n-" + id,
	}
	tx.Payload = crypto.BuildPayload(tx.SenderID, tx.ReceiverID, tx.Amount, tx.Timestamp, tx.Nonce)
	sig, err := crypto.Sign(kp.PrivateKey, tx.Payload)
	require.NoError(t, err)
	tx.Signature = sig
	return tx
}

// genesis 10, then +5 minted, -2 sent, +1 received
func (f *fixture) history(t *testing.T) {
	t.Helper()
	f.commit(t, model.Transaction{
		ID: "mint-1", Type: model.TransactionTypeMint, SenderID: "bank", ReceiverID: "A",
		Amount: decimal.NewFromInt(5), Timestamp: 1_700_000_000_000, Nonce: "n-mint",
	})
	f.commit(t, f.transfer(t, f.alice, "tx-2", "A", "B", "2"))
	f.commit(t, f.transfer(t, f.bob, "tx-3", "B", "A", "1"))
}

func registry(t *testing.T) *authority.Registry {
	t.Helper()
	r, err := authority.NewRegistry(map[string]string{"bank": "cap"}, []string{"bank"})
	require.NoError(t, err)
	return r
}

func TestAuditVerified(t *testing.T) {
	f := newFixture(t, "14")
	f.history(t)

	report, err := New(f.store, registry(t)).Audit(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, model.AuditVerified, report.Verdict)
	assert.Equal(t, "14", report.RunningBalance.String())
	assert.Equal(t, "10", report.GenesisStake.String())
	assert.True(t, report.Difference.IsZero())
	assert.Equal(t, 3, report.Verified)
	assert.Equal(t, 3, report.Total)
	assert.Empty(t, report.Breaches)

	require.Len(t, report.Log, 3)
	assert.True(t, report.Log[0].Authority)
	assert.Equal(t, "5", report.Log[0].Delta.String())
	assert.Equal(t, "-2", report.Log[1].Delta.String())
	assert.Equal(t, "13", report.Log[1].RunningBalance.String())
	assert.False(t, report.Log[2].Authority)
	assert.Equal(t, "14", report.Log[2].RunningBalance.String())
}

func TestAuditMirrorMismatch(t *testing.T) {
	f := newFixture(t, "20")
	f.history(t)

	report, err := New(f.store, registry(t)).Audit(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, model.AuditMirrorMismatch, report.Verdict)
	assert.Equal(t, "14", report.RunningBalance.String())
	assert.Equal(t, "6", report.Difference.String())
}

func TestAuditToleratesDustBelowEpsilon(t *testing.T) {
	f := newFixture(t, "14.00005")
	f.history(t)

	report, err := New(f.store, registry(t)).Audit(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, model.AuditVerified, report.Verdict)
}

func TestAuditRecordsBreachesAndContinues(t *testing.T) {
	f := newFixture(t, "14")
	f.history(t)

	forged := f.transfer(t, f.bob, "tx-forged", "A", "B", "3")
	f.commit(t, forged)

	tampered := f.transfer(t, f.alice, "tx-tampered", "A", "B", "4")
	tampered.Amount = decimal.RequireFromString("0.5")
	f.commit(t, tampered)

	late := f.transfer(t, f.bob, "tx-late", "B", "A", "1")
	f.commit(t, late)

	report, err := New(f.store, registry(t)).Audit(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 4, report.Verified)
	require.Len(t, report.Breaches, 2)
	assert.Equal(t, "tx-forged", report.Breaches[0].TxID)
	assert.Equal(t, "signature verification failed", report.Breaches[0].Reason)
	assert.Equal(t, "tx-tampered", report.Breaches[1].TxID)
	assert.Equal(t, "stored payload does not match transaction fields", report.Breaches[1].Reason)
	assert.Equal(t, "15", report.RunningBalance.String())
	assert.Equal(t, model.AuditMirrorMismatch, report.Verdict)
	assert.False(t, report.Log[3].Accepted)
}

func TestAuditTreasuryTransfersNeedNoSignature(t *testing.T) {
	f := newFixture(t, "10")
	f.account(t, model.Account{ID: "vault", Kind: model.AccountKindVault, Genesis: decimal.NewFromInt(5), Balance: decimal.NewFromInt(0)})
	f.account(t, model.Account{ID: "vault-2", Kind: model.AccountKindVault, Balance: decimal.NewFromInt(0)})
	f.commit(t, model.Transaction{
		ID: "tr-1", Type: model.TransactionTypeTreasury, SenderID: "vault", ReceiverID: "vault-2",
		Amount: decimal.NewFromInt(5), Timestamp: 1_700_000_000_000, Nonce: "n",
	})

	report, err := New(f.store, registry(t)).Audit(context.Background(), "vault")
	require.NoError(t, err)
	assert.Empty(t, report.Breaches)
	assert.Equal(t, "0", report.RunningBalance.String())
	assert.Equal(t, model.AuditVerified, report.Verdict)
}

func TestAuditUnknownAccount(t *testing.T) {
	f := newFixture(t, "10")
	_, err := New(f.store, registry(t)).Audit(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestAuditCancelled(t *testing.T) {
	f := newFixture(t, "14")
	f.history(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(f.store, registry(t)).Audit(ctx, "A")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuditReportsUnmirroredEntries(t *testing.T) {
	f := newFixture(t, "14")
	f.history(t)

	server := mirrortest.NewServer()
	defer server.Close()
	mirror := client.NewMirrorClient(client.MirrorConfig{
		BaseURL:    server.ContentsURL(),
		Timeout:    2 * time.Second,
		MaxRetries: 1,
	}, client.WithRetryInterval(time.Millisecond))

	entry, err := f.store.GetEntry(context.Background(), "tx-2")
	require.NoError(t, err)
	_, err = mirror.Publish(context.Background(), &model.MirrorRecord{Transaction: entry.Transaction, PayloadVersion: crypto.PayloadVersion})
	require.NoError(t, err)

	report, err := New(f.store, registry(t), WithMirror(mirror)).Audit(context.Background(), "A")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mint-1", "tx-3"}, report.Unmirrored)
	assert.Equal(t, model.AuditVerified, report.Verdict)
}
