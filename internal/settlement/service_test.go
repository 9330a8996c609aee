package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

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

	bankID  = "central-bank"
	bankCap = "bank-capability"
	gateID  = "treasury-gate"
	gateCap = "gate-capability"

	baseTS int64 = 1_700_000_000_000
)

// flakyMirror fails the next n publishes before delegating.
type flakyMirror struct {
	Mirror
	failures atomic.Int32
}

func (m *flakyMirror) Publish(ctx context.Context, record *model.MirrorRecord) (model.RevisionRef, error) {
	if m.failures.Add(-1) >= 0 {
		return model.RevisionRef{}, errors.New("mirror unreachable")
	}
	return m.Mirror.Publish(ctx, record)
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	server  *mirrortest.Server
	mirror  *flakyMirror
	store   *store.Memory
	service *Service
	alice   *crypto.KeyPair
	bob     *crypto.KeyPair
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.server = mirrortest.NewServer()
	s.mirror = &flakyMirror{Mirror: client.NewMirrorClient(client.MirrorConfig{
		BaseURL:    s.server.ContentsURL(),
		Branch:     "main",
		Timeout:    2 * time.Second,
		MaxRetries: 1,
	}, client.WithRetryInterval(time.Millisecond))}
	s.store = store.NewMemory()
	s.now = time.UnixMilli(baseTS)

	var err error
	s.service = New(s.store, s.mirror, authorityRegistry(s.T()),
		WithTreasuryAuthority(gateID),
		WithMaxAttempts(50),
		WithRetryDelay(time.Millisecond),
		WithPendingGrace(time.Minute),
		WithClock(func() time.Time { return s.now }),
	)

	s.alice, err = crypto.DeriveKeyPair(alicePhrase)
	s.Require().NoError(err)
	s.bob, err = crypto.DeriveKeyPair(bobPhrase)
	s.Require().NoError(err)

	s.open("alice", model.AccountKindIdentity, s.alice.EncodedPublicKey(), "100")
	s.open("bob", model.AccountKindIdentity, s.bob.EncodedPublicKey(), "0")
}

func (s *ServiceSuite) TearDownTest() {
	s.server.Close()
}

func (s *ServiceSuite) open(id string, kind model.AccountKind, key, genesis string) {
	_, err := s.service.OpenAccount(s.ctx, AccountSpec{
		ID:        id,
		Kind:      kind,
		PublicKey: key,
		Genesis:   decimal.RequireFromString(genesis),
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) balance(id string) string {
	a, err := s.store.GetAccount(s.ctx, id)
	s.Require().NoError(err)
	return a.Balance.String()
}

func authorityRegistry(t *testing.T) *authority.Registry {
	t.Helper()
	registry, err := authority.NewRegistry(map[string]string{bankID: bankCap, gateID: gateCap}, []string{bankID})
	require.NoError(t, err)
	return registry
}

func signed(t *testing.T, kp *crypto.KeyPair, id, from, to, amount string, ts int64) model.Transaction {
	t.Helper()
	tx := model.Transaction{
		ID:         id,
		Type:       model.TransactionTypeTransfer,
		SenderID:   from,
		ReceiverID: to,
		Amount:     decimal.RequireFromString(amount),
		Timestamp:  ts,
		Nonce:      "nonce-" + id,
	}
	tx.Payload = crypto.BuildPayload(tx.SenderID, tx.ReceiverID, tx.Amount, tx.Timestamp, tx.Nonce)
	sig, err := crypto.Sign(kp.PrivateKey, tx.Payload)
	require.NoError(t, err)
	tx.Signature = sig
	return tx
}

func unsigned(txType model.TransactionType, id, from, to, amount string) model.Transaction {
	return model.Transaction{
		ID:         id,
		Type:       txType,
		SenderID:   from,
		ReceiverID: to,
		Amount:     decimal.RequireFromString(amount),
		Timestamp:  baseTS,
		Nonce:      "nonce-" + id,
	}
}

func (s *ServiceSuite) TestTransferMovesValueAndPublishes() {
	tx := signed(s.T(), s.alice, "tx-1", "alice", "bob", "30", baseTS)

	result, err := s.service.Submit(s.ctx, tx, Identity{ID: "alice"})
	s.Require().NoError(err)
	s.Equal("70", result.SenderBalance.String())
	s.Equal("30", result.ReceiverBalance.String())
	s.Equal(tx.MirrorPath(), result.MirrorRef.Path)
	s.False(result.Resumed)

	s.Equal("70", s.balance("alice"))
	s.Equal("30", s.balance("bob"))

	_, ok := s.server.File(tx.MirrorPath())
	s.True(ok)

	intent, err := s.store.GetIntent(s.ctx, "tx-1")
	s.Require().NoError(err)
	s.Equal(model.IntentCommitted, intent.Status)

	entry, err := s.store.GetEntry(s.ctx, "tx-1")
	s.Require().NoError(err)
	s.Equal(tx.Signature, entry.Signature)
}

func (s *ServiceSuite) TestInsufficientLiquidityPublishesNothing() {
	tx := signed(s.T(), s.alice, "tx-1", "alice", "bob", "100.000001", baseTS)

	_, err := s.service.Submit(s.ctx, tx, Identity{ID: "alice"})
	s.ErrorIs(err, ErrInsufficientLiquidity)
	s.Zero(s.server.PutCount())
	s.Equal("100", s.balance("alice"))
	s.Equal("0", s.balance("bob"))
}

func (s *ServiceSuite) TestHandshakeFailureLeavesBalancesUntouched() {
	s.mirror.failures.Store(1)
	tx := signed(s.T(), s.alice, "tx-1", "alice", "bob", "10", baseTS)

	_, err := s.service.Submit(s.ctx, tx, Identity{ID: "alice"})
	s.Require().ErrorIs(err, ErrSovereignHandshakeFailed)
	s.True(Retryable(err))
	s.Equal("100", s.balance("alice"))
	s.Equal("0", s.balance("bob"))

	intent, err := s.store.GetIntent(s.ctx, "tx-1")
	s.Require().NoError(err)
	s.Equal(model.IntentAborted, intent.Status)

	// the same transaction goes through once the mirror is back
	result, err := s.service.Submit(s.ctx, tx, Identity{ID: "alice"})
	s.Require().NoError(err)
	s.Equal("90", result.SenderBalance.String())
	s.Equal("10", s.balance("bob"))
}

func (s *ServiceSuite) TestResubmitReturnsCommittedResult() {
	tx := signed(s.T(), s.alice, "tx-1", "alice", "bob", "25", baseTS)

	_, err := s.service.Submit(s.ctx, tx, Identity{ID: "alice"})
	s.Require().NoError(err)
	puts := s.server.PutCount()

	result, err := s.service.Submit(s.ctx, tx, Identity{ID: "alice"})
	s.Require().NoError(err)
	s.True(result.Resumed)
	s.Equal(puts, s.server.PutCount())
	s.Equal("75", s.balance("alice"))
	s.Equal("25", s.balance("bob"))
}

func (s *ServiceSuite) TestReplayedSignatureUnderNewIDRejected() {
	tx := signed(s.T(), s.alice, "tx-1", "alice", "bob", "25", baseTS)
	_, err := s.service.Submit(s.ctx, tx, Identity{ID: "alice"})
	s.Require().NoError(err)

	replay := tx
	replay.ID = "tx-2"
	_, err = s.service.Submit(s.ctx, replay, Identity{ID: "alice"})
	s.ErrorIs(err, ErrDuplicateTransaction)
	s.Equal("75", s.balance("alice"))
}

func (s *ServiceSuite) TestSameIDDifferentContentsRejected() {
	_, err := s.service.Submit(s.ctx, signed(s.T(), s.alice, "tx-1", "alice", "bob", "25", baseTS), Identity{ID: "alice"})
	s.Require().NoError(err)

	_, err = s.service.Submit(s.ctx, signed(s.T(), s.alice, "tx-1", "alice", "bob", "26", baseTS), Identity{ID: "alice"})
	s.ErrorIs(err, ErrDuplicateTransaction)
}

func (s *ServiceSuite) TestSignatureChecks() {
	cases := []struct {
		name   string
		tx     func() model.Transaction
		sender Sender
	}{
		{
			name: "signed by another key",
			tx: func() model.Transaction {
				return signed(s.T(), s.bob, "tx-1", "alice", "bob", "10", baseTS)
			},
			sender: Identity{ID: "alice"},
		},
		{
			name: "amount altered after signing",
			tx: func() model.Transaction {
				tx := signed(s.T(), s.alice, "tx-1", "alice", "bob", "10", baseTS)
				tx.Amount = decimal.RequireFromString("11")
				return tx
			},
			sender: Identity{ID: "alice"},
		},
		{
			name: "presented key differs from registered key",
			tx: func() model.Transaction {
				return signed(s.T(), s.alice, "tx-1", "alice", "bob", "10", baseTS)
			},
			sender: Identity{ID: "alice", PublicKey: "SOV-AAAA"},
		},
		{
			name: "missing signature",
			tx: func() model.Transaction {
				return unsigned(model.TransactionTypeTransfer, "tx-1", "alice", "bob", "10")
			},
			sender: Identity{ID: "alice"},
		},
		{
			name: "identity signing for another account",
			tx: func() model.Transaction {
				return signed(s.T(), s.alice, "tx-1", "alice", "bob", "10", baseTS)
			},
			sender: Identity{ID: "bob"},
		},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Submit(s.ctx, tc.tx(), tc.sender)
			s.ErrorIs(err, ErrInvalidSignature)
			s.Equal("100", s.balance("alice"))
		})
	}
	s.Zero(s.server.PutCount())
}

func (s *ServiceSuite) TestFieldValidation() {
	zero := signed(s.T(), s.alice, "tx-1", "alice", "bob", "0", baseTS)
	_, err := s.service.Submit(s.ctx, zero, Identity{ID: "alice"})
	s.ErrorIs(err, ErrInvalidAmount)

	precise := signed(s.T(), s.alice, "tx-2", "alice", "bob", "0.0000001", baseTS)
	_, err = s.service.Submit(s.ctx, precise, Identity{ID: "alice"})
	s.ErrorIs(err, ErrInvalidTransaction)

	self := signed(s.T(), s.alice, "tx-3", "alice", "alice", "1", baseTS)
	_, err = s.service.Submit(s.ctx, self, Identity{ID: "alice"})
	s.ErrorIs(err, ErrInvalidTransaction)

	unknown := signed(s.T(), s.alice, "tx-4", "alice", "carol", "1", baseTS)
	_, err = s.service.Submit(s.ctx, unknown, Identity{ID: "alice"})
	s.ErrorIs(err, ErrUnknownAccount)

	_, err = s.service.Submit(s.ctx, signed(s.T(), s.alice, "tx-5", "alice", "bob", "1", baseTS), nil)
	s.ErrorIs(err, ErrInvalidTransaction)

	s.Zero(s.server.PutCount())
}

func (s *ServiceSuite) TestMintRequiresIssuerCapability() {
	mint := unsigned(model.TransactionTypeMint, "mint-1", bankID, "bob", "500")

	_, err := s.service.Submit(s.ctx, mint, Authority{ID: bankID, Capability: "forged"})
	s.ErrorIs(err, ErrUnauthorizedAuthority)

	_, err = s.service.Submit(s.ctx, mint, Identity{ID: bankID})
	s.ErrorIs(err, ErrUnauthorizedAuthority)

	notIssuer := unsigned(model.TransactionTypeMint, "mint-2", gateID, "bob", "500")
	_, err = s.service.Submit(s.ctx, notIssuer, Authority{ID: gateID, Capability: gateCap})
	s.ErrorIs(err, ErrUnauthorizedAuthority)

	s.Equal("0", s.balance("bob"))

	result, err := s.service.Submit(s.ctx, mint, Authority{ID: bankID, Capability: bankCap})
	s.Require().NoError(err)
	s.Equal("500", result.ReceiverBalance.String())
	s.Equal("500", s.balance("bob"))
}

func (s *ServiceSuite) TestRedemptionBurnsWithoutCredit() {
	tx := signed(s.T(), s.alice, "burn-1", "alice", "redemption-desk", "40", baseTS)
	tx.Type = model.TransactionTypeRedemption

	result, err := s.service.Submit(s.ctx, tx, Identity{ID: "alice"})
	s.Require().NoError(err)
	s.Equal("60", result.SenderBalance.String())
	s.Equal("60", s.balance("alice"))
}

func (s *ServiceSuite) TestLockedTreasuryRejectsOutflow() {
	s.open("vault-a", model.AccountKindVault, "", "1000")
	s.open("vault-b", model.AccountKindVault, "", "0")
	_, err := s.service.SetVaultLock(s.ctx, "vault-a", true)
	s.Require().NoError(err)

	tx := unsigned(model.TransactionTypeTreasury, "tr-1", "vault-a", "vault-b", "100")
	_, err = s.service.Submit(s.ctx, tx, Authority{ID: gateID, Capability: gateCap})
	s.ErrorIs(err, ErrTreasuryLocked)
	s.Zero(s.server.PutCount())
	s.Equal("1000", s.balance("vault-a"))

	_, err = s.service.SetVaultLock(s.ctx, "vault-a", false)
	s.Require().NoError(err)
	_, err = s.service.Submit(s.ctx, tx, Authority{ID: gateID, Capability: gateCap})
	s.Require().NoError(err)
	s.Equal("900", s.balance("vault-a"))
	s.Equal("100", s.balance("vault-b"))
}

func (s *ServiceSuite) TestTreasuryTransferRequiresVaults() {
	tx := unsigned(model.TransactionTypeTreasury, "tr-1", "alice", "bob", "1")
	_, err := s.service.Submit(s.ctx, tx, Authority{ID: gateID, Capability: gateCap})
	s.ErrorIs(err, ErrInvalidTransaction)

	_, err = s.service.SetVaultLock(s.ctx, "alice", true)
	s.ErrorIs(err, ErrInvalidTransaction)
}

func (s *ServiceSuite) TestOnlyTreasuryAuthorityMovesVaultFunds() {
	s.open("vault-a", model.AccountKindVault, "", "100000")
	s.open("vault-b", model.AccountKindVault, "", "0")

	tx := unsigned(model.TransactionTypeTreasury, "tr-1", "vault-a", "vault-b", "60000")
	_, err := s.service.Submit(s.ctx, tx, Authority{ID: bankID, Capability: bankCap})
	s.ErrorIs(err, ErrUnauthorizedAuthority)
	s.Equal("100000", s.balance("vault-a"))
	s.Equal("0", s.balance("vault-b"))
	s.Zero(s.server.PutCount())

	ungated := New(s.store, s.mirror, authorityRegistry(s.T()))
	_, err = ungated.Submit(s.ctx, tx, Authority{ID: gateID, Capability: gateCap})
	s.ErrorIs(err, ErrUnauthorizedAuthority)
	s.Equal("100000", s.balance("vault-a"))
}

func (s *ServiceSuite) TestOpenAccountTwice() {
	_, err := s.service.OpenAccount(s.ctx, AccountSpec{ID: "alice"})
	s.ErrorIs(err, ErrAccountExists)

	_, err = s.service.OpenAccount(s.ctx, AccountSpec{ID: "neg", Genesis: decimal.NewFromInt(-1)})
	s.ErrorIs(err, ErrInvalidAmount)
}

func (s *ServiceSuite) TestConcurrentSpendsNeverOverdraw() {
	const spends = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := range spends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := signed(s.T(), s.alice, fmt.Sprintf("tx-%d", i), "alice", "bob", "10", baseTS+int64(i))
			if _, err := s.service.Submit(s.ctx, tx, Identity{ID: "alice"}); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	alice := decimal.RequireFromString(s.balance("alice"))
	bob := decimal.RequireFromString(s.balance("bob"))
	s.False(alice.IsNegative())
	s.True(alice.Add(bob).Equal(decimal.NewFromInt(100)), "total supply must be conserved")
	s.True(bob.Equal(decimal.NewFromInt(int64(succeeded.Load()) * 10)))

	entries, err := s.store.EntriesForAccount(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(entries, int(succeeded.Load()))
}

func (s *ServiceSuite) TestRecoverFinishesInterruptedIntents() {
	published := signed(s.T(), s.alice, "tx-pub", "alice", "bob", "10", baseTS)
	ref, err := s.mirror.Publish(s.ctx, client.NewMirrorRecord(s.ctx, published, s.service))
	s.Require().NoError(err)

	landed := signed(s.T(), s.alice, "tx-landed", "alice", "bob", "5", baseTS+1)
	_, err = s.mirror.Publish(s.ctx, client.NewMirrorRecord(s.ctx, landed, s.service))
	s.Require().NoError(err)

	lost := signed(s.T(), s.alice, "tx-lost", "alice", "bob", "1", baseTS+2)
	fresh := signed(s.T(), s.alice, "tx-fresh", "alice", "bob", "1", baseTS+3)

	old := baseTS - (2 * time.Minute).Milliseconds()
	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		for _, intent := range []model.SettlementIntent{
			{TxID: published.ID, Status: model.IntentPublished, Transaction: published, MirrorRef: &ref, UpdatedAt: old},
			{TxID: landed.ID, Status: model.IntentPending, Transaction: landed, UpdatedAt: old},
			{TxID: lost.ID, Status: model.IntentPending, Transaction: lost, UpdatedAt: old},
			{TxID: fresh.ID, Status: model.IntentPending, Transaction: fresh, UpdatedAt: baseTS},
		} {
			if err := tx.PutIntent(s.ctx, &intent); err != nil {
				return err
			}
		}
		return nil
	}))

	report, err := s.service.Recover(s.ctx)
	s.Require().NoError(err)
	s.Equal(RecoveryReport{Committed: 2, Aborted: 1, Pending: 1}, report)
	s.Equal("85", s.balance("alice"))
	s.Equal("15", s.balance("bob"))

	lostIntent, err := s.store.GetIntent(s.ctx, lost.ID)
	s.Require().NoError(err)
	s.Equal(model.IntentAborted, lostIntent.Status)

	// a second pass has nothing left but the fresh intent
	report, err = s.service.Recover(s.ctx)
	s.Require().NoError(err)
	s.Equal(RecoveryReport{Pending: 1}, report)
}

func (s *ServiceSuite) TestRecoverVoidsUnpayablePublishedIntent() {
	tx := signed(s.T(), s.alice, "tx-big", "alice", "bob", "500", baseTS)
	ref, err := s.mirror.Publish(s.ctx, client.NewMirrorRecord(s.ctx, tx, s.service))
	s.Require().NoError(err)
	s.Require().NoError(s.store.RunInTx(s.ctx, func(st store.Tx) error {
		return st.PutIntent(s.ctx, &model.SettlementIntent{
			TxID: tx.ID, Status: model.IntentPublished, Transaction: tx, MirrorRef: &ref,
		})
	}))

	report, err := s.service.Recover(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Voided)
	s.Equal("100", s.balance("alice"))

	intent, err := s.store.GetIntent(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.Equal(model.IntentVoided, intent.Status)

	_, err = s.service.Submit(s.ctx, tx, Identity{ID: "alice"})
	s.ErrorIs(err, ErrDuplicateTransaction)
}

func TestResolvePublicKey(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewMemory(), nil, nil)
	_, err := svc.OpenAccount(ctx, AccountSpec{ID: "alice", PublicKey: "SOV-key"})
	require.NoError(t, err)
	_, err = svc.OpenAccount(ctx, AccountSpec{ID: "vault", Kind: model.AccountKindVault})
	require.NoError(t, err)

	key, ok := svc.ResolvePublicKey(ctx, "alice")
	assert.True(t, ok)
	assert.Equal(t, "SOV-key", key)

	_, ok = svc.ResolvePublicKey(ctx, "vault")
	assert.False(t, ok)
	_, ok = svc.ResolvePublicKey(ctx, "nobody")
	assert.False(t, ok)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("wrap: %w", ErrSettlementConflict)))
	assert.True(t, Retryable(ErrSovereignHandshakeFailed))
	assert.False(t, Retryable(ErrInsufficientLiquidity))
	assert.False(t, Retryable(nil))
}
