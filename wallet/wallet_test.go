package wallet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/AlexZinkM/sovereign-ledger/internal/authority"
	"github.com/AlexZinkM/sovereign-ledger/internal/client"
	"github.com/AlexZinkM/sovereign-ledger/internal/client/mirrortest"
	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
	"github.com/AlexZinkM/sovereign-ledger/internal/store"
)

var testPIN = []byte("123456")

type WalletSuite struct {
	suite.Suite
	ctx     context.Context
	server  *mirrortest.Server
	service *settlement.Service
	wallet  *Wallet
	path    string
	now     time.Time
}

func TestWalletSuite(t *testing.T) {
	suite.Run(t, new(WalletSuite))
}

func (s *WalletSuite) SetupTest() {
	s.ctx = context.Background()
	s.server = mirrortest.NewServer()
	mirror := client.NewMirrorClient(client.MirrorConfig{
		BaseURL:    s.server.ContentsURL(),
		Timeout:    2 * time.Second,
		MaxRetries: 1,
	}, client.WithRetryInterval(time.Millisecond))

	registry, err := authority.NewRegistry(map[string]string{"bank": "cap"}, []string{"bank"})
	s.Require().NoError(err)
	s.service = settlement.New(store.NewMemory(), mirror, registry)

	_, err = s.service.OpenAccount(s.ctx, settlement.AccountSpec{ID: "bob", PublicKey: "SOV-bob"})
	s.Require().NoError(err)

	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.path = filepath.Join(s.T().TempDir(), "identity.vault")
	s.wallet = s.newWallet(nil)
}

func (s *WalletSuite) TearDownTest() {
	s.server.Close()
}

func (s *WalletSuite) newWallet(rates *client.RateClient) *Wallet {
	return New(Config{
		VaultFilePath: s.path,
		GenesisStake:  decimal.NewFromInt(100),
		PayCooldown:   time.Minute,
	}, s.service, crypto.NewKeyVault(crypto.LegacyIterations),
		WithRates(rates),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *WalletSuite) generate() *model.GenerateResponse {
	resp, err := s.wallet.GenerateIdentity(s.ctx, "alice", testPIN)
	s.Require().NoError(err)
	return resp
}

func (s *WalletSuite) TestGenerateIdentity() {
	resp := s.generate()
	s.True(resp.Success)
	s.Len(strings.Fields(resp.Phrase), 12)
	s.True(strings.HasPrefix(resp.PublicKey, crypto.PublicKeyPrefix))

	file, err := crypto.ReadVaultFile(s.path)
	s.Require().NoError(err)
	s.Equal("alice", file.AccountID)
	s.Equal(resp.PublicKey, file.PublicKey)
	s.NotEmpty(file.QR)
	s.NotContains(file.Data, resp.Phrase)

	account, err := s.service.Account(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("100", account.Balance.String())
	s.Equal(resp.PublicKey, account.PublicKey)

	identity := s.wallet.Identity()
	s.True(identity.Unlocked)
	s.Equal("alice", identity.AccountID)

	kp, err := crypto.DeriveKeyPair(resp.Phrase)
	s.Require().NoError(err)
	s.Equal(resp.PublicKey, kp.EncodedPublicKey())
}

func (s *WalletSuite) TestGenerateRefusesExistingVault() {
	s.generate()
	_, err := s.wallet.GenerateIdentity(s.ctx, "carol", testPIN)
	s.True(crypto.IsFileExistsError(err))
}

func (s *WalletSuite) TestGenerateRefusesTakenAccount() {
	_, err := s.wallet.GenerateIdentity(s.ctx, "bob", testPIN)
	s.ErrorIs(err, settlement.ErrAccountExists)
	s.False(crypto.VaultFileExists(s.path))
}

func (s *WalletSuite) TestLockAndUnlock() {
	s.generate()
	s.wallet.Lock()
	s.False(s.wallet.Identity().Unlocked)

	_, err := s.wallet.Pay(s.ctx, model.PayRequest{ToAccountID: "bob", Amount: "1"})
	s.ErrorIs(err, crypto.ErrVaultLocked)

	_, err = s.wallet.Unlock([]byte("000000"))
	s.ErrorIs(err, ErrUnlockFailed)
	s.False(s.wallet.Identity().Unlocked)

	// a fresh process only has the file
	restarted := s.newWallet(nil)
	identity, err := restarted.Unlock(testPIN)
	s.Require().NoError(err)
	s.True(identity.Unlocked)
	s.Equal("alice", identity.AccountID)
}

func (s *WalletSuite) TestPayWithCooldown() {
	s.generate()

	resp, err := s.wallet.Pay(s.ctx, model.PayRequest{ToAccountID: "bob", Amount: "30"})
	s.Require().NoError(err)
	s.Equal("70", resp.Balance)
	s.NotEmpty(resp.TxID)
	_, ok := s.server.File(resp.MirrorRef)
	s.True(ok)

	_, err = s.wallet.Pay(s.ctx, model.PayRequest{ToAccountID: "bob", Amount: "1"})
	s.ErrorIs(err, ErrCooldown)

	s.now = s.now.Add(time.Minute)
	_, err = s.wallet.Pay(s.ctx, model.PayRequest{ToAccountID: "bob", Amount: "1"})
	s.Require().NoError(err)

	bob, err := s.service.Account(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal("31", bob.Balance.String())
}

func (s *WalletSuite) TestPayRejections() {
	s.generate()

	_, err := s.wallet.Pay(s.ctx, model.PayRequest{ToAccountID: "bob", Amount: "-1"})
	s.ErrorIs(err, settlement.ErrInvalidAmount)

	_, err = s.wallet.Pay(s.ctx, model.PayRequest{ToAccountID: "bob", Amount: "1000"})
	s.ErrorIs(err, settlement.ErrInsufficientLiquidity)

	// a failed payment does not start the cooldown
	_, err = s.wallet.Pay(s.ctx, model.PayRequest{ToAccountID: "bob", Amount: "1"})
	s.NoError(err)
}

func (s *WalletSuite) TestGetTransactions() {
	s.generate()
	_, err := s.service.Submit(s.ctx, model.Transaction{
		ID:         "mint-1",
		Type:       model.TransactionTypeMint,
		SenderID:   "bank",
		ReceiverID: "alice",
		Amount:     decimal.NewFromInt(50),
		Timestamp:  s.now.Add(-time.Hour).UnixMilli(),
		Nonce:      "n",
	}, settlement.Authority{ID: "bank", Capability: "cap"})
	s.Require().NoError(err)

	pay, err := s.wallet.Pay(s.ctx, model.PayRequest{ToAccountID: "bob", Amount: "30.5"})
	s.Require().NoError(err)

	log, err := s.wallet.GetTransactions(s.ctx, "alice", nil)
	s.Require().NoError(err)
	s.Require().Len(log.Transactions, 2)
	s.Equal(pay.TxID, log.Transactions[0].TxID)
	s.Equal(model.DirectionCredit, log.Transactions[0].Direction)
	s.Equal(model.DirectionDebit, log.Transactions[1].Direction)
	s.Equal("50.000000", log.TotalIncome)
	s.Equal("30.500000", log.TotalSpent)

	debit := model.DirectionDebit
	log, err = s.wallet.GetTransactions(s.ctx, "alice", &model.LogRequest{Direction: &debit})
	s.Require().NoError(err)
	s.Require().Len(log.Transactions, 1)
	s.Equal("mint-1", log.Transactions[0].TxID)
	s.Equal("0.000000", log.TotalSpent)

	minAmount := "40"
	log, err = s.wallet.GetTransactions(s.ctx, "alice", &model.LogRequest{MinAmount: &minAmount})
	s.Require().NoError(err)
	s.Len(log.Transactions, 1)

	from := s.now.Add(-time.Minute)
	log, err = s.wallet.GetTransactions(s.ctx, "alice", &model.LogRequest{From: &from})
	s.Require().NoError(err)
	s.Require().Len(log.Transactions, 1)
	s.Equal(pay.TxID, log.Transactions[0].TxID)

	bad := model.Direction("SIDEWAYS")
	_, err = s.wallet.GetTransactions(s.ctx, "alice", &model.LogRequest{Direction: &bad})
	s.Error(err)

	_, err = s.wallet.GetTransactions(s.ctx, "nobody", nil)
	s.ErrorIs(err, settlement.ErrUnknownAccount)
}

func (s *WalletSuite) TestGetBalanceWithRate() {
	rates := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"community-coin":{"usd":0.25}}`))
	}))
	defer rates.Close()

	s.wallet = s.newWallet(client.NewRateClient(rates.URL, "community-coin", "usd"))
	s.generate()

	resp, err := s.wallet.GetBalance(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("100", resp.Balance)
	s.Equal("0.25", resp.Rate)
	s.Equal("25.00", resp.Fiat)
	s.Equal("USD", resp.Currency)
	s.Equal(string(model.AccountKindIdentity), resp.Kind)
}

func (s *WalletSuite) TestGetBalanceWithoutRate() {
	s.generate()
	resp, err := s.wallet.GetBalance(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("100", resp.Balance)
	s.Empty(resp.Fiat)

	_, err = s.wallet.GetBalance(s.ctx, "nobody")
	s.ErrorIs(err, settlement.ErrUnknownAccount)
}
