// Package wallet is the local identity holder's view of the ledger: it owns
// the vault file, unlocks the signing session and pays from it.
package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/AlexZinkM/sovereign-ledger/internal/client"
	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
)

var (
	// ErrUnlockFailed hides whether the PIN was wrong or the vault corrupt.
	ErrUnlockFailed = errors.New("failed to unlock vault")
	ErrCooldown     = errors.New("cooldown active")
)

// Ledger is what the wallet needs from settlement.
type Ledger interface {
	OpenAccount(ctx context.Context, spec settlement.AccountSpec) (*model.Account, error)
	Submit(ctx context.Context, tx model.Transaction, sender settlement.Sender) (*model.SettledResult, error)
	Account(ctx context.Context, id string) (*model.Account, error)
	History(ctx context.Context, id string) ([]model.LedgerEntry, error)
}

// Config holds the wallet settings.
type Config struct {
	VaultFilePath string
	GenesisStake  decimal.Decimal
	PayCooldown   time.Duration
}

type Wallet struct {
	cfg    Config
	ledger Ledger
	vault  *crypto.KeyVault
	rates  *client.RateClient
	logger zerolog.Logger
	now    func() time.Time

	payMu       sync.Mutex
	lastPayTime time.Time
}

type Option func(*Wallet)

func WithLogger(logger zerolog.Logger) Option {
	return func(w *Wallet) { w.logger = logger }
}

// WithRates enables fiat estimates on balances.
func WithRates(rates *client.RateClient) Option {
	return func(w *Wallet) { w.rates = rates }
}

func WithClock(now func() time.Time) Option {
	return func(w *Wallet) { w.now = now }
}

func New(cfg Config, ledger Ledger, vault *crypto.KeyVault, opts ...Option) *Wallet {
	w := &Wallet{
		cfg:    cfg,
		ledger: ledger,
		vault:  vault,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}
