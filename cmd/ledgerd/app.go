package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/AlexZinkM/sovereign-ledger/internal/audit"
	"github.com/AlexZinkM/sovereign-ledger/internal/authority"
	"github.com/AlexZinkM/sovereign-ledger/internal/client"
	"github.com/AlexZinkM/sovereign-ledger/internal/common"
	"github.com/AlexZinkM/sovereign-ledger/internal/config"
	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
	"github.com/AlexZinkM/sovereign-ledger/internal/logger"
	"github.com/AlexZinkM/sovereign-ledger/internal/metrics"
	"github.com/AlexZinkM/sovereign-ledger/internal/mirrorsync"
	"github.com/AlexZinkM/sovereign-ledger/internal/multisig"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
	"github.com/AlexZinkM/sovereign-ledger/internal/store"
	"github.com/AlexZinkM/sovereign-ledger/wallet"
)

// gateAuthorityID is the authority the multi-sig gate settles treasury transfers as.
const gateAuthorityID = "treasury-gate"

// app holds the wired node components.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	registry   *prometheus.Registry
	store      store.Store
	mirror     *client.MirrorClient
	settlement *settlement.Service
	gate       *multisig.Gate
	signers    *authority.Registry
	auditor    *audit.Auditor
	syncer     *mirrorsync.Syncer
	wallet     *wallet.Wallet
	close      func()
}

func newApp(ctx context.Context) (*app, error) {
	if err := config.Init(); err != nil {
		return nil, err
	}
	cfg := config.Get()

	log, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	a := &app{cfg: cfg, logger: log, registry: registry, close: func() {}}

	if cfg.DatabaseURL != "" {
		pg, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		a.store = pg
		a.close = pg.Close
		log.Info().Msg("using postgres store")
	} else {
		a.store = store.NewMemory()
		log.Warn().Msg("DATABASE_URL not set, ledger is kept in memory")
	}

	a.mirror = client.NewMirrorClient(client.MirrorConfig{
		BaseURL:    cfg.MirrorBaseURL,
		Token:      cfg.MirrorToken,
		Branch:     cfg.MirrorBranch,
		Timeout:    cfg.MirrorTimeout,
		MaxRetries: cfg.MirrorMaxRetries,
	}, client.WithMirrorLogger(log), client.WithMirrorMetrics(m))

	authorities, err := authority.NewRegistry(cfg.AuthorityCapabilities, cfg.AuthorityIssuers)
	if err != nil {
		a.close()
		return nil, err
	}
	// The gate's capability lives only in this process.
	gateAuthority := settlement.Authority{ID: gateAuthorityID, Capability: uuid.NewString()}
	if err := authorities.Register(gateAuthority.ID, gateAuthority.Capability); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to register %s: %w", gateAuthorityID, err)
	}

	a.settlement = settlement.New(a.store, a.mirror, authorities,
		settlement.WithLogger(log),
		settlement.WithMetrics(m),
		settlement.WithMaxAttempts(cfg.SettlementMaxAttempts),
		settlement.WithTreasuryAuthority(gateAuthority.ID),
	)

	threshold, err := common.ParsePositiveAmount(cfg.MultisigThreshold)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("invalid MULTISIG_THRESHOLD: %w", err)
	}
	a.gate, err = multisig.NewGate(a.settlement, a.store, multisig.Config{
		Threshold:       threshold,
		RequiredSigners: cfg.MultisigRequiredSigners,
		Signers:         cfg.MultisigSigners,
		Authority:       gateAuthority,
	}, multisig.WithLogger(log), multisig.WithMetrics(m))
	if err != nil {
		a.close()
		return nil, err
	}

	if len(cfg.MultisigSignerCapabilities) > 0 {
		if a.signers, err = authority.NewRegistry(cfg.MultisigSignerCapabilities, nil); err != nil {
			a.close()
			return nil, fmt.Errorf("invalid MULTISIG_SIGNER_CAPABILITIES: %w", err)
		}
	} else {
		log.Warn().Msg("MULTISIG_SIGNER_CAPABILITIES not set, signer ids are not authenticated")
	}

	a.auditor = audit.New(a.store, authorities,
		audit.WithLogger(log),
		audit.WithMetrics(m),
		audit.WithMirror(a.mirror),
	)
	a.syncer = mirrorsync.New(a.settlement, a.mirror, a.store, cfg.SyncInterval,
		mirrorsync.WithLogger(log),
		mirrorsync.WithMetrics(m),
	)

	genesis, err := common.ParseAmount(cfg.GenesisStake)
	if err != nil || genesis.IsNegative() {
		a.close()
		return nil, fmt.Errorf("invalid GENESIS_STAKE %q", cfg.GenesisStake)
	}
	a.wallet = wallet.New(wallet.Config{
		VaultFilePath: cfg.VaultFilePath,
		GenesisStake:  genesis,
		PayCooldown:   time.Duration(cfg.PayCooldown) * time.Minute,
	}, a.settlement, crypto.NewKeyVault(cfg.VaultKDFIterations),
		wallet.WithLogger(log),
		wallet.WithRates(client.NewRateClient(cfg.RateAPIURL, cfg.RateCoinID, cfg.RateVsCurrency)),
	)
	return a, nil
}
