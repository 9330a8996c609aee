package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlexZinkM/sovereign-ledger/internal/api"
	"github.com/AlexZinkM/sovereign-ledger/internal/config"
	"github.com/AlexZinkM/sovereign-ledger/internal/handler"
)

func serveCommand() *cobra.Command {
	var noPrompt bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger HTTP API and run the mirror sync job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if !noPrompt {
				if err := config.PromptForPIN(); err != nil {
					a.logger.Warn().Err(err).Msg("no startup PIN, requests must carry one")
				}
			}
			defer config.ClearPIN()

			if a.cfg.SyncInterval > 0 {
				go func() {
					if err := a.syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						a.logger.Error().Err(err).Msg("mirror sync stopped")
					}
				}()
			}

			if a.cfg.AdminToken == "" {
				a.logger.Warn().Msg("ADMIN_TOKEN not set, vault management is open to every caller")
			}
			ledgerHandler := handler.NewLedgerHandler(a.wallet, a.settlement, a.gate, a.auditor, a.logger,
				handler.WithSigners(a.signers),
				handler.WithAdminToken(a.cfg.AdminToken),
			)
			srv := &http.Server{
				Addr:              ":" + a.cfg.Port,
				Handler:           api.SetupRouter(ledgerHandler, a.registry, a.logger),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info().Str("addr", srv.Addr).Msg("starting ledger API")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			a.logger.Info().Msg("ledger API stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Do not prompt for the vault PIN at startup")
	return cmd
}
