package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AlexZinkM/sovereign-ledger/internal/config"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
)

func genesisCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis <account>",
		Short: "Generate the local identity and open its account with the genesis stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := config.PromptForPIN(); err != nil {
				return err
			}
			defer config.ClearPIN()
			pin, err := config.GetPINBytes()
			if err != nil {
				return err
			}
			defer clear(pin)

			resp, err := a.wallet.GenerateIdentity(cmd.Context(), args[0], pin)
			if err != nil {
				return err
			}
			resp.Message = "Write down the recovery phrase below. It will not be shown again."
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	return cmd
}

func auditCommand() *cobra.Command {
	var failOnMismatch bool

	cmd := &cobra.Command{
		Use:   "audit <account>",
		Short: "Replay an account's history and compare it with the stored balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.auditor.Audit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if failOnMismatch && (report.Verdict != model.AuditVerified || len(report.Breaches) > 0) {
				return fmt.Errorf("audit of %s: %s with %d breaches", args[0], report.Verdict, len(report.Breaches))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnMismatch, "fail-on-mismatch", false, "Exit non-zero unless the account verifies cleanly")
	return cmd
}

func syncCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Recover interrupted settlements and republish entries missing from the mirror",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if !once {
				return a.syncer.Run(cmd.Context())
			}
			result, err := a.syncer.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single pass and exit")
	return cmd
}

func recoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Complete or abort settlements interrupted mid-flight",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.settlement.Recover(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = w.Write(append(out, '\n'))
	return err
}
