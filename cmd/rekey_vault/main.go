// One-off: open a legacy vault file (sealed with 1000 PBKDF2 rounds, no "iter"
// field) and seal the same phrase again with the current iteration count.
// Usage: go run ./cmd/rekey_vault --file identity.vault
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AlexZinkM/sovereign-ledger/internal/config"
	"github.com/AlexZinkM/sovereign-ledger/internal/crypto"
)

func main() {
	var (
		filePath   string
		iterations int
	)

	cmd := &cobra.Command{
		Use:          "rekey_vault",
		Short:        "Re-seal a vault file with the current PBKDF2 iteration count",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := crypto.ReadVaultFile(filePath)
			if err != nil {
				return err
			}
			if file.Iterations >= iterations {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already sealed with %d iterations\n", filePath, file.Iterations)
				return nil
			}

			if err := config.PromptForPIN(); err != nil {
				return err
			}
			defer config.ClearPIN()
			pin, err := config.GetPINBytes()
			if err != nil {
				return err
			}
			defer clear(pin)

			envelope, err := crypto.NewKeyVault(iterations).Rekey(&file.EncryptedVault, pin)
			if err != nil {
				return err
			}
			file.EncryptedVault = *envelope
			if err := crypto.ReplaceVaultFile(filePath, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s re-sealed with %d iterations\n", filePath, iterations)
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "identity.vault", "Path to the .vault file")
	cmd.Flags().IntVar(&iterations, "iterations", crypto.DefaultIterations, "PBKDF2 iterations to seal with")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
