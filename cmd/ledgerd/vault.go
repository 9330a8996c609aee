package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AlexZinkM/sovereign-ledger/internal/common"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/settlement"
)

func vaultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage treasury vaults",
	}
	cmd.AddCommand(vaultOpenCommand(), vaultLockCommand(true), vaultLockCommand(false))
	return cmd
}

func vaultOpenCommand() *cobra.Command {
	var genesis string

	cmd := &cobra.Command{
		Use:   "open <vault>",
		Short: "Open a treasury vault with its genesis stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stake, err := common.ParseAmount(genesis)
			if err != nil {
				return fmt.Errorf("invalid --genesis: %w", err)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			account, err := a.settlement.OpenAccount(cmd.Context(), settlement.AccountSpec{
				ID:      args[0],
				Kind:    model.AccountKindVault,
				Genesis: stake,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), account)
		},
	}

	cmd.Flags().StringVar(&genesis, "genesis", "0", "Opening balance of the vault")
	return cmd
}

func vaultLockCommand(locked bool) *cobra.Command {
	use, short := "unlock <vault>", "Allow outflows from a treasury vault"
	if locked {
		use, short = "lock <vault>", "Block every outflow from a treasury vault"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			account, err := a.settlement.SetVaultLock(cmd.Context(), args[0], locked)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), account)
		},
	}
}
