// Command ledgerd runs the sovereign ledger node.
//
// @title           Sovereign Ledger API
// @version         1.0
// @description     Signed value transfers settled against a public mirror.
// @BasePath        /
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledgerd",
		Short:         "Sovereign ledger node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		serveCommand(),
		genesisCommand(),
		vaultCommand(),
		auditCommand(),
		syncCommand(),
		recoverCommand(),
	)
	return cmd
}
