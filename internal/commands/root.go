package commands

import (
	"github.com/spf13/cobra"

	"github.com/trustledger/trustledger/internal/buildinfo"
	"github.com/trustledger/trustledger/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "trustledger",
		Short:   "IOLTA trust accounting for law firms",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", config.FileName, "path to trustledger.yaml")
	pf.StringVar(&g.merchantID, "merchant", "", "merchant (firm) id; defaults to firm.merchant_id")
	pf.StringVar(&g.userID, "user", "", "acting user id, recorded on every change")

	rootCmd.AddCommand(
		newInitCommand(g),
		newAccountCommand(g),
		newLedgerCommand(g),
		newTxnCommand(g),
		newStatementCommand(g),
		newReconcileCommand(g),
		newImportCommand(g),
		newAuditCommand(g),
		newServeCommand(g),
	)

	return rootCmd
}
