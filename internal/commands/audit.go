package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trustledger/trustledger/internal/auditlog"
)

func newAuditCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}
	cmd.AddCommand(newAuditListCommand(g))
	return cmd
}

func newAuditListCommand(g *globals) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded changes for the merchant, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				entries, err := auditlog.Read(a.cfg.Audit.Dir)
				if err != nil {
					return err
				}
				entries = auditlog.ForMerchant(entries, a.merchantID)
				if limit > 0 && len(entries) > limit {
					entries = entries[len(entries)-limit:]
				}

				tw := a.table()
				fmt.Fprintln(tw, "TIME\tACTOR\tACTION\tENTITY\tDETAILS")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Actor,
						e.Action, e.EntityID, e.Details)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "show only the most recent entries (0 for all)")
	return cmd
}
