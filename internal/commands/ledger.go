package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustledger/trustledger/internal/auditlog"
	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/model"
)

func newLedgerCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Manage client ledgers",
	}
	cmd.AddCommand(
		newLedgerCreateCommand(g),
		newLedgerListCommand(g),
		newLedgerShowCommand(g),
		newLedgerBalancesCommand(g),
		newLedgerStatusCommand(g),
	)
	return cmd
}

func newLedgerCreateCommand(g *globals) *cobra.Command {
	var p ledger.CreateClientLedgerParams
	var client string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a client ledger under a trust account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				p.MerchantID = a.merchantID
				p.ClientID = id.ToLedgerClientID(client)

				l, err := a.ledgers.CreateClientLedger(ctx, p)
				if err != nil {
					return err
				}
				a.audit(auditlog.ActionCreateLedger, l.ID, fmt.Sprintf("client %s on account %s", l.ClientID, l.TrustAccountID))
				fmt.Fprintf(a.out, "Created client ledger %s for client %s\n", l.ID, l.ClientID)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.TrustAccountID, "account", "", "trust account id")
	f.StringVar(&client, "client", "", "client id")
	f.StringVar(&p.ClientName, "client-name", "", "client display name")
	f.StringVar(&p.MatterName, "matter", "", "matter name")
	f.StringVar(&p.MatterNumber, "matter-number", "", "matter number")
	f.StringVar(&p.Jurisdiction, "jurisdiction", "", "bar jurisdiction")

	return cmd
}

func newLedgerListCommand(g *globals) *cobra.Command {
	var accountID, client string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List client ledgers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				var (
					ledgers []model.ClientLedger
					err     error
				)
				switch {
				case client != "":
					ledgers, err = a.ledgers.ListClientLedgersByClientID(ctx, a.merchantID, id.ToLedgerClientID(client))
				case accountID != "":
					ledgers, err = a.ledgers.ListClientLedgersByTrustAccount(ctx, a.merchantID, accountID)
				default:
					ledgers, err = a.ledgers.ListClientLedgersByMerchant(ctx, a.merchantID)
				}
				if err != nil {
					return err
				}
				printLedgers(a, ledgers)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "only ledgers under this trust account")
	cmd.Flags().StringVar(&client, "client", "", "only ledgers of this client")
	return cmd
}

func printLedgers(a *app, ledgers []model.ClientLedger) {
	tw := a.table()
	fmt.Fprintln(tw, "ID\tACCOUNT\tCLIENT\tNAME\tMATTER\tSTATUS\tBALANCE\tLAST ACTIVITY")
	for _, l := range ledgers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", l.ID, l.TrustAccountID, l.ClientID, l.ClientName,
			l.MatterName, l.Status, l.Balance.StringFixed(2), formatDate(l.LastTransactionDate))
	}
	tw.Flush()
}

func newLedgerShowCommand(g *globals) *cobra.Command {
	var byClient bool

	cmd := &cobra.Command{
		Use:   "show <ledger-id | client-id>",
		Short: "Show one client ledger",
		Long:  "Show one client ledger by its id, or with --client the first active ledger of a client.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				var (
					res ledger.LedgerLookup
					err error
				)
				if byClient {
					res, err = a.ledgers.GetClientLedgerByClientID(ctx, a.merchantID, id.ToLedgerClientID(args[0]))
				} else {
					if !id.Valid(args[0]) {
						return fmt.Errorf("%q is not a ledger id; pass --client to look up by client id", args[0])
					}
					res, err = a.ledgers.GetClientLedgerByID(ctx, a.merchantID, args[0])
				}
				if err != nil {
					return err
				}
				if !res.Found {
					return errors.New("no matching client ledger")
				}

				l := res.Ledger
				fmt.Fprintf(a.out, "Client ledger:     %s\n", l.ID)
				fmt.Fprintf(a.out, "Trust account:     %s\n", l.TrustAccountID)
				fmt.Fprintf(a.out, "Client:            %s %s\n", l.ClientID, l.ClientName)
				fmt.Fprintf(a.out, "Matter:            %s %s\n", l.MatterNumber, l.MatterName)
				fmt.Fprintf(a.out, "Jurisdiction:      %s\n", l.Jurisdiction)
				fmt.Fprintf(a.out, "Status:            %s\n", l.Status)
				fmt.Fprintf(a.out, "Balance:           %s\n", l.Balance.StringFixed(2))
				fmt.Fprintf(a.out, "Last activity:     %s\n", formatDate(l.LastTransactionDate))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&byClient, "client", false, "treat the argument as a client id")
	return cmd
}

func newLedgerBalancesCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "balances <account-id>",
		Short: "List client ledger balances under a trust account",
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				lb, err := a.ledgers.GetClientLedgerBalances(ctx, a.merchantID, args[0])
				if err != nil {
					return err
				}
				printLedgers(a, lb.ClientLedgers)
				fmt.Fprintf(a.out, "\nTotal: %s   Book balance: %s\n",
					lb.TotalBalance.StringFixed(2), lb.TrustAccount.Balance.StringFixed(2))
				return nil
			})
		},
	}
}

func newLedgerStatusCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status <ledger-id> <active|inactive|closed>",
		Short: "Change a client ledger's status",
		Args:  entityArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				l, err := a.ledgers.UpdateClientLedgerStatus(ctx, a.merchantID, args[0], model.Status(args[1]))
				if err != nil {
					return err
				}
				a.audit(auditlog.ActionLedgerStatus, l.ID, string(l.Status))
				fmt.Fprintf(a.out, "Client ledger %s is now %s\n", l.ID, l.Status)
				return nil
			})
		},
	}
}
