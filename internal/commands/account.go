package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustledger/trustledger/internal/auditlog"
	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/model"
)

func newAccountCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage trust bank accounts",
	}
	cmd.AddCommand(
		newAccountCreateCommand(g),
		newAccountListCommand(g),
		newAccountShowCommand(g),
		newAccountStatusCommand(g),
	)
	return cmd
}

func newAccountCreateCommand(g *globals) *cobra.Command {
	var p ledger.CreateTrustAccountParams
	var rate string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a trust account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				p.MerchantID = a.merchantID
				if rate != "" {
					r, err := parseMoney("interest-rate", rate)
					if err != nil {
						return err
					}
					p.InterestRate = r
				}

				acct, err := a.ledgers.CreateTrustAccount(ctx, p)
				if err != nil {
					return err
				}
				a.audit(auditlog.ActionCreateAccount, acct.ID, fmt.Sprintf("%s %s", acct.BankName, acct.AccountNumber))
				fmt.Fprintf(a.out, "Created trust account %s\n", acct.ID)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.AccountNumber, "number", "", "bank account number")
	f.StringVar(&p.AccountName, "name", "", "display name")
	f.StringVar(&p.BankName, "bank", "", "bank name")
	f.StringVar(&p.RoutingNumber, "routing", "", "9-digit ABA routing number")
	f.StringVar(&p.AccountType, "type", model.AccountTypeIOLTA, "account type")
	f.StringVar(&rate, "interest-rate", "", "annual interest rate, e.g. 0.015")

	return cmd
}

func newAccountListCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List trust accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				accounts, err := a.ledgers.ListTrustAccountsByMerchant(ctx, a.merchantID)
				if err != nil {
					return err
				}
				tw := a.table()
				fmt.Fprintln(tw, "ID\tNAME\tBANK\tNUMBER\tSTATUS\tBALANCE\tLAST RECONCILED")
				for _, acct := range accounts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", acct.ID, acct.AccountName, acct.BankName,
						acct.AccountNumber, acct.Status, acct.Balance.StringFixed(2), formatDate(acct.LastReconciliationDate))
				}
				return tw.Flush()
			})
		},
	}
}

func newAccountShowCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <account-id>",
		Short: "Show a trust account and its client ledger total",
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				lb, err := a.ledgers.GetClientLedgerBalances(ctx, a.merchantID, args[0])
				if err != nil {
					return err
				}
				printAccount(a, lb.TrustAccount)
				fmt.Fprintf(a.out, "Client ledgers:    %d\n", len(lb.ClientLedgers))
				fmt.Fprintf(a.out, "Ledger total:      %s\n", lb.TotalBalance.StringFixed(2))
				return nil
			})
		},
	}
}

func printAccount(a *app, acct model.TrustAccount) {
	fmt.Fprintf(a.out, "Trust account:     %s\n", acct.ID)
	fmt.Fprintf(a.out, "Name:              %s\n", acct.AccountName)
	fmt.Fprintf(a.out, "Bank:              %s (routing %s)\n", acct.BankName, acct.RoutingNumber)
	fmt.Fprintf(a.out, "Number:            %s\n", acct.AccountNumber)
	fmt.Fprintf(a.out, "Type:              %s\n", acct.AccountType)
	fmt.Fprintf(a.out, "Status:            %s\n", acct.Status)
	fmt.Fprintf(a.out, "Balance:           %s\n", acct.Balance.StringFixed(2))
	if !acct.InterestRate.IsZero() {
		fmt.Fprintf(a.out, "Interest rate:     %s\n", acct.InterestRate.String())
	}
	fmt.Fprintf(a.out, "Last reconciled:   %s\n", formatDate(acct.LastReconciliationDate))
}

func newAccountStatusCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status <account-id> <active|inactive|closed>",
		Short: "Change a trust account's status",
		Args:  entityArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				acct, err := a.ledgers.UpdateTrustAccountStatus(ctx, a.merchantID, args[0], model.Status(args[1]))
				if err != nil {
					return err
				}
				a.audit(auditlog.ActionAccountStatus, acct.ID, string(acct.Status))
				fmt.Fprintf(a.out, "Trust account %s is now %s\n", acct.ID, acct.Status)
				return nil
			})
		},
	}
}
