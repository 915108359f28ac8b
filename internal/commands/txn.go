package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trustledger/trustledger/internal/auditlog"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/posting"
)

func newTxnCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "txn",
		Short: "Post and manage trust transactions",
	}
	cmd.AddCommand(
		newTxnPostCommand(g),
		newTxnVoidCommand(g),
		newTxnStatusCommand(g, "approve", model.TxCompleted, "Approve a pending transaction and apply it"),
		newTxnStatusCommand(g, "reject", model.TxRejected, "Reject a pending transaction"),
		newTxnClearCommand(g),
	)
	return cmd
}

func newTxnPostCommand(g *globals) *cobra.Command {
	var (
		p                    posting.PostParams
		txType, fund, amount string
		date                 string
		pending              bool
	)

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a transaction to a client ledger",
		Long: `Post a transaction to a client ledger and its trust account in one step.

Amounts are positive; the type decides the direction. Transfers carry a
signed amount: positive into the ledger, negative out of it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				amt, err := parseMoney("amount", amount)
				if err != nil {
					return err
				}
				p.TransactionDate = time.Now().UTC().Truncate(24 * time.Hour)
				if date != "" {
					if p.TransactionDate, err = parseDate("date", date); err != nil {
						return err
					}
				}
				p.MerchantID = a.merchantID
				p.CreatedBy = a.userID
				p.Amount = amt
				p.Type = model.TransactionType(txType)
				p.FundType = model.FundType(fund)
				if pending {
					p.Status = model.TxPending
				}

				res, err := a.poster.PostTransaction(ctx, p)
				if err != nil {
					return err
				}
				t := res.Transaction
				a.audit(auditlog.ActionPost, t.ID, fmt.Sprintf("%s %s to ledger %s, status %s",
					t.Type, t.Amount.StringFixed(2), t.ClientLedgerID, t.Status))
				fmt.Fprintf(a.out, "Posted %s %s (%s)\n", t.Type, t.Amount.StringFixed(2), t.ID)
				fmt.Fprintf(a.out, "Ledger balance:  %s\n", res.NewLedgerBalance.StringFixed(2))
				fmt.Fprintf(a.out, "Account balance: %s\n", res.NewAccountBalance.StringFixed(2))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.TrustAccountID, "account", "", "trust account id")
	f.StringVar(&p.ClientLedgerID, "ledger", "", "client ledger id")
	f.StringVar(&txType, "type", "", "deposit, withdrawal, transfer, interest, fee or payment")
	f.StringVar(&fund, "fund-type", string(model.FundTrust), "retainer, settlement, trust, operating or other")
	f.StringVar(&amount, "amount", "", "amount, at most two decimal places")
	f.StringVar(&date, "date", "", "transaction date YYYY-MM-DD (default today)")
	f.StringVar(&p.Description, "description", "", "description")
	f.StringVar(&p.CheckNumber, "check", "", "check number")
	f.StringVar(&p.ReferenceNumber, "reference", "", "wire or ACH reference")
	f.StringVar(&p.Payee, "payee", "", "payee")
	f.StringVar(&p.Payor, "payor", "", "payor")
	f.BoolVar(&pending, "pending", false, "record without moving balances until approved")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newTxnVoidCommand(g *globals) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "void <transaction-id>",
		Short: "Void a completed transaction, reversing its effect",
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				t, err := a.poster.VoidTransaction(ctx, a.merchantID, args[0], a.userID, reason)
				if err != nil {
					return err
				}
				a.audit(auditlog.ActionVoid, t.ID, reason)
				fmt.Fprintf(a.out, "Voided %s %s (%s)\n", t.Type, t.Amount.StringFixed(2), t.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the transaction is voided")
	return cmd
}

func newTxnStatusCommand(g *globals, use string, status model.TransactionStatus, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <transaction-id>",
		Short: short,
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				t, err := a.poster.UpdateTransactionStatus(ctx, a.merchantID, args[0], status, a.userID)
				if err != nil {
					return err
				}
				a.audit(auditlog.ActionTransactionStatus, t.ID, string(t.Status))
				fmt.Fprintf(a.out, "Transaction %s is now %s\n", t.ID, t.Status)
				return nil
			})
		},
	}
}

func newTxnClearCommand(g *globals) *cobra.Command {
	var date, bankRef string

	cmd := &cobra.Command{
		Use:   "clear <transaction-id>...",
		Short: "Mark transactions as cleared by the bank",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
				return err
			}
			return checkIDs(args...)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				cleared, err := parseDate("date", date)
				if err != nil {
					return err
				}

				if len(args) == 1 {
					t, err := a.engine.MarkTransactionCleared(ctx, a.merchantID, args[0], cleared, bankRef)
					if err != nil {
						return err
					}
					a.audit(auditlog.ActionClear, t.ID, bankRef)
					fmt.Fprintf(a.out, "Cleared %s on %s\n", t.ID, date)
					return nil
				}

				n, err := a.engine.MarkTransactionsCleared(ctx, a.merchantID, args, cleared)
				if err != nil {
					return err
				}
				for _, txID := range args {
					a.audit(auditlog.ActionClear, txID, "batch")
				}
				fmt.Fprintf(a.out, "Cleared %d of %d transactions\n", n, len(args))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date the bank cleared the items YYYY-MM-DD")
	cmd.Flags().StringVar(&bankRef, "bank-ref", "", "bank reference (single transaction only)")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
