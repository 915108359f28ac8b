package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trustledger/trustledger/internal/auditlog"
	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/reconcile"
)

func newReconcileCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Three-way trust reconciliation",
	}
	cmd.AddCommand(
		newReconcileBalancesCommand(g),
		newReconcileCompleteCommand(g),
		newReconcileFinishCommand(g),
		newReconcileReviewCommand(g),
		newReconcileNoteCommand(g, "dispute", "Dispute a draft reconciliation", auditlog.ActionDisputeReconcile,
			func(e *reconcile.Engine) noteFunc { return e.Dispute }),
		newReconcileNoteCommand(g, "reopen", "Reopen a disputed reconciliation as a draft", auditlog.ActionReopenReconcile,
			func(e *reconcile.Engine) noteFunc { return e.Reopen }),
		newReconcileShowCommand(g),
		newReconcileListCommand(g),
		newReconcileReportCommand(g),
		newReconcileClientReportCommand(g),
	)
	return cmd
}

func newReconcileBalancesCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "balances <account-id>",
		Short: "Compare book balance, client ledgers and items in transit",
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				b, err := a.engine.GetReconciliationBalances(ctx, a.merchantID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Book balance:          %s\n", b.BookBalance.StringFixed(2))
				fmt.Fprintf(a.out, "Client ledger total:   %s\n", b.ClientLedgerTotal.StringFixed(2))
				fmt.Fprintf(a.out, "Difference:            %s\n", b.Difference.StringFixed(2))
				fmt.Fprintf(a.out, "Balanced:              %t\n", b.IsBalanced)
				fmt.Fprintf(a.out, "Outstanding checks:    %d\n", len(b.OutstandingChecks))
				fmt.Fprintf(a.out, "Deposits in transit:   %d\n", len(b.OutstandingDeposits))
				fmt.Fprintf(a.out, "Cleared / uncleared:   %d / %d\n", len(b.ClearedTransactions), len(b.UnclearedTransactions))
				a.metrics.SetAccountBalance(b.TrustAccount.ID, b.Difference, b.IsBalanced)
				return nil
			})
		},
	}
}

func newReconcileCompleteCommand(g *globals) *cobra.Command {
	var (
		p                 reconcile.CompleteParams
		date, bankBalance string
		draft             bool
	)

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Record a reconciliation against a bank balance",
		Long: `Record a reconciliation against a bank balance.

The bank balance defaults to the ending balance of --statement. The
result is completed when everything agrees and disputed otherwise; with
--draft it is saved as a draft to finish later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				var err error
				if p.ReconciliationDate, err = parseDate("date", date); err != nil {
					return err
				}
				if bankBalance != "" {
					bb, err := parseMoney("bank-balance", bankBalance)
					if err != nil {
						return err
					}
					p.BankBalance = &bb
				}
				p.MerchantID = a.merchantID
				p.ReconcilerID = a.userID

				var rec model.Reconciliation
				if draft {
					rec, err = a.engine.CreateDraft(ctx, p)
				} else {
					rec, err = a.engine.CompleteReconciliation(ctx, p)
				}
				if err != nil {
					return err
				}
				a.audit(auditlog.ActionReconcile, rec.ID, fmt.Sprintf("%s, difference %s", rec.Status, rec.Difference.StringFixed(2)))
				printReconciliation(a, rec)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.TrustAccountID, "account", "", "trust account id")
	f.StringVar(&p.BankStatementID, "statement", "", "imported bank statement id")
	f.StringVar(&date, "date", "", "reconciliation date YYYY-MM-DD")
	f.StringVar(&bankBalance, "bank-balance", "", "bank statement ending balance")
	f.StringVar(&p.Notes, "notes", "", "notes")
	f.BoolVar(&draft, "draft", false, "save as a draft")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newReconcileFinishCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "finish <reconciliation-id>",
		Short: "Recompute a draft and complete it if it balances",
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				rec, err := a.engine.Complete(ctx, a.merchantID, args[0])
				if err != nil {
					return err
				}
				a.audit(auditlog.ActionReconcile, rec.ID, string(rec.Status))
				printReconciliation(a, rec)
				return nil
			})
		},
	}
}

func newReconcileReviewCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "review <reconciliation-id>",
		Short: "Sign off a completed reconciliation as reviewer",
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				rec, err := a.engine.Review(ctx, a.merchantID, args[0], a.userID)
				if err != nil {
					return err
				}
				a.audit(auditlog.ActionReviewReconcile, rec.ID, "")
				fmt.Fprintf(a.out, "Reconciliation %s reviewed by %s\n", rec.ID, rec.ReviewerID)
				return nil
			})
		},
	}
}

// noteFunc is a reconciliation transition that only records notes.
type noteFunc func(ctx context.Context, merchantID, reconID, notes string) (model.Reconciliation, error)

func newReconcileNoteCommand(g *globals, use, short, action string, pick func(*reconcile.Engine) noteFunc) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   use + " <reconciliation-id>",
		Short: short,
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				rec, err := pick(a.engine)(ctx, a.merchantID, args[0], notes)
				if err != nil {
					return err
				}
				a.audit(action, rec.ID, notes)
				fmt.Fprintf(a.out, "Reconciliation %s is now %s\n", rec.ID, rec.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "reason, appended to the reconciliation notes")
	return cmd
}

func newReconcileShowCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <reconciliation-id>",
		Short: "Show a reconciliation with its outstanding items",
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				rec, err := a.engine.Get(ctx, a.merchantID, args[0])
				if err != nil {
					return err
				}
				printReconciliation(a, rec)

				tw := a.table()
				fmt.Fprintln(tw, "\nOUTSTANDING\tDATE\tCHECK\tAMOUNT\tTRANSACTION")
				for _, it := range rec.Outstanding.Checks {
					fmt.Fprintf(tw, "check\t%s\t%s\t%s\t%s\n", it.TransactionDate.Format(dateLayout), it.CheckNumber,
						it.Amount.StringFixed(2), it.TransactionID)
				}
				for _, it := range rec.Outstanding.Deposits {
					fmt.Fprintf(tw, "deposit\t%s\t%s\t%s\t%s\n", it.TransactionDate.Format(dateLayout), it.CheckNumber,
						it.Amount.StringFixed(2), it.TransactionID)
				}
				return tw.Flush()
			})
		},
	}
}

func printReconciliation(a *app, rec model.Reconciliation) {
	fmt.Fprintf(a.out, "Reconciliation:        %s (%s)\n", rec.ID, rec.Status)
	fmt.Fprintf(a.out, "Date:                  %s\n", rec.ReconciliationDate.Format(dateLayout))
	fmt.Fprintf(a.out, "Book balance:          %s\n", rec.BookBalance.StringFixed(2))
	fmt.Fprintf(a.out, "Client ledger total:   %s\n", rec.ClientLedgerTotal.StringFixed(2))
	fmt.Fprintf(a.out, "Bank balance:          %s\n", rec.BankBalance.StringFixed(2))
	fmt.Fprintf(a.out, "Deposits in transit:   %s\n", rec.Outstanding.TotalDeposits.StringFixed(2))
	fmt.Fprintf(a.out, "Outstanding checks:    %s\n", rec.Outstanding.TotalChecks.StringFixed(2))
	fmt.Fprintf(a.out, "Adjusted bank balance: %s\n", rec.AdjustedBankBalance.StringFixed(2))
	fmt.Fprintf(a.out, "Difference:            %s\n", rec.Difference.StringFixed(2))
	fmt.Fprintf(a.out, "Balanced:              %t\n", rec.IsBalanced)
}

func newReconcileListCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list <account-id>",
		Short: "List an account's reconciliations, newest first",
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				recs, err := a.engine.List(ctx, a.merchantID, args[0])
				if err != nil {
					return err
				}
				tw := a.table()
				fmt.Fprintln(tw, "ID\tDATE\tSTATUS\tBOOK\tADJUSTED BANK\tDIFFERENCE\tRECONCILER\tREVIEWER")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.ReconciliationDate.Format(dateLayout),
						r.Status, r.BookBalance.StringFixed(2), r.AdjustedBankBalance.StringFixed(2),
						r.Difference.StringFixed(2), r.ReconcilerID, r.ReviewerID)
				}
				return tw.Flush()
			})
		},
	}
}

func newReconcileReportCommand(g *globals) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "report <account-id>",
		Short: "Account activity report for a period",
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				from, to, err := reportRange(start, end)
				if err != nil {
					return err
				}
				rep, err := a.engine.GenerateReconciliationReport(ctx, a.merchantID, args[0], from, to)
				if err != nil {
					return err
				}
				printReport(a, rep)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "first day YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newReconcileClientReportCommand(g *globals) *cobra.Command {
	var accountID, start, end string

	cmd := &cobra.Command{
		Use:   "client-report <client-id>",
		Short: "Activity report for one client's ledgers in an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				from, to, err := reportRange(start, end)
				if err != nil {
					return err
				}
				rep, err := a.engine.GenerateClientReconciliationReport(ctx, a.merchantID,
					id.ToLedgerClientID(args[0]), accountID, from, to)
				if err != nil {
					return err
				}
				printReport(a, rep)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "trust account id")
	cmd.Flags().StringVar(&start, "start", "", "first day YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func reportRange(start, end string) (from, to time.Time, err error) {
	if from, err = parseDate("start", start); err != nil {
		return
	}
	if to, err = parseDate("end", end); err != nil {
		return
	}
	return from, endOfDay(to), nil
}

func printReport(a *app, rep reconcile.Report) {
	if rep.ClientID.IsZero() {
		fmt.Fprintf(a.out, "Account %s  %s to %s\n", rep.TrustAccount.ID,
			rep.Start.Format(dateLayout), rep.End.Format(dateLayout))
	} else {
		fmt.Fprintf(a.out, "Client %s in account %s  %s to %s\n", rep.ClientID, rep.TrustAccount.ID,
			rep.Start.Format(dateLayout), rep.End.Format(dateLayout))
	}
	fmt.Fprintf(a.out, "Starting balance:  %s\n\n", rep.StartingBalance.StringFixed(2))
	printLines(a, rep.Lines)
	fmt.Fprintf(a.out, "\nDeposits:          %s (%d)\n", rep.TotalDeposits.StringFixed(2), len(rep.Deposits))
	fmt.Fprintf(a.out, "Withdrawals:       %s (%d)\n", rep.TotalWithdrawals.StringFixed(2), len(rep.Withdrawals))
	fmt.Fprintf(a.out, "Ending balance:    %s\n", rep.EndingBalance.StringFixed(2))
}
