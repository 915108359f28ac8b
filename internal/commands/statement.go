package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trustledger/trustledger/internal/balance"
	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/statement"
)

func newStatementCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Generate client statements",
	}
	cmd.AddCommand(
		newStatementLedgerCommand(g),
		newStatementClientCommand(g),
	)
	return cmd
}

// rangeFlags parses --start/--end into an inclusive statement range.
type rangeFlags struct {
	start, end string
}

func (rf *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rf.start, "start", "", "first day YYYY-MM-DD")
	cmd.Flags().StringVar(&rf.end, "end", "", "last day YYYY-MM-DD")
}

func (rf *rangeFlags) parse() (statement.Range, error) {
	start, err := parseOptionalDate("start", rf.start)
	if err != nil {
		return statement.Range{}, err
	}
	end, err := parseOptionalDate("end", rf.end)
	if err != nil {
		return statement.Range{}, err
	}
	if end != nil {
		e := endOfDay(*end)
		end = &e
	}
	return statement.Range{Start: start, End: end}, nil
}

func newStatementLedgerCommand(g *globals) *cobra.Command {
	var rf rangeFlags
	var csvPath string

	cmd := &cobra.Command{
		Use:   "ledger <ledger-id>",
		Short: "Statement of one client ledger with running balances",
		Args:  entityArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				r, err := rf.parse()
				if err != nil {
					return err
				}
				st, err := a.statements.ClientLedgerStatement(ctx, a.merchantID, args[0], r)
				if err != nil {
					return err
				}

				switch csvPath {
				case "":
				case "-":
					return statement.WriteCSV(a.out, st)
				default:
					f, err := os.Create(csvPath)
					if err != nil {
						return fmt.Errorf("creating %s: %w", csvPath, err)
					}
					defer f.Close()
					if err := statement.WriteCSV(f, st); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "Wrote %d lines to %s\n", len(st.Lines), csvPath)
					return f.Close()
				}

				fmt.Fprintf(a.out, "Client %s  ledger %s\n", st.Ledger.ClientID, st.Ledger.ID)
				fmt.Fprintf(a.out, "Opening balance: %s\n\n", st.OpeningBalance.StringFixed(2))
				printLines(a, st.Lines)
				fmt.Fprintf(a.out, "\nClosing balance: %s\n", st.ClosingBalance.StringFixed(2))
				if !st.Drift.IsZero() {
					fmt.Fprintf(a.out, "Activity after range or outside posting: %s\n", st.Drift.StringFixed(2))
				}
				return nil
			})
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&csvPath, "csv", "", "write CSV to this file, or - for stdout")
	return cmd
}

func newStatementClientCommand(g *globals) *cobra.Command {
	var rf rangeFlags

	cmd := &cobra.Command{
		Use:   "client <client-id>",
		Short: "Statement of every trust ledger a client holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, a *app) error {
				r, err := rf.parse()
				if err != nil {
					return err
				}
				st, err := a.statements.ClientTrustStatement(ctx, a.merchantID, id.ToLedgerClientID(args[0]), r)
				if err != nil {
					return err
				}

				fmt.Fprintf(a.out, "Client %s  %s to %s\n", st.ClientID,
					st.Start.Format(dateLayout), st.End.Format(dateLayout))
				for _, sec := range st.Sections {
					fmt.Fprintf(a.out, "\n%s %s  ledger %s %s\n", sec.TrustAccount.BankName,
						sec.TrustAccount.AccountNumber, sec.Ledger.ID, sec.Ledger.MatterName)
					fmt.Fprintf(a.out, "Opening balance: %s\n", sec.OpeningBalance.StringFixed(2))
					printLines(a, sec.Lines)
					fmt.Fprintf(a.out, "Closing balance: %s\n", sec.ClosingBalance.StringFixed(2))
				}
				fmt.Fprintf(a.out, "\nTotal opening: %s  Total closing: %s\n",
					st.TotalOpening.StringFixed(2), st.TotalClosing.StringFixed(2))
				return nil
			})
		},
	}

	rf.register(cmd)
	return cmd
}

func printLines(a *app, lines []balance.Line) {
	tw := a.table()
	fmt.Fprintln(tw, "DATE\tTYPE\tDESCRIPTION\tCHECK\tAMOUNT\tBALANCE")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", l.TransactionDate.Format(dateLayout), l.Type,
			l.Description, l.CheckNumber, l.Signed.StringFixed(2), l.RunningBalance.StringFixed(2))
	}
	tw.Flush()
}
