package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/trustledger/trustledger/internal/auditlog"
	"github.com/trustledger/trustledger/internal/importer"
)

func newImportCommand(g *globals) *cobra.Command {
	var (
		accountID, format, dir string
		stmtDate, start, end   string
		startingBal, endingBal string
	)

	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Import a bank statement CSV and clear matched transactions",
		Long: `Import a bank statement CSV and clear the transactions it confirms.

With --dir every CSV in the directory is imported with the same period
and moved to processed/ once it has been read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (dir == "") {
				return errors.New("pass either a file or --dir")
			}
			return g.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireUser(); err != nil {
					return err
				}
				p := importer.ImportParams{
					MerchantID:     a.merchantID,
					TrustAccountID: accountID,
					UploadedBy:     a.userID,
					Format:         format,
				}
				if p.Format == "" {
					p.Format = a.cfg.Import.DefaultFormat
				}
				var err error
				if p.StartDate, err = parseDate("start", start); err != nil {
					return err
				}
				if p.EndDate, err = parseDate("end", end); err != nil {
					return err
				}
				p.StatementDate = p.EndDate
				if stmtDate != "" {
					if p.StatementDate, err = parseDate("statement-date", stmtDate); err != nil {
						return err
					}
				}
				if p.StartingBalance, err = optionalMoney("starting-balance", startingBal); err != nil {
					return err
				}
				if p.EndingBalance, err = optionalMoney("ending-balance", endingBal); err != nil {
					return err
				}

				if dir == "" {
					p.FilePath = args[0]
					return importOne(ctx, a, p)
				}
				return importDir(ctx, a, p, dir)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&accountID, "account", "", "trust account id")
	f.StringVar(&format, "format", "", "statement format (default from config)")
	f.StringVar(&dir, "dir", "", "import every CSV in this directory")
	f.StringVar(&stmtDate, "statement-date", "", "statement date YYYY-MM-DD (default --end)")
	f.StringVar(&start, "start", "", "first day of the statement period YYYY-MM-DD")
	f.StringVar(&end, "end", "", "last day of the statement period YYYY-MM-DD")
	f.StringVar(&startingBal, "starting-balance", "", "statement starting balance")
	f.StringVar(&endingBal, "ending-balance", "", "statement ending balance")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func importOne(ctx context.Context, a *app, p importer.ImportParams) error {
	res, err := a.importer.ImportBankStatementCSV(ctx, p)
	if err != nil {
		return err
	}
	a.audit(auditlog.ActionImport, res.UploadID, fmt.Sprintf("%s: %d matched, %d unmatched, %d errors",
		filepath.Base(p.FilePath), res.Matched, res.Unmatched, len(res.Errors)))

	fmt.Fprintf(a.out, "Imported %s as statement %s\n", filepath.Base(p.FilePath), res.UploadID)
	fmt.Fprintf(a.out, "  rows %d, matched %d, unmatched %d, errors %d\n",
		res.Processed, res.Matched, res.Unmatched, len(res.Errors))
	for _, row := range res.NewTransactions {
		fmt.Fprintf(a.out, "  unmatched line %d: %s %s %s\n", row.Line, row.Date.Format(dateLayout),
			row.Amount.StringFixed(2), row.Description)
	}
	for _, re := range res.Errors {
		fmt.Fprintf(a.out, "  %s\n", re.Error())
	}
	return nil
}

func importDir(ctx context.Context, a *app, p importer.ImportParams, dir string) error {
	files, err := importer.Scan(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(a.out, "No CSV files in %s\n", dir)
		return nil
	}

	var failed int
	for _, f := range files {
		p.FilePath = f.Path
		if err := importOne(ctx, a, p); err != nil {
			failed++
			fmt.Fprintf(a.errOut, "error: %v\n", err)
			continue
		}
		if err := importer.MarkProcessed(dir, f.Name); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, len(files))
	}
	return nil
}

func optionalMoney(flag, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return parseMoney(flag, s)
}
