package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Header is the CSV header of an exported ledger statement.
const Header = "date,description,type,check_number,reference,payee,payor,amount,running_balance"

const (
	numFields  = 9
	dateFormat = "2006-01-02"
	colDate    = 0
	colDesc    = 1
	colType    = 2
	colCheck   = 3
	colRef     = 4
	colPayee   = 5
	colPayor   = 6
	colAmount  = 7
	colRunning = 8
)

// WriteCSV writes a ledger statement as CSV. The first and last data rows
// carry the opening and closing balances.
func WriteCSV(w io.Writer, st LedgerStatement) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	opening := make([]string, numFields)
	if st.Range.Start != nil {
		opening[colDate] = st.Range.Start.Format(dateFormat)
	}
	opening[colDesc] = "Opening balance"
	opening[colRunning] = st.OpeningBalance.StringFixed(2)
	if err := cw.Write(opening); err != nil {
		return fmt.Errorf("writing opening row: %w", err)
	}

	for i, line := range st.Lines {
		row := make([]string, numFields)
		row[colDate] = line.TransactionDate.Format(dateFormat)
		row[colDesc] = line.Description
		row[colType] = string(line.Type)
		row[colCheck] = line.CheckNumber
		row[colRef] = line.ReferenceNumber
		row[colPayee] = line.Payee
		row[colPayor] = line.Payor
		row[colAmount] = line.Signed.StringFixed(2)
		row[colRunning] = line.RunningBalance.StringFixed(2)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+3, err)
		}
	}

	closing := make([]string, numFields)
	if st.Range.End != nil {
		closing[colDate] = st.Range.End.Format(dateFormat)
	}
	closing[colDesc] = "Closing balance"
	closing[colRunning] = st.ClosingBalance.StringFixed(2)
	if err := cw.Write(closing); err != nil {
		return fmt.Errorf("writing closing row: %w", err)
	}
	return cw.Error()
}
