package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/trustledger/trustledger/internal/model"
)

// TrustParser parses the generic statement layout
// date,description,amount,check_number,reference with ISO dates and signed
// amounts (negative = debit).
type TrustParser struct{}

const (
	trustDateFormat = "2006-01-02"
	trustColDate    = 0
	trustColDesc    = 1
	trustColAmount  = 2
	trustColCheck   = 3
	trustColRef     = 4
)

var trustHeader = []string{"date", "description", "amount", "check_number", "reference"}

// Format returns the parser name.
func (p *TrustParser) Format() string { return "trust" }

// Parse reads a trust-format CSV.
func (p *TrustParser) Parse(r io.Reader) (ParseResult, error) {
	return readRows(r, p.Format(), trustHeader, parseTrustRow)
}

func parseTrustRow(rec []string) (model.BankRow, error) {
	date, err := time.Parse(trustDateFormat, strings.TrimSpace(rec[trustColDate]))
	if err != nil {
		return model.BankRow{}, fmt.Errorf("parsing date %q: %w", rec[trustColDate], err)
	}

	amount, err := parseAmount(rec[trustColAmount])
	if err != nil {
		return model.BankRow{}, err
	}
	if amount.IsZero() {
		return model.BankRow{}, fmt.Errorf("amount is zero")
	}

	row := model.BankRow{
		Date:        date,
		Description: strings.TrimSpace(rec[trustColDesc]),
		Amount:      amount,
		CheckNumber: normalizeCheck(rec[trustColCheck]),
		Reference:   strings.TrimSpace(rec[trustColRef]),
		Type:        "CREDIT",
	}
	if amount.IsNegative() {
		row.Type = "DEBIT"
		if row.CheckNumber != "" {
			row.Type = "CHECK"
		}
	}
	return row, nil
}
