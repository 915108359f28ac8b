package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/trustledger/trustledger/internal/model"
)

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
	chaseColCheck   = 6
)

var chaseHeader = []string{"Details", "Posting Date", "Description", "Amount", "Type", "Balance", "Check or Slip #"}

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV.
func (p *ChaseParser) Parse(r io.Reader) (ParseResult, error) {
	return readRows(r, p.Format(), chaseHeader, parseChaseRow)
}

func parseChaseRow(rec []string) (model.BankRow, error) {
	date, err := time.Parse(chaseDateFormat, strings.TrimSpace(rec[chaseColDate]))
	if err != nil {
		return model.BankRow{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := parseAmount(rec[chaseColAmount])
	if err != nil {
		return model.BankRow{}, err
	}

	desc := strings.TrimSpace(rec[chaseColDesc])
	return model.BankRow{
		Date:        date,
		Description: desc,
		Amount:      amount,
		CheckNumber: normalizeCheck(rec[chaseColCheck]),
		Reference:   makeChaseRef(date, desc),
		Type:        strings.TrimSpace(rec[chaseColType]),
	}, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUB.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}

// normalizeCheck strips whitespace and leading zeros from a check number.
func normalizeCheck(s string) string {
	s = strings.TrimSpace(s)
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" && s != "" {
		return "0"
	}
	return trimmed
}
