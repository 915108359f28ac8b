package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/model"
)

// rowFunc turns one data record into a BankRow.
type rowFunc func(rec []string) (model.BankRow, error)

// readRows streams a CSV with a fixed header. Records with the wrong field
// count or unparseable cells are collected as RowErrors; malformed CSV
// syntax or a wrong header fails the whole file.
func readRows(r io.Reader, format string, header []string, parse rowFunc) (ParseResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ParseResult{}, fmt.Errorf("reading %s CSV: empty file", format)
	}
	if err != nil {
		return ParseResult{}, fmt.Errorf("reading %s CSV header: %w", format, err)
	}
	if !headerMatches(first, header) {
		return ParseResult{}, fmt.Errorf("reading %s CSV: unexpected header %q", format, strings.Join(first, ","))
	}

	var res ParseResult
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) && errors.Is(pe.Err, csv.ErrFieldCount) {
				res.RowErrors = append(res.RowErrors, RowError{
					Line:    pe.Line,
					Message: fmt.Sprintf("expected %d fields, got %d", len(header), len(rec)),
				})
				continue
			}
			return ParseResult{}, fmt.Errorf("reading %s CSV: %w", format, err)
		}

		line, _ := cr.FieldPos(0)
		row, err := parse(rec)
		if err != nil {
			res.RowErrors = append(res.RowErrors, RowError{Line: line, Message: err.Error()})
			continue
		}
		row.Line = line
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func headerMatches(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		g := strings.TrimPrefix(strings.TrimSpace(got[i]), "\ufeff")
		if !strings.EqualFold(g, want[i]) {
			return false
		}
	}
	return true
}

// parseAmount accepts plain decimals with optional thousands separators.
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if err := model.CheckCents("amount", amount); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return amount, nil
}
