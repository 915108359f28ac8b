package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// tsLayout is fixed width so TEXT comparison orders chronologically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

// fieldDecoder accumulates the first conversion error so row scanners stay linear.
type fieldDecoder struct {
	err error
}

func (f *fieldDecoder) money(s string) decimal.Decimal {
	if f.err != nil {
		return decimal.Zero
	}
	d, err := parseMoney(s)
	if err != nil {
		f.err = err
	}
	return d
}

func (f *fieldDecoder) time(s string) time.Time {
	if f.err != nil {
		return time.Time{}
	}
	t, err := parseTime(s)
	if err != nil {
		f.err = err
	}
	return t
}

func (f *fieldDecoder) timePtr(ns sql.NullString) *time.Time {
	if f.err != nil {
		return nil
	}
	t, err := parseTimePtr(ns)
	if err != nil {
		f.err = err
	}
	return t
}
