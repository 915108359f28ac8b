// Package auditlog keeps an append-only CSV trail of mutating operations.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Actions recorded by the CLI.
const (
	ActionCreateAccount     = "create_trust_account"
	ActionAccountStatus     = "update_trust_account_status"
	ActionCreateLedger      = "create_client_ledger"
	ActionLedgerStatus      = "update_client_ledger_status"
	ActionPost              = "post_transaction"
	ActionVoid              = "void_transaction"
	ActionTransactionStatus = "update_transaction_status"
	ActionClear             = "mark_cleared"
	ActionReconcile         = "complete_reconciliation"
	ActionReviewReconcile   = "review_reconciliation"
	ActionDisputeReconcile  = "dispute_reconciliation"
	ActionReopenReconcile   = "reopen_reconciliation"
	ActionImport            = "import_bank_statement"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp  time.Time
	Actor      string
	MerchantID string
	Action     string
	EntityID   string
	Details    string
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,actor,merchant_id,action,entity_id,details"

// FileName is the log file created under the audit directory.
const FileName = "audit-log.csv"

const (
	numFields     = 6
	colTimestamp  = 0
	colActor      = 1
	colMerchantID = 2
	colAction     = 3
	colEntityID   = 4
	colDetails    = 5
)

var mu sync.Mutex

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colMerchantID] = e.MerchantID
	row[colAction] = e.Action
	row[colEntityID] = e.EntityID
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp:  ts,
		Actor:      record[colActor],
		MerchantID: record[colMerchantID],
		Action:     record[colAction],
		EntityID:   record[colEntityID],
		Details:    record[colDetails],
	}, nil
}

// Append writes entries to <dir>/audit-log.csv, creating the file and header if needed.
func Append(dir string, entries []Entry) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating audit dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dir>/audit-log.csv.
// Returns an empty slice if the file does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// ForMerchant keeps the entries recorded for one merchant.
func ForMerchant(entries []Entry, merchantID string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.MerchantID == merchantID {
			out = append(out, e)
		}
	}
	return out
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
