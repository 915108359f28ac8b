package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/trustledger/trustledger/internal/model"
)

const reconciliationColumns = `id, trust_account_id, merchant_id, reconciliation_date, bank_statement_id,
	book_balance, client_ledger_total, bank_balance, adjusted_bank_balance, difference, is_balanced,
	outstanding_items, notes, reconciler_id, reviewer_id, reviewed_at, status, created_at`

// InsertReconciliation inserts a reconciliation with its outstanding snapshot.
func (q *Queries) InsertReconciliation(ctx context.Context, r model.Reconciliation) error {
	snapshot, err := json.Marshal(r.Outstanding)
	if err != nil {
		return fmt.Errorf("encoding outstanding items: %w", err)
	}
	_, err = q.q.ExecContext(ctx, `INSERT INTO reconciliations (`+reconciliationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TrustAccountID, r.MerchantID, formatTime(r.ReconciliationDate), r.BankStatementID,
		money(r.BookBalance), money(r.ClientLedgerTotal), money(r.BankBalance), money(r.AdjustedBankBalance),
		money(r.Difference), r.IsBalanced, string(snapshot), r.Notes, r.ReconcilerID, r.ReviewerID,
		formatTimePtr(r.ReviewedAt), string(r.Status), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting reconciliation: %w", err)
	}
	return nil
}

// GetReconciliation loads a reconciliation by id.
func (q *Queries) GetReconciliation(ctx context.Context, reconID string) (model.Reconciliation, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+reconciliationColumns+` FROM reconciliations WHERE id = ?`, reconID)
	r, err := scanReconciliation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reconciliation{}, model.NotFound("reconciliation", reconID)
	}
	if err != nil {
		return model.Reconciliation{}, fmt.Errorf("loading reconciliation %s: %w", reconID, err)
	}
	return r, nil
}

// ListReconciliations returns an account's reconciliations, newest first.
func (q *Queries) ListReconciliations(ctx context.Context, accountID string) ([]model.Reconciliation, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+reconciliationColumns+` FROM reconciliations
		WHERE trust_account_id = ? ORDER BY reconciliation_date DESC, created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing reconciliations: %w", err)
	}
	defer rows.Close()

	var recs []model.Reconciliation
	for rows.Next() {
		r, err := scanReconciliation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reconciliation: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// UpdateReconciliationStatus moves a reconciliation to status, optionally
// recording a reviewer and appending notes.
func (q *Queries) UpdateReconciliationStatus(ctx context.Context, reconID string, status model.ReconciliationStatus, reviewerID string, reviewedAt *time.Time, notes string) error {
	return q.execOne(ctx, "reconciliation", reconID,
		`UPDATE reconciliations SET status = ?, reviewer_id = ?, reviewed_at = ?, notes = ? WHERE id = ?`,
		string(status), reviewerID, formatTimePtr(reviewedAt), notes, reconID)
}

// SaveReconciliationFigures rewrites the computed balances, the outstanding
// snapshot and the status of an existing reconciliation.
func (q *Queries) SaveReconciliationFigures(ctx context.Context, r model.Reconciliation) error {
	snapshot, err := json.Marshal(r.Outstanding)
	if err != nil {
		return fmt.Errorf("encoding outstanding items: %w", err)
	}
	return q.execOne(ctx, "reconciliation", r.ID,
		`UPDATE reconciliations SET book_balance = ?, client_ledger_total = ?, bank_balance = ?,
			adjusted_bank_balance = ?, difference = ?, is_balanced = ?, outstanding_items = ?, status = ?
			WHERE id = ?`,
		money(r.BookBalance), money(r.ClientLedgerTotal), money(r.BankBalance), money(r.AdjustedBankBalance),
		money(r.Difference), r.IsBalanced, string(snapshot), string(r.Status), r.ID)
}

func scanReconciliation(s rowScanner) (model.Reconciliation, error) {
	var (
		r                                  model.Reconciliation
		reconDate, book, ledgerTotal, bank string
		adjusted, diff, snapshot, status   string
		reviewedAt                         sql.NullString
		createdAt                          string
	)
	if err := s.Scan(&r.ID, &r.TrustAccountID, &r.MerchantID, &reconDate, &r.BankStatementID, &book,
		&ledgerTotal, &bank, &adjusted, &diff, &r.IsBalanced, &snapshot, &r.Notes, &r.ReconcilerID,
		&r.ReviewerID, &reviewedAt, &status, &createdAt); err != nil {
		return model.Reconciliation{}, err
	}

	var f fieldDecoder
	r.ReconciliationDate = f.time(reconDate)
	r.BookBalance = f.money(book)
	r.ClientLedgerTotal = f.money(ledgerTotal)
	r.BankBalance = f.money(bank)
	r.AdjustedBankBalance = f.money(adjusted)
	r.Difference = f.money(diff)
	r.ReviewedAt = f.timePtr(reviewedAt)
	r.Status = model.ReconciliationStatus(status)
	r.CreatedAt = f.time(createdAt)
	if f.err != nil {
		return model.Reconciliation{}, f.err
	}
	if err := json.Unmarshal([]byte(snapshot), &r.Outstanding); err != nil {
		return model.Reconciliation{}, fmt.Errorf("decoding outstanding items: %w", err)
	}
	return r, nil
}

const bankStatementColumns = `id, trust_account_id, merchant_id, statement_date, start_date, end_date,
	starting_balance, ending_balance, file_path, format, uploaded_by, processing_status, processing_notes, created_at`

// InsertBankStatement records an uploaded statement.
func (q *Queries) InsertBankStatement(ctx context.Context, b model.BankStatement) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO bank_statements (`+bankStatementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.TrustAccountID, b.MerchantID, formatTime(b.StatementDate), formatTime(b.StartDate),
		formatTime(b.EndDate), money(b.StartingBalance), money(b.EndingBalance), b.FilePath, b.Format,
		b.UploadedBy, string(b.ProcessingStatus), b.ProcessingNotes, formatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting bank statement: %w", err)
	}
	return nil
}

// GetBankStatement loads a bank statement by id.
func (q *Queries) GetBankStatement(ctx context.Context, statementID string) (model.BankStatement, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+bankStatementColumns+` FROM bank_statements WHERE id = ?`, statementID)
	var (
		b                              model.BankStatement
		stmtDate, start, end, startBal string
		endBal, status, createdAt      string
	)
	err := row.Scan(&b.ID, &b.TrustAccountID, &b.MerchantID, &stmtDate, &start, &end, &startBal, &endBal,
		&b.FilePath, &b.Format, &b.UploadedBy, &status, &b.ProcessingNotes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankStatement{}, model.NotFound("bank statement", statementID)
	}
	if err != nil {
		return model.BankStatement{}, fmt.Errorf("loading bank statement %s: %w", statementID, err)
	}

	var f fieldDecoder
	b.StatementDate = f.time(stmtDate)
	b.StartDate = f.time(start)
	b.EndDate = f.time(end)
	b.StartingBalance = f.money(startBal)
	b.EndingBalance = f.money(endBal)
	b.ProcessingStatus = model.ProcessingStatus(status)
	b.CreatedAt = f.time(createdAt)
	return b, f.err
}

// FinishBankStatement records the final processing status of an import.
func (q *Queries) FinishBankStatement(ctx context.Context, statementID string, status model.ProcessingStatus, notes string) error {
	return q.execOne(ctx, "bank statement", statementID,
		`UPDATE bank_statements SET processing_status = ?, processing_notes = ? WHERE id = ?`,
		string(status), notes, statementID)
}
