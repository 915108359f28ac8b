package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/model"
)

const transactionColumns = `id, merchant_id, trust_account_id, client_ledger_id, transaction_date, amount,
	balance_after, description, transaction_type, fund_type, check_number, reference_number, payee, payor,
	status, created_by, approved_by, approved_at, voided_by, voided_at, void_reason, cleared_date,
	bank_reference, reconciliation_id, created_at`

// InsertTransaction inserts a new transaction row.
func (q *Queries) InsertTransaction(ctx context.Context, t model.Transaction) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.MerchantID, t.TrustAccountID, t.ClientLedgerID, formatTime(t.TransactionDate), money(t.Amount),
		money(t.BalanceAfter), t.Description, string(t.Type), string(t.FundType), t.CheckNumber, t.ReferenceNumber,
		t.Payee, t.Payor, string(t.Status), t.CreatedBy, t.ApprovedBy, formatTimePtr(t.ApprovedAt), t.VoidedBy,
		formatTimePtr(t.VoidedAt), t.VoidReason, formatTimePtr(t.ClearedDate), t.BankReference, t.ReconciliationID,
		formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

// GetTransaction loads a transaction by id.
func (q *Queries) GetTransaction(ctx context.Context, txID string) (model.Transaction, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, txID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, model.NotFound("transaction", txID)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("loading transaction %s: %w", txID, err)
	}
	return t, nil
}

// TransactionFilter narrows ListTransactions. Zero fields do not filter.
// From and To are inclusive; Before is exclusive.
type TransactionFilter struct {
	MerchantID      string
	TrustAccountID  string
	ClientLedgerIDs []string
	Statuses        []model.TransactionStatus
	Types           []model.TransactionType
	From            *time.Time
	To              *time.Time
	Before          *time.Time
	Cleared         *bool
}

// ListTransactions returns matching transactions in date then insertion order.
func (q *Queries) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	var where []string
	var args []any
	if f.MerchantID != "" {
		where = append(where, "merchant_id = ?")
		args = append(args, f.MerchantID)
	}
	if f.TrustAccountID != "" {
		where = append(where, "trust_account_id = ?")
		args = append(args, f.TrustAccountID)
	}
	if len(f.ClientLedgerIDs) > 0 {
		where = append(where, "client_ledger_id IN ("+placeholders(len(f.ClientLedgerIDs))+")")
		for _, lid := range f.ClientLedgerIDs {
			args = append(args, lid)
		}
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if len(f.Types) > 0 {
		where = append(where, "transaction_type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if f.From != nil {
		where = append(where, "transaction_date >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "transaction_date <= ?")
		args = append(args, formatTime(*f.To))
	}
	if f.Before != nil {
		where = append(where, "transaction_date < ?")
		args = append(args, formatTime(*f.Before))
	}
	if f.Cleared != nil {
		if *f.Cleared {
			where = append(where, "cleared_date IS NOT NULL")
		} else {
			where = append(where, "cleared_date IS NULL")
		}
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY transaction_date, rowid"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// MarkPosted completes a pending transaction and records its balance snapshot.
func (q *Queries) MarkPosted(ctx context.Context, txID string, balanceAfter decimal.Decimal, approvedBy string, approvedAt time.Time) error {
	return q.execOne(ctx, "transaction", txID,
		`UPDATE transactions SET status = ?, balance_after = ?, approved_by = ?, approved_at = ?
			WHERE id = ? AND status = ?`,
		string(model.TxCompleted), money(balanceAfter), approvedBy, formatTime(approvedAt),
		txID, string(model.TxPending))
}

// MarkVoided voids a completed transaction. Amount and balance_after are left untouched.
func (q *Queries) MarkVoided(ctx context.Context, txID, voidedBy, reason string, voidedAt time.Time) error {
	return q.execOne(ctx, "transaction", txID,
		`UPDATE transactions SET status = ?, voided_by = ?, voided_at = ?, void_reason = ?
			WHERE id = ? AND status = ?`,
		string(model.TxVoided), voidedBy, formatTime(voidedAt), reason,
		txID, string(model.TxCompleted))
}

// MarkRejected rejects a pending transaction.
func (q *Queries) MarkRejected(ctx context.Context, txID, rejectedBy string, rejectedAt time.Time) error {
	return q.execOne(ctx, "transaction", txID,
		`UPDATE transactions SET status = ?, approved_by = ?, approved_at = ?
			WHERE id = ? AND status = ?`,
		string(model.TxRejected), rejectedBy, formatTime(rejectedAt),
		txID, string(model.TxPending))
}

// SetCleared stamps the bank confirmation on an uncleared transaction.
// It reports false when the transaction was already cleared.
func (q *Queries) SetCleared(ctx context.Context, txID string, clearedDate time.Time, bankReference string) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE transactions SET cleared_date = ?, bank_reference = ?
			WHERE id = ? AND cleared_date IS NULL`,
		formatTime(clearedDate), bankReference, txID)
	if err != nil {
		return false, fmt.Errorf("clearing transaction %s: %w", txID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clearing transaction %s: %w", txID, err)
	}
	return n == 1, nil
}

// SetReconciliationID links cleared transactions to the reconciliation that consumed them.
func (q *Queries) SetReconciliationID(ctx context.Context, txIDs []string, reconciliationID string) error {
	if len(txIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(txIDs)+1)
	args = append(args, reconciliationID)
	for _, tid := range txIDs {
		args = append(args, tid)
	}
	_, err := q.q.ExecContext(ctx,
		`UPDATE transactions SET reconciliation_id = ? WHERE id IN (`+placeholders(len(txIDs))+`)`, args...)
	if err != nil {
		return fmt.Errorf("linking transactions to reconciliation %s: %w", reconciliationID, err)
	}
	return nil
}

func scanTransaction(s rowScanner) (model.Transaction, error) {
	var (
		t                                 model.Transaction
		txDate, amount, balanceAfter      string
		txType, fundType, status          string
		approvedAt, voidedAt, clearedDate sql.NullString
		createdAt                         string
	)
	if err := s.Scan(&t.ID, &t.MerchantID, &t.TrustAccountID, &t.ClientLedgerID, &txDate, &amount,
		&balanceAfter, &t.Description, &txType, &fundType, &t.CheckNumber, &t.ReferenceNumber, &t.Payee, &t.Payor,
		&status, &t.CreatedBy, &t.ApprovedBy, &approvedAt, &t.VoidedBy, &voidedAt, &t.VoidReason, &clearedDate,
		&t.BankReference, &t.ReconciliationID, &createdAt); err != nil {
		return model.Transaction{}, err
	}

	var f fieldDecoder
	t.TransactionDate = f.time(txDate)
	t.Amount = f.money(amount)
	t.BalanceAfter = f.money(balanceAfter)
	t.Type = model.TransactionType(txType)
	t.FundType = model.FundType(fundType)
	t.Status = model.TransactionStatus(status)
	t.ApprovedAt = f.timePtr(approvedAt)
	t.VoidedAt = f.timePtr(voidedAt)
	t.ClearedDate = f.timePtr(clearedDate)
	t.CreatedAt = f.time(createdAt)
	return t, f.err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
