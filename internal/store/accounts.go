package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/model"
)

const trustAccountColumns = `id, merchant_id, account_number, account_name, bank_name, routing_number,
	account_type, status, balance, last_reconciliation_date, interest_rate, interest_accrued, created_at, updated_at`

// InsertTrustAccount inserts a new trust account row.
func (q *Queries) InsertTrustAccount(ctx context.Context, a model.TrustAccount) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO trust_accounts (`+trustAccountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.MerchantID, a.AccountNumber, a.AccountName, a.BankName, a.RoutingNumber,
		a.AccountType, string(a.Status), money(a.Balance), formatTimePtr(a.LastReconciliationDate),
		a.InterestRate.String(), money(a.InterestAccrued), formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting trust account: %w", err)
	}
	return nil
}

// GetTrustAccount loads a trust account by id.
func (q *Queries) GetTrustAccount(ctx context.Context, accountID string) (model.TrustAccount, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+trustAccountColumns+` FROM trust_accounts WHERE id = ?`, accountID)
	a, err := scanTrustAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TrustAccount{}, model.NotFound("trust account", accountID)
	}
	if err != nil {
		return model.TrustAccount{}, fmt.Errorf("loading trust account %s: %w", accountID, err)
	}
	return a, nil
}

// ListTrustAccounts returns trust accounts, optionally limited to one merchant and status.
func (q *Queries) ListTrustAccounts(ctx context.Context, merchantID string, status model.Status) ([]model.TrustAccount, error) {
	var where []string
	var args []any
	if merchantID != "" {
		where = append(where, "merchant_id = ?")
		args = append(args, merchantID)
	}
	if status != "" {
		where = append(where, "status = ?")
		args = append(args, string(status))
	}
	query := `SELECT ` + trustAccountColumns + ` FROM trust_accounts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing trust accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.TrustAccount
	for rows.Next() {
		a, err := scanTrustAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trust account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetTrustAccountBalance overwrites the account balance.
// Only the posting path may call this.
func (q *Queries) SetTrustAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal, now time.Time) error {
	return q.execOne(ctx, "trust account", accountID,
		`UPDATE trust_accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		money(balance), formatTime(now), accountID)
}

// SetInterestAccrued overwrites the running total of interest credited to
// the account. Only the posting path may call this.
func (q *Queries) SetInterestAccrued(ctx context.Context, accountID string, accrued decimal.Decimal, now time.Time) error {
	return q.execOne(ctx, "trust account", accountID,
		`UPDATE trust_accounts SET interest_accrued = ?, updated_at = ? WHERE id = ?`,
		money(accrued), formatTime(now), accountID)
}

// SetTrustAccountStatus updates the account status.
func (q *Queries) SetTrustAccountStatus(ctx context.Context, accountID string, status model.Status, now time.Time) error {
	return q.execOne(ctx, "trust account", accountID,
		`UPDATE trust_accounts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(now), accountID)
}

// SetLastReconciliationDate records when the account was last reconciled.
func (q *Queries) SetLastReconciliationDate(ctx context.Context, accountID string, date, now time.Time) error {
	return q.execOne(ctx, "trust account", accountID,
		`UPDATE trust_accounts SET last_reconciliation_date = ?, updated_at = ? WHERE id = ?`,
		formatTime(date), formatTime(now), accountID)
}

func scanTrustAccount(s rowScanner) (model.TrustAccount, error) {
	var (
		a                              model.TrustAccount
		status, balance, rate, accrued string
		lastRecon                      sql.NullString
		createdAt, updatedAt           string
	)
	if err := s.Scan(&a.ID, &a.MerchantID, &a.AccountNumber, &a.AccountName, &a.BankName, &a.RoutingNumber,
		&a.AccountType, &status, &balance, &lastRecon, &rate, &accrued, &createdAt, &updatedAt); err != nil {
		return model.TrustAccount{}, err
	}

	var f fieldDecoder
	a.Status = model.Status(status)
	a.Balance = f.money(balance)
	a.LastReconciliationDate = f.timePtr(lastRecon)
	a.InterestRate = f.money(rate)
	a.InterestAccrued = f.money(accrued)
	a.CreatedAt = f.time(createdAt)
	a.UpdatedAt = f.time(updatedAt)
	return a, f.err
}

const clientLedgerColumns = `id, merchant_id, trust_account_id, client_id, client_name, matter_name, matter_number,
	jurisdiction, balance, status, last_transaction_date, created_at, updated_at`

// InsertClientLedger inserts a new client ledger row.
func (q *Queries) InsertClientLedger(ctx context.Context, l model.ClientLedger) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO client_ledgers (`+clientLedgerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.MerchantID, l.TrustAccountID, l.ClientID.String(), l.ClientName, l.MatterName, l.MatterNumber,
		l.Jurisdiction, money(l.Balance), string(l.Status), formatTimePtr(l.LastTransactionDate),
		formatTime(l.CreatedAt), formatTime(l.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting client ledger: %w", err)
	}
	return nil
}

// GetClientLedger loads a client ledger by its own id.
func (q *Queries) GetClientLedger(ctx context.Context, ledgerID string) (model.ClientLedger, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+clientLedgerColumns+` FROM client_ledgers WHERE id = ?`, ledgerID)
	l, err := scanClientLedger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ClientLedger{}, model.NotFound("client ledger", ledgerID)
	}
	if err != nil {
		return model.ClientLedger{}, fmt.Errorf("loading client ledger %s: %w", ledgerID, err)
	}
	return l, nil
}

// LedgerFilter narrows ListClientLedgers. Empty fields do not filter.
type LedgerFilter struct {
	MerchantID     string
	TrustAccountID string
	ClientID       id.ClientID
	Status         model.Status
}

// ListClientLedgers returns ledgers matching the filter ordered by creation.
func (q *Queries) ListClientLedgers(ctx context.Context, f LedgerFilter) ([]model.ClientLedger, error) {
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
	if !f.ClientID.IsZero() {
		where = append(where, "client_id = ?")
		args = append(args, f.ClientID.String())
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := `SELECT ` + clientLedgerColumns + ` FROM client_ledgers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing client ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []model.ClientLedger
	for rows.Next() {
		l, err := scanClientLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning client ledger: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

// SetClientLedgerBalance overwrites the ledger balance and last activity date.
// Only the posting path may call this.
func (q *Queries) SetClientLedgerBalance(ctx context.Context, ledgerID string, balance decimal.Decimal, lastTxDate, now time.Time) error {
	return q.execOne(ctx, "client ledger", ledgerID,
		`UPDATE client_ledgers SET balance = ?, last_transaction_date = ?, updated_at = ? WHERE id = ?`,
		money(balance), formatTime(lastTxDate), formatTime(now), ledgerID)
}

// SetClientLedgerStatus updates the ledger status.
func (q *Queries) SetClientLedgerStatus(ctx context.Context, ledgerID string, status model.Status, now time.Time) error {
	return q.execOne(ctx, "client ledger", ledgerID,
		`UPDATE client_ledgers SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(now), ledgerID)
}

func scanClientLedger(s rowScanner) (model.ClientLedger, error) {
	var (
		l                    model.ClientLedger
		clientID             string
		balance, status      string
		lastTx               sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&l.ID, &l.MerchantID, &l.TrustAccountID, &clientID, &l.ClientName, &l.MatterName,
		&l.MatterNumber, &l.Jurisdiction, &balance, &status, &lastTx, &createdAt, &updatedAt); err != nil {
		return model.ClientLedger{}, err
	}

	var f fieldDecoder
	l.ClientID = id.ClientID(clientID)
	l.Balance = f.money(balance)
	l.Status = model.Status(status)
	l.LastTransactionDate = f.timePtr(lastTx)
	l.CreatedAt = f.time(createdAt)
	l.UpdatedAt = f.time(updatedAt)
	return l, f.err
}

// execOne runs an UPDATE that must touch exactly one row.
func (q *Queries) execOne(ctx context.Context, entity, entityID, query string, args ...any) error {
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", entity, entityID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", entity, entityID, err)
	}
	if n == 0 {
		return model.NotFound(entity, entityID)
	}
	return nil
}
