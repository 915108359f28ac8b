package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustledger/trustledger/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DSN(filepath.Join(t.TempDir(), "trust.db"), 5000), 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, db *DB) (model.TrustAccount, model.ClientLedger) {
	t.Helper()
	ctx := context.Background()
	now := day(2025, 1, 1)

	acct := model.TrustAccount{
		ID: "acct-1", MerchantID: "m1", AccountNumber: "000123", BankName: "First Bank",
		RoutingNumber: "021000021", AccountType: model.AccountTypeIOLTA, Status: model.StatusActive,
		InterestRate: decimal.RequireFromString("0.015"), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.Queries().InsertTrustAccount(ctx, acct))

	ledger := model.ClientLedger{
		ID: "ledger-1", MerchantID: "m1", TrustAccountID: acct.ID, ClientID: "42", ClientName: "Ada",
		Status: model.StatusActive, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.Queries().InsertClientLedger(ctx, ledger))
	return acct, ledger
}

func TestTrustAccountRoundTrip(t *testing.T) {
	db := openTestDB(t)
	acct, _ := seed(t, db)

	got, err := db.Queries().GetTrustAccount(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", got.Balance.StringFixed(2))
	assert.Equal(t, "0.015", got.InterestRate.String())
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Nil(t, got.LastReconciliationDate)
	assert.True(t, got.CreatedAt.Equal(acct.CreatedAt))
}

func TestGetMissing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Queries().GetTrustAccount(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = db.Queries().GetClientLedger(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = db.Queries().GetTransaction(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = db.Queries().GetReconciliation(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = db.Queries().GetBankStatement(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)

	err = db.Queries().SetTrustAccountStatus(ctx, "nope", model.StatusClosed, time.Now())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	acct, ledger := seed(t, db)
	ctx := context.Background()

	err := db.WithTx(ctx, func(q *Queries) error {
		require.NoError(t, q.SetClientLedgerBalance(ctx, ledger.ID, decimal.NewFromInt(10), day(2025, 1, 2), time.Now()))
		require.NoError(t, q.SetTrustAccountBalance(ctx, acct.ID, decimal.NewFromInt(10), time.Now()))
		return model.ErrInsufficientFunds
	})
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	got, err := db.Queries().GetClientLedger(ctx, ledger.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	assert.Nil(t, got.LastTransactionDate)

	gotAcct, err := db.Queries().GetTrustAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, gotAcct.Balance.IsZero())
}

func TestListTransactionsFilter(t *testing.T) {
	db := openTestDB(t)
	acct, ledger := seed(t, db)
	ctx := context.Background()
	q := db.Queries()

	mk := func(txID string, d time.Time, typ model.TransactionType, status model.TransactionStatus) {
		require.NoError(t, q.InsertTransaction(ctx, model.Transaction{
			ID: txID, MerchantID: "m1", TrustAccountID: acct.ID, ClientLedgerID: ledger.ID,
			TransactionDate: d, Amount: decimal.NewFromInt(100), Type: typ, FundType: model.FundTrust,
			Status: status, CreatedBy: "u1", CreatedAt: d,
		}))
	}
	mk("t1", day(2025, 1, 5), model.TypeDeposit, model.TxCompleted)
	mk("t2", day(2025, 1, 10), model.TypeWithdrawal, model.TxCompleted)
	mk("t3", day(2025, 1, 15), model.TypeDeposit, model.TxPending)
	mk("t4", day(2025, 2, 1), model.TypeDeposit, model.TxCompleted)

	from, to := day(2025, 1, 5), day(2025, 1, 31)
	got, err := q.ListTransactions(ctx, TransactionFilter{
		TrustAccountID: acct.ID,
		Statuses:       []model.TransactionStatus{model.TxCompleted},
		From:           &from,
		To:             &to,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "t2", got[1].ID)

	before := day(2025, 1, 10)
	got, err = q.ListTransactions(ctx, TransactionFilter{ClientLedgerIDs: []string{ledger.ID}, Before: &before})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)

	got, err = q.ListTransactions(ctx, TransactionFilter{Types: []model.TransactionType{model.TypeWithdrawal}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].ID)
}

func TestSetCleared(t *testing.T) {
	db := openTestDB(t)
	acct, ledger := seed(t, db)
	ctx := context.Background()
	q := db.Queries()

	require.NoError(t, q.InsertTransaction(ctx, model.Transaction{
		ID: "t1", MerchantID: "m1", TrustAccountID: acct.ID, ClientLedgerID: ledger.ID,
		TransactionDate: day(2025, 1, 5), Amount: decimal.RequireFromString("300.00"),
		BalanceAfter: decimal.RequireFromString("700.00"), Type: model.TypeWithdrawal,
		FundType: model.FundTrust, CheckNumber: "1001", Status: model.TxCompleted, CreatedBy: "u1",
		CreatedAt: day(2025, 1, 5),
	}))

	ok, err := q.SetCleared(ctx, "t1", day(2025, 1, 8), "BANK-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.SetCleared(ctx, "t1", day(2025, 1, 9), "BANK-2")
	require.NoError(t, err)
	assert.False(t, ok, "second clear must not overwrite")

	got, err := q.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.ClearedDate)
	assert.True(t, got.ClearedDate.Equal(day(2025, 1, 8)))
	assert.Equal(t, "BANK-1", got.BankReference)
	assert.Equal(t, "300.00", got.Amount.StringFixed(2))
	assert.Equal(t, "700.00", got.BalanceAfter.StringFixed(2))

	cleared := false
	uncleared, err := q.ListTransactions(ctx, TransactionFilter{Cleared: &cleared})
	require.NoError(t, err)
	assert.Empty(t, uncleared)
}

func TestReconciliationSnapshotRoundTrip(t *testing.T) {
	db := openTestDB(t)
	acct, _ := seed(t, db)
	ctx := context.Background()

	rec := model.Reconciliation{
		ID: "r1", TrustAccountID: acct.ID, MerchantID: "m1", ReconciliationDate: day(2025, 1, 31),
		BookBalance: decimal.RequireFromString("700"), ClientLedgerTotal: decimal.RequireFromString("700"),
		BankBalance: decimal.RequireFromString("1000"), AdjustedBankBalance: decimal.RequireFromString("700"),
		IsBalanced: true, ReconcilerID: "u1", Status: model.ReconCompleted, CreatedAt: day(2025, 1, 31),
		Outstanding: model.OutstandingSnapshot{
			Checks: []model.OutstandingItem{{
				TransactionID: "t1", Type: model.TypeWithdrawal, Amount: decimal.RequireFromString("300.00"),
				CheckNumber: "1001", TransactionDate: day(2025, 1, 5),
			}},
			TotalChecks:   decimal.RequireFromString("300.00"),
			TotalDeposits: decimal.Zero,
		},
	}
	require.NoError(t, db.Queries().InsertReconciliation(ctx, rec))

	got, err := db.Queries().GetReconciliation(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.IsBalanced)
	assert.Equal(t, model.ReconCompleted, got.Status)
	require.Len(t, got.Outstanding.Checks, 1)
	assert.Equal(t, "1001", got.Outstanding.Checks[0].CheckNumber)
	assert.True(t, got.Outstanding.TotalChecks.Equal(decimal.NewFromInt(300)))

	reviewed := day(2025, 2, 2)
	require.NoError(t, db.Queries().UpdateReconciliationStatus(ctx, "r1", model.ReconReviewed, "u2", &reviewed, "ok"))

	list, err := db.Queries().ListReconciliations(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u2", list[0].ReviewerID)
	assert.Equal(t, model.ReconReviewed, list[0].Status)

	rec.Status = model.ReconDisputed
	rec.IsBalanced = false
	rec.BankBalance = decimal.RequireFromString("990.00")
	rec.Outstanding = model.OutstandingSnapshot{TotalChecks: decimal.Zero, TotalDeposits: decimal.Zero}
	require.NoError(t, db.Queries().SaveReconciliationFigures(ctx, rec))

	got, err = db.Queries().GetReconciliation(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, got.IsBalanced)
	assert.Equal(t, model.ReconDisputed, got.Status)
	assert.Equal(t, "990.00", got.BankBalance.StringFixed(2))
	assert.Empty(t, got.Outstanding.Checks)
	assert.Equal(t, "u2", got.ReviewerID)

	rec.ID = "missing"
	assert.ErrorIs(t, db.Queries().SaveReconciliationFigures(ctx, rec), model.ErrNotFound)
}

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/x.db", 2500)
	assert.Contains(t, dsn, "file:/tmp/x.db?")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "busy_timeout%282500%29")
}
