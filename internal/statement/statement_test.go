package statement

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/posting"
	"github.com/trustledger/trustledger/internal/store/storetest"
)

type fixture struct {
	ledgers *ledger.Service
	poster  *posting.Poster
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storetest.Open(t)
	return &fixture{
		ledgers: ledger.NewService(db, zerolog.Nop()),
		poster:  posting.NewPoster(db, zerolog.Nop(), nil),
		svc:     NewService(db, zerolog.Nop(), 0),
	}
}

func (f *fixture) account(t *testing.T) model.TrustAccount {
	t.Helper()
	acct, err := f.ledgers.CreateTrustAccount(context.Background(), ledger.CreateTrustAccountParams{
		MerchantID: "m1", AccountNumber: "1", BankName: "First Bank", RoutingNumber: "021000021", AccountType: "iolta",
	})
	require.NoError(t, err)
	return acct
}

func (f *fixture) ledger(t *testing.T, acct model.TrustAccount, client string) model.ClientLedger {
	t.Helper()
	l, err := f.ledgers.CreateClientLedger(context.Background(), ledger.CreateClientLedgerParams{
		MerchantID: "m1", TrustAccountID: acct.ID, ClientID: id.ToLedgerClientID(client),
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) post(t *testing.T, l model.ClientLedger, typ model.TransactionType, amount string, date time.Time) model.Transaction {
	t.Helper()
	res, err := f.poster.PostTransaction(context.Background(), posting.PostParams{
		MerchantID:      "m1",
		TrustAccountID:  l.TrustAccountID,
		ClientLedgerID:  l.ID,
		TransactionDate: date,
		Amount:          decimal.RequireFromString(amount),
		Type:            typ,
		Description:     string(typ),
		CreatedBy:       "u1",
	})
	require.NoError(t, err)
	return res.Transaction
}

func date(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 12, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestClientLedgerStatement_RunningBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t)
	l := f.ledger(t, acct, "42")

	f.post(t, l, model.TypeDeposit, "1000.00", date(1, 10))
	f.post(t, l, model.TypeWithdrawal, "200.00", date(1, 20))
	f.post(t, l, model.TypeDeposit, "50.00", date(2, 5))
	f.post(t, l, model.TypeFee, "12.50", date(2, 15))
	f.post(t, l, model.TypeTransfer, "-100.00", date(2, 25))

	st, err := f.svc.ClientLedgerStatement(ctx, "m1", l.ID, Range{Start: ptr(date(2, 1))})
	require.NoError(t, err)

	assert.Equal(t, "800.00", st.OpeningBalance.StringFixed(2))
	require.Len(t, st.Lines, 3)
	assert.Equal(t, "850.00", st.Lines[0].RunningBalance.StringFixed(2))
	assert.Equal(t, "837.50", st.Lines[1].RunningBalance.StringFixed(2))
	assert.Equal(t, "737.50", st.Lines[2].RunningBalance.StringFixed(2))
	assert.Equal(t, "737.50", st.ClosingBalance.StringFixed(2))
	assert.True(t, st.Drift.IsZero())

	// Running balance before the first line equals the opening balance.
	first := st.Lines[0]
	assert.True(t, first.RunningBalance.Sub(first.Signed).Equal(st.OpeningBalance))
}

func TestClientLedgerStatement_Unbounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.ledger(t, f.account(t), "1")

	f.post(t, l, model.TypeDeposit, "10.00", date(3, 1))
	f.post(t, l, model.TypeInterest, "0.05", date(3, 2))

	st, err := f.svc.ClientLedgerStatement(ctx, "m1", l.ID, Range{})
	require.NoError(t, err)
	assert.True(t, st.OpeningBalance.IsZero())
	require.Len(t, st.Lines, 2)
	assert.Equal(t, "10.05", st.ClosingBalance.StringFixed(2))
	assert.Equal(t, st.ClosingBalance.StringFixed(2), st.Lines[1].RunningBalance.StringFixed(2))
}

func TestClientLedgerStatement_SkipsVoidedAndPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.ledger(t, f.account(t), "1")

	f.post(t, l, model.TypeDeposit, "100.00", date(4, 1))
	mistake := f.post(t, l, model.TypeDeposit, "999.00", date(4, 2))
	_, err := f.poster.VoidTransaction(ctx, "m1", mistake.ID, "u1", "typo")
	require.NoError(t, err)
	_, err = f.poster.PostTransaction(ctx, posting.PostParams{
		MerchantID: "m1", TrustAccountID: l.TrustAccountID, ClientLedgerID: l.ID, TransactionDate: date(4, 3),
		Amount: decimal.NewFromInt(5), Type: model.TypeDeposit, Status: model.TxPending, CreatedBy: "u1",
	})
	require.NoError(t, err)

	st, err := f.svc.ClientLedgerStatement(ctx, "m1", l.ID, Range{})
	require.NoError(t, err)
	require.Len(t, st.Lines, 1)
	assert.Equal(t, "100.00", st.ClosingBalance.StringFixed(2))
	assert.True(t, st.Drift.IsZero())
}

func TestClientLedgerStatement_EndBeforeLatestActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.ledger(t, f.account(t), "1")

	f.post(t, l, model.TypeDeposit, "100.00", date(5, 1))
	f.post(t, l, model.TypeDeposit, "40.00", date(6, 1))

	st, err := f.svc.ClientLedgerStatement(ctx, "m1", l.ID, Range{End: ptr(date(5, 31))})
	require.NoError(t, err)
	require.Len(t, st.Lines, 1)
	assert.Equal(t, "140.00", st.ClosingBalance.StringFixed(2))
	assert.Equal(t, "40.00", st.Drift.StringFixed(2))
}

func TestClientLedgerStatement_Access(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.ledger(t, f.account(t), "1")

	_, err := f.svc.ClientLedgerStatement(ctx, "m2", l.ID, Range{})
	assert.ErrorIs(t, err, model.ErrAccessDenied)
	_, err = f.svc.ClientLedgerStatement(ctx, "m1", "missing", Range{})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestClientTrustStatement_AcrossAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.ledger(t, f.account(t), "42")
	a2 := f.ledger(t, f.account(t), "42")
	other := f.ledger(t, f.account(t), "43")

	f.post(t, a1, model.TypeDeposit, "500.00", date(1, 5))
	f.post(t, a1, model.TypePayment, "120.00", date(3, 10))
	f.post(t, a2, model.TypeDeposit, "75.25", date(3, 12))
	f.post(t, other, model.TypeDeposit, "1.00", date(3, 12))

	st, err := f.svc.ClientTrustStatement(ctx, "m1", "42", Range{Start: ptr(date(3, 1)), End: ptr(date(3, 31))})
	require.NoError(t, err)
	require.Len(t, st.Sections, 2)

	bySection := map[string]AccountSection{}
	for _, s := range st.Sections {
		bySection[s.Ledger.ID] = s
	}
	s1 := bySection[a1.ID]
	assert.Equal(t, "500.00", s1.OpeningBalance.StringFixed(2))
	assert.Equal(t, "380.00", s1.ClosingBalance.StringFixed(2))
	require.Len(t, s1.Lines, 1)
	assert.Equal(t, s1.ClosingBalance.StringFixed(2), s1.Lines[0].RunningBalance.StringFixed(2))

	s2 := bySection[a2.ID]
	assert.True(t, s2.OpeningBalance.IsZero())
	assert.Equal(t, "75.25", s2.ClosingBalance.StringFixed(2))

	assert.Equal(t, "500.00", st.TotalOpening.StringFixed(2))
	assert.Equal(t, "455.25", st.TotalClosing.StringFixed(2))
}

func TestClientTrustStatement_DefaultRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.ledger(t, f.account(t), "7")
	f.svc.now = func() time.Time { return date(6, 30) }

	f.post(t, l, model.TypeDeposit, "10.00", date(1, 15))
	f.post(t, l, model.TypeDeposit, "20.00", date(4, 15))

	st, err := f.svc.ClientTrustStatement(ctx, "m1", "7", Range{})
	require.NoError(t, err)
	assert.True(t, st.Start.Equal(date(3, 30)))
	assert.True(t, st.End.Equal(date(6, 30)))
	require.Len(t, st.Sections, 1)
	assert.Equal(t, "10.00", st.Sections[0].OpeningBalance.StringFixed(2))
	assert.Equal(t, "30.00", st.Sections[0].ClosingBalance.StringFixed(2))
}

func TestClientTrustStatement_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClientTrustStatement(ctx, "m1", "", Range{})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.svc.ClientTrustStatement(ctx, "m1", "1", Range{Start: ptr(date(5, 1)), End: ptr(date(4, 1))})
	assert.ErrorIs(t, err, model.ErrValidation)

	st, err := f.svc.ClientTrustStatement(ctx, "m1", "nobody", Range{})
	require.NoError(t, err)
	assert.Empty(t, st.Sections)
}

func TestWriteCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.ledger(t, f.account(t), "1")

	f.post(t, l, model.TypeDeposit, "100.00", date(2, 1))
	f.post(t, l, model.TypeWithdrawal, "30.00", date(2, 2))

	st, err := f.svc.ClientLedgerStatement(ctx, "m1", l.ID, Range{Start: ptr(date(1, 1)), End: ptr(date(12, 31))})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, st))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, Header, strings.Join(records[0], ","))
	assert.Equal(t, "0.00", records[1][colRunning])
	assert.Equal(t, "2025-02-02", records[3][colDate])
	assert.Equal(t, "-30.00", records[3][colAmount])
	assert.Equal(t, "70.00", records[3][colRunning])
	assert.Equal(t, "Closing balance", records[4][colDesc])
	assert.Equal(t, "70.00", records[4][colRunning])
}
