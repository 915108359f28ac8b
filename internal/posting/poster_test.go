package posting

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/trustledger/trustledger/internal/balance"
	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/metrics"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/store"
	"github.com/trustledger/trustledger/internal/store/storetest"
)

type fixture struct {
	db      *store.DB
	ledgers *ledger.Service
	poster  *Poster
	metrics *metrics.Collector
	account model.TrustAccount
	a, b    model.ClientLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, storetest.Open(t))
}

// newPooledFixture backs the fixture with several connections so
// concurrent postings race on the database lock itself.
func newPooledFixture(t *testing.T, conns int) *fixture {
	t.Helper()
	return newFixtureOn(t, storetest.OpenPool(t, conns))
}

func newFixtureOn(t *testing.T, db *store.DB) *fixture {
	t.Helper()
	ctx := context.Background()
	m := metrics.NewCollector()
	f := &fixture{
		db:      db,
		ledgers: ledger.NewService(db, zerolog.Nop()),
		poster:  NewPoster(db, zerolog.Nop(), m),
		metrics: m,
	}

	var err error
	f.account, err = f.ledgers.CreateTrustAccount(ctx, ledger.CreateTrustAccountParams{
		MerchantID:    "m1",
		AccountNumber: "000123456",
		AccountName:   "IOLTA",
		BankName:      "First Bank",
		RoutingNumber: "021000021",
		AccountType:   "iolta",
	})
	require.NoError(t, err)
	f.a, err = f.ledgers.CreateClientLedger(ctx, ledger.CreateClientLedgerParams{MerchantID: "m1", TrustAccountID: f.account.ID, ClientID: "1"})
	require.NoError(t, err)
	f.b, err = f.ledgers.CreateClientLedger(ctx, ledger.CreateClientLedgerParams{MerchantID: "m1", TrustAccountID: f.account.ID, ClientID: "2"})
	require.NoError(t, err)
	return f
}

var day = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) params(l model.ClientLedger, typ model.TransactionType, amount string) PostParams {
	return PostParams{
		MerchantID:      "m1",
		TrustAccountID:  f.account.ID,
		ClientLedgerID:  l.ID,
		TransactionDate: day,
		Amount:          dec(amount),
		Type:            typ,
		Description:     string(typ),
		CreatedBy:       "u1",
	}
}

func (f *fixture) post(t *testing.T, l model.ClientLedger, typ model.TransactionType, amount string) PostResult {
	t.Helper()
	res, err := f.poster.PostTransaction(context.Background(), f.params(l, typ, amount))
	require.NoError(t, err)
	return res
}

func (f *fixture) balances(t *testing.T, l model.ClientLedger) (string, string) {
	t.Helper()
	ctx := context.Background()
	gotLedger, err := f.db.Queries().GetClientLedger(ctx, l.ID)
	require.NoError(t, err)
	gotAccount, err := f.db.Queries().GetTrustAccount(ctx, f.account.ID)
	require.NoError(t, err)
	return gotLedger.Balance.StringFixed(2), gotAccount.Balance.StringFixed(2)
}

func TestPostDepositWithdrawOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dep := f.post(t, f.a, model.TypeDeposit, "1000.00")
	assert.Equal(t, "1000.00", dep.NewLedgerBalance.StringFixed(2))
	assert.Equal(t, "1000.00", dep.NewAccountBalance.StringFixed(2))
	assert.Equal(t, "1000.00", dep.Transaction.BalanceAfter.StringFixed(2))
	assert.Equal(t, model.TxCompleted, dep.Transaction.Status)
	assert.Equal(t, model.FundTrust, dep.Transaction.FundType)

	p := f.params(f.a, model.TypeWithdrawal, "300.00")
	p.CheckNumber = "1001"
	wd, err := f.poster.PostTransaction(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "700.00", wd.NewLedgerBalance.StringFixed(2))
	assert.Equal(t, "700.00", wd.NewAccountBalance.StringFixed(2))

	stored, err := f.db.Queries().GetTransaction(ctx, wd.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, "1001", stored.CheckNumber)
	assert.Equal(t, "300.00", stored.Amount.StringFixed(2))

	_, err = f.poster.PostTransaction(ctx, f.params(f.a, model.TypeWithdrawal, "5000.00"))
	require.ErrorIs(t, err, model.ErrInsufficientFunds)
	var insufficient *model.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, model.AggregateLedger, insufficient.Aggregate)
	assert.Equal(t, "5000.00", insufficient.Attempted.StringFixed(2))
	assert.Equal(t, "700.00", insufficient.Available.StringFixed(2))

	l, a := f.balances(t, f.a)
	assert.Equal(t, "700.00", l)
	assert.Equal(t, "700.00", a)

	txns, err := f.db.Queries().ListTransactions(ctx, store.TransactionFilter{ClientLedgerIDs: []string{f.a.ID}})
	require.NoError(t, err)
	assert.Len(t, txns, 2, "failed posting must not leave a row")

	n, err := testutil.GatherAndCount(f.metrics.Registry(), "trust_insufficient_funds_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsufficientFunds_AccountAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, f.a, model.TypeDeposit, "100.00")
	// Simulate an account balance corrected below the ledger total.
	require.NoError(t, f.db.Queries().SetTrustAccountBalance(ctx, f.account.ID, dec("40.00"), day))

	_, err := f.poster.PostTransaction(ctx, f.params(f.a, model.TypePayment, "60.00"))
	var insufficient *model.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, model.AggregateAccount, insufficient.Aggregate)
	assert.Equal(t, f.account.ID, insufficient.ID)

	l, a := f.balances(t, f.a)
	assert.Equal(t, "100.00", l)
	assert.Equal(t, "40.00", a)
}

func TestVoidRestoresBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dep := f.post(t, f.a, model.TypeDeposit, "1000.00")

	voided, err := f.poster.VoidTransaction(ctx, "m1", dep.Transaction.ID, "u2", "entered twice")
	require.NoError(t, err)
	assert.Equal(t, model.TxVoided, voided.Status)
	assert.Equal(t, "u2", voided.VoidedBy)
	require.NotNil(t, voided.VoidedAt)

	l, a := f.balances(t, f.a)
	assert.Equal(t, "0.00", l)
	assert.Equal(t, "0.00", a)

	stored, err := f.db.Queries().GetTransaction(ctx, dep.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxVoided, stored.Status)
	assert.Equal(t, "entered twice", stored.VoidReason)
	assert.Equal(t, "1000.00", stored.Amount.StringFixed(2))
	assert.Equal(t, "1000.00", stored.BalanceAfter.StringFixed(2))

	_, err = f.poster.VoidTransaction(ctx, "m1", dep.Transaction.ID, "u2", "")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestVoidWithdrawalAndReversalOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dep := f.post(t, f.a, model.TypeDeposit, "500.00")
	wd := f.post(t, f.a, model.TypeWithdrawal, "450.00")

	// Reversing the deposit would leave the ledger at -450.
	_, err := f.poster.VoidTransaction(ctx, "m1", dep.Transaction.ID, "u1", "")
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	l, a := f.balances(t, f.a)
	assert.Equal(t, "50.00", l)
	assert.Equal(t, "50.00", a)

	_, err = f.poster.VoidTransaction(ctx, "m1", wd.Transaction.ID, "u1", "")
	require.NoError(t, err)
	l, a = f.balances(t, f.a)
	assert.Equal(t, "500.00", l)
	assert.Equal(t, "500.00", a)
}

func TestVoid_AccessAndLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dep := f.post(t, f.a, model.TypeDeposit, "10.00")

	_, err := f.poster.VoidTransaction(ctx, "m2", dep.Transaction.ID, "u1", "")
	assert.ErrorIs(t, err, model.ErrAccessDenied)
	_, err = f.poster.VoidTransaction(ctx, "m1", "missing", "u1", "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTransferCarriesSign(t *testing.T) {
	f := newFixture(t)

	in := f.post(t, f.a, model.TypeTransfer, "50.00")
	assert.Equal(t, "50.00", in.NewLedgerBalance.StringFixed(2))

	out := f.post(t, f.a, model.TypeTransfer, "-20.00")
	assert.Equal(t, "30.00", out.NewLedgerBalance.StringFixed(2))
	assert.Equal(t, "30.00", out.NewAccountBalance.StringFixed(2))

	_, err := f.poster.PostTransaction(context.Background(), f.params(f.a, model.TypeTransfer, "-31.00"))
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
}

func TestPendingApproveAndReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.params(f.a, model.TypeDeposit, "250.00")
	p.Status = model.TxPending
	pending, err := f.poster.PostTransaction(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, model.TxPending, pending.Transaction.Status)
	assert.Equal(t, "0.00", pending.NewLedgerBalance.StringFixed(2))
	l, a := f.balances(t, f.a)
	assert.Equal(t, "0.00", l)
	assert.Equal(t, "0.00", a)

	approved, err := f.poster.UpdateTransactionStatus(ctx, "m1", pending.Transaction.ID, model.TxCompleted, "approver")
	require.NoError(t, err)
	assert.Equal(t, model.TxCompleted, approved.Status)
	assert.Equal(t, "250.00", approved.BalanceAfter.StringFixed(2))
	assert.Equal(t, "approver", approved.ApprovedBy)
	l, a = f.balances(t, f.a)
	assert.Equal(t, "250.00", l)
	assert.Equal(t, "250.00", a)

	_, err = f.poster.UpdateTransactionStatus(ctx, "m1", pending.Transaction.ID, model.TxCompleted, "approver")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	p.Amount = dec("75.00")
	second, err := f.poster.PostTransaction(ctx, p)
	require.NoError(t, err)
	rejected, err := f.poster.UpdateTransactionStatus(ctx, "m1", second.Transaction.ID, model.TxRejected, "approver")
	require.NoError(t, err)
	assert.Equal(t, model.TxRejected, rejected.Status)
	l, _ = f.balances(t, f.a)
	assert.Equal(t, "250.00", l)

	_, err = f.poster.UpdateTransactionStatus(ctx, "m1", second.Transaction.ID, model.TxCompleted, "approver")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	voided, err := f.poster.UpdateTransactionStatus(ctx, "m1", pending.Transaction.ID, model.TxVoided, "approver")
	require.NoError(t, err)
	assert.Equal(t, model.TxVoided, voided.Status)
	l, a = f.balances(t, f.a)
	assert.Equal(t, "0.00", l)
	assert.Equal(t, "0.00", a)

	_, err = f.poster.UpdateTransactionStatus(ctx, "m1", pending.Transaction.ID, model.TxPending, "approver")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestApprovePendingWithdrawalRechecksFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.params(f.a, model.TypeWithdrawal, "10.00")
	p.Status = model.TxPending
	pending, err := f.poster.PostTransaction(ctx, p)
	require.NoError(t, err)

	_, err = f.poster.UpdateTransactionStatus(ctx, "m1", pending.Transaction.ID, model.TxCompleted, "approver")
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	stored, err := f.db.Queries().GetTransaction(ctx, pending.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxPending, stored.Status)
}

func TestPostValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.ledgers.CreateTrustAccount(ctx, ledger.CreateTrustAccountParams{
		MerchantID: "m1", AccountNumber: "9", BankName: "B", RoutingNumber: "011000015", AccountType: "iolta",
	})
	require.NoError(t, err)
	foreign, err := f.ledgers.CreateClientLedger(ctx, ledger.CreateClientLedgerParams{MerchantID: "m1", TrustAccountID: other.ID, ClientID: "3"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(p *PostParams)
		want   error
	}{
		{"zero deposit", func(p *PostParams) { p.Amount = decimal.Zero }, model.ErrValidation},
		{"negative deposit", func(p *PostParams) { p.Amount = dec("-5.00") }, model.ErrValidation},
		{"sub-cent amount", func(p *PostParams) { p.Amount = dec("1.005") }, model.ErrValidation},
		{"zero transfer", func(p *PostParams) { p.Type = model.TypeTransfer; p.Amount = decimal.Zero }, model.ErrValidation},
		{"unknown type", func(p *PostParams) { p.Type = "refund" }, model.ErrValidation},
		{"unknown fund type", func(p *PostParams) { p.FundType = "petty" }, model.ErrValidation},
		{"operating deposit", func(p *PostParams) { p.FundType = model.FundOperating }, model.ErrValidation},
		{"missing user", func(p *PostParams) { p.CreatedBy = "" }, model.ErrValidation},
		{"missing date", func(p *PostParams) { p.TransactionDate = time.Time{} }, model.ErrValidation},
		{"voided on create", func(p *PostParams) { p.Status = model.TxVoided }, model.ErrValidation},
		{"ledger of other account", func(p *PostParams) { p.ClientLedgerID = foreign.ID }, model.ErrValidation},
		{"missing ledger", func(p *PostParams) { p.ClientLedgerID = "missing" }, model.ErrNotFound},
		{"other merchant", func(p *PostParams) { p.MerchantID = "m2" }, model.ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.params(f.a, model.TypeDeposit, "10.00")
			tt.mutate(&p)
			_, err := f.poster.PostTransaction(ctx, p)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	l, a := f.balances(t, f.a)
	assert.Equal(t, "0.00", l)
	assert.Equal(t, "0.00", a)
}

func TestOperatingFundsMayLeaveTrust(t *testing.T) {
	f := newFixture(t)
	f.post(t, f.a, model.TypeDeposit, "100.00")

	p := f.params(f.a, model.TypeFee, "25.00")
	p.FundType = model.FundOperating
	res, err := f.poster.PostTransaction(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "75.00", res.NewLedgerBalance.StringFixed(2))
}

func TestPostToClosedLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledgers.UpdateClientLedgerStatus(ctx, "m1", f.b.ID, model.StatusClosed)
	require.NoError(t, err)

	_, err = f.poster.PostTransaction(ctx, f.params(f.b, model.TypeDeposit, "1.00"))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestVoidOnClosedLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, f.a, model.TypeDeposit, "100.00")
	wd := f.post(t, f.a, model.TypeWithdrawal, "100.00")
	_, err := f.ledgers.UpdateClientLedgerStatus(ctx, "m1", f.a.ID, model.StatusClosed)
	require.NoError(t, err)

	_, err = f.poster.VoidTransaction(ctx, "m1", wd.Transaction.ID, "u1", "wrong client")
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.poster.UpdateTransactionStatus(ctx, "m1", wd.Transaction.ID, model.TxVoided, "u1")
	assert.ErrorIs(t, err, model.ErrValidation)

	l, a := f.balances(t, f.a)
	assert.Equal(t, "0.00", l)
	assert.Equal(t, "0.00", a)
	stored, err := f.db.Queries().GetTransaction(ctx, wd.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxCompleted, stored.Status)
}

func TestInterestAccrued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accrued := func() string {
		acct, err := f.db.Queries().GetTrustAccount(ctx, f.account.ID)
		require.NoError(t, err)
		return acct.InterestAccrued.StringFixed(2)
	}

	f.post(t, f.a, model.TypeDeposit, "1000.00")
	assert.Equal(t, "0.00", accrued())

	first := f.post(t, f.a, model.TypeInterest, "1.25")
	f.post(t, f.b, model.TypeInterest, "0.40")
	assert.Equal(t, "1.65", accrued())

	p := f.params(f.a, model.TypeInterest, "2.00")
	p.Status = model.TxPending
	pending, err := f.poster.PostTransaction(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "1.65", accrued())
	_, err = f.poster.UpdateTransactionStatus(ctx, "m1", pending.Transaction.ID, model.TxCompleted, "approver")
	require.NoError(t, err)
	assert.Equal(t, "3.65", accrued())

	_, err = f.poster.VoidTransaction(ctx, "m1", first.Transaction.ID, "u1", "bank reversed")
	require.NoError(t, err)
	assert.Equal(t, "2.40", accrued())
	_, a := f.balances(t, f.a)
	assert.Equal(t, "1002.40", a)
}

const poolSize = 8

func TestConcurrentDepositsSameLedger(t *testing.T) {
	const n = 25
	for run := 0; run < 5; run++ {
		t.Run(fmt.Sprintf("run-%d", run), func(t *testing.T) {
			f := newPooledFixture(t, poolSize)
			ctx := context.Background()
			f.post(t, f.a, model.TypeDeposit, "100.00")

			g, gctx := errgroup.WithContext(ctx)
			for i := 0; i < n; i++ {
				g.Go(func() error {
					_, err := f.poster.PostTransaction(gctx, f.params(f.a, model.TypeDeposit, "10.01"))
					return err
				})
			}
			require.NoError(t, g.Wait())

			want := dec("100.00").Add(dec("10.01").Mul(decimal.NewFromInt(n))).StringFixed(2)
			l, a := f.balances(t, f.a)
			assert.Equal(t, want, l)
			assert.Equal(t, want, a)

			txns, err := f.db.Queries().ListTransactions(ctx, store.TransactionFilter{ClientLedgerIDs: []string{f.a.ID}})
			require.NoError(t, err)
			assert.Len(t, txns, n+1)
		})
	}
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newPooledFixture(t, poolSize)
	f.post(t, f.a, model.TypeDeposit, "100.00")

	const n = 16
	var g errgroup.Group
	results := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			_, results[i] = f.poster.PostTransaction(context.Background(), f.params(f.a, model.TypeWithdrawal, "10.00"))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	}
	assert.Equal(t, 10, ok)
	l, a := f.balances(t, f.a)
	assert.Equal(t, "0.00", l)
	assert.Equal(t, "0.00", a)
}

func TestConcurrentLedgersShareAccount(t *testing.T) {
	for run := 0; run < 5; run++ {
		t.Run(fmt.Sprintf("run-%d", run), func(t *testing.T) {
			f := newPooledFixture(t, poolSize)
			const n = 10
			var g errgroup.Group
			for i := 0; i < n; i++ {
				g.Go(func() error {
					_, err := f.poster.PostTransaction(context.Background(), f.params(f.a, model.TypeDeposit, "100.00"))
					return err
				})
				g.Go(func() error {
					_, err := f.poster.PostTransaction(context.Background(), f.params(f.b, model.TypeDeposit, "50.00"))
					return err
				})
			}
			require.NoError(t, g.Wait())

			la, acct := f.balances(t, f.a)
			lb, _ := f.balances(t, f.b)
			assert.Equal(t, "1000.00", la)
			assert.Equal(t, "500.00", lb)
			assert.Equal(t, "1500.00", acct)
		})
	}
}

func TestBalanceInvariantsUnderRandomActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	ledgers := []model.ClientLedger{f.a, f.b}
	types := []model.TransactionType{model.TypeDeposit, model.TypeWithdrawal, model.TypeFee, model.TypeInterest, model.TypePayment, model.TypeTransfer}
	var posted []string

	for i := 0; i < 200; i++ {
		l := ledgers[rng.Intn(len(ledgers))]
		typ := types[rng.Intn(len(types))]
		amount := decimal.New(int64(rng.Intn(50000)+1), -2)
		if typ == model.TypeTransfer && rng.Intn(2) == 0 {
			amount = amount.Neg()
		}
		p := f.params(l, typ, amount.StringFixed(2))
		p.TransactionDate = day.Add(time.Duration(i) * time.Hour)

		res, err := f.poster.PostTransaction(ctx, p)
		if err != nil {
			require.ErrorIs(t, err, model.ErrInsufficientFunds)
			continue
		}
		posted = append(posted, res.Transaction.ID)

		if rng.Intn(10) == 0 {
			victim := posted[rng.Intn(len(posted))]
			if _, err := f.poster.VoidTransaction(ctx, "m1", victim, "u1", ""); err != nil {
				require.True(t, errorsIsAny(err, model.ErrInsufficientFunds, model.ErrInvalidTransition), err.Error())
			}
		}
	}

	q := f.db.Queries()
	acct, err := q.GetTrustAccount(ctx, f.account.ID)
	require.NoError(t, err)
	all, err := q.ListTransactions(ctx, store.TransactionFilter{TrustAccountID: f.account.ID})
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(balance.Sum(all)), "account %s != sum %s", acct.Balance, balance.Sum(all))
	assert.False(t, acct.Balance.IsNegative())

	total := decimal.Zero
	for _, l := range ledgers {
		got, err := q.GetClientLedger(ctx, l.ID)
		require.NoError(t, err)
		txns, err := q.ListTransactions(ctx, store.TransactionFilter{ClientLedgerIDs: []string{l.ID}})
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(balance.Sum(txns)), "ledger %s != sum %s", got.Balance, balance.Sum(txns))
		assert.False(t, got.Balance.IsNegative())
		total = total.Add(got.Balance)
	}
	assert.True(t, acct.Balance.Equal(total))
}

func TestBalanceAfterTracksLatestPosting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	amounts := []struct {
		typ    model.TransactionType
		amount string
	}{
		{model.TypeDeposit, "100.00"},
		{model.TypeInterest, "0.37"},
		{model.TypeWithdrawal, "20.10"},
		{model.TypeTransfer, "-5.00"},
	}
	for i, a := range amounts {
		p := f.params(f.a, a.typ, a.amount)
		p.TransactionDate = day.AddDate(0, 0, i)
		_, err := f.poster.PostTransaction(ctx, p)
		require.NoError(t, err)
	}

	txns, err := f.db.Queries().ListTransactions(ctx, store.TransactionFilter{ClientLedgerIDs: []string{f.a.ID}})
	require.NoError(t, err)
	require.Len(t, txns, 4)
	l, _ := f.balances(t, f.a)
	assert.Equal(t, l, txns[len(txns)-1].BalanceAfter.StringFixed(2))
	assert.Equal(t, "75.27", l)

	got, err := f.db.Queries().GetClientLedger(ctx, f.a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastTransactionDate)
	assert.True(t, got.LastTransactionDate.Equal(day.AddDate(0, 0, 3)))
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
