package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/balance"
	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/store"
)

// Report summarises account activity over a period.
type Report struct {
	TrustAccount     model.TrustAccount
	ClientID         id.ClientID // empty for an account-wide report
	ClientLedgerIDs  []string
	Start            time.Time
	End              time.Time
	StartingBalance  decimal.Decimal
	EndingBalance    decimal.Decimal
	Lines            []balance.Line
	Deposits         []model.Transaction
	Withdrawals      []model.Transaction
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal
	GeneratedAt      time.Time
}

// GenerateReconciliationReport walks an account's completed transactions
// in [start, end] from the balance carried in before start.
func (e *Engine) GenerateReconciliationReport(ctx context.Context, merchantID, accountID string, start, end time.Time) (Report, error) {
	var r Report
	err := e.db.WithTx(ctx, func(q *store.Queries) error {
		acct, err := ledger.LoadTrustAccount(ctx, q, merchantID, accountID)
		if err != nil {
			return err
		}
		r, err = e.report(ctx, q, acct, nil, start, end)
		return err
	})
	if err != nil {
		return Report{}, err
	}
	return r, nil
}

// GenerateClientReconciliationReport is GenerateReconciliationReport
// restricted to the ledgers clientID holds in the account.
func (e *Engine) GenerateClientReconciliationReport(ctx context.Context, merchantID string, clientID id.ClientID, accountID string, start, end time.Time) (Report, error) {
	if clientID.IsZero() {
		return Report{}, &model.ValidationError{Field: "client_id", Description: "required"}
	}

	var r Report
	err := e.db.WithTx(ctx, func(q *store.Queries) error {
		acct, err := ledger.LoadTrustAccount(ctx, q, merchantID, accountID)
		if err != nil {
			return err
		}
		ledgers, err := q.ListClientLedgers(ctx, store.LedgerFilter{TrustAccountID: acct.ID, ClientID: clientID})
		if err != nil {
			return err
		}
		if len(ledgers) == 0 {
			return model.NotFound("client ledger for client", clientID.String())
		}
		ids := make([]string, len(ledgers))
		for i, l := range ledgers {
			ids[i] = l.ID
		}
		r, err = e.report(ctx, q, acct, ids, start, end)
		r.ClientID = clientID
		return err
	})
	if err != nil {
		return Report{}, err
	}
	return r, nil
}

func (e *Engine) report(ctx context.Context, q *store.Queries, acct model.TrustAccount, ledgerIDs []string, start, end time.Time) (Report, error) {
	if end.Before(start) {
		return Report{}, &model.ValidationError{Field: "end_date", Description: "before start date"}
	}
	completed := []model.TransactionStatus{model.TxCompleted}

	before, err := q.ListTransactions(ctx, store.TransactionFilter{
		TrustAccountID:  acct.ID,
		ClientLedgerIDs: ledgerIDs,
		Statuses:        completed,
		Before:          &start,
	})
	if err != nil {
		return Report{}, err
	}
	inRange, err := q.ListTransactions(ctx, store.TransactionFilter{
		TrustAccountID:  acct.ID,
		ClientLedgerIDs: ledgerIDs,
		Statuses:        completed,
		From:            &start,
		To:              &end,
	})
	if err != nil {
		return Report{}, err
	}

	opening := balance.Sum(before)
	lines, closing := balance.Walk(opening, inRange)
	buckets := balance.Split(inRange)
	return Report{
		TrustAccount:     acct,
		ClientLedgerIDs:  ledgerIDs,
		Start:            start,
		End:              end,
		StartingBalance:  opening,
		EndingBalance:    closing,
		Lines:            lines,
		Deposits:         buckets.Deposits,
		Withdrawals:      buckets.Withdrawals,
		TotalDeposits:    buckets.TotalDeposits,
		TotalWithdrawals: buckets.TotalWithdrawals,
		GeneratedAt:      e.now().UTC(),
	}, nil
}
