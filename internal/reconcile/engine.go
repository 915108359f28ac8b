// Package reconcile performs three-way trust reconciliation: the book
// balance of a trust account, the sum of its client ledgers and the bank's
// statement balance adjusted for items in transit.
//
// Nothing here changes a balance. Clearing only stamps the bank
// confirmation on a transaction.
package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/metrics"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/store"
)

// Engine runs reconciliations and clears transactions.
type Engine struct {
	db      *store.DB
	log     zerolog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(db *store.DB, logger zerolog.Logger, m *metrics.Collector) *Engine {
	return &Engine{db: db, log: logger, metrics: m, now: time.Now}
}

// Balances is the book side of a three-way reconciliation.
type Balances struct {
	TrustAccount          model.TrustAccount
	BookBalance           decimal.Decimal
	ClientLedgerTotal     decimal.Decimal
	Difference            decimal.Decimal // book minus client ledger total
	IsBalanced            bool
	OutstandingChecks     []model.Transaction
	OutstandingDeposits   []model.Transaction
	ClearedTransactions   []model.Transaction
	UnclearedTransactions []model.Transaction
	ClientLedgers         []model.ClientLedger
}

// GetReconciliationBalances compares an account's book balance with the sum
// of its client ledgers and lists what the bank has not yet confirmed.
func (e *Engine) GetReconciliationBalances(ctx context.Context, merchantID, accountID string) (Balances, error) {
	var b Balances
	err := e.db.WithTx(ctx, func(q *store.Queries) error {
		var err error
		b, err = loadBalances(ctx, q, merchantID, accountID)
		return err
	})
	if err != nil {
		return Balances{}, err
	}
	return b, nil
}

func loadBalances(ctx context.Context, q *store.Queries, merchantID, accountID string) (Balances, error) {
	lb, err := ledger.LoadLedgerBalances(ctx, q, merchantID, accountID)
	if err != nil {
		return Balances{}, err
	}
	txns, err := q.ListTransactions(ctx, store.TransactionFilter{
		TrustAccountID: accountID,
		Statuses:       []model.TransactionStatus{model.TxCompleted},
	})
	if err != nil {
		return Balances{}, err
	}

	book := lb.TrustAccount.Balance
	diff := book.Sub(lb.TotalBalance)
	b := Balances{
		TrustAccount:      lb.TrustAccount,
		BookBalance:       book,
		ClientLedgerTotal: lb.TotalBalance,
		Difference:        diff,
		IsBalanced:        diff.IsZero(),
		ClientLedgers:     lb.ClientLedgers,
	}
	for _, t := range txns {
		if t.IsCleared() {
			b.ClearedTransactions = append(b.ClearedTransactions, t)
			continue
		}
		b.UnclearedTransactions = append(b.UnclearedTransactions, t)
		switch t.Type {
		case model.TypeWithdrawal, model.TypePayment:
			b.OutstandingChecks = append(b.OutstandingChecks, t)
		case model.TypeDeposit:
			b.OutstandingDeposits = append(b.OutstandingDeposits, t)
		}
	}
	return b, nil
}

// ClearItem is one bank confirmation.
type ClearItem struct {
	TransactionID string
	ClearedDate   time.Time
	BankReference string
}

// MarkTransactionCleared records that the bank confirmed a completed
// transaction. Clearing twice is an invalid transition.
func (e *Engine) MarkTransactionCleared(ctx context.Context, merchantID, txID string, clearedDate time.Time, bankReference string) (model.Transaction, error) {
	var cleared model.Transaction
	err := e.db.WithTx(ctx, func(q *store.Queries) error {
		t, err := loadClearable(ctx, q, merchantID, txID)
		if err != nil {
			return err
		}
		if t.IsCleared() {
			return &model.TransitionError{Entity: "transaction", From: "cleared", To: "cleared",
				Reason: "already cleared on " + t.ClearedDate.Format(time.DateOnly)}
		}
		ok, err := q.SetCleared(ctx, t.ID, clearedDate.UTC(), strings.TrimSpace(bankReference))
		if err != nil {
			return err
		}
		if !ok {
			return &model.TransitionError{Entity: "transaction", From: "cleared", To: "cleared"}
		}
		d := clearedDate.UTC()
		t.ClearedDate = &d
		t.BankReference = strings.TrimSpace(bankReference)
		cleared = t
		return nil
	})
	if err != nil {
		return model.Transaction{}, err
	}

	e.metrics.RecordCleared(1)
	e.log.Info().
		Str("merchant_id", merchantID).
		Str("transaction_id", txID).
		Str("bank_reference", cleared.BankReference).
		Msg("transaction cleared")
	return cleared, nil
}

// MarkTransactionsCleared clears several transactions on one date and
// returns how many were newly cleared. Already cleared ones are skipped.
func (e *Engine) MarkTransactionsCleared(ctx context.Context, merchantID string, txIDs []string, clearedDate time.Time) (int, error) {
	items := make([]ClearItem, len(txIDs))
	for i, tid := range txIDs {
		items[i] = ClearItem{TransactionID: tid, ClearedDate: clearedDate}
	}
	return e.ClearBatch(ctx, merchantID, items)
}

// ClearBatch applies bank confirmations in one unit of work. Any failure
// leaves every transaction as it was.
func (e *Engine) ClearBatch(ctx context.Context, merchantID string, items []ClearItem) (int, error) {
	return e.ClearSelected(ctx, merchantID, func(context.Context, *store.Queries) ([]ClearItem, error) {
		return items, nil
	})
}

// ClearSelected runs pick and clears the items it returns in one unit of
// work, so the transactions pick reads cannot change status before they
// are cleared.
func (e *Engine) ClearSelected(ctx context.Context, merchantID string, pick func(ctx context.Context, q *store.Queries) ([]ClearItem, error)) (int, error) {
	var n, requested int
	err := e.db.WithTx(ctx, func(q *store.Queries) error {
		items, err := pick(ctx, q)
		if err != nil {
			return err
		}
		requested = len(items)
		n, err = clearInTx(ctx, q, merchantID, items)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.metrics.RecordCleared(n)
	e.log.Info().Str("merchant_id", merchantID).Int("requested", requested).Int("cleared", n).Msg("transactions cleared")
	return n, nil
}

func clearInTx(ctx context.Context, q *store.Queries, merchantID string, items []ClearItem) (int, error) {
	var n int
	for _, item := range items {
		t, err := loadClearable(ctx, q, merchantID, item.TransactionID)
		if err != nil {
			return 0, err
		}
		ok, err := q.SetCleared(ctx, t.ID, item.ClearedDate.UTC(), strings.TrimSpace(item.BankReference))
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func loadClearable(ctx context.Context, q *store.Queries, merchantID, txID string) (model.Transaction, error) {
	t, err := q.GetTransaction(ctx, txID)
	if err != nil {
		return model.Transaction{}, err
	}
	if err := model.CheckMerchant("transaction", t.ID, t.MerchantID, merchantID); err != nil {
		return model.Transaction{}, err
	}
	if t.Status != model.TxCompleted {
		return model.Transaction{}, &model.TransitionError{Entity: "transaction", From: string(t.Status), To: "cleared",
			Reason: "only completed transactions can be cleared"}
	}
	return t, nil
}
