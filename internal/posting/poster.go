// Package posting is the only writer of trust account and client ledger
// balances. Every balance change inserts or updates a transaction row and
// moves both balances inside one unit of work.
package posting

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/metrics"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/store"
)

// Poster posts, approves, rejects and voids transactions.
type Poster struct {
	db      *store.DB
	log     zerolog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewPoster creates a Poster. m may be nil.
func NewPoster(db *store.DB, logger zerolog.Logger, m *metrics.Collector) *Poster {
	return &Poster{db: db, log: logger, metrics: m, now: time.Now}
}

// PostParams describes a new transaction.
// Amount is positive except for transfers, where the sign gives the direction.
type PostParams struct {
	MerchantID      string
	TrustAccountID  string
	ClientLedgerID  string
	TransactionDate time.Time
	Amount          decimal.Decimal
	Description     string
	Type            model.TransactionType
	FundType        model.FundType // defaults to trust
	CheckNumber     string
	ReferenceNumber string
	Payee           string
	Payor           string
	Status          model.TransactionStatus // defaults to completed
	CreatedBy       string
}

// PostResult is the stored transaction plus both balances after posting.
// For a pending transaction the balances are the unchanged current ones.
type PostResult struct {
	Transaction       model.Transaction
	NewLedgerBalance  decimal.Decimal
	NewAccountBalance decimal.Decimal
}

// PostTransaction records a transaction and, unless it is pending, applies
// its signed amount to the client ledger and the trust account atomically.
func (p *Poster) PostTransaction(ctx context.Context, params PostParams) (PostResult, error) {
	start := p.now()
	if params.FundType == "" {
		params.FundType = model.FundTrust
	}
	if params.Status == "" {
		params.Status = model.TxCompleted
	}

	res, err := p.post(ctx, params)
	p.metrics.RecordPosting(string(params.Type), result(err), p.now().Sub(start))
	if err != nil {
		p.logRejected(err, "posting rejected", params.ClientLedgerID, params.Type, params.Amount)
		return PostResult{}, err
	}

	p.log.Info().
		Str("merchant_id", params.MerchantID).
		Str("transaction_id", res.Transaction.ID).
		Str("client_ledger_id", params.ClientLedgerID).
		Str("type", string(params.Type)).
		Str("status", string(res.Transaction.Status)).
		Str("amount", params.Amount.StringFixed(2)).
		Str("ledger_balance", res.NewLedgerBalance.StringFixed(2)).
		Str("account_balance", res.NewAccountBalance.StringFixed(2)).
		Msg("transaction posted")
	return res, nil
}

func (p *Poster) post(ctx context.Context, params PostParams) (PostResult, error) {
	if err := validatePost(params); err != nil {
		return PostResult{}, err
	}

	var res PostResult
	err := p.db.WithTx(ctx, func(q *store.Queries) error {
		l, err := ledger.LoadClientLedger(ctx, q, params.MerchantID, params.ClientLedgerID)
		if err != nil {
			return err
		}
		if l.TrustAccountID != params.TrustAccountID {
			return &model.ValidationError{Field: "client_ledger_id", Description: "ledger does not belong to trust account " + params.TrustAccountID}
		}
		acct, err := ledger.LoadTrustAccount(ctx, q, params.MerchantID, params.TrustAccountID)
		if err != nil {
			return err
		}
		if err := checkActive(acct, l); err != nil {
			return err
		}

		now := p.now().UTC()
		t := model.Transaction{
			ID:              id.New(),
			MerchantID:      params.MerchantID,
			TrustAccountID:  acct.ID,
			ClientLedgerID:  l.ID,
			TransactionDate: params.TransactionDate.UTC(),
			Amount:          params.Amount,
			BalanceAfter:    decimal.Zero,
			Description:     strings.TrimSpace(params.Description),
			Type:            params.Type,
			FundType:        params.FundType,
			CheckNumber:     strings.TrimSpace(params.CheckNumber),
			ReferenceNumber: strings.TrimSpace(params.ReferenceNumber),
			Payee:           params.Payee,
			Payor:           params.Payor,
			Status:          params.Status,
			CreatedBy:       params.CreatedBy,
			CreatedAt:       now,
		}

		if t.Status == model.TxPending {
			res = PostResult{Transaction: t, NewLedgerBalance: l.Balance, NewAccountBalance: acct.Balance}
			return q.InsertTransaction(ctx, t)
		}

		newLedger, newAccount, err := apply(ctx, q, l, acct, t.SignedAmount(), t.TransactionDate, now)
		if err != nil {
			return err
		}
		if err := accrueInterest(ctx, q, acct, t, t.SignedAmount(), now); err != nil {
			return err
		}
		t.BalanceAfter = newLedger
		if err := q.InsertTransaction(ctx, t); err != nil {
			return err
		}
		res = PostResult{Transaction: t, NewLedgerBalance: newLedger, NewAccountBalance: newAccount}
		return nil
	})
	if err != nil {
		return PostResult{}, err
	}
	return res, nil
}

// VoidTransaction reverses a completed transaction. The row is kept with
// status voided; both balances move by the inverse of its signed amount.
func (p *Poster) VoidTransaction(ctx context.Context, merchantID, txID, userID, reason string) (model.Transaction, error) {
	var voided model.Transaction
	err := p.db.WithTx(ctx, func(q *store.Queries) error {
		t, err := loadTransaction(ctx, q, merchantID, txID)
		if err != nil {
			return err
		}
		voided, err = p.void(ctx, q, t, userID, reason)
		return err
	})
	if err != nil {
		p.logRejected(err, "void rejected", txID, "", decimal.Zero)
		return model.Transaction{}, err
	}

	p.metrics.RecordVoid()
	p.log.Info().
		Str("merchant_id", merchantID).
		Str("transaction_id", txID).
		Str("voided_by", userID).
		Str("amount", voided.Amount.StringFixed(2)).
		Msg("transaction voided")
	return voided, nil
}

// UpdateTransactionStatus moves a transaction along its lifecycle:
// pending to completed applies it, pending to rejected discards it and
// completed to voided reverses it.
func (p *Poster) UpdateTransactionStatus(ctx context.Context, merchantID, txID string, status model.TransactionStatus, userID string) (model.Transaction, error) {
	var updated model.Transaction
	err := p.db.WithTx(ctx, func(q *store.Queries) error {
		t, err := loadTransaction(ctx, q, merchantID, txID)
		if err != nil {
			return err
		}

		switch {
		case t.Status == model.TxPending && status == model.TxCompleted:
			updated, err = p.approve(ctx, q, t, userID)
			return err
		case t.Status == model.TxPending && status == model.TxRejected:
			now := p.now().UTC()
			if err := q.MarkRejected(ctx, t.ID, userID, now); err != nil {
				return err
			}
			t.Status = model.TxRejected
			t.ApprovedBy = userID
			t.ApprovedAt = &now
			updated = t
			return nil
		case t.Status == model.TxCompleted && status == model.TxVoided:
			updated, err = p.void(ctx, q, t, userID, "")
			return err
		}
		return &model.TransitionError{Entity: "transaction", From: string(t.Status), To: string(status)}
	})
	if err != nil {
		p.logRejected(err, "status change rejected", txID, "", decimal.Zero)
		return model.Transaction{}, err
	}

	if status == model.TxVoided {
		p.metrics.RecordVoid()
	}
	p.log.Info().
		Str("merchant_id", merchantID).
		Str("transaction_id", txID).
		Str("status", string(status)).
		Str("user_id", userID).
		Msg("transaction status changed")
	return updated, nil
}

func (p *Poster) approve(ctx context.Context, q *store.Queries, t model.Transaction, userID string) (model.Transaction, error) {
	l, err := ledger.LoadClientLedger(ctx, q, t.MerchantID, t.ClientLedgerID)
	if err != nil {
		return model.Transaction{}, err
	}
	acct, err := ledger.LoadTrustAccount(ctx, q, t.MerchantID, t.TrustAccountID)
	if err != nil {
		return model.Transaction{}, err
	}
	if err := checkActive(acct, l); err != nil {
		return model.Transaction{}, err
	}

	now := p.now().UTC()
	newLedger, _, err := apply(ctx, q, l, acct, t.SignedAmount(), t.TransactionDate, now)
	if err != nil {
		return model.Transaction{}, err
	}
	if err := accrueInterest(ctx, q, acct, t, t.SignedAmount(), now); err != nil {
		return model.Transaction{}, err
	}
	if err := q.MarkPosted(ctx, t.ID, newLedger, userID, now); err != nil {
		return model.Transaction{}, err
	}
	t.Status = model.TxCompleted
	t.BalanceAfter = newLedger
	t.ApprovedBy = userID
	t.ApprovedAt = &now
	return t, nil
}

func (p *Poster) void(ctx context.Context, q *store.Queries, t model.Transaction, userID, reason string) (model.Transaction, error) {
	if t.Status != model.TxCompleted {
		return model.Transaction{}, &model.TransitionError{Entity: "transaction", From: string(t.Status), To: string(model.TxVoided),
			Reason: "only completed transactions can be voided"}
	}
	if strings.TrimSpace(userID) == "" {
		return model.Transaction{}, &model.ValidationError{Field: "user_id", Description: "required"}
	}

	l, err := ledger.LoadClientLedger(ctx, q, t.MerchantID, t.ClientLedgerID)
	if err != nil {
		return model.Transaction{}, err
	}
	acct, err := ledger.LoadTrustAccount(ctx, q, t.MerchantID, t.TrustAccountID)
	if err != nil {
		return model.Transaction{}, err
	}
	// Closed ledgers must stay at zero.
	if err := checkActive(acct, l); err != nil {
		return model.Transaction{}, err
	}

	now := p.now().UTC()
	lastActivity := now
	if l.LastTransactionDate != nil {
		lastActivity = *l.LastTransactionDate
	}
	if _, _, err := apply(ctx, q, l, acct, t.SignedAmount().Neg(), lastActivity, now); err != nil {
		return model.Transaction{}, err
	}
	if err := accrueInterest(ctx, q, acct, t, t.SignedAmount().Neg(), now); err != nil {
		return model.Transaction{}, err
	}
	if err := q.MarkVoided(ctx, t.ID, userID, reason, now); err != nil {
		return model.Transaction{}, err
	}
	t.Status = model.TxVoided
	t.VoidedBy = userID
	t.VoidedAt = &now
	t.VoidReason = reason
	return t, nil
}

// apply moves both balances by delta, refusing to take either below zero.
// The ledger is checked first so its shortfall is the one reported.
func apply(ctx context.Context, q *store.Queries, l model.ClientLedger, acct model.TrustAccount, delta decimal.Decimal, txDate, now time.Time) (decimal.Decimal, decimal.Decimal, error) {
	newLedger := l.Balance.Add(delta)
	if newLedger.IsNegative() {
		return decimal.Zero, decimal.Zero, &model.InsufficientFundsError{
			Aggregate: model.AggregateLedger, ID: l.ID, Attempted: delta.Abs(), Available: l.Balance,
		}
	}
	newAccount := acct.Balance.Add(delta)
	if newAccount.IsNegative() {
		return decimal.Zero, decimal.Zero, &model.InsufficientFundsError{
			Aggregate: model.AggregateAccount, ID: acct.ID, Attempted: delta.Abs(), Available: acct.Balance,
		}
	}

	lastTx := txDate
	if l.LastTransactionDate != nil && l.LastTransactionDate.After(lastTx) {
		lastTx = *l.LastTransactionDate
	}
	if err := q.SetClientLedgerBalance(ctx, l.ID, newLedger, lastTx, now); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := q.SetTrustAccountBalance(ctx, acct.ID, newAccount, now); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return newLedger, newAccount, nil
}

// accrueInterest keeps the account's interest total in step with interest
// postings and their voids.
func accrueInterest(ctx context.Context, q *store.Queries, acct model.TrustAccount, t model.Transaction, delta decimal.Decimal, now time.Time) error {
	if t.Type != model.TypeInterest {
		return nil
	}
	return q.SetInterestAccrued(ctx, acct.ID, acct.InterestAccrued.Add(delta), now)
}

func loadTransaction(ctx context.Context, q *store.Queries, merchantID, txID string) (model.Transaction, error) {
	t, err := q.GetTransaction(ctx, txID)
	if err != nil {
		return model.Transaction{}, err
	}
	if err := model.CheckMerchant("transaction", t.ID, t.MerchantID, merchantID); err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrAccessDenied):
		return "rejected"
	}
	return "error"
}

func (p *Poster) logRejected(err error, msg, entityID string, txType model.TransactionType, amount decimal.Decimal) {
	var insufficient *model.InsufficientFundsError
	if errors.As(err, &insufficient) {
		p.metrics.RecordInsufficientFunds(string(insufficient.Aggregate))
	}
	ev := p.log.Warn().Err(err).Str("entity_id", entityID)
	if txType != "" {
		ev = ev.Str("type", string(txType)).Str("amount", amount.StringFixed(2))
	}
	ev.Msg(msg)
}
