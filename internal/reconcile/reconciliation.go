package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/store"
)

// CompleteParams identifies the bank side of a reconciliation.
// BankBalance defaults to the ending balance of BankStatementID.
type CompleteParams struct {
	MerchantID         string
	TrustAccountID     string
	BankStatementID    string
	ReconciliationDate time.Time
	BankBalance        *decimal.Decimal
	Notes              string
	ReconcilerID       string
}

// CompleteReconciliation records a reconciliation in one step. It is
// completed when book, ledgers and adjusted bank balance all agree and
// disputed otherwise.
func (e *Engine) CompleteReconciliation(ctx context.Context, params CompleteParams) (model.Reconciliation, error) {
	var rec model.Reconciliation
	err := e.db.WithTx(ctx, func(q *store.Queries) error {
		var err error
		rec, err = e.newReconciliation(ctx, q, params)
		if err != nil {
			return err
		}
		rec.Status = model.ReconDisputed
		if rec.IsBalanced {
			rec.Status = model.ReconCompleted
		}
		if err := q.InsertReconciliation(ctx, rec); err != nil {
			return err
		}
		if rec.Status == model.ReconCompleted {
			return e.signOff(ctx, q, rec)
		}
		return nil
	})
	if err != nil {
		return model.Reconciliation{}, err
	}

	e.logResult(rec)
	return rec, nil
}

// CreateDraft computes and stores a reconciliation without deciding it.
func (e *Engine) CreateDraft(ctx context.Context, params CompleteParams) (model.Reconciliation, error) {
	var rec model.Reconciliation
	err := e.db.WithTx(ctx, func(q *store.Queries) error {
		var err error
		rec, err = e.newReconciliation(ctx, q, params)
		if err != nil {
			return err
		}
		rec.Status = model.ReconDraft
		return q.InsertReconciliation(ctx, rec)
	})
	if err != nil {
		return model.Reconciliation{}, err
	}

	e.log.Info().Str("reconciliation_id", rec.ID).Str("trust_account_id", rec.TrustAccountID).Msg("reconciliation drafted")
	return rec, nil
}

// Complete recomputes a draft against current balances and completes it.
// A draft that still does not balance cannot be completed.
func (e *Engine) Complete(ctx context.Context, merchantID, reconID string) (model.Reconciliation, error) {
	var rec model.Reconciliation
	err := e.db.WithTx(ctx, func(q *store.Queries) error {
		r, err := loadReconciliation(ctx, q, merchantID, reconID)
		if err != nil {
			return err
		}
		if err := model.CheckReconciliationTransition(r.Status, model.ReconCompleted); err != nil {
			return err
		}
		b, err := loadBalances(ctx, q, merchantID, r.TrustAccountID)
		if err != nil {
			return err
		}
		applyFigures(&r, b, r.BankBalance)
		if !r.IsBalanced {
			return &model.TransitionError{Entity: "reconciliation", From: string(r.Status), To: string(model.ReconCompleted),
				Reason: "book " + r.BookBalance.StringFixed(2) + ", ledgers " + r.ClientLedgerTotal.StringFixed(2) +
					", adjusted bank " + r.AdjustedBankBalance.StringFixed(2)}
		}
		r.Status = model.ReconCompleted
		if err := q.SaveReconciliationFigures(ctx, r); err != nil {
			return err
		}
		rec = r
		return e.signOff(ctx, q, r)
	})
	if err != nil {
		return model.Reconciliation{}, err
	}

	e.logResult(rec)
	return rec, nil
}

// Review signs off a completed reconciliation. The reviewer must be a
// different person from the reconciler.
func (e *Engine) Review(ctx context.Context, merchantID, reconID, reviewerID string) (model.Reconciliation, error) {
	if strings.TrimSpace(reviewerID) == "" {
		return model.Reconciliation{}, &model.ValidationError{Field: "reviewer_id", Description: "required"}
	}
	return e.transition(ctx, merchantID, reconID, model.ReconReviewed, func(r *model.Reconciliation) error {
		if r.ReconcilerID == reviewerID {
			return &model.TransitionError{Entity: "reconciliation", From: string(r.Status), To: string(model.ReconReviewed),
				Reason: "reviewer must differ from reconciler"}
		}
		now := e.now().UTC()
		r.ReviewerID = reviewerID
		r.ReviewedAt = &now
		return nil
	})
}

// Dispute marks a draft as disputed, appending notes.
func (e *Engine) Dispute(ctx context.Context, merchantID, reconID, notes string) (model.Reconciliation, error) {
	return e.transition(ctx, merchantID, reconID, model.ReconDisputed, func(r *model.Reconciliation) error {
		r.Notes = appendNote(r.Notes, notes)
		return nil
	})
}

// Reopen returns a disputed reconciliation to draft.
func (e *Engine) Reopen(ctx context.Context, merchantID, reconID, notes string) (model.Reconciliation, error) {
	return e.transition(ctx, merchantID, reconID, model.ReconDraft, func(r *model.Reconciliation) error {
		r.Notes = appendNote(r.Notes, notes)
		return nil
	})
}

// Get returns a reconciliation owned by merchantID.
func (e *Engine) Get(ctx context.Context, merchantID, reconID string) (model.Reconciliation, error) {
	return loadReconciliation(ctx, e.db.Queries(), merchantID, reconID)
}

// List returns an account's reconciliations, newest first.
func (e *Engine) List(ctx context.Context, merchantID, accountID string) ([]model.Reconciliation, error) {
	q := e.db.Queries()
	if _, err := ledger.LoadTrustAccount(ctx, q, merchantID, accountID); err != nil {
		return nil, err
	}
	return q.ListReconciliations(ctx, accountID)
}

func (e *Engine) transition(ctx context.Context, merchantID, reconID string, to model.ReconciliationStatus, mutate func(*model.Reconciliation) error) (model.Reconciliation, error) {
	var rec model.Reconciliation
	err := e.db.WithTx(ctx, func(q *store.Queries) error {
		r, err := loadReconciliation(ctx, q, merchantID, reconID)
		if err != nil {
			return err
		}
		if err := model.CheckReconciliationTransition(r.Status, to); err != nil {
			return err
		}
		if err := mutate(&r); err != nil {
			return err
		}
		r.Status = to
		if err := q.UpdateReconciliationStatus(ctx, r.ID, r.Status, r.ReviewerID, r.ReviewedAt, r.Notes); err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return model.Reconciliation{}, err
	}

	e.logResult(rec)
	return rec, nil
}

func (e *Engine) newReconciliation(ctx context.Context, q *store.Queries, params CompleteParams) (model.Reconciliation, error) {
	var errs model.ValidationErrors
	if params.TrustAccountID == "" {
		errs = append(errs, &model.ValidationError{Field: "trust_account_id", Description: "required"})
	}
	if strings.TrimSpace(params.ReconcilerID) == "" {
		errs = append(errs, &model.ValidationError{Field: "reconciler_id", Description: "required"})
	}
	if params.BankBalance == nil && params.BankStatementID == "" {
		errs = append(errs, &model.ValidationError{Field: "bank_balance", Description: "required without a bank statement"})
	}
	if params.BankBalance != nil {
		var ve *model.ValidationError
		if errors.As(model.CheckCents("bank_balance", *params.BankBalance), &ve) {
			errs = append(errs, ve)
		}
	}
	if err := errs.Err(); err != nil {
		return model.Reconciliation{}, err
	}

	b, err := loadBalances(ctx, q, params.MerchantID, params.TrustAccountID)
	if err != nil {
		return model.Reconciliation{}, err
	}

	var bank decimal.Decimal
	if params.BankStatementID != "" {
		stmt, err := q.GetBankStatement(ctx, params.BankStatementID)
		if err != nil {
			return model.Reconciliation{}, err
		}
		if err := model.CheckMerchant("bank statement", stmt.ID, stmt.MerchantID, params.MerchantID); err != nil {
			return model.Reconciliation{}, err
		}
		if stmt.TrustAccountID != params.TrustAccountID {
			return model.Reconciliation{}, &model.ValidationError{Field: "bank_statement_id", Description: "statement belongs to another trust account"}
		}
		bank = stmt.EndingBalance
	}
	if params.BankBalance != nil {
		bank = *params.BankBalance
	}

	now := e.now().UTC()
	date := params.ReconciliationDate.UTC()
	if date.IsZero() {
		date = now
	}
	rec := model.Reconciliation{
		ID:                 id.New(),
		TrustAccountID:     params.TrustAccountID,
		MerchantID:         params.MerchantID,
		ReconciliationDate: date,
		BankStatementID:    params.BankStatementID,
		Notes:              strings.TrimSpace(params.Notes),
		ReconcilerID:       params.ReconcilerID,
		CreatedAt:          now,
	}
	applyFigures(&rec, b, bank)
	return rec, nil
}

// applyFigures fills the computed side of r. The adjusted bank balance is
// the statement balance plus deposits in transit minus outstanding checks;
// Difference is adjusted bank minus book.
func applyFigures(r *model.Reconciliation, b Balances, bank decimal.Decimal) {
	snap := snapshot(b)
	adjusted := bank.Add(snap.TotalDeposits).Sub(snap.TotalChecks)

	r.BookBalance = b.BookBalance
	r.ClientLedgerTotal = b.ClientLedgerTotal
	r.BankBalance = bank
	r.AdjustedBankBalance = adjusted
	r.Difference = adjusted.Sub(b.BookBalance)
	r.IsBalanced = b.IsBalanced && adjusted.Equal(b.BookBalance)
	r.Outstanding = snap
}

func snapshot(b Balances) model.OutstandingSnapshot {
	snap := model.OutstandingSnapshot{
		Checks:        []model.OutstandingItem{},
		Deposits:      []model.OutstandingItem{},
		TotalChecks:   decimal.Zero,
		TotalDeposits: decimal.Zero,
	}
	for _, t := range b.OutstandingChecks {
		snap.Checks = append(snap.Checks, outstandingItem(t))
		snap.TotalChecks = snap.TotalChecks.Add(t.Amount.Abs())
	}
	for _, t := range b.OutstandingDeposits {
		snap.Deposits = append(snap.Deposits, outstandingItem(t))
		snap.TotalDeposits = snap.TotalDeposits.Add(t.Amount.Abs())
	}
	return snap
}

func outstandingItem(t model.Transaction) model.OutstandingItem {
	return model.OutstandingItem{
		TransactionID:   t.ID,
		ClientLedgerID:  t.ClientLedgerID,
		TransactionDate: t.TransactionDate,
		Type:            t.Type,
		Amount:          t.Amount,
		CheckNumber:     t.CheckNumber,
		Description:     t.Description,
	}
}

// signOff links cleared, unlinked transactions to a completed
// reconciliation and advances the account's last reconciliation date.
func (e *Engine) signOff(ctx context.Context, q *store.Queries, rec model.Reconciliation) error {
	cleared := true
	txns, err := q.ListTransactions(ctx, store.TransactionFilter{
		TrustAccountID: rec.TrustAccountID,
		Statuses:       []model.TransactionStatus{model.TxCompleted},
		Cleared:        &cleared,
	})
	if err != nil {
		return err
	}
	var ids []string
	for _, t := range txns {
		if t.ReconciliationID == "" && !t.ClearedDate.After(rec.ReconciliationDate) {
			ids = append(ids, t.ID)
		}
	}
	if err := q.SetReconciliationID(ctx, ids, rec.ID); err != nil {
		return err
	}
	return q.SetLastReconciliationDate(ctx, rec.TrustAccountID, rec.ReconciliationDate, e.now().UTC())
}

func (e *Engine) logResult(rec model.Reconciliation) {
	e.metrics.RecordReconciliation(string(rec.Status))
	ev := e.log.Info()
	if rec.Status == model.ReconDisputed {
		ev = e.log.Warn()
	}
	ev.Str("reconciliation_id", rec.ID).
		Str("trust_account_id", rec.TrustAccountID).
		Str("status", string(rec.Status)).
		Str("book", rec.BookBalance.StringFixed(2)).
		Str("ledgers", rec.ClientLedgerTotal.StringFixed(2)).
		Str("adjusted_bank", rec.AdjustedBankBalance.StringFixed(2)).
		Msg("reconciliation updated")
}

func loadReconciliation(ctx context.Context, q *store.Queries, merchantID, reconID string) (model.Reconciliation, error) {
	r, err := q.GetReconciliation(ctx, reconID)
	if err != nil {
		return model.Reconciliation{}, err
	}
	if err := model.CheckMerchant("reconciliation", r.ID, r.MerchantID, merchantID); err != nil {
		return model.Reconciliation{}, err
	}
	return r, nil
}

func appendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	switch {
	case note == "":
		return existing
	case existing == "":
		return note
	}
	return existing + "\n" + note
}
