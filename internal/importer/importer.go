// Package importer reads bank statement exports and clears the trust
// transactions they confirm.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/metrics"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/reconcile"
	"github.com/trustledger/trustledger/internal/store"
)

// DefaultDateWindowDays bounds how far a bank posting date may sit from the
// book date when matching on amount alone.
const DefaultDateWindowDays = 5

// Importer matches bank statement rows against completed transactions.
type Importer struct {
	db         *store.DB
	engine     *reconcile.Engine
	registry   *Registry
	log        zerolog.Logger
	metrics    *metrics.Collector
	dateWindow int
	now        func() time.Time
}

// Options configures an Importer. Zero values select the defaults.
type Options struct {
	Registry       *Registry
	DateWindowDays int
	Metrics        *metrics.Collector
}

// New creates an Importer that clears through engine.
func New(db *store.DB, engine *reconcile.Engine, logger zerolog.Logger, opts Options) *Importer {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.DateWindowDays <= 0 {
		opts.DateWindowDays = DefaultDateWindowDays
	}
	return &Importer{
		db:         db,
		engine:     engine,
		registry:   opts.Registry,
		log:        logger,
		metrics:    opts.Metrics,
		dateWindow: opts.DateWindowDays,
		now:        time.Now,
	}
}

// ImportParams describes an uploaded statement file.
type ImportParams struct {
	MerchantID      string
	TrustAccountID  string
	UploadedBy      string
	FilePath        string
	Format          string
	StatementDate   time.Time
	StartDate       time.Time
	EndDate         time.Time
	StartingBalance decimal.Decimal
	EndingBalance   decimal.Decimal
}

// ImportResult summarises one import. Matched plus Unmatched equals the
// number of parsed rows; rows that failed to parse are in Errors.
type ImportResult struct {
	UploadID        string
	Processed       int
	Matched         int
	Unmatched       int
	NewTransactions []model.BankRow
	Errors          []RowError
}

// ImportBankStatementCSV records the statement, parses the file and clears
// every transaction a row matches. Clearing happens only after the whole
// file has been read, in one unit of work: a file that cannot be read
// clears nothing and leaves the statement in error.
func (im *Importer) ImportBankStatementCSV(ctx context.Context, params ImportParams) (ImportResult, error) {
	if params.Format == "" {
		params.Format = "trust"
	}
	if err := im.validate(params); err != nil {
		return ImportResult{}, err
	}
	if _, err := ledger.LoadTrustAccount(ctx, im.db.Queries(), params.MerchantID, params.TrustAccountID); err != nil {
		return ImportResult{}, err
	}

	stmt := model.BankStatement{
		ID:               id.New(),
		TrustAccountID:   params.TrustAccountID,
		MerchantID:       params.MerchantID,
		StatementDate:    params.StatementDate.UTC(),
		StartDate:        params.StartDate.UTC(),
		EndDate:          params.EndDate.UTC(),
		StartingBalance:  params.StartingBalance,
		EndingBalance:    params.EndingBalance,
		FilePath:         params.FilePath,
		Format:           strings.ToLower(params.Format),
		UploadedBy:       params.UploadedBy,
		ProcessingStatus: model.ProcessingProcessing,
		CreatedAt:        im.now().UTC(),
	}
	if err := im.db.Queries().InsertBankStatement(ctx, stmt); err != nil {
		return ImportResult{}, err
	}
	res := ImportResult{UploadID: stmt.ID}

	parsed, err := im.parseFile(params)
	if err != nil {
		return res, im.fail(ctx, stmt, err)
	}
	res.Errors = parsed.RowErrors
	res.Processed = len(parsed.Rows) + len(parsed.RowErrors)

	// Matching reads the candidates inside the unit of work that clears
	// them, so a transaction voided meanwhile is simply not a candidate.
	cleared, err := im.engine.ClearSelected(ctx, params.MerchantID, func(ctx context.Context, q *store.Queries) ([]reconcile.ClearItem, error) {
		candidates, err := im.candidates(ctx, q, params)
		if err != nil {
			return nil, err
		}

		m := newMatcher(candidates, im.dateWindow)
		var items []reconcile.ClearItem
		for _, row := range parsed.Rows {
			t, ok := m.match(row)
			if !ok {
				res.Unmatched++
				res.NewTransactions = append(res.NewTransactions, row)
				continue
			}
			res.Matched++
			if t.IsCleared() {
				continue
			}
			ref := row.Reference
			if ref == "" && row.CheckNumber != "" {
				ref = "check " + row.CheckNumber
			}
			items = append(items, reconcile.ClearItem{TransactionID: t.ID, ClearedDate: row.Date, BankReference: ref})
		}
		return items, nil
	})
	if err != nil {
		return res, im.fail(ctx, stmt, err)
	}

	notes := fmt.Sprintf("processed %d rows: %d matched, %d unmatched, %d errors, %d newly cleared",
		res.Processed, res.Matched, res.Unmatched, len(res.Errors), cleared)
	if err := im.db.Queries().FinishBankStatement(ctx, stmt.ID, model.ProcessingCompleted, notes); err != nil {
		return res, err
	}

	im.metrics.RecordImport(res.Matched, res.Unmatched, len(res.Errors))
	im.log.Info().
		Str("merchant_id", params.MerchantID).
		Str("trust_account_id", params.TrustAccountID).
		Str("upload_id", stmt.ID).
		Str("file", filepath.Base(params.FilePath)).
		Int("processed", res.Processed).
		Int("matched", res.Matched).
		Int("unmatched", res.Unmatched).
		Int("errors", len(res.Errors)).
		Msg("bank statement imported")
	return res, nil
}

// GetBankStatement returns an uploaded statement owned by merchantID.
func (im *Importer) GetBankStatement(ctx context.Context, merchantID, statementID string) (model.BankStatement, error) {
	stmt, err := im.db.Queries().GetBankStatement(ctx, statementID)
	if err != nil {
		return model.BankStatement{}, err
	}
	if err := model.CheckMerchant("bank statement", stmt.ID, stmt.MerchantID, merchantID); err != nil {
		return model.BankStatement{}, err
	}
	return stmt, nil
}

func (im *Importer) validate(p ImportParams) error {
	var errs model.ValidationErrors
	add := func(field, desc string) {
		errs = append(errs, &model.ValidationError{Field: field, Description: desc})
	}
	if p.MerchantID == "" {
		add("merchant_id", "required")
	}
	if p.TrustAccountID == "" {
		add("trust_account_id", "required")
	}
	if p.UploadedBy == "" {
		add("uploaded_by", "required")
	}
	if p.FilePath == "" {
		add("file_path", "required")
	}
	if im.registry.Get(p.Format) == nil {
		add("format", fmt.Sprintf("unknown format %q (have %s)", p.Format, strings.Join(im.registry.Formats(), ", ")))
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		add("start_date", "statement period required")
	} else if p.EndDate.Before(p.StartDate) {
		add("end_date", "before start date")
	}
	if p.StatementDate.IsZero() {
		add("statement_date", "required")
	}
	return errs.Err()
}

func (im *Importer) parseFile(p ImportParams) (ParseResult, error) {
	f, err := os.Open(p.FilePath)
	if err != nil {
		return ParseResult{}, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()
	return im.registry.Get(p.Format).Parse(f)
}

// candidates loads completed transactions dated in the statement period.
// The period is widened by the date window so checks written just before
// the start still match, and the end date covers the whole day.
func (im *Importer) candidates(ctx context.Context, q *store.Queries, p ImportParams) ([]model.Transaction, error) {
	from := p.StartDate.UTC().AddDate(0, 0, -im.dateWindow)
	to := p.EndDate.UTC().AddDate(0, 0, 1).Add(-time.Nanosecond)
	return q.ListTransactions(ctx, store.TransactionFilter{
		TrustAccountID: p.TrustAccountID,
		Statuses:       []model.TransactionStatus{model.TxCompleted},
		From:           &from,
		To:             &to,
	})
}

func (im *Importer) fail(ctx context.Context, stmt model.BankStatement, cause error) error {
	if err := im.db.Queries().FinishBankStatement(ctx, stmt.ID, model.ProcessingError, cause.Error()); err != nil {
		im.log.Error().Err(err).Str("upload_id", stmt.ID).Msg("recording import failure")
	}
	im.log.Warn().Err(cause).Str("upload_id", stmt.ID).Str("file", stmt.FilePath).Msg("bank statement import failed")
	return fmt.Errorf("%w: %s: %w", model.ErrImport, filepath.Base(stmt.FilePath), cause)
}
