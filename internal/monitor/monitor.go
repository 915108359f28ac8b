// Package monitor periodically runs the book-side three-way check for
// every active trust account and publishes the result as metrics.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/trustledger/trustledger/internal/metrics"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/reconcile"
	"github.com/trustledger/trustledger/internal/store"
)

// Monitor checks account balances on an interval.
type Monitor struct {
	db          *store.DB
	engine      *reconcile.Engine
	log         zerolog.Logger
	metrics     *metrics.Collector
	interval    time.Duration
	concurrency int
}

// Options configures a Monitor.
type Options struct {
	Interval    time.Duration
	Concurrency int
	Metrics     *metrics.Collector
}

// Result is the outcome of checking one account.
type Result struct {
	MerchantID string
	AccountID  string
	Difference decimal.Decimal
	Balanced   bool
	Err        error
}

// New creates a Monitor.
func New(db *store.DB, engine *reconcile.Engine, logger zerolog.Logger, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Monitor{
		db:          db,
		engine:      engine,
		log:         logger.With().Str("component", "monitor").Logger(),
		metrics:     opts.Metrics,
		interval:    opts.Interval,
		concurrency: opts.Concurrency,
	}
}

// Run checks immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.CheckOnce(ctx); err != nil && ctx.Err() == nil {
			m.log.Error().Err(err).Msg("balance check failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// CheckOnce checks every active account across all merchants. A failure
// on one account is reported in its Result and does not stop the others.
func (m *Monitor) CheckOnce(ctx context.Context) ([]Result, error) {
	accounts, err := m.db.Queries().ListTrustAccounts(ctx, "", model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("listing active accounts: %w", err)
	}

	results := make([]Result, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			results[i] = m.check(gctx, acct)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unbalanced := 0
	for _, r := range results {
		if r.Err == nil && !r.Balanced {
			unbalanced++
		}
	}
	m.log.Debug().Int("accounts", len(results)).Int("unbalanced", unbalanced).Msg("balance check complete")
	return results, nil
}

func (m *Monitor) check(ctx context.Context, acct model.TrustAccount) Result {
	r := Result{MerchantID: acct.MerchantID, AccountID: acct.ID}
	b, err := m.engine.GetReconciliationBalances(ctx, acct.MerchantID, acct.ID)
	if err != nil {
		r.Err = err
		m.log.Error().Err(err).Str("trust_account_id", acct.ID).Msg("loading balances")
		return r
	}

	r.Difference = b.Difference
	r.Balanced = b.IsBalanced
	m.metrics.SetAccountBalance(acct.ID, b.Difference, b.IsBalanced)
	if !b.IsBalanced {
		m.log.Warn().
			Str("merchant_id", acct.MerchantID).
			Str("trust_account_id", acct.ID).
			Str("book_balance", b.BookBalance.StringFixed(2)).
			Str("client_ledger_total", b.ClientLedgerTotal.StringFixed(2)).
			Str("difference", b.Difference.StringFixed(2)).
			Msg("trust account out of balance")
	}
	return r
}
