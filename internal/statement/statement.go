// Package statement builds client ledger statements with running balances.
package statement

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/balance"
	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/store"
)

// DefaultRangeMonths is used when a client statement has no start date.
const DefaultRangeMonths = 3

// Range bounds a statement. Both ends are inclusive; nil leaves a side open.
type Range struct {
	Start *time.Time
	End   *time.Time
}

// LedgerStatement is the activity of one client ledger.
type LedgerStatement struct {
	Ledger         model.ClientLedger
	Range          Range
	Lines          []balance.Line
	OpeningBalance decimal.Decimal
	// ClosingBalance is the ledger's stored balance, not a recomputation.
	ClosingBalance decimal.Decimal
	// Drift is ClosingBalance minus the last running balance. It is zero
	// unless the range ends before the latest activity or the stored
	// balance was corrected outside posting.
	Drift       decimal.Decimal
	GeneratedAt time.Time
}

// AccountSection is one trust account / client ledger pair of a client statement.
type AccountSection struct {
	TrustAccount   model.TrustAccount
	Ledger         model.ClientLedger
	Lines          []balance.Line
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
}

// ClientStatement combines every ledger a client holds across trust accounts.
type ClientStatement struct {
	ClientID     id.ClientID
	Start        time.Time
	End          time.Time
	Sections     []AccountSection
	TotalOpening decimal.Decimal
	TotalClosing decimal.Decimal
	GeneratedAt  time.Time
}

// Service generates statements. It never writes.
type Service struct {
	db          *store.DB
	log         zerolog.Logger
	rangeMonths int
	now         func() time.Time
}

// NewService creates a statement Service. rangeMonths <= 0 selects DefaultRangeMonths.
func NewService(db *store.DB, logger zerolog.Logger, rangeMonths int) *Service {
	if rangeMonths <= 0 {
		rangeMonths = DefaultRangeMonths
	}
	return &Service{db: db, log: logger, rangeMonths: rangeMonths, now: time.Now}
}

// ClientLedgerStatement returns one ledger's completed transactions in r
// with an opening balance and a running balance per line.
func (s *Service) ClientLedgerStatement(ctx context.Context, merchantID, ledgerID string, r Range) (LedgerStatement, error) {
	var st LedgerStatement
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		l, err := ledger.LoadClientLedger(ctx, q, merchantID, ledgerID)
		if err != nil {
			return err
		}
		opening, lines, last, err := walkLedger(ctx, q, l.ID, r)
		if err != nil {
			return err
		}
		st = LedgerStatement{
			Ledger:         l,
			Range:          r,
			Lines:          lines,
			OpeningBalance: opening,
			ClosingBalance: l.Balance,
			Drift:          l.Balance.Sub(last),
			GeneratedAt:    s.now().UTC(),
		}
		return nil
	})
	if err != nil {
		return LedgerStatement{}, err
	}

	if !st.Drift.IsZero() {
		s.log.Debug().
			Str("client_ledger_id", ledgerID).
			Str("drift", st.Drift.StringFixed(2)).
			Msg("statement closing balance differs from running balance")
	}
	return st, nil
}

// ClientTrustStatement returns a statement for every ledger of clientID.
// Without a start date the range covers the configured number of months
// ending at End, or now.
func (s *Service) ClientTrustStatement(ctx context.Context, merchantID string, clientID id.ClientID, r Range) (ClientStatement, error) {
	if clientID.IsZero() {
		return ClientStatement{}, &model.ValidationError{Field: "client_id", Description: "required"}
	}

	now := s.now().UTC()
	end := now
	if r.End != nil {
		end = r.End.UTC()
	}
	start := end.AddDate(0, -s.rangeMonths, 0)
	if r.Start != nil {
		start = r.Start.UTC()
	}
	if start.After(end) {
		return ClientStatement{}, &model.ValidationError{Field: "start_date", Description: "after end date"}
	}
	bounded := Range{Start: &start, End: &end}

	st := ClientStatement{
		ClientID:     clientID,
		Start:        start,
		End:          end,
		TotalOpening: decimal.Zero,
		TotalClosing: decimal.Zero,
		GeneratedAt:  now,
	}
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		ledgers, err := q.ListClientLedgers(ctx, store.LedgerFilter{MerchantID: merchantID, ClientID: clientID})
		if err != nil {
			return err
		}
		for _, l := range ledgers {
			acct, err := ledger.LoadTrustAccount(ctx, q, merchantID, l.TrustAccountID)
			if err != nil {
				return err
			}
			opening, lines, closing, err := walkLedger(ctx, q, l.ID, bounded)
			if err != nil {
				return err
			}
			st.Sections = append(st.Sections, AccountSection{
				TrustAccount:   acct,
				Ledger:         l,
				Lines:          lines,
				OpeningBalance: opening,
				ClosingBalance: closing,
			})
			st.TotalOpening = st.TotalOpening.Add(opening)
			st.TotalClosing = st.TotalClosing.Add(closing)
		}
		return nil
	})
	if err != nil {
		return ClientStatement{}, err
	}
	return st, nil
}

// walkLedger returns the opening balance before r, the running lines in r
// and the final running balance.
func walkLedger(ctx context.Context, q *store.Queries, ledgerID string, r Range) (decimal.Decimal, []balance.Line, decimal.Decimal, error) {
	completed := []model.TransactionStatus{model.TxCompleted}

	opening := decimal.Zero
	if r.Start != nil {
		before, err := q.ListTransactions(ctx, store.TransactionFilter{
			ClientLedgerIDs: []string{ledgerID},
			Statuses:        completed,
			Before:          r.Start,
		})
		if err != nil {
			return decimal.Zero, nil, decimal.Zero, err
		}
		opening = balance.Sum(before)
	}

	inRange, err := q.ListTransactions(ctx, store.TransactionFilter{
		ClientLedgerIDs: []string{ledgerID},
		Statuses:        completed,
		From:            r.Start,
		To:              r.End,
	})
	if err != nil {
		return decimal.Zero, nil, decimal.Zero, err
	}
	lines, closing := balance.Walk(opening, inRange)
	return opening, lines, closing, nil
}
