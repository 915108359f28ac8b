package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/store"
)

// LoadTrustAccount reads an account through q and checks merchant ownership.
// Use it inside a unit of work so the read shares the caller's transaction.
func LoadTrustAccount(ctx context.Context, q *store.Queries, merchantID, accountID string) (model.TrustAccount, error) {
	acct, err := q.GetTrustAccount(ctx, accountID)
	if err != nil {
		return model.TrustAccount{}, err
	}
	if err := model.CheckMerchant("trust account", acct.ID, acct.MerchantID, merchantID); err != nil {
		return model.TrustAccount{}, err
	}
	return acct, nil
}

// LoadClientLedger reads a ledger through q and checks merchant ownership.
func LoadClientLedger(ctx context.Context, q *store.Queries, merchantID, ledgerID string) (model.ClientLedger, error) {
	l, err := q.GetClientLedger(ctx, ledgerID)
	if err != nil {
		return model.ClientLedger{}, err
	}
	if err := model.CheckMerchant("client ledger", l.ID, l.MerchantID, merchantID); err != nil {
		return model.ClientLedger{}, err
	}
	return l, nil
}

// LoadLedgerBalances reads an account and the sum of its ledgers through q.
func LoadLedgerBalances(ctx context.Context, q *store.Queries, merchantID, accountID string) (LedgerBalances, error) {
	acct, err := LoadTrustAccount(ctx, q, merchantID, accountID)
	if err != nil {
		return LedgerBalances{}, err
	}
	ledgers, err := q.ListClientLedgers(ctx, store.LedgerFilter{TrustAccountID: acct.ID})
	if err != nil {
		return LedgerBalances{}, err
	}

	total := decimal.Zero
	for _, l := range ledgers {
		total = total.Add(l.Balance)
	}
	return LedgerBalances{TrustAccount: acct, ClientLedgers: ledgers, TotalBalance: total}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
