// Package ledger maintains trust accounts and client ledgers.
//
// Balances are read here but never written: only the posting package moves
// money. Every lookup is scoped to the caller's merchant.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/store"
)

// Service provides trust account and client ledger bookkeeping.
type Service struct {
	db  *store.DB
	log zerolog.Logger
	now func() time.Time
}

// NewService creates a ledger Service.
func NewService(db *store.DB, logger zerolog.Logger) *Service {
	return &Service{db: db, log: logger, now: time.Now}
}

// CreateTrustAccountParams holds the fields for a new trust account.
type CreateTrustAccountParams struct {
	MerchantID    string
	AccountNumber string
	AccountName   string
	BankName      string
	RoutingNumber string
	AccountType   string
	InterestRate  decimal.Decimal
}

// CreateTrustAccount validates and inserts a trust account with a zero balance.
func (s *Service) CreateTrustAccount(ctx context.Context, params CreateTrustAccountParams) (model.TrustAccount, error) {
	if err := validateTrustAccount(params); err != nil {
		return model.TrustAccount{}, err
	}

	now := s.now().UTC()
	acct := model.TrustAccount{
		ID:              id.New(),
		MerchantID:      params.MerchantID,
		AccountNumber:   strings.TrimSpace(params.AccountNumber),
		AccountName:     strings.TrimSpace(params.AccountName),
		BankName:        strings.TrimSpace(params.BankName),
		RoutingNumber:   strings.TrimSpace(params.RoutingNumber),
		AccountType:     strings.ToLower(strings.TrimSpace(params.AccountType)),
		Status:          model.StatusActive,
		Balance:         decimal.Zero,
		InterestRate:    params.InterestRate,
		InterestAccrued: decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.Queries().InsertTrustAccount(ctx, acct); err != nil {
		return model.TrustAccount{}, err
	}

	s.log.Info().
		Str("merchant_id", acct.MerchantID).
		Str("trust_account_id", acct.ID).
		Str("bank", acct.BankName).
		Msg("trust account created")
	return acct, nil
}

// GetTrustAccount returns a trust account owned by merchantID.
func (s *Service) GetTrustAccount(ctx context.Context, merchantID, accountID string) (model.TrustAccount, error) {
	return LoadTrustAccount(ctx, s.db.Queries(), merchantID, accountID)
}

// ListTrustAccountsByMerchant returns every trust account of a merchant.
func (s *Service) ListTrustAccountsByMerchant(ctx context.Context, merchantID string) ([]model.TrustAccount, error) {
	return s.db.Queries().ListTrustAccounts(ctx, merchantID, "")
}

// UpdateTrustAccountStatus moves an account through active -> inactive -> closed.
// An account can only close once it and all its ledgers hold nothing.
func (s *Service) UpdateTrustAccountStatus(ctx context.Context, merchantID, accountID string, status model.Status) (model.TrustAccount, error) {
	var updated model.TrustAccount
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		acct, err := LoadTrustAccount(ctx, q, merchantID, accountID)
		if err != nil {
			return err
		}
		if err := model.CheckStatusTransition("trust account", acct.Status, status); err != nil {
			return err
		}

		if status == model.StatusClosed {
			if !acct.Balance.IsZero() {
				return &model.TransitionError{Entity: "trust account", From: string(acct.Status), To: string(status),
					Reason: fmt.Sprintf("balance is %s", acct.Balance.StringFixed(2))}
			}
			ledgers, err := q.ListClientLedgers(ctx, store.LedgerFilter{TrustAccountID: acct.ID})
			if err != nil {
				return err
			}
			for _, l := range ledgers {
				if !l.Balance.IsZero() {
					return &model.TransitionError{Entity: "trust account", From: string(acct.Status), To: string(status),
						Reason: fmt.Sprintf("client ledger %s holds %s", l.ID, l.Balance.StringFixed(2))}
				}
			}
		}

		now := s.now().UTC()
		if err := q.SetTrustAccountStatus(ctx, acct.ID, status, now); err != nil {
			return err
		}
		acct.Status = status
		acct.UpdatedAt = now
		updated = acct
		return nil
	})
	if err != nil {
		return model.TrustAccount{}, err
	}

	s.log.Info().Str("trust_account_id", accountID).Str("status", string(status)).Msg("trust account status changed")
	return updated, nil
}

// CreateClientLedgerParams holds the fields for a new client ledger.
type CreateClientLedgerParams struct {
	MerchantID     string
	TrustAccountID string
	ClientID       id.ClientID
	ClientName     string
	MatterName     string
	MatterNumber   string
	Jurisdiction   string
}

// CreateClientLedger opens a zero-balance ledger under an existing trust
// account of the same merchant.
func (s *Service) CreateClientLedger(ctx context.Context, params CreateClientLedgerParams) (model.ClientLedger, error) {
	var errs model.ValidationErrors
	if params.MerchantID == "" {
		errs = append(errs, &model.ValidationError{Field: "merchant_id", Description: "required"})
	}
	if params.TrustAccountID == "" {
		errs = append(errs, &model.ValidationError{Field: "trust_account_id", Description: "required"})
	}
	if params.ClientID.IsZero() {
		errs = append(errs, &model.ValidationError{Field: "client_id", Description: "required"})
	}
	if err := errs.Err(); err != nil {
		return model.ClientLedger{}, err
	}

	var ledger model.ClientLedger
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		acct, err := LoadTrustAccount(ctx, q, params.MerchantID, params.TrustAccountID)
		if err != nil {
			return err
		}
		if acct.Status == model.StatusClosed {
			return &model.TransitionError{Entity: "trust account", From: string(acct.Status), To: string(acct.Status),
				Reason: "cannot open a ledger on a closed account"}
		}

		now := s.now().UTC()
		ledger = model.ClientLedger{
			ID:             id.New(),
			MerchantID:     params.MerchantID,
			TrustAccountID: acct.ID,
			ClientID:       params.ClientID,
			ClientName:     strings.TrimSpace(params.ClientName),
			MatterName:     strings.TrimSpace(params.MatterName),
			MatterNumber:   strings.TrimSpace(params.MatterNumber),
			Jurisdiction:   strings.TrimSpace(params.Jurisdiction),
			Balance:        decimal.Zero,
			Status:         model.StatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return q.InsertClientLedger(ctx, ledger)
	})
	if err != nil {
		return model.ClientLedger{}, err
	}

	s.log.Info().
		Str("merchant_id", ledger.MerchantID).
		Str("trust_account_id", ledger.TrustAccountID).
		Str("client_ledger_id", ledger.ID).
		Str("client_id", ledger.ClientID.String()).
		Msg("client ledger created")
	return ledger, nil
}

// LedgerLookup is the result of a ledger lookup that may legitimately find nothing.
type LedgerLookup struct {
	Ledger model.ClientLedger
	Found  bool
}

// GetClientLedgerByID looks a ledger up by its own id.
func (s *Service) GetClientLedgerByID(ctx context.Context, merchantID, ledgerID string) (LedgerLookup, error) {
	l, err := LoadClientLedger(ctx, s.db.Queries(), merchantID, ledgerID)
	if err != nil {
		if isNotFound(err) {
			return LedgerLookup{}, nil
		}
		return LedgerLookup{}, err
	}
	return LedgerLookup{Ledger: l, Found: true}, nil
}

// GetClientLedgerByClientID looks a ledger up by the client it belongs to.
// When the client has several ledgers the oldest active one wins.
func (s *Service) GetClientLedgerByClientID(ctx context.Context, merchantID string, clientID id.ClientID) (LedgerLookup, error) {
	ledgers, err := s.ListClientLedgersByClientID(ctx, merchantID, clientID)
	if err != nil {
		return LedgerLookup{}, err
	}
	if len(ledgers) == 0 {
		return LedgerLookup{}, nil
	}
	for _, l := range ledgers {
		if l.Status == model.StatusActive {
			return LedgerLookup{Ledger: l, Found: true}, nil
		}
	}
	return LedgerLookup{Ledger: ledgers[0], Found: true}, nil
}

// ListClientLedgersByClientID returns every ledger of a client across accounts.
func (s *Service) ListClientLedgersByClientID(ctx context.Context, merchantID string, clientID id.ClientID) ([]model.ClientLedger, error) {
	if clientID.IsZero() {
		return nil, &model.ValidationError{Field: "client_id", Description: "required"}
	}
	return s.db.Queries().ListClientLedgers(ctx, store.LedgerFilter{MerchantID: merchantID, ClientID: clientID})
}

// ListClientLedgersByTrustAccount returns the ledgers of one trust account.
func (s *Service) ListClientLedgersByTrustAccount(ctx context.Context, merchantID, accountID string) ([]model.ClientLedger, error) {
	if _, err := s.GetTrustAccount(ctx, merchantID, accountID); err != nil {
		return nil, err
	}
	return s.db.Queries().ListClientLedgers(ctx, store.LedgerFilter{TrustAccountID: accountID})
}

// ListClientLedgersByMerchant returns every ledger of a merchant.
func (s *Service) ListClientLedgersByMerchant(ctx context.Context, merchantID string) ([]model.ClientLedger, error) {
	return s.db.Queries().ListClientLedgers(ctx, store.LedgerFilter{MerchantID: merchantID})
}

// UpdateClientLedgerStatus changes a ledger's status. Closing requires a zero balance.
func (s *Service) UpdateClientLedgerStatus(ctx context.Context, merchantID, ledgerID string, status model.Status) (model.ClientLedger, error) {
	var updated model.ClientLedger
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		l, err := LoadClientLedger(ctx, q, merchantID, ledgerID)
		if err != nil {
			return err
		}
		if err := model.CheckStatusTransition("client ledger", l.Status, status); err != nil {
			return err
		}
		if status == model.StatusClosed && !l.Balance.IsZero() {
			return &model.TransitionError{Entity: "client ledger", From: string(l.Status), To: string(status),
				Reason: fmt.Sprintf("balance is %s", l.Balance.StringFixed(2))}
		}

		now := s.now().UTC()
		if err := q.SetClientLedgerStatus(ctx, l.ID, status, now); err != nil {
			return err
		}
		l.Status = status
		l.UpdatedAt = now
		updated = l
		return nil
	})
	if err != nil {
		return model.ClientLedger{}, err
	}

	s.log.Info().Str("client_ledger_id", ledgerID).Str("status", string(status)).Msg("client ledger status changed")
	return updated, nil
}

// LedgerBalances is the client-ledger side of a three-way reconciliation.
type LedgerBalances struct {
	TrustAccount  model.TrustAccount
	ClientLedgers []model.ClientLedger
	TotalBalance  decimal.Decimal
}

// GetClientLedgerBalances sums every ledger balance under a trust account.
// The account and its ledgers are read in one unit of work so the total is
// never taken across a concurrent posting.
func (s *Service) GetClientLedgerBalances(ctx context.Context, merchantID, accountID string) (LedgerBalances, error) {
	var lb LedgerBalances
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		var err error
		lb, err = LoadLedgerBalances(ctx, q, merchantID, accountID)
		return err
	})
	if err != nil {
		return LedgerBalances{}, err
	}
	return lb, nil
}
