package posting

import (
	"errors"
	"strings"

	"github.com/trustledger/trustledger/internal/model"
)

// validatePost checks the request shape before any row is read.
func validatePost(p PostParams) error {
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
	if p.ClientLedgerID == "" {
		add("client_ledger_id", "required")
	}
	if strings.TrimSpace(p.CreatedBy) == "" {
		add("created_by", "required")
	}
	if p.TransactionDate.IsZero() {
		add("transaction_date", "required")
	}
	if !p.Type.Valid() {
		add("transaction_type", "unknown type "+string(p.Type))
	} else if err := model.CheckAmount(p.Type, p.Amount); err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, ve)
		}
	}
	if !p.FundType.Valid() {
		add("fund_type", "unknown fund type "+string(p.FundType))
	}
	if p.Status != model.TxPending && p.Status != model.TxCompleted {
		add("status", "new transactions must be pending or completed")
	}

	// Firm money may leave trust (earned fees) but never enter it.
	if p.FundType == model.FundOperating && p.Type.Valid() && model.SignedAmount(p.Type, p.Amount).IsPositive() {
		add("fund_type", "operating funds cannot be deposited into a trust account")
	}
	return errs.Err()
}

func checkActive(acct model.TrustAccount, ledger model.ClientLedger) error {
	if acct.Status != model.StatusActive {
		return &model.ValidationError{Field: "trust_account_id", Description: "trust account is " + string(acct.Status)}
	}
	if ledger.Status != model.StatusActive {
		return &model.ValidationError{Field: "client_ledger_id", Description: "client ledger is " + string(ledger.Status)}
	}
	return nil
}
