package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/id"
)

// Status is the lifecycle state shared by trust accounts and client ledgers.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusClosed   Status = "closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusClosed:
		return true
	}
	return false
}

// AccountTypeIOLTA is the only account type accepted for compliance accounts.
const AccountTypeIOLTA = "iolta"

// TrustAccount is a physical trust bank account holding pooled client funds.
type TrustAccount struct {
	ID                     string
	MerchantID             string
	AccountNumber          string
	AccountName            string
	BankName               string
	RoutingNumber          string
	AccountType            string
	Status                 Status
	Balance                decimal.Decimal
	LastReconciliationDate *time.Time
	InterestRate           decimal.Decimal
	InterestAccrued        decimal.Decimal
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// ClientLedger is one client/matter's share of a trust account.
type ClientLedger struct {
	ID                  string
	MerchantID          string
	TrustAccountID      string
	ClientID            id.ClientID
	ClientName          string
	MatterName          string
	MatterNumber        string
	Jurisdiction        string
	Balance             decimal.Decimal
	Status              Status
	LastTransactionDate *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// accountTransitions lists the allowed status changes for accounts and ledgers.
var accountTransitions = map[Status][]Status{
	StatusActive:   {StatusInactive, StatusClosed},
	StatusInactive: {StatusActive, StatusClosed},
	StatusClosed:   {},
}

// CheckStatusTransition returns a TransitionError if from -> to is not allowed.
func CheckStatusTransition(entity string, from, to Status) error {
	for _, s := range accountTransitions[from] {
		if s == to {
			return nil
		}
	}
	return &TransitionError{Entity: entity, From: string(from), To: string(to)}
}
