package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a trust transaction.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
	TypeInterest   TransactionType = "interest"
	TypeFee        TransactionType = "fee"
	TypePayment    TransactionType = "payment"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer, TypeInterest, TypeFee, TypePayment:
		return true
	}
	return false
}

// FundType records the nature of the money moved.
type FundType string

const (
	FundRetainer   FundType = "retainer"
	FundSettlement FundType = "settlement"
	FundTrust      FundType = "trust"
	FundOperating  FundType = "operating"
	FundOther      FundType = "other"
)

// Valid reports whether f is a known fund type.
func (f FundType) Valid() bool {
	switch f {
	case FundRetainer, FundSettlement, FundTrust, FundOperating, FundOther:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxVoided    TransactionStatus = "voided"
	TxRejected  TransactionStatus = "rejected"
)

// Transaction is an immutable financial event against one client ledger.
//
// Amount is positive for every type except transfer, whose amount is signed:
// positive moves money into the ledger, negative moves it out.
// BalanceAfter is the ledger balance right after the transaction took effect;
// it stays zero while the transaction is pending or rejected.
type Transaction struct {
	ID               string
	MerchantID       string
	TrustAccountID   string
	ClientLedgerID   string
	TransactionDate  time.Time
	Amount           decimal.Decimal
	BalanceAfter     decimal.Decimal
	Description      string
	Type             TransactionType
	FundType         FundType
	CheckNumber      string
	ReferenceNumber  string
	Payee            string
	Payor            string
	Status           TransactionStatus
	CreatedBy        string
	ApprovedBy       string
	ApprovedAt       *time.Time
	VoidedBy         string
	VoidedAt         *time.Time
	VoidReason       string
	ClearedDate      *time.Time
	BankReference    string
	ReconciliationID string
	CreatedAt        time.Time
}

// SignedAmount returns the effect of the transaction on its ledger balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	return SignedAmount(t.Type, t.Amount)
}

// IsCleared reports whether the bank has confirmed the transaction.
func (t Transaction) IsCleared() bool {
	return t.ClearedDate != nil
}

// SignedAmount applies the sign rule for a transaction type.
// Deposits and interest add, withdrawals, payments and fees subtract,
// transfers carry their own sign.
func SignedAmount(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	switch t {
	case TypeDeposit, TypeInterest:
		return amount.Abs()
	case TypeWithdrawal, TypePayment, TypeFee:
		return amount.Abs().Neg()
	default:
		return amount
	}
}

var hundred = decimal.NewFromInt(100)

// CheckCents returns a ValidationError if d has more than two decimal places.
func CheckCents(field string, d decimal.Decimal) error {
	if !d.Mul(hundred).Equal(d.Mul(hundred).Truncate(0)) {
		return &ValidationError{Field: field, Description: fmt.Sprintf("%s has more than 2 decimal places", d)}
	}
	return nil
}

// CheckAmount validates an amount against its transaction type.
func CheckAmount(t TransactionType, amount decimal.Decimal) error {
	if err := CheckCents("amount", amount); err != nil {
		return err
	}
	if t == TypeTransfer {
		if amount.IsZero() {
			return &ValidationError{Field: "amount", Description: "transfer amount must be non-zero"}
		}
		return nil
	}
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Description: fmt.Sprintf("%s amount must be positive", t)}
	}
	return nil
}

// BankRow is one parsed line of a bank statement.
type BankRow struct {
	Line        int
	Date        time.Time
	Description string
	Amount      decimal.Decimal // negative = debit, positive = credit
	CheckNumber string
	Reference   string
	Type        string // bank transaction type (ACH_DEBIT, CHECK, ...)
}
