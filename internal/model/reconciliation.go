package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the lifecycle state of a reconciliation.
type ReconciliationStatus string

const (
	ReconDraft     ReconciliationStatus = "draft"
	ReconCompleted ReconciliationStatus = "completed"
	ReconReviewed  ReconciliationStatus = "reviewed"
	ReconDisputed  ReconciliationStatus = "disputed"
)

var reconTransitions = map[ReconciliationStatus][]ReconciliationStatus{
	ReconDraft:     {ReconCompleted, ReconDisputed},
	ReconCompleted: {ReconReviewed},
	ReconDisputed:  {ReconDraft},
	ReconReviewed:  {},
}

// CheckReconciliationTransition returns a TransitionError if from -> to is not allowed.
func CheckReconciliationTransition(from, to ReconciliationStatus) error {
	for _, s := range reconTransitions[from] {
		if s == to {
			return nil
		}
	}
	return &TransitionError{Entity: "reconciliation", From: string(from), To: string(to)}
}

// OutstandingItem is a completed transaction the bank had not confirmed at reconciliation time.
type OutstandingItem struct {
	TransactionID   string          `json:"transaction_id"`
	ClientLedgerID  string          `json:"client_ledger_id"`
	TransactionDate time.Time       `json:"transaction_date"`
	Type            TransactionType `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	CheckNumber     string          `json:"check_number,omitempty"`
	Description     string          `json:"description,omitempty"`
}

// OutstandingSnapshot freezes the outstanding lists, which keep changing after sign-off.
type OutstandingSnapshot struct {
	Checks        []OutstandingItem `json:"checks"`
	Deposits      []OutstandingItem `json:"deposits"`
	TotalChecks   decimal.Decimal   `json:"total_checks"`
	TotalDeposits decimal.Decimal   `json:"total_deposits"`
}

// Reconciliation attests that book, client-ledger and bank balances agree, or records why not.
type Reconciliation struct {
	ID                  string
	TrustAccountID      string
	MerchantID          string
	ReconciliationDate  time.Time
	BankStatementID     string
	BookBalance         decimal.Decimal
	ClientLedgerTotal   decimal.Decimal
	BankBalance         decimal.Decimal
	AdjustedBankBalance decimal.Decimal
	Difference          decimal.Decimal
	IsBalanced          bool
	Outstanding         OutstandingSnapshot
	Notes               string
	ReconcilerID        string
	ReviewerID          string
	ReviewedAt          *time.Time
	Status              ReconciliationStatus
	CreatedAt           time.Time
}

// ProcessingStatus is the state of a bank statement import.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingProcessing ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingError      ProcessingStatus = "error"
)

// BankStatement is an uploaded bank record used as reconciliation input.
type BankStatement struct {
	ID               string
	TrustAccountID   string
	MerchantID       string
	StatementDate    time.Time
	StartDate        time.Time
	EndDate          time.Time
	StartingBalance  decimal.Decimal
	EndingBalance    decimal.Decimal
	FilePath         string
	Format           string
	UploadedBy       string
	ProcessingStatus ProcessingStatus
	ProcessingNotes  string
	CreatedAt        time.Time
}
