// Package balance walks transaction lists to produce signed sums and running
// balances. Statements and reconciliation reports both build on it.
package balance

import (
	"github.com/shopspring/decimal"

	"github.com/trustledger/trustledger/internal/model"
)

// Affects reports whether a transaction currently contributes to balances.
func Affects(t model.Transaction) bool {
	return t.Status == model.TxCompleted
}

// Sum returns the signed total of the transactions that affect balances.
func Sum(txns []model.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		if Affects(t) {
			total = total.Add(t.SignedAmount())
		}
	}
	return total
}

// Line is a transaction with the balance immediately after it.
type Line struct {
	model.Transaction
	Signed         decimal.Decimal
	RunningBalance decimal.Decimal
}

// Walk applies transactions in order starting from opening. Transactions
// that do not affect balances are skipped.
func Walk(opening decimal.Decimal, txns []model.Transaction) ([]Line, decimal.Decimal) {
	running := opening
	lines := make([]Line, 0, len(txns))
	for _, t := range txns {
		if !Affects(t) {
			continue
		}
		signed := t.SignedAmount()
		running = running.Add(signed)
		lines = append(lines, Line{Transaction: t, Signed: signed, RunningBalance: running})
	}
	return lines, running
}

// Buckets separates inflows from outflows for presentation.
type Buckets struct {
	Deposits         []model.Transaction
	Withdrawals      []model.Transaction
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal // positive magnitude
}

// Split buckets balance-affecting transactions by the sign of their effect.
func Split(txns []model.Transaction) Buckets {
	b := Buckets{TotalDeposits: decimal.Zero, TotalWithdrawals: decimal.Zero}
	for _, t := range txns {
		if !Affects(t) {
			continue
		}
		signed := t.SignedAmount()
		if signed.IsNegative() {
			b.Withdrawals = append(b.Withdrawals, t)
			b.TotalWithdrawals = b.TotalWithdrawals.Add(signed.Neg())
			continue
		}
		b.Deposits = append(b.Deposits, t)
		b.TotalDeposits = b.TotalDeposits.Add(signed)
	}
	return b
}
