package importer

import (
	"time"

	"github.com/trustledger/trustledger/internal/model"
)

// matcher pairs bank rows with book transactions. Each transaction is
// matched at most once. Rules, in order, all requiring the same signed
// amount:
//  1. same check number
//  2. bank reference equals the transaction's reference number
//  3. the only remaining candidate within the date window
type matcher struct {
	txns   []model.Transaction
	used   []bool
	window time.Duration
}

func newMatcher(txns []model.Transaction, windowDays int) *matcher {
	return &matcher{
		txns:   txns,
		used:   make([]bool, len(txns)),
		window: time.Duration(windowDays) * 24 * time.Hour,
	}
}

func (m *matcher) match(row model.BankRow) (model.Transaction, bool) {
	if row.CheckNumber != "" {
		if i := m.find(row, func(t model.Transaction) bool {
			return normalizeCheck(t.CheckNumber) == row.CheckNumber
		}); i >= 0 {
			return m.take(i), true
		}
	}
	if row.Reference != "" {
		if i := m.find(row, func(t model.Transaction) bool {
			return t.ReferenceNumber != "" && t.ReferenceNumber == row.Reference
		}); i >= 0 {
			return m.take(i), true
		}
	}

	only := -1
	for i, t := range m.txns {
		if m.used[i] || !t.SignedAmount().Equal(row.Amount) || !m.withinWindow(t, row) {
			continue
		}
		// A check never pairs with a bank row carrying a different check number.
		if row.CheckNumber != "" && t.CheckNumber != "" {
			continue
		}
		if only >= 0 {
			return model.Transaction{}, false
		}
		only = i
	}
	if only < 0 {
		return model.Transaction{}, false
	}
	return m.take(only), true
}

func (m *matcher) find(row model.BankRow, pred func(model.Transaction) bool) int {
	for i, t := range m.txns {
		if !m.used[i] && t.SignedAmount().Equal(row.Amount) && pred(t) {
			return i
		}
	}
	return -1
}

func (m *matcher) take(i int) model.Transaction {
	m.used[i] = true
	return m.txns[i]
}

func (m *matcher) withinWindow(t model.Transaction, row model.BankRow) bool {
	d := row.Date.Sub(t.TransactionDate)
	if d < 0 {
		d = -d
	}
	return d <= m.window
}
