package model

import "math"

// BalanceEpsilon is the tolerance, in currency units, within which a payload's
// debit and credit totals must agree.
const BalanceEpsilon = 0.01

// LedgerLine is a single line of a ledger payload. Exactly one of Debit or
// Credit is expected to be non-zero.
type LedgerLine struct {
	AccountRef string  `json:"account_ref"`
	Memo       string  `json:"memo"`
	Debit      float64 `json:"debit"`
	Credit     float64 `json:"credit"`
}

// LedgerPayload is the normalized, balanced entry posted to the external
// ledger. After posting it is referenced only by its digest and external id.
type LedgerPayload struct {
	Currency string       `json:"currency"`
	Lines    []LedgerLine `json:"lines"`
}

// TotalDebit sums the debit side of all lines.
func (p *LedgerPayload) TotalDebit() float64 {
	var total float64
	for _, line := range p.Lines {
		total += line.Debit
	}
	return total
}

// TotalCredit sums the credit side of all lines.
func (p *LedgerPayload) TotalCredit() float64 {
	var total float64
	for _, line := range p.Lines {
		total += line.Credit
	}
	return total
}

// Balanced reports whether debits equal credits within BalanceEpsilon.
func (p *LedgerPayload) Balanced() bool {
	return math.Abs(p.TotalDebit()-p.TotalCredit()) <= BalanceEpsilon
}
