package sink

import (
	"testing"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestDigestOrderInvariant(t *testing.T) {
	a := model.LedgerPayload{
		Currency: "USD",
		Lines: []model.LedgerLine{
			{AccountRef: "Office Supplies", Debit: 45.23, Memo: "staples order"},
			{AccountRef: "clearing", Credit: 45.23, Memo: "staples order"},
		},
	}
	b := model.LedgerPayload{
		Currency: "USD",
		Lines: []model.LedgerLine{
			{AccountRef: "clearing", Credit: 45.23, Memo: "staples order"},
			{AccountRef: "Office Supplies", Debit: 45.23, Memo: "staples order"},
		},
	}

	assert.Equal(t, Digest(a), Digest(b))
}

func TestDigestRepresentationInvariant(t *testing.T) {
	a := model.LedgerPayload{
		Currency: "usd",
		Lines: []model.LedgerLine{
			{AccountRef: "Office Supplies", Debit: 5.0, Memo: "  pens   and paper "},
			{AccountRef: "clearing", Credit: 5.004, Memo: "pens and paper"},
		},
	}
	b := model.LedgerPayload{
		Currency: "USD",
		Lines: []model.LedgerLine{
			{AccountRef: " Office Supplies ", Debit: 5.00, Memo: "pens and paper"},
			{AccountRef: "clearing", Credit: 5.00, Memo: "pens  and  paper"},
		},
	}

	assert.Equal(t, Digest(a), Digest(b))
}

func TestDigestDistinguishesContent(t *testing.T) {
	base := model.LedgerPayload{
		Currency: "USD",
		Lines: []model.LedgerLine{
			{AccountRef: "Office Supplies", Debit: 45.23},
			{AccountRef: "clearing", Credit: 45.23},
		},
	}

	differentAmount := model.LedgerPayload{
		Currency: "USD",
		Lines: []model.LedgerLine{
			{AccountRef: "Office Supplies", Debit: 45.24},
			{AccountRef: "clearing", Credit: 45.24},
		},
	}
	differentAccount := model.LedgerPayload{
		Currency: "USD",
		Lines: []model.LedgerLine{
			{AccountRef: "Inventory", Debit: 45.23},
			{AccountRef: "clearing", Credit: 45.23},
		},
	}

	assert.NotEqual(t, Digest(base), Digest(differentAmount))
	assert.NotEqual(t, Digest(base), Digest(differentAccount))
}

func TestCanonicalizeSortsAndRounds(t *testing.T) {
	payload := model.LedgerPayload{
		Currency: "usd",
		Lines: []model.LedgerLine{
			{AccountRef: "zeta", Debit: 10.006},
			{AccountRef: "alpha", Credit: 10.004},
		},
	}

	canonical := Canonicalize(payload)

	assert.Equal(t, "USD", canonical.Currency)
	assert.Equal(t, "alpha", canonical.Lines[0].AccountRef)
	assert.InDelta(t, 10.00, canonical.Lines[0].Credit, 1e-9)
	assert.InDelta(t, 10.01, canonical.Lines[1].Debit, 1e-9)

	// The input payload is untouched.
	assert.Equal(t, "zeta", payload.Lines[0].AccountRef)
}
