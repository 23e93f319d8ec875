package sink

import (
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// Canonicalize returns a normalized copy of the payload: amounts rounded to
// two decimal places, memos stripped of incidental whitespace, and lines
// sorted by a stable key. Two payloads with the same logical content
// canonicalize identically regardless of line order or amount formatting.
func Canonicalize(payload model.LedgerPayload) model.LedgerPayload {
	canonical := model.LedgerPayload{
		Currency: strings.ToUpper(strings.TrimSpace(payload.Currency)),
		Lines:    make([]model.LedgerLine, len(payload.Lines)),
	}

	for i, line := range payload.Lines {
		canonical.Lines[i] = model.LedgerLine{
			AccountRef: strings.TrimSpace(line.AccountRef),
			Memo:       strings.Join(strings.Fields(line.Memo), " "),
			Debit:      roundAmount(line.Debit),
			Credit:     roundAmount(line.Credit),
		}
	}

	sort.SliceStable(canonical.Lines, func(i, j int) bool {
		a, b := canonical.Lines[i], canonical.Lines[j]
		if a.AccountRef != b.AccountRef {
			return a.AccountRef < b.AccountRef
		}
		if a.Debit != b.Debit {
			return a.Debit < b.Debit
		}
		if a.Credit != b.Credit {
			return a.Credit < b.Credit
		}
		return a.Memo < b.Memo
	})

	return canonical
}

// Digest computes the hex SHA-256 over the canonical serialization of the
// payload. The serialization is fixed-format so 5.0 and 5.00 digest equally.
func Digest(payload model.LedgerPayload) string {
	canonical := Canonicalize(payload)

	var builder strings.Builder
	builder.WriteString(canonical.Currency)
	for _, line := range canonical.Lines {
		fmt.Fprintf(&builder, "\n%s|%.2f|%.2f|%s",
			line.AccountRef, line.Debit, line.Credit, line.Memo)
	}

	hash := sha256.Sum256([]byte(builder.String()))
	return fmt.Sprintf("%x", hash)
}

// roundAmount rounds to two decimal places, half away from zero.
func roundAmount(amount float64) float64 {
	return math.Round(amount*100) / 100
}
