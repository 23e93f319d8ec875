// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Record represents a single financial record to be decided on, such as a
// transaction line or a document-derived entry. Records are immutable once
// created; corrections supersede rather than mutate.
type Record struct {
	OccurredAt   time.Time         `json:"occurred_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	Description  string            `json:"description"`  // Raw free-text description
	Counterparty string            `json:"counterparty"` // Normalized counterparty name
	Currency     string            `json:"currency"`
	Amount       float64           `json:"amount"` // Signed amount
}

// GenerateHash creates a content hash for duplicate detection, e.g. the same
// statement line imported twice.
func (r *Record) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s:%s",
		r.TenantID,
		r.OccurredAt.Format("2006-01-02"),
		r.Amount,
		r.Counterparty,
		r.Description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// DeduplicateRecords drops records whose content hash was already seen,
// keeping the first occurrence and preserving order.
func DeduplicateRecords(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	deduped := make([]Record, 0, len(records))
	for _, r := range records {
		hash := r.GenerateHash()
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		deduped = append(deduped, r)
	}
	return deduped
}

// LabeledExample is a prior record together with its confirmed label. The
// memory tier searches these; the cold-start gate counts them.
type LabeledExample struct {
	LabeledAt    time.Time `json:"labeled_at"`
	TenantID     string    `json:"tenant_id"`
	RecordID     string    `json:"record_id"`
	Counterparty string    `json:"counterparty"`
	Label        string    `json:"label"`
	Amount       float64   `json:"amount"`
}
