package model

import "time"

// IdempotencyRecord maps a (tenant, payload digest) pair to the external
// document created for it. The unique constraint on (TenantID, Digest) in
// storage is the core correctness invariant of the posting sink, which owns
// these records exclusively.
type IdempotencyRecord struct {
	CreatedAt  time.Time
	TenantID   string
	Digest     string // Hex SHA-256 over the canonical payload serialization
	ExternalID string // Empty while a post is in flight
}
