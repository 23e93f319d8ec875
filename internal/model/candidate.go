package model

// Tier identifies the strategy that produced a candidate decision.
type Tier string

// Strategy tier constants, in escalation order.
const (
	TierRule       Tier = "rule"
	TierMemory     Tier = "memory"
	TierGenerative Tier = "generative"
)

// Candidate represents a proposed classification produced by one strategy
// tier. It is ephemeral: created by a provider, consumed immediately by the
// calibrator, never persisted on its own.
type Candidate struct {
	RecordID  string
	Label     string
	Rationale string
	Tier      Tier
	RawScore  float64 // Provider-specific range; calibration normalizes it
	Cost      float64 // Spend incurred producing this candidate, if any
}
