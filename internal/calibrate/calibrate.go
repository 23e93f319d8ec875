// Package calibrate maps raw strategy scores to calibrated probabilities.
package calibrate

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// DefaultRuleCeiling is the fixed probability assigned to rule-tier matches.
// Pattern matches are deterministic and treated as near-certain.
const DefaultRuleCeiling = 0.99

// Bin maps a half-open raw-score interval [Lower, Upper) to a calibrated
// probability. Bins are fit offline (isotonic regression or temperature
// scaling) on a held-out, tenant-disjoint validation set and shipped as
// static metadata.
type Bin struct {
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
	Probability float64 `json:"probability"`
}

// Table is the versioned calibration metadata loaded at startup.
type Table struct {
	Version     string `json:"version"`
	Method      string `json:"method"` // "isotonic" or "temperature"
	RuleCeiling float64 `json:"rule_ceiling"`
	Memory      []Bin  `json:"memory"`
	Generative  []Bin  `json:"generative"`
}

// Calibrator converts raw candidate scores into calibrated probabilities.
// It is pure and stateless at call time and safe for concurrent use.
type Calibrator struct {
	table *Table
}

// New creates a calibrator from a loaded table. A nil table is allowed and
// makes every calibration fail closed to probability 0.
func New(table *Table) *Calibrator {
	return &Calibrator{table: table}
}

// LoadTable reads and validates a calibration table from a JSON file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration table: %w", err)
	}

	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse calibration table: %w", err)
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration table %q: %w", path, err)
	}

	return &table, nil
}

// Validate checks bin ordering and probability monotonicity. The fitted
// mapping must be monotone; a table that is not is a fitting bug upstream.
func (t *Table) Validate() error {
	if t.Method != "isotonic" && t.Method != "temperature" {
		return fmt.Errorf("unknown method %q", t.Method)
	}
	if t.RuleCeiling <= 0 || t.RuleCeiling > 1 {
		return fmt.Errorf("rule ceiling %v out of range (0, 1]", t.RuleCeiling)
	}
	for name, bins := range map[string][]Bin{"memory": t.Memory, "generative": t.Generative} {
		if len(bins) == 0 {
			return fmt.Errorf("%s bins missing", name)
		}
		if !sort.SliceIsSorted(bins, func(i, j int) bool { return bins[i].Lower < bins[j].Lower }) {
			return fmt.Errorf("%s bins not sorted by lower bound", name)
		}
		prev := -1.0
		for i, bin := range bins {
			if bin.Upper <= bin.Lower {
				return fmt.Errorf("%s bin %d: upper %v <= lower %v", name, i, bin.Upper, bin.Lower)
			}
			if bin.Probability < 0 || bin.Probability > 1 {
				return fmt.Errorf("%s bin %d: probability %v out of [0,1]", name, i, bin.Probability)
			}
			if bin.Probability < prev {
				return fmt.Errorf("%s bin %d: probability not monotone", name, i)
			}
			prev = bin.Probability
		}
	}
	return nil
}

// Calibrate maps a raw score from the given tier to a probability in [0,1].
// Raw scores outside the fitted domain are clamped, never rejected. With no
// table loaded it fails closed and returns 0, forcing review.
func (c *Calibrator) Calibrate(rawScore float64, tier model.Tier) float64 {
	if c == nil || c.table == nil {
		return 0.0
	}

	if tier == model.TierRule {
		return c.table.RuleCeiling
	}

	var bins []Bin
	switch tier {
	case model.TierMemory:
		bins = c.table.Memory
	case model.TierGenerative:
		bins = c.table.Generative
	default:
		return 0.0
	}

	if len(bins) == 0 {
		return 0.0
	}

	// Clamp into the fitted domain.
	if rawScore < bins[0].Lower {
		rawScore = bins[0].Lower
	}
	if rawScore >= bins[len(bins)-1].Upper {
		return bins[len(bins)-1].Probability
	}

	idx := sort.Search(len(bins), func(i int) bool { return bins[i].Upper > rawScore })
	return bins[idx].Probability
}

// Version returns the loaded table's version, or empty when failing closed.
func (c *Calibrator) Version() string {
	if c == nil || c.table == nil {
		return ""
	}
	return c.table.Version
}
