// Package match implements fuzzy reconciliation between a record and a pool
// of counterpart records, such as linking a scanned document to a transaction.
package match

import (
	"fmt"
	"math"
	"strings"

	"github.com/ContrejfC/ai-bookkeeper/internal/common"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/xrash/smetrics"
)

// Outcome classifies a match result.
type Outcome string

// Match outcomes.
const (
	OutcomeMatch   Outcome = "match"
	OutcomeReview  Outcome = "review"
	OutcomeNoMatch Outcome = "no_match"
)

// scoreEpsilon bounds how close two composites must be to count as tied.
const scoreEpsilon = 1e-9

// SubScores holds the per-dimension similarity components of a composite.
type SubScores struct {
	Name   float64
	Amount float64
	Date   float64
}

// Result is the outcome of matching one record against a pool. Persisting a
// confirmed link is the caller's responsibility.
type Result struct {
	LeftID    string
	RightID   string // Empty when no pool member qualified
	Outcome   Outcome
	SubScores SubScores
	Composite float64
}

// Config controls matching tolerances and weighting. Weights must sum to 1.
type Config struct {
	NameFloor       float64 // Minimum name sub-score for a pool member to qualify
	AmountTolerance float64 // Absolute, in currency units
	DateWindowDays  int
	NameWeight      float64
	AmountWeight    float64
	DateWeight      float64
	AcceptThreshold float64
	ReviewThreshold float64
}

// DefaultConfig returns the default matching configuration.
func DefaultConfig() Config {
	return Config{
		NameFloor:       0.70,
		AmountTolerance: 0.05,
		DateWindowDays:  3,
		NameWeight:      0.4,
		AmountWeight:    0.4,
		DateWeight:      0.2,
		AcceptThreshold: 0.88,
		ReviewThreshold: 0.75,
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	sum := c.NameWeight + c.AmountWeight + c.DateWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("%w: weights must sum to 1.0, got %v", common.ErrInvalidConfig, sum)
	}
	if c.AmountTolerance <= 0 {
		return fmt.Errorf("%w: amount tolerance must be positive, got %v", common.ErrInvalidConfig, c.AmountTolerance)
	}
	if c.DateWindowDays <= 0 {
		return fmt.Errorf("%w: date window must be positive, got %d", common.ErrInvalidConfig, c.DateWindowDays)
	}
	if c.ReviewThreshold > c.AcceptThreshold {
		return fmt.Errorf("%w: review threshold %v exceeds accept threshold %v", common.ErrInvalidConfig, c.ReviewThreshold, c.AcceptThreshold)
	}
	if c.NameFloor < 0 || c.NameFloor > 1 {
		return fmt.Errorf("%w: name floor must be in [0,1], got %v", common.ErrInvalidConfig, c.NameFloor)
	}
	return nil
}

// Match finds the best counterpart for a record in the pool. It is pure and
// deterministic: the same inputs always produce the same result, and ties are
// broken by smallest date delta, then smallest amount delta, then stable pool
// order.
func Match(candidate model.Record, pool []model.Record, config Config) (Result, error) {
	if err := config.Validate(); err != nil {
		return Result{}, err
	}

	result := Result{
		LeftID:  candidate.ID,
		Outcome: OutcomeNoMatch,
	}

	// Empty pool is a valid no-match, not an error.
	if len(pool) == 0 {
		return result, nil
	}

	bestIdx := -1
	var bestScores SubScores
	var bestComposite float64
	var bestDateDelta, bestAmountDelta float64

	for i, member := range pool {
		scores := subScores(candidate, member, config)

		// Names below the floor belong to different entities no matter
		// how well the amount and date line up.
		if scores.Name < config.NameFloor {
			continue
		}

		composite := config.NameWeight*scores.Name +
			config.AmountWeight*scores.Amount +
			config.DateWeight*scores.Date

		dateDelta := math.Abs(candidate.OccurredAt.Sub(member.OccurredAt).Hours() / 24)
		amountDelta := math.Abs(candidate.Amount - member.Amount)

		better := false
		switch {
		case bestIdx < 0:
			better = true
		case composite > bestComposite+scoreEpsilon:
			better = true
		case composite >= bestComposite-scoreEpsilon:
			// Tied on composite: smaller date delta wins, then smaller
			// amount delta. Equal on both keeps the earlier pool member.
			if dateDelta < bestDateDelta {
				better = true
			} else if dateDelta == bestDateDelta && amountDelta < bestAmountDelta {
				better = true
			}
		}

		if better {
			bestIdx = i
			bestScores = scores
			bestComposite = composite
			bestDateDelta = dateDelta
			bestAmountDelta = amountDelta
		}
	}

	result.SubScores = bestScores
	result.Composite = bestComposite

	switch {
	case bestComposite >= config.AcceptThreshold:
		result.Outcome = OutcomeMatch
		result.RightID = pool[bestIdx].ID
	case bestComposite >= config.ReviewThreshold:
		result.Outcome = OutcomeReview
		result.RightID = pool[bestIdx].ID
	}

	return result, nil
}

// subScores computes the per-dimension similarity components in [0,1].
func subScores(left, right model.Record, config Config) SubScores {
	var scores SubScores

	scores.Name = NameSimilarity(left.Counterparty, right.Counterparty)

	amountDelta := math.Abs(left.Amount - right.Amount)
	scores.Amount = 1 - math.Min(1, amountDelta/config.AmountTolerance)

	dateDelta := math.Abs(left.OccurredAt.Sub(right.OccurredAt).Hours() / 24)
	scores.Date = 1 - math.Min(1, dateDelta/float64(config.DateWindowDays))

	return scores
}

// NameSimilarity returns a Jaro-Winkler similarity between two normalized
// counterparty names, in [0,1].
func NameSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == "" || b == "" {
		if a == b {
			return 1.0
		}
		return 0.0
	}

	return smetrics.JaroWinkler(a, b, 0.7, 4)
}
