package calibrate

import "math"

// Acceptance thresholds for an offline calibration quality check.
const (
	MaxBrierScore = 0.15
	MaxBinGap     = 0.05

	// MinBinPopulation is the smallest bin population considered
	// statistically meaningful for the ECE check.
	MinBinPopulation = 5
)

// Sample pairs a calibrated probability with its observed binary outcome.
type Sample struct {
	Probability float64
	Outcome     bool
}

// BinReport summarizes one fixed-width probability bin.
type BinReport struct {
	Lower         float64
	Upper         float64
	MeanPredicted float64
	ObservedRate  float64
	Count         int
}

// Report holds the offline quality metrics for a calibration table.
type Report struct {
	Bins       []BinReport
	BrierScore float64
	ECE        float64
	MaxGap     float64
}

// Evaluate computes the Brier score and expected-calibration-error bins over
// a held-out labeled set. This runs offline, never per call.
func Evaluate(samples []Sample, binCount int) Report {
	if binCount <= 0 {
		binCount = 10
	}

	report := Report{Bins: make([]BinReport, binCount)}
	width := 1.0 / float64(binCount)
	for i := range report.Bins {
		report.Bins[i].Lower = float64(i) * width
		report.Bins[i].Upper = float64(i+1) * width
	}

	if len(samples) == 0 {
		return report
	}

	sumPredicted := make([]float64, binCount)
	sumObserved := make([]float64, binCount)

	var brierSum float64
	for _, s := range samples {
		outcome := 0.0
		if s.Outcome {
			outcome = 1.0
		}
		diff := s.Probability - outcome
		brierSum += diff * diff

		idx := int(s.Probability / width)
		if idx >= binCount {
			idx = binCount - 1 // Probability of exactly 1.0
		}
		report.Bins[idx].Count++
		sumPredicted[idx] += s.Probability
		sumObserved[idx] += outcome
	}

	report.BrierScore = brierSum / float64(len(samples))

	var weightedGap float64
	for i := range report.Bins {
		count := report.Bins[i].Count
		if count == 0 {
			continue
		}
		report.Bins[i].MeanPredicted = sumPredicted[i] / float64(count)
		report.Bins[i].ObservedRate = sumObserved[i] / float64(count)

		gap := math.Abs(report.Bins[i].MeanPredicted - report.Bins[i].ObservedRate)
		weightedGap += gap * float64(count)
		if count >= MinBinPopulation && gap > report.MaxGap {
			report.MaxGap = gap
		}
	}
	report.ECE = weightedGap / float64(len(samples))

	return report
}

// Acceptable reports whether the calibration meets the quality bar: Brier
// score at most 0.15 and every meaningfully populated bin within 0.05 of its
// observed positive rate.
func (r Report) Acceptable() bool {
	return r.BrierScore <= MaxBrierScore && r.MaxGap <= MaxBinGap
}

// Better reports whether this calibration should be preferred over another,
// used offline to choose between isotonic and temperature fits.
func (r Report) Better(other Report) bool {
	if r.BrierScore != other.BrierScore {
		return r.BrierScore < other.BrierScore
	}
	return r.ECE < other.ECE
}
