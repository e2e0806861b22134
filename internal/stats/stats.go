// Package stats computes rolling ratio statistics and cost-adjusted spreads.
// Everything here is a pure function over the ratio history.
package stats

import (
	"math"

	"github.com/BondSpread/iol-arb/internal/models"
)

// Compute returns rolling statistics over the last window entries of history.
// Fewer than two observations yield no stats. Standard deviation uses the
// sample (n-1) divisor; a zero deviation yields a zero z-score rather than an
// error so a flat series reads as "no signal".
func Compute(history []models.RatioSnapshot, window int) (*models.RatioStats, bool) {
	if len(history) < 2 {
		return nil, false
	}

	start := len(history) - window
	if start < 0 {
		start = 0
	}
	windowData := history[start:]
	n := len(windowData)

	sum := 0.0
	for _, s := range windowData {
		sum += s.Ratio
	}
	mean := sum / float64(n)

	squaredDiffSum := 0.0
	for _, s := range windowData {
		diff := s.Ratio - mean
		squaredDiffSum += diff * diff
	}
	std := math.Sqrt(squaredDiffSum / float64(n-1))

	current := history[len(history)-1].Ratio
	zScore := 0.0
	if std > 0 {
		zScore = (current - mean) / std
	}

	return &models.RatioStats{
		Mean:            mean,
		Std:             std,
		ZScore:          zScore,
		UpperBand:       mean + 2*std,
		LowerBand:       mean - 2*std,
		UpperBand1Sigma: mean + std,
		LowerBand1Sigma: mean - std,
		WindowSize:      n,
	}, true
}

// ComputeCommission converts a divergence from the rolling mean into a
// cost-adjusted verdict. costRate is the total end-to-end round-trip cost as
// a fraction (0.005 = 0.5%). The breakeven ratio is the price level at which
// the same-direction trade's gross edge exactly equals the round-trip cost.
func ComputeCommission(ratio, mean, costRate float64) models.CommissionInfo {
	gross := 0.0
	if mean != 0 {
		gross = math.Abs(ratio-mean) / mean
	}
	net := gross - costRate

	var breakeven float64
	if ratio >= mean {
		breakeven = mean * (1 + costRate)
	} else {
		breakeven = mean * (1 - costRate)
	}

	return models.CommissionInfo{
		RoundtripCostPct: costRate * 100,
		GrossSpreadPct:   gross * 100,
		NetSpreadPct:     net * 100,
		IsProfitable:     net > 0,
		BreakevenRatio:   breakeven,
	}
}

// DirectionFor maps a z-score sign to the cheap leg
func DirectionFor(zScore float64) models.Direction {
	if zScore < 0 {
		return models.LocalCheap
	}
	return models.ForeignCheap
}
