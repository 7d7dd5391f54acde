package domain

import "math"

// ReportsForCertainty is the report count at which spam likelihood saturates at 1.0.
const ReportsForCertainty = 10

// SpamLikelihood maps a report count onto [0, 1]: min(1, count/10).
// The value is unrounded; round only when rendering a view.
func SpamLikelihood(count int) float64 {
	if count <= 0 {
		return 0
	}
	return math.Min(1.0, float64(count)/ReportsForCertainty)
}

// RoundLikelihood rounds a likelihood to two decimal places for presentation.
func RoundLikelihood(v float64) float64 {
	return math.Round(v*100) / 100
}
