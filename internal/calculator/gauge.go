package calculator

import "math"

// TaxFreeProgress describes how close a purchase is to the tax-free threshold.
type TaxFreeProgress struct {
	ThresholdForeign float64 `json:"thresholdForeign"`
	CurrentForeign   float64 `json:"currentForeign"`
	RemainingForeign float64 `json:"remainingForeign"`
	ProgressPercent  float64 `json:"progressPercent"`
	IsAchieved       bool    `json:"isAchieved"`
}

// Gauge derives threshold progress for amount. A non-positive threshold uses
// DefaultThreshold. The result is advisory and does not affect Calculate.
func Gauge(amount, threshold float64) TaxFreeProgress {
	if math.IsNaN(threshold) || threshold <= 0 {
		threshold = DefaultThreshold
	}
	if math.IsNaN(amount) || amount < 0 {
		amount = 0
	}
	return TaxFreeProgress{
		ThresholdForeign: threshold,
		CurrentForeign:   amount,
		RemainingForeign: math.Max(threshold-amount, 0),
		ProgressPercent:  math.Min(amount/threshold*100, 100),
		IsAchieved:       amount >= threshold,
	}
}
