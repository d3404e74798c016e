// Package bmi classifies body-mass index values.
package bmi

import (
	"math"

	"schoolreport/internal/locale"
)

// Category is a BMI classification.
type Category string

const (
	Underweight Category = "underweight"
	Normal      Category = "normal"
	Overweight  Category = "overweight"
	Obese       Category = "obese"
)

// Classify applies the fixed thresholds: <18.5 underweight, <25 normal,
// <30 overweight, otherwise obese.
func Classify(v float64) Category {
	switch {
	case v < 18.5:
		return Underweight
	case v < 25:
		return Normal
	case v < 30:
		return Overweight
	default:
		return Obese
	}
}

// Compute returns weight / height² with height in centimetres. The value is
// unrounded so Classify sees the exact figure; use Round for display. It
// returns 0 when either input is not positive.
func Compute(heightCm, weightKg float64) float64 {
	if heightCm <= 0 || weightKg <= 0 {
		return 0
	}
	m := heightCm / 100
	return weightKg / (m * m)
}

// Round rounds v to the two decimals printed in reports.
func Round(v float64) float64 { return math.Round(v*100) / 100 }

// Label returns the Khmer label printed in reports.
func (c Category) Label() string {
	switch c {
	case Underweight:
		return locale.T(locale.Underweight)
	case Normal:
		return locale.T(locale.Normal)
	case Overweight:
		return locale.T(locale.Overweight)
	case Obese:
		return locale.T(locale.Obese)
	}
	return ""
}
