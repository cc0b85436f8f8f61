// Package risk maps a positive-class probability to a tier, a message and
// a list of lifestyle recommendations.
package risk

import (
	"math"

	"github.com/okian/diarisk/internal/domain/features"
)

// Tier is a coarse risk category.
type Tier string

// Tiers.
const (
	Low      Tier = "Low"
	Moderate Tier = "Moderate"
	High     Tier = "High"
)

// Tier thresholds on P(diabetes). Lower bounds are inclusive.
const (
	ModerateThreshold = 0.30
	HighThreshold     = 0.70
)

// Conditional recommendation triggers.
const (
	moderateBMI     = 25
	moderateGlucose = 100
	highBMI         = 30
	highGlucose     = 140
)

var messages = map[Tier]string{
	Low:      "Low risk of diabetes detected.",
	Moderate: "Moderate risk of diabetes detected.",
	High:     "High risk of diabetes detected.",
}

var base = map[Tier][]string{
	Low: {
		"Maintain a balanced diet rich in vegetables and whole grains",
		"Continue regular physical activity (150 minutes per week)",
		"Monitor your weight and maintain healthy BMI",
		"Get annual health check-ups including glucose screening",
	},
	Moderate: {
		"Consult with healthcare provider for personalized advice",
		"Consider diabetes prevention program",
		"Increase physical activity to 200+ minutes per week",
		"Monitor blood glucose levels every 6 months",
	},
	High: {
		"Schedule immediate appointment with healthcare provider",
		"Get comprehensive diabetes screening (HbA1c, fasting glucose)",
		"Start intensive lifestyle modification program",
		"Consider consultation with endocrinologist",
	},
}

// TierFor returns the tier for probability p.
func TierFor(p float64) Tier {
	switch {
	case p >= HighThreshold:
		return High
	case p >= ModerateThreshold:
		return Moderate
	default:
		return Low
	}
}

// Confidence is the larger class probability as a percentage.
func Confidence(p0, p1 float64) float64 {
	return math.Max(p0, p1) * 100
}

// Message returns the one-line summary for a tier.
func Message(t Tier) string {
	return messages[t]
}

// Recommendations returns the ordered advice list for a tier and the raw
// (unscaled) feature values. The returned slice is always freshly allocated.
func Recommendations(t Tier, v features.Vector) []string {
	out := append([]string(nil), base[t]...)
	bmi, glucose := v[features.BMI], v[features.Glucose]
	switch t {
	case Moderate:
		if bmi > moderateBMI {
			out = append(out, "Focus on gradual weight loss (5-10% of body weight)")
		}
		if glucose > moderateGlucose {
			out = append(out, "Follow a low-glycemic diet")
		}
	case High:
		if bmi > highBMI {
			out = append(out, "Urgent weight management program needed")
		}
		if glucose > highGlucose {
			out = append(out, "Monitor blood glucose levels daily")
		}
	}
	return out
}
