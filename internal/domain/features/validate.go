package features

import "github.com/okian/diarisk/internal/domain/types"

// Bound is an inclusive physiological range for one feature.
type Bound struct {
	Index int
	Min   float64
	Max   float64
	Unit  string
}

// Bounds lists the enforced ranges in the order they are checked.
// Pregnancies, SkinThickness, Insulin and DiabetesPedigreeFunction are unconstrained.
var Bounds = []Bound{
	{Index: Glucose, Min: 0, Max: 300, Unit: "mg/dL"},
	{Index: BloodPressure, Min: 0, Max: 250, Unit: "mmHg"},
	{Index: BMI, Min: 10, Max: 60, Unit: "kg/m²"},
	{Index: Age, Min: 0, Max: 120, Unit: "years"},
}

// Validate returns the first range violation found, or nil.
func Validate(v Vector) error {
	for _, b := range Bounds {
		x := v[b.Index]
		if x < b.Min || x > b.Max {
			return types.RangeViolation(Names[b.Index], x, b.Min, b.Max, b.Unit)
		}
	}
	return nil
}
