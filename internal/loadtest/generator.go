package loadtest

import (
	"github.com/okian/diarisk/internal/domain/features"
	"github.com/okian/diarisk/internal/training"
)

// keyStyles rotates the field spellings clients are known to send.
var keyStyles = []map[int]string{
	nil, // canonical
	{
		features.Pregnancies: "pregnancies", features.Glucose: "glucose",
		features.BloodPressure: "blood_pressure", features.SkinThickness: "skin_thickness",
		features.Insulin: "insulin", features.BMI: "bmi",
		features.DiabetesPedigreeFunction: "diabetes_pedigree_function", features.Age: "age",
	},
	{
		features.Pregnancies: "pregnancies", features.Glucose: "glucose",
		features.BloodPressure: "bloodPressure", features.SkinThickness: "skinThickness",
		features.Insulin: "insulin", features.BMI: "bmi",
		features.DiabetesPedigreeFunction: "diabetesPedigreeFunction", features.Age: "age",
	},
}

// invalidGlucose is outside the accepted Glucose range.
const invalidGlucose = 999

// generateRecords returns n request bodies built from the synthetic dataset.
// The second result counts records deliberately made invalid.
func generateRecords(n int, seed uint64, invalidEvery int) ([]map[string]any, int) {
	ds := training.Synthesize(n, seed)
	out := make([]map[string]any, len(ds))
	bad := 0
	for i, s := range ds {
		style := keyStyles[i%len(keyStyles)]
		rec := make(map[string]any, features.Count)
		for j, v := range s.X {
			key := features.Names[j]
			if style != nil {
				key = style[j]
			}
			rec[key] = v
		}
		if invalidEvery > 0 && (i+1)%invalidEvery == 0 {
			key := features.Names[features.Glucose]
			if style != nil {
				key = style[features.Glucose]
			}
			rec[key] = invalidGlucose
			bad++
		}
		out[i] = rec
	}
	return out, bad
}
