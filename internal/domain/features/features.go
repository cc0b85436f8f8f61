// Package features defines the canonical patient feature record and the
// rules that turn an arbitrary input record into it.
package features

// Count is the number of canonical features.
const Count = 8

// Positions of the canonical features. Scaler statistics and model
// coefficients are bound to this order.
const (
	Pregnancies = iota
	Glucose
	BloodPressure
	SkinThickness
	Insulin
	BMI
	DiabetesPedigreeFunction
	Age
)

// Vector is a feature record in canonical order.
type Vector [Count]float64

// Names lists the canonical feature names in order.
var Names = [Count]string{
	"Pregnancies",
	"Glucose",
	"BloodPressure",
	"SkinThickness",
	"Insulin",
	"BMI",
	"DiabetesPedigreeFunction",
	"Age",
}

// Defaults holds the value substituted for each absent field.
var Defaults = Vector{0, 100, 80, 20, 79, 25, 0.5, 30}

// Map returns the vector keyed by canonical name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, Count)
	for i, n := range Names {
		m[n] = v[i]
	}
	return m
}

// Slice returns a copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Count)
	copy(out, v[:])
	return out
}

// MatchesCanonical reports whether names equals the canonical list, in order.
func MatchesCanonical(names []string) bool {
	if len(names) != Count {
		return false
	}
	for i, n := range names {
		if n != Names[i] {
			return false
		}
	}
	return true
}
