// Package training produces reference artifacts from a synthetic dataset.
package training

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/okian/diarisk/internal/domain/features"
)

// Sample is one labelled record.
type Sample struct {
	X features.Vector
	Y int
}

// Dataset is an ordered list of samples.
type Dataset []Sample

// DiabetesRate returns the fraction of positive labels.
func (d Dataset) DiabetesRate() float64 {
	if len(d) == 0 {
		return 0
	}
	pos := 0
	for _, s := range d {
		pos += s.Y
	}
	return float64(pos) / float64(len(d))
}

// Synthesize generates n records with clinically plausible distributions.
// Glucose above 140 is always positive; borderline records are labelled by
// a risk score built from age, BMI, blood pressure, pedigree and pregnancies.
// The same seed always yields the same dataset.
func Synthesize(n int, seed uint64) Dataset {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	ds := make(Dataset, 0, max(n, 0))
	for range n {
		age := clamp(normal(r, 45, 15), 20, 80)
		bmi := clamp(normal(r, 26, 6), 15, 50)

		diabetic := r.Float64() < 0.3
		var glucose float64
		if diabetic {
			glucose = normal(r, 160, 30)
		} else {
			glucose = normal(r, 95, 15)
		}
		glucose = clamp(glucose, 70, 200)

		bp := clamp(normal(r, 120+(age-40)*0.5+(bmi-25)*0.8, 15), 80, 180)
		skin := clamp(normal(r, 25, 8), 10, 50)

		var insulin float64
		if diabetic {
			insulin = normal(r, 150, 50)
		} else {
			insulin = normal(r, 80, 30)
		}
		insulin = clamp(insulin, 0, 300)

		dpf := math.Min(2.5, r.ExpFloat64()*0.5)

		pregnancies := 0
		if r.Float64() < 0.5 {
			pregnancies = min(15, poisson(r, 2))
		}

		score := 0.0
		if age > 45 {
			score += 0.2
		}
		if age > 65 {
			score += 0.1
		}
		if bmi > 25 {
			score += 0.15
		}
		if bmi > 30 {
			score += 0.2
		}
		if bp > 140 {
			score += 0.15
		}
		if dpf > 0.5 {
			score += 0.1
		}
		if pregnancies > 3 {
			score += 0.1
		}

		y := 0
		switch {
		case glucose > 140:
			y = 1
		case glucose < 100 && score < 0.3:
			y = 0
		case r.Float64() < score:
			y = 1
		}

		ds = append(ds, Sample{
			X: features.Vector{
				float64(pregnancies),
				round(glucose, 1),
				round(bp, 1),
				round(skin, 1),
				round(insulin, 1),
				round(bmi, 1),
				round(dpf, 3),
				round(age, 0),
			},
			Y: y,
		})
	}
	return ds
}

// WriteCSV writes the dataset with a header row of canonical names plus Outcome.
func WriteCSV(w io.Writer, ds Dataset) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), features.Names[:]...), "Outcome")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, features.Count+1)
	for i, s := range ds {
		for j, v := range s.X {
			row[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		row[features.Count] = strconv.Itoa(s.Y)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func normal(r *rand.Rand, mu, sd float64) float64 { return r.NormFloat64()*sd + mu }

// poisson uses Knuth's method; fine for the small means used here.
func poisson(r *rand.Rand, lambda float64) int {
	l := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= r.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
