package training

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/okian/diarisk/internal/adapters/artifact"
	"github.com/okian/diarisk/internal/domain/features"
	"github.com/okian/diarisk/internal/domain/model"
)

// Config controls dataset generation and fitting.
type Config struct {
	Samples      int
	Seed         uint64
	TestFraction float64
	Epochs       int
	LearningRate float64
	// L2 is the inverse of sklearn's C; the penalty is scaled by 1/n.
	L2 float64
	// Balanced weights each class by n / (2 * n_class).
	Balanced bool
}

// DefaultConfig mirrors the reference training run.
func DefaultConfig() Config {
	return Config{
		Samples:      2000,
		Seed:         42,
		TestFraction: 0.2,
		Epochs:       1000,
		LearningRate: 0.5,
		L2:           1,
		Balanced:     true,
	}
}

func (c Config) validate() error {
	switch {
	case c.Samples < 10:
		return fmt.Errorf("%w: samples must be at least 10, got %d", ErrInvalidConfig, c.Samples)
	case c.TestFraction <= 0 || c.TestFraction >= 1:
		return fmt.Errorf("%w: test fraction must be in (0, 1), got %v", ErrInvalidConfig, c.TestFraction)
	case c.Epochs < 1:
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidConfig, c.Epochs)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate must be positive, got %v", ErrInvalidConfig, c.LearningRate)
	case c.L2 < 0:
		return fmt.Errorf("%w: l2 must not be negative, got %v", ErrInvalidConfig, c.L2)
	}
	return nil
}

// Report summarises a training run.
type Report struct {
	Samples      int
	Train        int
	Test         int
	Accuracy     float64
	DiabetesRate float64
	FinalLoss    float64
}

// Train synthesizes a dataset from cfg and fits an artifact on it.
func Train(ctx context.Context, cfg Config) (*model.Artifact, Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, Report{}, err
	}
	return Fit(ctx, Synthesize(cfg.Samples, cfg.Seed), cfg)
}

// Fit splits ds (stratified), fits scaler statistics on the train split,
// fits an L2 logistic regression by batch gradient descent and scores it on
// the test split.
func Fit(ctx context.Context, ds Dataset, cfg Config) (*model.Artifact, Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, Report{}, err
	}
	train, test, err := split(ds, cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, Report{}, err
	}

	scaler := fitScaler(train)
	xs := make([]features.Vector, len(train))
	for i, s := range train {
		xs[i] = scaler.Transform(s.X)
	}

	lr, loss, err := fitLogistic(ctx, xs, train, cfg)
	if err != nil {
		return nil, Report{}, err
	}

	correct := 0
	for _, s := range test {
		label, _ := model.Predict(lr, scaler.Transform(s.X))
		if label == s.Y {
			correct++
		}
	}
	rep := Report{
		Samples:      len(ds),
		Train:        len(train),
		Test:         len(test),
		Accuracy:     float64(correct) / float64(len(test)),
		DiabetesRate: ds.DiabetesRate(),
		FinalLoss:    loss,
	}

	a := &model.Artifact{
		Classifier:   lr,
		Scaler:       scaler,
		FeatureNames: append([]string(nil), features.Names[:]...),
		Metadata: &model.Metadata{
			ModelType:         model.TypeLogisticRegression,
			Features:          append([]string(nil), features.Names[:]...),
			Accuracy:          rep.Accuracy,
			NSamples:          rep.Samples,
			NFeatures:         features.Count,
			DiabetesRate:      rep.DiabetesRate,
			FeatureImportance: importance(lr),
		},
	}
	if err := a.Validate(); err != nil {
		return nil, Report{}, fmt.Errorf("trained artifact: %w", err)
	}
	return a, rep, nil
}

// Run trains with cfg and publishes the artifact to dir.
func Run(ctx context.Context, dir string, cfg Config) (Report, error) {
	a, rep, err := Train(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if err := artifact.Write(ctx, dir, a); err != nil {
		return Report{}, fmt.Errorf("publish artifact: %w", err)
	}
	return rep, nil
}

// split keeps the class ratio in both halves. Each class contributes at
// least one sample to each side.
func split(ds Dataset, testFraction float64, seed uint64) (Dataset, Dataset, error) {
	var byClass [2][]int
	for i, s := range ds {
		if s.Y != 0 && s.Y != 1 {
			return nil, nil, fmt.Errorf("%w: sample %d has label %d", ErrDegenerate, i, s.Y)
		}
		byClass[s.Y] = append(byClass[s.Y], i)
	}
	r := rand.New(rand.NewPCG(seed, seed+1))
	var train, test Dataset
	for c, idx := range byClass {
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("%w: class %d has %d samples", ErrDegenerate, c, len(idx))
		}
		r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(float64(len(idx)) * testFraction))
		nTest = min(max(nTest, 1), len(idx)-1)
		for k, i := range idx {
			if k < nTest {
				test = append(test, ds[i])
			} else {
				train = append(train, ds[i])
			}
		}
	}
	return train, test, nil
}

// fitScaler computes mean and population std; constant columns get std 1.
func fitScaler(ds Dataset) model.Scaler {
	var s model.Scaler
	n := float64(len(ds))
	for _, smp := range ds {
		for j, v := range smp.X {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, smp := range ds {
		for j, v := range smp.X {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return s
}

func fitLogistic(ctx context.Context, xs []features.Vector, ds Dataset, cfg Config) (*model.LogisticRegression, float64, error) {
	n := float64(len(xs))
	weights := [2]float64{1, 1}
	if cfg.Balanced {
		pos := 0.0
		for _, s := range ds {
			pos += float64(s.Y)
		}
		if pos > 0 && pos < n {
			weights = [2]float64{n / (2 * (n - pos)), n / (2 * pos)}
		}
	}
	lambda := cfg.L2 / n

	m := &model.LogisticRegression{}
	var loss float64
	for epoch := range cfg.Epochs {
		if epoch%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, fmt.Errorf("training cancelled at epoch %d: %w", epoch, err)
			}
		}
		var grad features.Vector
		var gradB float64
		loss = 0
		for i, x := range xs {
			y := float64(ds[i].Y)
			w := weights[ds[i].Y]
			p := m.Proba(x)[1]
			d := w * (p - y)
			for j := range x {
				grad[j] += d * x[j]
			}
			gradB += d
			loss -= w * (y*math.Log(math.Max(p, 1e-15)) + (1-y)*math.Log(math.Max(1-p, 1e-15)))
		}
		for j := range grad {
			m.Coefficients[j] -= cfg.LearningRate * (grad[j]/n + lambda*m.Coefficients[j])
		}
		m.Intercept -= cfg.LearningRate * gradB / n
		loss /= n
	}
	return m, loss, nil
}

// importance normalises |coef| to sum to 1, sorted descending.
func importance(m *model.LogisticRegression) []model.FeatureImportance {
	total := 0.0
	for _, c := range m.Coefficients {
		total += math.Abs(c)
	}
	out := make([]model.FeatureImportance, features.Count)
	for i, c := range m.Coefficients {
		v := 0.0
		if total > 0 {
			v = math.Abs(c) / total
		}
		out[i] = model.FeatureImportance{Feature: features.Names[i], Importance: v}
	}
	slices.SortStableFunc(out, func(a, b model.FeatureImportance) int {
		return cmp.Compare(b.Importance, a.Importance)
	})
	return out
}
