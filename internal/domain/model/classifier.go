package model

import (
	"fmt"
	"math"

	"github.com/okian/diarisk/internal/domain/features"
)

// Classifier kinds understood by the artifact codec.
const (
	TypeLogisticRegression = "logistic_regression"
	TypeRandomForest       = "random_forest"
)

// Classifier maps a scaled vector to class probabilities [P(0), P(1)].
// Implementations must not fail once Validate has returned nil.
type Classifier interface {
	Type() string
	Proba(x features.Vector) [2]float64
	Validate() error
}

// Explainer is implemented by classifiers that can attribute their output
// to individual features.
type Explainer interface {
	Contributions(x features.Vector) features.Vector
}

// Predict returns the label and a normalised probability pair.
// P(1) is clamped to [0, 1] and P(0) is 1 - P(1). Ties go to class 0.
func Predict(c Classifier, x features.Vector) (int, [2]float64) {
	raw := c.Proba(x)
	p1 := raw[1]
	if sum := raw[0] + raw[1]; sum > 0 && math.Abs(sum-1) > 1e-12 {
		p1 = raw[1] / sum
	}
	p1 = math.Max(0, math.Min(1, p1))
	probs := [2]float64{1 - p1, p1}
	if probs[1] > probs[0] {
		return 1, probs
	}
	return 0, probs
}

// LogisticRegression is a linear model over scaled features.
type LogisticRegression struct {
	Coefficients features.Vector
	Intercept    float64
}

// Type implements Classifier.
func (m *LogisticRegression) Type() string { return TypeLogisticRegression }

// Proba implements Classifier.
func (m *LogisticRegression) Proba(x features.Vector) [2]float64 {
	z := m.Intercept
	for i := range x {
		z += m.Coefficients[i] * x[i]
	}
	p := sigmoid(z)
	return [2]float64{1 - p, p}
}

// Contributions returns coefficient * scaled value per feature (log-odds units).
func (m *LogisticRegression) Contributions(x features.Vector) features.Vector {
	var out features.Vector
	for i := range x {
		out[i] = m.Coefficients[i] * x[i]
	}
	return out
}

// Validate implements Classifier.
func (m *LogisticRegression) Validate() error {
	if !finite(m.Intercept) {
		return fmt.Errorf("%w: intercept is not finite", ErrInvalidModel)
	}
	for i, c := range m.Coefficients {
		if !finite(c) {
			return fmt.Errorf("%w: coefficient for %s is not finite", ErrInvalidModel, features.Names[i])
		}
	}
	return nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// TreeNode is one node of a decision tree in flat array form. Leaves have
// Left == Right == -1; internal nodes send x[Feature] <= Threshold left.
type TreeNode struct {
	Feature   int        `json:"feature"`
	Threshold float64    `json:"threshold"`
	Left      int        `json:"left"`
	Right     int        `json:"right"`
	Value     [2]float64 `json:"value"`
}

// Tree is a decision tree rooted at Nodes[0].
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

func (t Tree) leaf(x features.Vector) [2]float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			sum := n.Value[0] + n.Value[1]
			return [2]float64{n.Value[0] / sum, n.Value[1] / sum}
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate requires children to point forward so traversal always terminates.
func (t Tree) validate(idx int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: tree %d has no nodes", ErrInvalidModel, idx)
	}
	for i, n := range t.Nodes {
		if n.Left < 0 || n.Right < 0 {
			if n.Left != -1 || n.Right != -1 {
				return fmt.Errorf("%w: tree %d node %d has one child", ErrInvalidModel, idx, i)
			}
			if n.Value[0] < 0 || n.Value[1] < 0 || n.Value[0]+n.Value[1] <= 0 || !finite(n.Value[0]+n.Value[1]) {
				return fmt.Errorf("%w: tree %d leaf %d has invalid value %v", ErrInvalidModel, idx, i, n.Value)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= features.Count {
			return fmt.Errorf("%w: tree %d node %d uses feature %d", ErrInvalidModel, idx, i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("%w: tree %d node %d has out-of-range children", ErrInvalidModel, idx, i)
		}
		if !finite(n.Threshold) {
			return fmt.Errorf("%w: tree %d node %d threshold is not finite", ErrInvalidModel, idx, i)
		}
	}
	return nil
}

// RandomForest averages the leaf class distributions of its trees.
type RandomForest struct {
	Trees []Tree
}

// Type implements Classifier.
func (m *RandomForest) Type() string { return TypeRandomForest }

// Proba implements Classifier.
func (m *RandomForest) Proba(x features.Vector) [2]float64 {
	var acc [2]float64
	for _, t := range m.Trees {
		p := t.leaf(x)
		acc[0] += p[0]
		acc[1] += p[1]
	}
	n := float64(len(m.Trees))
	return [2]float64{acc[0] / n, acc[1] / n}
}

// Validate implements Classifier.
func (m *RandomForest) Validate() error {
	if len(m.Trees) == 0 {
		return fmt.Errorf("%w: random forest has no trees", ErrInvalidModel)
	}
	for i, t := range m.Trees {
		if err := t.validate(i); err != nil {
			return err
		}
	}
	return nil
}
