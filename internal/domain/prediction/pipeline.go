// Package prediction runs one feature record through the loaded artifact.
package prediction

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/diarisk/internal/domain/features"
	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/risk"
	"github.com/okian/diarisk/internal/domain/types"
)

// Probabilities is the class probability pair.
type Probabilities struct {
	NoDiabetes float64 `json:"no_diabetes"`
	Diabetes   float64 `json:"diabetes"`
}

// ModelInfo is the subset of artifact metadata echoed with every result.
type ModelInfo struct {
	ModelType string    `json:"model_type"`
	Accuracy  float64   `json:"accuracy"`
	NSamples  int       `json:"n_samples"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// Result is the outcome of a single prediction.
type Result struct {
	Prediction        int                       `json:"prediction"`
	Probability       float64                   `json:"probability"`
	Probabilities     Probabilities             `json:"probabilities"`
	Confidence        float64                   `json:"confidence"`
	RiskLevel         risk.Tier                 `json:"risk_level"`
	Message           string                    `json:"message"`
	Recommendations   []string                  `json:"recommendations"`
	InputFeatures     map[string]float64        `json:"input_features"`
	ModelInfo         ModelInfo                 `json:"model_info"`
	FeatureImportance []model.FeatureImportance `json:"feature_importance,omitempty"`
	Contributions     map[string]float64        `json:"contributions,omitempty"`
}

// Pipeline is safe for concurrent use; it only reads the artifact.
type Pipeline struct {
	artifact *model.Artifact
	info     ModelInfo
}

// New validates the artifact and returns a pipeline bound to it.
func New(a *model.Artifact) (*Pipeline, error) {
	if a == nil {
		return nil, types.MissingArtifact("model artifact not loaded")
	}
	if err := a.Validate(); err != nil {
		return nil, types.CorruptArtifact("artifact failed validation", err)
	}
	info := ModelInfo{ModelType: a.ModelType(), LoadedAt: a.LoadedAt}
	if a.Metadata != nil {
		info.Accuracy = a.Metadata.Accuracy
		info.NSamples = a.Metadata.NSamples
	}
	return &Pipeline{artifact: a, info: info}, nil
}

// Artifact returns the artifact the pipeline was built from.
func (p *Pipeline) Artifact() *model.Artifact { return p.artifact }

// Info returns the model summary attached to results.
func (p *Pipeline) Info() ModelInfo { return p.info }

// Predict resolves, validates, scales and classifies raw, then derives the
// tier and recommendations. The returned error is always a *types.Error.
func (p *Pipeline) Predict(raw map[string]any) (Result, error) {
	v, echo, err := features.Resolve(raw)
	if err != nil {
		return Result{}, err
	}
	if err := features.Validate(v); err != nil {
		return Result{}, err
	}

	x := p.artifact.Scaler.Transform(v)
	for i, xi := range x {
		if !finite(xi) {
			return Result{}, types.Unscorable(features.Names[i], v[i])
		}
	}
	var contrib map[string]float64
	if ex, ok := p.artifact.Classifier.(model.Explainer); ok {
		c := ex.Contributions(x)
		for i, ci := range c {
			if !finite(ci) {
				return Result{}, types.Unscorable(features.Names[i], v[i])
			}
		}
		contrib = c.Map()
	}
	label, probs := model.Predict(p.artifact.Classifier, x)
	if !finite(probs[0]) || !finite(probs[1]) {
		return Result{}, types.Unscorable("", 0)
	}
	tier := risk.TierFor(probs[1])

	res := Result{
		Prediction:      label,
		Probability:     probs[1],
		Probabilities:   Probabilities{NoDiabetes: probs[0], Diabetes: probs[1]},
		Confidence:      risk.Confidence(probs[0], probs[1]),
		RiskLevel:       tier,
		Message:         risk.Message(tier),
		Recommendations: risk.Recommendations(tier, v),
		InputFeatures:   echo,
		ModelInfo:       p.info,
		Contributions:   contrib,
	}
	if md := p.artifact.Metadata; md != nil && len(md.FeatureImportance) > 0 {
		res.FeatureImportance = append([]model.FeatureImportance(nil), md.FeatureImportance...)
	}
	return res, nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// String is used in log lines.
func (r Result) String() string {
	return fmt.Sprintf("prediction=%d probability=%.4f risk=%s", r.Prediction, r.Probability, r.RiskLevel)
}
