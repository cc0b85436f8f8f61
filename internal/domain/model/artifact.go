// Package model contains the trained artifact: scaler statistics, the
// classifier and the metadata produced by training.
package model

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/diarisk/internal/domain/features"
)

// FeatureImportance is one entry of the metadata importance list.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Metadata is the optional training summary shipped with an artifact.
type Metadata struct {
	ModelType         string              `json:"model_type"`
	Features          []string            `json:"features,omitempty"`
	Accuracy          float64             `json:"accuracy"`
	NSamples          int                 `json:"n_samples"`
	NFeatures         int                 `json:"n_features"`
	DiabetesRate      float64             `json:"diabetes_rate"`
	FeatureImportance []FeatureImportance `json:"feature_importance,omitempty"`
}

// Artifact bundles everything inference needs. It is never mutated after load.
type Artifact struct {
	Classifier   Classifier
	Scaler       Scaler
	FeatureNames []string
	Metadata     *Metadata

	// Dir and LoadedAt describe where and when the artifact was read.
	Dir      string
	LoadedAt time.Time
}

// Validate checks the positional contract between names, scaler and classifier.
func (a *Artifact) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil artifact", ErrInvalidModel)
	}
	if !features.MatchesCanonical(a.FeatureNames) {
		return fmt.Errorf("%w: feature names %v do not match canonical order %v", ErrInvalidModel, a.FeatureNames, features.Names)
	}
	if err := a.Scaler.Validate(); err != nil {
		return err
	}
	if a.Classifier == nil {
		return fmt.Errorf("%w: missing classifier", ErrInvalidModel)
	}
	return a.Classifier.Validate()
}

// ModelType returns the metadata model type, falling back to the classifier kind.
func (a *Artifact) ModelType() string {
	if a.Metadata != nil && a.Metadata.ModelType != "" {
		return a.Metadata.ModelType
	}
	if a.Classifier == nil {
		return ""
	}
	return a.Classifier.Type()
}

// Scaler standardises raw features with per-feature statistics.
type Scaler struct {
	Mean features.Vector
	Std  features.Vector
}

// Transform returns (raw - mean) / std for every feature.
func (s Scaler) Transform(raw features.Vector) features.Vector {
	var out features.Vector
	for i := range raw {
		out[i] = (raw[i] - s.Mean[i]) / s.Std[i]
	}
	return out
}

// Validate rejects statistics that would make Transform produce NaN or Inf.
func (s Scaler) Validate() error {
	for i := range s.Mean {
		if !finite(s.Mean[i]) {
			return fmt.Errorf("%w: scaler mean for %s is not finite", ErrInvalidModel, features.Names[i])
		}
		if !finite(s.Std[i]) || s.Std[i] <= 0 {
			return fmt.Errorf("%w: scaler std for %s must be positive, got %v", ErrInvalidModel, features.Names[i], s.Std[i])
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
