package service

import (
	"time"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/prediction"
	"github.com/okian/diarisk/internal/domain/types"
)

// ModelInfo describes the serving artifact.
type ModelInfo struct {
	ModelType         string                    `json:"model_type"`
	Dir               string                    `json:"dir"`
	LoadedAt          time.Time                 `json:"loaded_at"`
	FeatureNames      []string                  `json:"feature_names"`
	Accuracy          float64                   `json:"accuracy,omitempty"`
	NSamples          int                       `json:"n_samples,omitempty"`
	NFeatures         int                       `json:"n_features,omitempty"`
	DiabetesRate      float64                   `json:"diabetes_rate,omitempty"`
	FeatureImportance []model.FeatureImportance `json:"feature_importance,omitempty"`
	HasMetadata       bool                      `json:"has_metadata"`
}

// ModelInfo returns a description of the serving artifact.
func (s *Service) ModelInfo() (ModelInfo, error) {
	p := s.pipeline.Load()
	if p == nil {
		return ModelInfo{}, types.MissingArtifact("model artifact not loaded")
	}
	return infoOf(p), nil
}

func infoOf(p *prediction.Pipeline) ModelInfo {
	a := p.Artifact()
	info := ModelInfo{
		ModelType:    a.ModelType(),
		Dir:          a.Dir,
		LoadedAt:     a.LoadedAt,
		FeatureNames: append([]string(nil), a.FeatureNames...),
	}
	if md := a.Metadata; md != nil {
		info.HasMetadata = true
		info.Accuracy = md.Accuracy
		info.NSamples = md.NSamples
		info.NFeatures = md.NFeatures
		info.DiabetesRate = md.DiabetesRate
		info.FeatureImportance = append([]model.FeatureImportance(nil), md.FeatureImportance...)
	}
	return info
}
