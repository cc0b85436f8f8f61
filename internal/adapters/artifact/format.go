package artifact

import (
	"fmt"

	"github.com/okian/diarisk/internal/domain/features"
	"github.com/okian/diarisk/internal/domain/model"
)

// File names inside an artifact directory.
const (
	ModelFile        = "diabetes_model.json"
	ScalerFile       = "scaler.json"
	FeatureNamesFile = "feature_names.json"
	MetadataFile     = "model_metadata.json"
)

// classifierFile is the on-disk classifier envelope. Only the fields for
// model_type are populated.
type classifierFile struct {
	ModelType    string       `json:"model_type"`
	Coefficients []float64    `json:"coefficients,omitempty"`
	Intercept    float64      `json:"intercept,omitempty"`
	Trees        []model.Tree `json:"trees,omitempty"`
}

type scalerFile struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func toVector(name string, vals []float64) (features.Vector, error) {
	var v features.Vector
	if len(vals) != features.Count {
		return v, fmt.Errorf("%s has %d values, want %d", name, len(vals), features.Count)
	}
	copy(v[:], vals)
	return v, nil
}

func (f classifierFile) decode() (model.Classifier, error) {
	switch f.ModelType {
	case model.TypeLogisticRegression:
		coef, err := toVector("coefficients", f.Coefficients)
		if err != nil {
			return nil, err
		}
		return &model.LogisticRegression{Coefficients: coef, Intercept: f.Intercept}, nil
	case model.TypeRandomForest:
		return &model.RandomForest{Trees: f.Trees}, nil
	case "":
		return nil, fmt.Errorf("model_type is missing")
	default:
		return nil, fmt.Errorf("unknown model_type %q", f.ModelType)
	}
}

func encodeClassifier(c model.Classifier) (classifierFile, error) {
	switch m := c.(type) {
	case *model.LogisticRegression:
		return classifierFile{ModelType: model.TypeLogisticRegression, Coefficients: m.Coefficients.Slice(), Intercept: m.Intercept}, nil
	case *model.RandomForest:
		return classifierFile{ModelType: model.TypeRandomForest, Trees: m.Trees}, nil
	default:
		return classifierFile{}, fmt.Errorf("cannot encode classifier %T", c)
	}
}

func (f scalerFile) decode() (model.Scaler, error) {
	mean, err := toVector("mean", f.Mean)
	if err != nil {
		return model.Scaler{}, err
	}
	std, err := toVector("std", f.Std)
	if err != nil {
		return model.Scaler{}, err
	}
	return model.Scaler{Mean: mean, Std: std}, nil
}
