// Package modeltest provides fixed artifacts for tests.
package modeltest

import (
	"time"

	"github.com/okian/diarisk/internal/domain/features"
	"github.com/okian/diarisk/internal/domain/model"
)

// LoadedAt is the load time stamped on fixture artifacts.
var LoadedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// Scaler returns population-like statistics in canonical order.
func Scaler() model.Scaler {
	return model.Scaler{
		Mean: features.Vector{3.8, 120.9, 69.1, 20.5, 79.8, 32.0, 0.47, 33.2},
		Std:  features.Vector{3.4, 32.0, 19.4, 16.0, 115.0, 7.9, 0.33, 11.8},
	}
}

// Logistic returns a complete logistic-regression artifact. Scenario
// records with moderate glucose score Low; glucose 200 with BMI 40 scores High.
func Logistic() *model.Artifact {
	return &model.Artifact{
		Classifier: &model.LogisticRegression{
			Coefficients: features.Vector{0.4, 1.1, -0.1, 0.05, -0.15, 0.7, 0.3, 0.2},
			Intercept:    -0.85,
		},
		Scaler:       Scaler(),
		FeatureNames: append([]string(nil), features.Names[:]...),
		Metadata: &model.Metadata{
			ModelType:    model.TypeLogisticRegression,
			Features:     append([]string(nil), features.Names[:]...),
			Accuracy:     0.78,
			NSamples:     1000,
			NFeatures:    features.Count,
			DiabetesRate: 0.35,
			FeatureImportance: []model.FeatureImportance{
				{Feature: "Glucose", Importance: 0.362},
				{Feature: "BMI", Importance: 0.230},
				{Feature: "Pregnancies", Importance: 0.132},
				{Feature: "DiabetesPedigreeFunction", Importance: 0.099},
				{Feature: "Age", Importance: 0.066},
				{Feature: "Insulin", Importance: 0.049},
				{Feature: "BloodPressure", Importance: 0.033},
				{Feature: "SkinThickness", Importance: 0.016},
			},
		},
		LoadedAt: LoadedAt,
	}
}

// Forest returns a two-stump random forest artifact without metadata.
func Forest() *model.Artifact {
	return &model.Artifact{
		Classifier: &model.RandomForest{Trees: []model.Tree{
			{Nodes: []model.TreeNode{
				{Feature: features.Glucose, Threshold: 0.5, Left: 1, Right: 2},
				{Left: -1, Right: -1, Value: [2]float64{80, 20}},
				{Left: -1, Right: -1, Value: [2]float64{15, 85}},
			}},
			{Nodes: []model.TreeNode{
				{Feature: features.BMI, Threshold: 0.25, Left: 1, Right: 2},
				{Left: -1, Right: -1, Value: [2]float64{70, 30}},
				{Left: -1, Right: -1, Value: [2]float64{25, 75}},
			}},
		}},
		Scaler:       Scaler(),
		FeatureNames: append([]string(nil), features.Names[:]...),
		LoadedAt:     LoadedAt,
	}
}

// ScenarioA is a typical adult record using canonical names.
func ScenarioA() map[string]any {
	return map[string]any{
		"Pregnancies": 2.0, "Glucose": 120.0, "BloodPressure": 80.0, "SkinThickness": 25.0,
		"Insulin": 100.0, "BMI": 28.5, "DiabetesPedigreeFunction": 0.5, "Age": 35.0,
	}
}

// HighRisk is a record the logistic fixture scores as High.
func HighRisk() map[string]any {
	return map[string]any{"glucose": 200, "bmi": 40, "age": 60}
}
