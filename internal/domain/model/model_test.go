package model_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/diarisk/internal/domain/features"
	"github.com/okian/diarisk/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func unitScaler() model.Scaler {
	s := model.Scaler{}
	for i := range s.Std {
		s.Std[i] = 1
	}
	return s
}

func TestScaler(t *testing.T) {
	Convey("Given a scaler", t, func() {
		s := unitScaler()
		s.Mean[features.Glucose] = 100
		s.Std[features.Glucose] = 20

		Convey("Then Transform should standardise each feature", func() {
			out := s.Transform(features.Defaults)
			So(out[features.Glucose], ShouldEqual, float64(0))
			So(out[features.Age], ShouldEqual, float64(30))

			v := features.Defaults
			v[features.Glucose] = 140
			So(s.Transform(v)[features.Glucose], ShouldEqual, float64(2))
		})

		Convey("Then zero or non-finite std should be rejected", func() {
			So(s.Validate(), ShouldBeNil)
			s.Std[features.BMI] = 0
			So(errors.Is(s.Validate(), model.ErrInvalidModel), ShouldBeTrue)
			s.Std[features.BMI] = math.Inf(1)
			So(errors.Is(s.Validate(), model.ErrInvalidModel), ShouldBeTrue)
		})

		Convey("Then a NaN mean should be rejected", func() {
			s.Mean[features.Age] = math.NaN()
			So(errors.Is(s.Validate(), model.ErrInvalidModel), ShouldBeTrue)
		})
	})
}

func TestLogisticRegression(t *testing.T) {
	Convey("Given a logistic model with zero weights", t, func() {
		m := &model.LogisticRegression{}

		Convey("Then both classes should be equally likely and the tie goes to 0", func() {
			label, p := model.Predict(m, features.Vector{})
			So(p[0], ShouldEqual, 0.5)
			So(p[1], ShouldEqual, 0.5)
			So(label, ShouldEqual, 0)
		})
	})

	Convey("Given a logistic model weighted on glucose", t, func() {
		m := &model.LogisticRegression{Intercept: -1}
		m.Coefficients[features.Glucose] = 2

		Convey("When the scaled glucose is high", func() {
			x := features.Vector{}
			x[features.Glucose] = 3
			label, p := model.Predict(m, x)

			Convey("Then the positive class should win", func() {
				So(label, ShouldEqual, 1)
				So(p[1], ShouldAlmostEqual, 1/(1+math.Exp(-5)), 1e-12)
				So(p[0]+p[1], ShouldAlmostEqual, 1.0, 1e-12)
			})

			Convey("Then contributions should be coefficient times value", func() {
				c := m.Contributions(x)
				So(c[features.Glucose], ShouldEqual, float64(6))
				So(c[features.Age], ShouldEqual, float64(0))
			})
		})

		Convey("When the logit is extremely negative", func() {
			x := features.Vector{}
			x[features.Glucose] = -1e6
			_, p := model.Predict(m, x)
			So(p[1], ShouldBeGreaterThanOrEqualTo, float64(0))
			So(p[0], ShouldAlmostEqual, 1.0, 1e-12)
			So(math.IsNaN(p[1]), ShouldBeFalse)
		})

		Convey("Then a NaN coefficient should fail validation", func() {
			So(m.Validate(), ShouldBeNil)
			m.Coefficients[features.BMI] = math.NaN()
			So(errors.Is(m.Validate(), model.ErrInvalidModel), ShouldBeTrue)
		})
	})
}

func stump(feature int, threshold float64, left, right [2]float64) model.Tree {
	return model.Tree{Nodes: []model.TreeNode{
		{Feature: feature, Threshold: threshold, Left: 1, Right: 2},
		{Left: -1, Right: -1, Value: left},
		{Left: -1, Right: -1, Value: right},
	}}
}

func TestRandomForest(t *testing.T) {
	Convey("Given a forest of two stumps", t, func() {
		f := &model.RandomForest{Trees: []model.Tree{
			stump(features.Glucose, 0.5, [2]float64{9, 1}, [2]float64{2, 8}),
			stump(features.BMI, 0, [2]float64{30, 10}, [2]float64{0, 4}),
		}}
		So(f.Validate(), ShouldBeNil)

		Convey("When both features fall left, including a value on the threshold", func() {
			x := features.Vector{}
			x[features.Glucose] = 0.5
			label, p := model.Predict(f, x)

			Convey("Then leaf distributions should be normalised and averaged", func() {
				So(p[1], ShouldAlmostEqual, (0.1+0.25)/2, 1e-12)
				So(label, ShouldEqual, 0)
			})
		})

		Convey("When both features fall right", func() {
			x := features.Vector{}
			x[features.Glucose] = 2
			x[features.BMI] = 1
			label, p := model.Predict(f, x)
			So(p[1], ShouldAlmostEqual, 0.9, 1e-12)
			So(label, ShouldEqual, 1)
		})
	})

	Convey("Given malformed forests", t, func() {
		cases := []struct {
			name string
			f    *model.RandomForest
		}{
			{"no trees", &model.RandomForest{}},
			{"empty tree", &model.RandomForest{Trees: []model.Tree{{}}}},
			{"backward child", &model.RandomForest{Trees: []model.Tree{{Nodes: []model.TreeNode{
				{Feature: 0, Left: 0, Right: 1}, {Left: -1, Right: -1, Value: [2]float64{1, 1}},
			}}}}},
			{"child out of range", &model.RandomForest{Trees: []model.Tree{{Nodes: []model.TreeNode{
				{Feature: 0, Left: 1, Right: 5}, {Left: -1, Right: -1, Value: [2]float64{1, 1}},
			}}}}},
			{"bad feature", &model.RandomForest{Trees: []model.Tree{stump(features.Count, 0, [2]float64{1, 0}, [2]float64{0, 1})}}},
			{"empty leaf", &model.RandomForest{Trees: []model.Tree{stump(0, 0, [2]float64{0, 0}, [2]float64{0, 1})}}},
			{"one child", &model.RandomForest{Trees: []model.Tree{{Nodes: []model.TreeNode{
				{Feature: 0, Left: 1, Right: -1}, {Left: -1, Right: -1, Value: [2]float64{1, 1}},
			}}}}},
		}
		for _, tc := range cases {
			Convey("Then "+tc.name+" should be rejected", func() {
				So(errors.Is(tc.f.Validate(), model.ErrInvalidModel), ShouldBeTrue)
			})
		}
	})
}

func TestArtifact(t *testing.T) {
	Convey("Given a complete artifact", t, func() {
		a := &model.Artifact{
			Classifier:   &model.LogisticRegression{},
			Scaler:       unitScaler(),
			FeatureNames: features.Names[:],
		}

		Convey("Then it should validate", func() {
			So(a.Validate(), ShouldBeNil)
			So(a.ModelType(), ShouldEqual, model.TypeLogisticRegression)
		})

		Convey("Then metadata model type should take precedence", func() {
			a.Metadata = &model.Metadata{ModelType: "logistic_regression_v2"}
			So(a.ModelType(), ShouldEqual, "logistic_regression_v2")
		})

		Convey("Then reordered feature names should be rejected", func() {
			names := append([]string(nil), features.Names[:]...)
			names[2], names[3] = names[3], names[2]
			a.FeatureNames = names
			So(errors.Is(a.Validate(), model.ErrInvalidModel), ShouldBeTrue)
		})

		Convey("Then a missing classifier should be rejected", func() {
			a.Classifier = nil
			So(errors.Is(a.Validate(), model.ErrInvalidModel), ShouldBeTrue)
		})
	})

	Convey("Given a nil artifact", t, func() {
		var a *model.Artifact
		So(errors.Is(a.Validate(), model.ErrInvalidModel), ShouldBeTrue)
	})
}
