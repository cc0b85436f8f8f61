package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/diarisk/internal/adapters/artifact"
	"github.com/okian/diarisk/internal/adapters/repository"
	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/model/modeltest"
	"github.com/okian/diarisk/internal/domain/prediction"
	"github.com/okian/diarisk/internal/domain/risk"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func modelDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "models")
	require.NoError(t, artifact.Write(context.Background(), dir, modeltest.Logistic()))
	return dir
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "diarisk", cmd.Use)

	for _, name := range []string{"predict", "batch", "train"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	for _, flag := range []string{"model-dir", "history", "log-level", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitArtifactError, GetExitCode(NewExitError(ExitArtifactError, "missing")))
	assert.Equal(t, "train: "+assert.AnError.Error(), WrapExitError(ExitFailure, "train", assert.AnError).Error())
}

func TestWriteResult_Unencodable(t *testing.T) {
	var out bytes.Buffer
	err := writeResult(&out, map[string]float64{"x": math.Inf(1)})
	require.Error(t, err)
	assert.Empty(t, out.String())

	exitErr := fail(&out, err)
	assert.Equal(t, ExitFailure, GetExitCode(exitErr))
	assert.True(t, strings.HasPrefix(out.String(), `{"error": "encode output: json: unsupported value: +Inf"}`))
}

func TestPredict_Success(t *testing.T) {
	dir := modelDir(t)
	r := execute(t, "", "predict", "--model-dir", dir,
		`{"Pregnancies": 2, "Glucose": 120, "BloodPressure": 80, "SkinThickness": 25, "Insulin": 100, "BMI": 28.5, "DiabetesPedigreeFunction": 0.5, "Age": 35}`)
	require.NoError(t, r.err)

	var res prediction.Result
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &res))
	assert.Equal(t, 0, res.Prediction)
	assert.Equal(t, risk.Low, res.RiskLevel)
	assert.InDelta(t, 1, res.Probabilities.Diabetes+res.Probabilities.NoDiabetes, 1e-12)
	assert.Equal(t, float64(28.5), res.InputFeatures["BMI"])
	assert.Contains(t, r.stdout, "\n  \"prediction\": 0")
}

func TestPredict_Errors(t *testing.T) {
	dir := modelDir(t)
	cases := []struct {
		name string
		args []string
	}{
		{"predict_no_input", []string{"predict", "--model-dir", dir}},
		{"predict_invalid_json", []string{"predict", "--model-dir", dir, "{bad json"}},
		{"predict_range_violation", []string{"predict", "--model-dir", dir, `{"glucose": 301}`}},
		{"predict_invalid_field_type", []string{"predict", "--model-dir", dir, `{"glucose": "high"}`}},
		{"predict_unscorable", []string{"predict", "--model-dir", dir, `{"DiabetesPedigreeFunction": 1e308}`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := execute(t, "", tc.args...)
			require.Error(t, r.err)
			assert.Equal(t, ExitFailure, GetExitCode(r.err))
			golden(t).Assert(t, tc.name, []byte(r.stdout))
		})
	}
}

func TestPredict_MissingArtifact(t *testing.T) {
	r := execute(t, "", "predict", "--model-dir", t.TempDir(), `{"glucose": 120}`)
	require.Error(t, r.err)
	assert.Equal(t, ExitArtifactError, GetExitCode(r.err))

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &body))
	assert.True(t, strings.HasPrefix(body["error"], "Missing model artifact"), body["error"])
}

func TestPredict_History(t *testing.T) {
	dir := modelDir(t)
	db := filepath.Join(t.TempDir(), "history.db")

	r := execute(t, "", "predict", "--model-dir", dir, "--history", db, `{"glucose": 200, "bmi": 40, "age": 60}`)
	require.NoError(t, r.err)

	store, err := repository.OpenSQLite(db)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	recs, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, repository.SourceCLI, recs[0].Source)
	assert.Equal(t, "High", recs[0].RiskLevel)
	assert.Equal(t, model.TypeLogisticRegression, recs[0].ModelType)
}

func TestBatch(t *testing.T) {
	dir := modelDir(t)
	input := strings.Join([]string{
		`{"glucose": 85}`,
		``,
		`{bad json`,
		`{"glucose": 200, "bmi": 40, "age": 60}`,
		`{"age": 121}`,
	}, "\n")

	r := execute(t, input, "batch", "--model-dir", dir, "--workers", "2")
	require.Error(t, r.err)
	assert.Equal(t, ExitFailure, GetExitCode(r.err))
	assert.Contains(t, r.err.Error(), "2 of 4 records failed")

	lines := strings.Split(strings.TrimRight(r.stdout, "\n"), "\n")
	require.Len(t, lines, 4)

	var first, third prediction.Result
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, float64(85), first.InputFeatures["Glucose"])
	assert.True(t, strings.HasPrefix(lines[1], `{"error": "Invalid JSON format: `), lines[1])
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &third))
	assert.Equal(t, risk.High, third.RiskLevel)
	assert.Contains(t, lines[3], "Range violation: Age")
}

func TestBatch_FromFile(t *testing.T) {
	dir := modelDir(t)
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n{\"bmi\": 31}\n"), 0o600))

	r := execute(t, "", "batch", "--model-dir", dir, path)
	require.NoError(t, r.err)
	assert.Len(t, strings.Split(strings.TrimRight(r.stdout, "\n"), "\n"), 2)
}

func TestBatch_MissingArtifact(t *testing.T) {
	r := execute(t, "{}\n", "batch", "--model-dir", t.TempDir())
	require.Error(t, r.err)
	assert.Equal(t, ExitArtifactError, GetExitCode(r.err))
}

func TestTrain(t *testing.T) {
	out := filepath.Join(t.TempDir(), "trained")
	csvPath := filepath.Join(t.TempDir(), "dataset.csv")

	r := execute(t, "", "train", "--out", out, "--samples", "300", "--epochs", "100", "--seed", "7", "--dataset", csvPath)
	require.NoError(t, r.err)

	var rep trainReport
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &rep))
	assert.Equal(t, out, rep.Dir)
	assert.Equal(t, 300, rep.Samples)
	assert.Equal(t, 300, rep.Train+rep.Test)

	a, err := artifact.Load(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, model.TypeLogisticRegression, a.ModelType())

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 301, strings.Count(string(data), "\n"))

	// The freshly trained directory serves predictions.
	p := execute(t, "", "predict", "--model-dir", out, `{"glucose": 150}`)
	require.NoError(t, p.err)
}

func TestTrain_InvalidConfig(t *testing.T) {
	r := execute(t, "", "train", "--out", t.TempDir(), "--samples", "3")
	require.Error(t, r.err)
	assert.Equal(t, ExitFailure, GetExitCode(r.err))
}
