package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/diarisk/internal/adapters/http/api"
	"github.com/okian/diarisk/internal/adapters/repository"
	service "github.com/okian/diarisk/internal/app"
	"github.com/okian/diarisk/internal/domain/prediction"
	"github.com/okian/diarisk/internal/domain/risk"
	"github.com/okian/diarisk/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDeps struct {
	predictErr error
	predictRes *prediction.Result
	gotRaw     map[string]any

	batchItems []service.BatchItem
	batchErr   error
	gotBatch   []map[string]any

	info      service.ModelInfo
	infoErr   error
	reloadErr error
	reloads   int

	history    []repository.Record
	historyErr error
	gotLimit   int

	stats map[string]interface{}
}

func (m *mockDeps) Predict(_ context.Context, raw map[string]any) (prediction.Result, error) {
	m.gotRaw = raw
	if m.predictErr != nil {
		return prediction.Result{}, m.predictErr
	}
	if m.predictRes != nil {
		return *m.predictRes, nil
	}
	return prediction.Result{Prediction: 0, Probability: 0.2, RiskLevel: risk.Low, Message: risk.Message(risk.Low)}, nil
}

func (m *mockDeps) PredictBatch(_ context.Context, records []map[string]any) ([]service.BatchItem, error) {
	m.gotBatch = records
	return m.batchItems, m.batchErr
}

func (m *mockDeps) ModelInfo() (service.ModelInfo, error) { return m.info, m.infoErr }

func (m *mockDeps) Reload(context.Context) (service.ModelInfo, error) {
	m.reloads++
	if m.reloadErr != nil {
		return service.ModelInfo{}, m.reloadErr
	}
	return m.info, nil
}

func (m *mockDeps) History(_ context.Context, limit int) ([]repository.Record, error) {
	m.gotLimit = limit
	return m.history, m.historyErr
}

func (m *mockDeps) GetStats() map[string]interface{} { return m.stats }

func serve(deps *mockDeps, method, path, body string, opts ...api.Option) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body
}

func TestServer_Register(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		So(func() { api.NewServer(&mockDeps{}).Register(context.Background(), nil) }, ShouldPanic)
	})

	Convey("Given a registered API server", t, func() {
		deps := &mockDeps{stats: map[string]interface{}{"started": true}}

		Convey("Then health endpoint should serve Prometheus metrics", func() {
			w := serve(deps, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "diarisk_")
		})

		Convey("Then stats endpoint should return the provider stats", func() {
			w := serve(deps, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then wrong methods should return not found", func() {
			So(serve(deps, http.MethodGet, "/predict", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodGet, "/predict/batch", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodGet, "/model/reload", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodPost, "/model", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodPost, "/history", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPredictHandler_HandlePredict(t *testing.T) {
	Convey("Given a predict handler", t, func() {
		deps := &mockDeps{}

		Convey("When handling a valid POST request", func() {
			w := serve(deps, http.MethodPost, "/predict", `{"glucose": 120, "BMI": "28.5"}`)

			Convey("Then it should return the prediction", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res prediction.Result
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.RiskLevel, ShouldEqual, risk.Low)
			})

			Convey("Then numbers should reach the service as json.Number", func() {
				So(deps.gotRaw["glucose"], ShouldEqual, json.Number("120"))
				So(deps.gotRaw["BMI"], ShouldEqual, "28.5")
			})
		})

		Convey("When the body is empty", func() {
			w := serve(deps, http.MethodPost, "/predict", "  ")

			Convey("Then it should report missing input", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeError(w)
				So(body["code"], ShouldEqual, "missing_input")
				So(body["message"], ShouldEqual, "No input data provided")
			})
		})

		Convey("When the body is null", func() {
			w := serve(deps, http.MethodPost, "/predict", "null")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "missing_input")
		})

		Convey("When the body is not valid JSON", func() {
			w := serve(deps, http.MethodPost, "/predict", `{"glucose": `)

			Convey("Then it should report invalid JSON", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeError(w)
				So(body["code"], ShouldEqual, "invalid_json")
				So(body["message"], ShouldStartWith, "Invalid JSON format: ")
			})
		})

		Convey("When the body is a JSON array", func() {
			w := serve(deps, http.MethodPost, "/predict", `[1, 2]`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "invalid_json")
		})

		Convey("When the body exceeds the limit", func() {
			w := serve(deps, http.MethodPost, "/predict", `{"glucose": 120, "bmi": 30}`, api.WithMaxBodyBytes(8))
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			So(decodeError(w)["code"], ShouldEqual, "body_too_large")
		})

		Convey("When the result cannot be encoded", func() {
			deps.predictRes = &prediction.Result{RiskLevel: risk.Low, Contributions: map[string]float64{"DiabetesPedigreeFunction": math.Inf(1)}}
			w := serve(deps, http.MethodPost, "/predict", `{}`)

			Convey("Then it should answer with an internal error body", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				body := decodeError(w)
				So(body["code"], ShouldEqual, "internal_error")
				So(body["message"], ShouldContainSubstring, "unsupported value")
			})
		})

		Convey("When the service returns domain errors", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{types.InvalidFieldType("Glucose", "high"), http.StatusBadRequest, "invalid_field_type"},
				{types.RangeViolation("Glucose", 301, 0, 300, "mg/dL"), http.StatusBadRequest, "range_violation"},
				{types.MissingArtifact("model artifact not loaded"), http.StatusServiceUnavailable, "model_unavailable"},
				{types.CorruptArtifact("bad scaler", errors.New("std is zero")), http.StatusServiceUnavailable, "model_unavailable"},
				{types.Backpressure("busy"), http.StatusTooManyRequests, "backpressure"},
				{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
			}
			for _, tc := range cases {
				deps.predictErr = tc.err
				w := serve(deps, http.MethodPost, "/predict", `{}`)
				So(w.Code, ShouldEqual, tc.status)
				body := decodeError(w)
				So(body["code"], ShouldEqual, tc.code)
				So(body["message"], ShouldEqual, tc.err.Error())
			}
		})
	})
}

func TestPredictHandler_HandlePredictBatch(t *testing.T) {
	Convey("Given a batch predict handler", t, func() {
		ok := prediction.Result{RiskLevel: risk.High, Probability: 0.9}
		deps := &mockDeps{batchItems: []service.BatchItem{
			{Index: 0, Result: &ok},
			{Index: 1, Err: types.InvalidFieldType("BMI", true)},
		}}

		Convey("When handling an object body", func() {
			w := serve(deps, http.MethodPost, "/predict/batch", `{"records": [{"glucose": 200}, {"bmi": true}]}`)

			Convey("Then it should report per-item outcomes in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotBatch, ShouldHaveLength, 2)

				var resp struct {
					BatchSize int `json:"batch_size"`
					Succeeded int `json:"succeeded"`
					Failed    int `json:"failed"`
					Results   []struct {
						Index  int                `json:"index"`
						Result *prediction.Result `json:"result"`
						Error  map[string]string  `json:"error"`
					} `json:"results"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.BatchSize, ShouldEqual, 2)
				So(resp.Succeeded, ShouldEqual, 1)
				So(resp.Failed, ShouldEqual, 1)
				So(resp.Results[0].Result.RiskLevel, ShouldEqual, risk.High)
				So(resp.Results[1].Index, ShouldEqual, 1)
				So(resp.Results[1].Error["code"], ShouldEqual, "invalid_field_type")
			})
		})

		Convey("When handling a bare array body", func() {
			w := serve(deps, http.MethodPost, "/predict/batch", `[{"glucose": 200}, {}]`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotBatch, ShouldHaveLength, 2)
		})

		Convey("When the whole batch is rejected", func() {
			deps.batchErr = types.Backpressure("batch of 5000 records exceeds limit of 1000")
			w := serve(deps, http.MethodPost, "/predict/batch", `{"records": [{}]}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decodeError(w)["code"], ShouldEqual, "backpressure")
		})

		Convey("When a record is not an object", func() {
			w := serve(deps, http.MethodPost, "/predict/batch", `{"records": [1]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "invalid_json")
		})
	})
}

func TestModelHandler(t *testing.T) {
	Convey("Given a model handler", t, func() {
		loaded := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		deps := &mockDeps{info: service.ModelInfo{ModelType: "logistic_regression", LoadedAt: loaded, HasMetadata: true}}

		Convey("When requesting model info", func() {
			w := serve(deps, http.MethodGet, "/model", "")

			Convey("Then it should return the serving artifact", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var info service.ModelInfo
				So(json.Unmarshal(w.Body.Bytes(), &info), ShouldBeNil)
				So(info.ModelType, ShouldEqual, "logistic_regression")
				So(info.LoadedAt.Equal(loaded), ShouldBeTrue)
			})
		})

		Convey("When no artifact is loaded", func() {
			deps.infoErr = types.MissingArtifact("model artifact not loaded")
			w := serve(deps, http.MethodGet, "/model", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When reloading succeeds", func() {
			w := serve(deps, http.MethodPost, "/model/reload", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.reloads, ShouldEqual, 1)
		})

		Convey("When reloading fails", func() {
			deps.reloadErr = types.CorruptArtifact("decode scaler.json", errors.New("unexpected end of JSON input"))
			w := serve(deps, http.MethodPost, "/model/reload", "")

			Convey("Then it should report the artifact as unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decodeError(w)["message"], ShouldContainSubstring, "Corrupt model artifact")
			})
		})
	})
}

func TestHistoryHandler_HandleGetHistory(t *testing.T) {
	Convey("Given a history handler", t, func() {
		deps := &mockDeps{history: []repository.Record{{ID: "a", RiskLevel: "Low"}, {ID: "b", RiskLevel: "High"}}}

		Convey("When no limit is specified", func() {
			w := serve(deps, http.MethodGet, "/history", "")

			Convey("Then the default limit should be used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotLimit, ShouldEqual, 50)
				var recs []repository.Record
				So(json.Unmarshal(w.Body.Bytes(), &recs), ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
			})
		})

		Convey("When a small limit is configured", func() {
			serve(deps, http.MethodGet, "/history", "", api.WithMaxHistoryLimit(10))
			So(deps.gotLimit, ShouldEqual, 10)
		})

		Convey("When an explicit limit is given", func() {
			w := serve(deps, http.MethodGet, "/history?limit=5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotLimit, ShouldEqual, 5)
		})

		Convey("When the limit is invalid", func() {
			for _, q := range []string{"0", "-3", "abc"} {
				w := serve(deps, http.MethodGet, "/history?limit="+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			}
		})

		Convey("When the limit exceeds the maximum", func() {
			w := serve(deps, http.MethodGet, "/history?limit=501", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "limit_exceeded")
		})

		Convey("When the store fails", func() {
			deps.historyErr = repository.ErrClosed
			w := serve(deps, http.MethodGet, "/history", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Given API error helpers", t, func() {
		cause := errors.New("limit must be positive")

		Convey("Then WrapKind should match both kind and cause", func() {
			err := api.WrapKind("api.get_history", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "bad request: limit must be positive")
		})

		Convey("Then NewKind should carry only the kind", func() {
			So(api.NewKind("op", api.ErrBadRequest).Error(), ShouldEqual, "bad request")
		})

		Convey("Then Wrap should keep the cause message and pass nil through", func() {
			So(api.Wrap("op", cause).Error(), ShouldEqual, "limit must be positive")
			So(api.Wrap("op", nil), ShouldBeNil)
		})

		Convey("Then the innermost operation should be recoverable", func() {
			inner := api.WrapKind("api.read_body", api.ErrBadRequest, cause)
			So(api.OpOf(api.Wrap("api.predict", inner)), ShouldEqual, "api.read_body")
			So(api.OpOf(api.Wrap("api.predict", cause)), ShouldEqual, "api.predict")
			So(api.OpOf(cause), ShouldBeEmpty)
		})
	})
}
