package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/diarisk/internal/domain/prediction"
	"github.com/okian/diarisk/internal/domain/types"
)

// PredictHandler handles single and batch prediction requests.
type PredictHandler struct {
	predictor    Predictor
	batch        BatchPredictor
	maxBodyBytes int64
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(p Predictor, b BatchPredictor, maxBodyBytes int64) *PredictHandler {
	return &PredictHandler{predictor: p, batch: b, maxBodyBytes: maxBodyBytes}
}

// batchRequest is the POST /predict/batch body. A bare JSON array is also accepted.
type batchRequest struct {
	Records []map[string]any `json:"records"`
}

type batchItemResponse struct {
	Index  int                `json:"index"`
	Result *prediction.Result `json:"result,omitempty"`
	Error  *errorResponse     `json:"error,omitempty"`
}

type batchResponse struct {
	BatchSize int                 `json:"batch_size"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Results   []batchItemResponse `json:"results"`
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	var raw map[string]any
	if err := decode(body, &raw); err != nil {
		writeFailure(w, op, err)
		return
	}
	if raw == nil {
		writeFailure(w, op, types.MissingInput())
		return
	}
	res, err := h.predictor.Predict(r.Context(), raw)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePredictBatch handles POST /predict/batch requests.
func (h *PredictHandler) HandlePredictBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict_batch"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	var req batchRequest
	if bytes.HasPrefix(body, []byte("[")) {
		err = decode(body, &req.Records)
	} else {
		err = decode(body, &req)
	}
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	items, err := h.batch.PredictBatch(r.Context(), req.Records)
	if err != nil {
		writeFailure(w, op, err)
		return
	}

	resp := batchResponse{BatchSize: len(items), Results: make([]batchItemResponse, len(items))}
	for i, it := range items {
		resp.Results[i].Index = it.Index
		if it.Err != nil {
			_, code := classify(it.Err)
			resp.Results[i].Error = &errorResponse{Code: code, Message: it.Err.Error()}
			resp.Failed++
			continue
		}
		resp.Results[i].Result = it.Result
		resp.Succeeded++
	}
	writeJSON(w, http.StatusOK, resp)
}

// readBody returns the trimmed request body, or MissingInput when it is empty.
func (h *PredictHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		return nil, WrapKind("api.read_body", ErrBadRequest, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, types.MissingInput()
	}
	return body, nil
}

// decode parses body into v keeping numbers as json.Number.
func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return types.InvalidJSON(err)
	}
	if dec.More() {
		return types.InvalidJSON(errors.New("unexpected data after JSON value"))
	}
	return nil
}
