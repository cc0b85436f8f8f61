package api

import (
	"net/http"
)

// ModelHandler serves artifact information and reloads.
type ModelHandler struct {
	deps ModelProvider
}

// NewModelHandler creates a new model handler.
func NewModelHandler(deps ModelProvider) *ModelHandler {
	return &ModelHandler{deps: deps}
}

// HandleGetModel handles GET /model requests.
func (h *ModelHandler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_model"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	info, err := h.deps.ModelInfo()
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleReload handles POST /model/reload requests. On failure the previous
// artifact keeps serving and the error is reported.
func (h *ModelHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	const op = "api.reload_model"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	info, err := h.deps.Reload(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
