package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/sells-group/pricer/internal/model"
	"github.com/sells-group/pricer/internal/scenario"
	"github.com/sells-group/pricer/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler serves the API routes.
type Handler struct {
	engine  *scenario.Engine
	history store.Store
}

// NewHandler creates a Handler.
func NewHandler(engine *scenario.Engine, history store.Store) *Handler {
	return &Handler{engine: engine, history: history}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

type predictResponse struct {
	Success bool `json:"success"`
	*model.Response
}

type healthResponse struct {
	Status  string `json:"status"`
	Trained bool   `json:"trained"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Trained: h.engine.Ready()})
}

func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Catalog())
}

func (h *Handler) Band(w http.ResponseWriter, r *http.Request) {
	band, err := h.engine.Band(chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, band)
}

func (h *Handler) Bands(w http.ResponseWriter, r *http.Request) {
	bands, err := h.engine.Bands()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bands)
}

// Predict accepts a scenario as a JSON object or a form post.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Ready() {
		h.fail(w, model.ErrNotTrained)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	sc, err := decodeScenario(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	resp, err := h.engine.Handle(r.Context(), sc)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Success: true, Response: resp})
}

func decodeScenario(r *http.Request) (model.Scenario, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return model.Scenario{}, model.NewValidationError("body", "unreadable form")
		}
		return scenario.DecodeForm(r.PostForm)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return model.Scenario{}, model.NewValidationError("body", "unreadable form")
		}
		return scenario.DecodeForm(r.PostForm)
	default:
		var values map[string]any
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			return model.Scenario{}, model.NewValidationError("body", "must be a JSON object")
		}
		return scenario.Decode(values)
	}
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled", "")
		return
	}

	q := r.URL.Query()
	filter := store.EvaluationFilter{Product: q.Get("product")}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := cast.ToIntE(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid "+name, name)
			return
		}
		*dst = n
	}

	evs, err := h.history.ListEvaluations(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	if evs == nil {
		evs = []model.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled", "")
		return
	}
	ev, err := h.history.GetEvaluation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// fail maps domain errors onto HTTP status codes.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	if ve, ok := model.AsValidation(err); ok {
		writeError(w, http.StatusBadRequest, ve.Error(), ve.Field)
		return
	}
	switch {
	case errors.Is(err, model.ErrNotTrained):
		writeError(w, http.StatusServiceUnavailable, model.ErrNotTrained.Error(), "")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, store.ErrNotFound.Error(), "")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out", "")
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func writeError(w http.ResponseWriter, status int, msg, field string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg, Field: field})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}
