package evaluation

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ricesearch/review-topics/internal/labels"
	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// maxRequestBytes bounds the size of an evaluation request body.
const maxRequestBytes = 32 << 20

// Handler provides HTTP handlers for evaluation.
type Handler struct {
	evaluator *Evaluator
}

// NewHandler creates a new evaluation handler.
func NewHandler(e *Evaluator) *Handler {
	return &Handler{evaluator: e}
}

// RegisterRoutes registers evaluation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/evaluation/evaluate", h.handleEvaluate)
}

// EvaluateRequest carries both sources inline, in their export formats.
type EvaluateRequest struct {
	Annotations []json.RawMessage `json:"annotations"`
	Predictions json.RawMessage   `json:"predictions"`
	Model       string            `json:"model,omitempty"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		errors.WriteError(w, errors.Wrap(errors.CodeInputFormat, "invalid request body", err))
		return
	}
	if len(req.Predictions) == 0 {
		errors.WriteError(w, errors.ValidationError("predictions are required"))
		return
	}

	ann, err := labels.BuildLabelSets(req.Annotations)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	pred, err := labels.ReadPredictions(bytes.NewReader(req.Predictions))
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	result, err := h.evaluator.Evaluate(r.Context(), Input{
		Annotations: ann,
		Predictions: pred,
		Model:       req.Model,
	})
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
