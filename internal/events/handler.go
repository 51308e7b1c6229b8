package events

import (
	"encoding/json"
	"net/http"

	httperrors "github.com/jw6ventures/dispo/internal/http/errors"
)

// maxBodyBytes bounds POST /events bodies.
const maxBodyBytes = 1 << 20

type listResponse struct {
	Events []Event `json:"events"`
}

type replaceRequest struct {
	Events json.RawMessage `json:"events"`
}

// Handler exposes the service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List serves GET /events. It always answers 200.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, listResponse{Events: h.svc.ListEvents(r.Context())})
}

// Replace serves POST /events with body {"events": [...]}.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.BadRequestError(w, r, err, "request body must be a JSON object with an events field")
		return
	}

	summary, err := h.svc.ReplaceEvents(r.Context(), req.Events)
	switch {
	case err == nil:
		httperrors.WriteJSON(w, http.StatusOK, summary)
	case IsValidation(err):
		httperrors.BadRequestError(w, r, err, err.Error())
	default:
		httperrors.InternalError(w, r, err, ErrWriteFailed.Error())
	}
}
