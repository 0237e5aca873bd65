package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/grading"
	"github.com/markwise/markwise-server/internal/store"
)

// EventStream is the handler's view of the dispatcher's per-job event
// subscriptions.
type EventStream interface {
	SubscribeJob(jobID string) (<-chan *core.JobEvent, func(), error)
}

// Handler serves the grading pipeline's HTTP surface.
type Handler struct {
	service     *grading.Service
	store       store.Store
	events      EventStream
	signupBonus int64
}

func NewHandler(service *grading.Service, st store.Store, events EventStream, signupBonus int64) *Handler {
	return &Handler{service: service, store: st, events: events, signupBonus: signupBonus}
}

type submitRequest struct {
	EssayID   string `json:"essay_id"`
	EssayText string `json:"essay_text"`
	Brief     string `json:"brief"`
	Rubric    string `json:"rubric,omitempty"`
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Submit handles POST /v1/gradings.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest,
			core.NewValidationError("request body is not valid JSON", nil))
		return
	}

	job, err := h.service.Submit(r.Context(), &core.Submission{
		EssayID:   req.EssayID,
		UserID:    UserID(r.Context()),
		EssayText: req.EssayText,
		Brief:     req.Brief,
		Rubric:    req.Rubric,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: job.Status})
}

// GetJob handles GET /v1/gradings/{id}. Users can only read their own
// jobs.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if job.UserID != UserID(r.Context()) {
		WriteError(w, http.StatusNotFound, core.NewNotFoundError("Job", jobID))
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// StreamJobEvents handles GET /v1/gradings/{id}/events: a server-sent
// event stream of the job's lifecycle transitions. The current status is
// replayed first so a client connecting after a transition never waits
// on an event that already happened; the stream closes once the job is
// terminal.
func (h *Handler) StreamJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if job.UserID != UserID(r.Context()) {
		WriteError(w, http.StatusNotFound, core.NewNotFoundError("Job", jobID))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError,
			core.NewInternalError("response writer does not support streaming"))
		return
	}

	events, unsubscribe, err := h.events.SubscribeJob(jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, &core.JobEvent{JobID: job.ID, Status: job.Status, Timestamp: time.Now()})
	flusher.Flush()
	if core.IsTerminalStatus(job.Status) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, event)
			flusher.Flush()
			if core.IsTerminalStatus(event.Status) {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, event *core.JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// ListJobs handles GET /v1/gradings.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context(), UserID(r.Context()))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// Balance handles GET /v1/balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Balance(r.Context(), UserID(r.Context()))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, balance)
}

// ListFailures handles GET /admin/failures: the operator read path for
// diagnostic records. This detail is deliberately absent from every
// user-facing response.
func (h *Handler) ListFailures(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if jobID := r.URL.Query().Get("job_id"); jobID != "" {
		records, err := h.store.Failures().ListByJob(r.Context(), jobID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"failures": records})
		return
	}

	records, err := h.store.Failures().List(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"failures": records})
}

// ProvisionUser handles POST /admin/users/{id}/provision: creates the
// ledger row with the signup-bonus balance.
func (h *Handler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	balance, err := h.store.Ledger().Provision(r.Context(), userID, h.signupBonus)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, balance)
}
