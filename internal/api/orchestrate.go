package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/identity"
	"github.com/ashureev/lanne/internal/orchestrator"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// ndjsonContentType is the media type of the streaming endpoint.
const ndjsonContentType = "application/x-ndjson"

// decodeQuery reads and validates the request body. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handler) decodeQuery(w http.ResponseWriter, r *http.Request) (domain.Query, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var q domain.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return q, false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return q, false
	}
	q = withIdentity(r, q)
	if err := q.Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return q, false
	}
	return q, true
}

// withIdentity fills ids missing from the body with the identity headers.
func withIdentity(r *http.Request, q domain.Query) domain.Query {
	if q.UserID == "" {
		q.UserID = identity.UserIDFromContext(r.Context())
	}
	if q.SessionID == "" {
		q.SessionID = identity.SessionIDFromContext(r.Context())
	}
	return q
}

// HandleOrchestrate handles POST /internal/orchestrate: one JSON event per line,
// flushed as soon as it is produced.
func (h *Handler) HandleOrchestrate(w http.ResponseWriter, r *http.Request) {
	q, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	ctx := orchestrator.WithRequestID(r.Context(), reqID)
	h.logger.Info("Orchestrate request",
		"request_id", reqID, "user_id", q.UserID, "session_id", q.SessionID, "query_length", len(q.Text))

	w.Header().Set("Content-Type", ndjsonContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for ev := range h.pipeline.Stream(ctx, q) {
		if err := enc.Encode(ev); err != nil {
			h.logger.Warn("failed to write stream event", "request_id", reqID, "type", ev.Type, "error", err)
			return
		}
		flusher.Flush()
	}
}

// HandleOrchestrateSync handles POST /internal/orchestrate-sync.
func (h *Handler) HandleOrchestrateSync(w http.ResponseWriter, r *http.Request) {
	q, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	resp, err := h.pipeline.Process(orchestrator.WithRequestID(r.Context(), reqID), q)
	if err != nil {
		if r.Context().Err() != nil {
			h.logger.Info("Client disconnected before completion", "request_id", reqID)
			return
		}
		h.logger.Error("Orchestration failed", "request_id", reqID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, resp)
}

type planView struct {
	Query          string                      `json:"query"`
	Classification domain.IntentClassification `json:"classification"`
	Plan           domain.ExecutionPlan        `json:"plan"`
}

// HandleDebugPlan handles GET /debug/plan?query=: classification and plan
// without execution.
func (h *Handler) HandleDebugPlan(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("query")
	if err := (domain.Query{Text: text}).Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	reqID := chiMiddleware.GetReqID(r.Context())
	cls, plan := h.pipeline.Plan(orchestrator.WithRequestID(r.Context(), reqID), text)
	JSON(w, http.StatusOK, planView{Query: text, Classification: cls, Plan: plan})
}
