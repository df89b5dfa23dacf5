package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/identity"
	"github.com/ashureev/lanne/internal/store"
)

type exchangeView struct {
	ID                  string               `json:"id"`
	RequestID           string               `json:"requestId"`
	UserID              string               `json:"userId,omitempty"`
	SessionID           string               `json:"sessionId,omitempty"`
	Query               string               `json:"query"`
	Intent              domain.Intent        `json:"intent"`
	Confidence          float64              `json:"confidence"`
	Plan                domain.ExecutionPlan `json:"plan"`
	Sources             []string             `json:"sources"`
	Response            string               `json:"response"`
	KnowledgeSimilarity float64              `json:"knowledgeSimilarity"`
	LatencyMs           int64                `json:"latencyMs"`
	CreatedAt           time.Time            `json:"createdAt"`
}

func newExchangeView(ex domain.Exchange) exchangeView {
	sources := ex.Sources
	if sources == nil {
		sources = []string{}
	}
	return exchangeView{
		ID:                  ex.ID,
		RequestID:           ex.RequestID,
		UserID:              ex.UserID,
		SessionID:           ex.SessionID,
		Query:               ex.Query,
		Intent:              ex.Intent,
		Confidence:          ex.Confidence,
		Plan:                ex.Plan,
		Sources:             sources,
		Response:            ex.Response,
		KnowledgeSimilarity: ex.KnowledgeSimilarity,
		LatencyMs:           ex.Latency.Milliseconds(),
		CreatedAt:           ex.CreatedAt,
	}
}

// HandleExchanges handles GET /api/exchanges?limit=&session_id=.
// The caller's user id header scopes the listing when present.
func (h *Handler) HandleExchanges(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		Error(w, http.StatusServiceUnavailable, "exchange history is disabled")
		return
	}

	filter := store.ExchangeFilter{
		UserID:    identity.UserIDFromContext(r.Context()),
		SessionID: identity.Sanitize(r.URL.Query().Get("session_id")),
		Limit:     store.DefaultListLimit,
	}
	if filter.SessionID == "" {
		filter.SessionID = identity.SessionIDFromContext(r.Context())
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > store.MaxListLimit {
			Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		filter.Limit = n
	}

	exchanges, err := h.history.ListExchanges(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list exchanges", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}

	views := make([]exchangeView, 0, len(exchanges))
	for _, ex := range exchanges {
		views = append(views, newExchangeView(ex))
	}
	JSON(w, http.StatusOK, map[string]any{"exchanges": views})
}
