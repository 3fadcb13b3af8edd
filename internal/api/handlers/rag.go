package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/tenantrag/internal/rag"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

// Asker is the query side of the RAG pipeline.
type Asker interface {
	Ask(ctx context.Context, tenantID tenant.ID, question string) rag.Answer
	DeleteTenantData(ctx context.Context, tenantID tenant.ID) error
}

// ClientChecker validates client tokens presented by the public chat widget.
type ClientChecker interface {
	IsActive(ctx context.Context, id tenant.ID) (bool, error)
}

type RAGHandler struct {
	pipeline Asker
	clients  ClientChecker
	logger   *slog.Logger
}

func NewRAGHandler(p Asker, clients ClientChecker, logger *slog.Logger) *RAGHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGHandler{pipeline: p, clients: clients, logger: logger}
}

type ChatRequest struct {
	Query string `json:"query"`
	// ClientToken is only read by the widget endpoint.
	ClientToken string `json:"client_token,omitempty"`
}

// Chat answers for the authenticated tenant.
func (h *RAGHandler) Chat(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenant.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.answer(w, r.Context(), tid, req.Query)
}

// WidgetChat answers for the tenant named by client_token in the body, as
// embedded chat widgets carry no user session.
func (h *RAGHandler) WidgetChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tid, err := tenant.Parse(req.ClientToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid client token")
		return
	}
	if h.clients == nil {
		writeError(w, http.StatusNotFound, "widget chat is disabled")
		return
	}
	active, err := h.clients.IsActive(r.Context(), tid)
	if err != nil {
		h.logger.Error("client lookup failed", "tenant_id", tid, "error", err)
		writeError(w, http.StatusServiceUnavailable, rag.InternalErrorMessage)
		return
	}
	if !active {
		writeError(w, http.StatusUnauthorized, "client not found or inactive")
		return
	}
	h.answer(w, r.Context(), tid, req.Query)
}

func (h *RAGHandler) answer(w http.ResponseWriter, ctx context.Context, tid tenant.ID, query string) {
	ans := h.pipeline.Ask(ctx, tid, query)
	switch ans.Outcome {
	case rag.OutcomeTransientFailure:
		writeError(w, http.StatusServiceUnavailable, ans.Text)
	case rag.OutcomeContentFailure:
		writeError(w, http.StatusBadRequest, ans.Text)
	default:
		writeJSON(w, http.StatusOK, ans)
	}
}

// DeleteKnowledgeBase removes every vector the tenant owns.
func (h *RAGHandler) DeleteKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenant.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := h.pipeline.DeleteTenantData(r.Context(), tid); err != nil {
		h.logger.Error("delete knowledge base failed", "tenant_id", tid, "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to delete the knowledge base, please try again later")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "tenant_id": tid.String()})
}
