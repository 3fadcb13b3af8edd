package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantrag/internal/auth"
	"github.com/nikhilbhutani/tenantrag/internal/config"
	"github.com/nikhilbhutani/tenantrag/internal/document"
	"github.com/nikhilbhutani/tenantrag/internal/rag"
	"github.com/nikhilbhutani/tenantrag/internal/storage"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

type stubQueue struct{}

func (stubQueue) EnqueueIngest(context.Context, int64) (string, error) { return "job", nil }

type stubPipeline struct{ seen tenant.ID }

func (p *stubPipeline) Ask(_ context.Context, tid tenant.ID, _ string) rag.Answer {
	p.seen = tid
	return rag.Answer{Text: "answer", Outcome: rag.OutcomeSuccess}
}

func (p *stubPipeline) DeleteTenantData(context.Context, tenant.ID) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *stubPipeline, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = "router-secret"
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	p := &stubPipeline{}

	h := NewRouter(Deps{
		Config:   cfg,
		Docs:     document.NewMemoryStore(),
		Files:    files,
		Queue:    stubQueue{},
		Pipeline: p,
	}).Setup()
	return h, p, cfg
}

func TestRouter_ChatRequiresToken(t *testing.T) {
	h, p, cfg := newTestRouter(t)
	id := tenant.New()
	token, err := auth.IssueToken(cfg.Auth.JWTSecret, id, "owner@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"query":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"query":"hi"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, p.seen)
}

func TestRouter_HealthAndWidget(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := `{"query":"hi","client_token":"` + tenant.New().String() + `"}`
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/widget/chat", strings.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
