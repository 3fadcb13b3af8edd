package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantrag/internal/document"
	"github.com/nikhilbhutani/tenantrag/internal/models"
	"github.com/nikhilbhutani/tenantrag/internal/rag"
	"github.com/nikhilbhutani/tenantrag/internal/storage"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

type fakeQueue struct {
	ids []int64
	err error
}

func (q *fakeQueue) EnqueueIngest(_ context.Context, id int64) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.ids = append(q.ids, id)
	return "job-1", nil
}

type fakeAsker struct {
	answer    rag.Answer
	deleteErr error
	asked     []tenant.ID
	deleted   []tenant.ID
}

func (a *fakeAsker) Ask(_ context.Context, tid tenant.ID, _ string) rag.Answer {
	a.asked = append(a.asked, tid)
	return a.answer
}

func (a *fakeAsker) DeleteTenantData(_ context.Context, tid tenant.ID) error {
	a.deleted = append(a.deleted, tid)
	return a.deleteErr
}

type fakeClients map[tenant.ID]bool

func (c fakeClients) IsActive(_ context.Context, id tenant.ID) (bool, error) {
	return c[id], nil
}

type env struct {
	docs   *document.MemoryStore
	files  *storage.LocalStorage
	queue  *fakeQueue
	asker  *fakeAsker
	tenant tenant.ID
	router chi.Router
}

func newEnv(t *testing.T) *env {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	e := &env{
		docs:   document.NewMemoryStore(),
		files:  files,
		queue:  &fakeQueue{},
		asker:  &fakeAsker{answer: rag.Answer{Text: "fine", Outcome: rag.OutcomeSuccess}},
		tenant: tenant.New(),
	}

	docH := NewDocumentHandler(e.docs, e.files, e.queue, 1<<20, nil)
	ragH := NewRAGHandler(e.asker, fakeClients{e.tenant: true}, nil)

	r := chi.NewRouter()
	r.Post("/widget/chat", ragH.WidgetChat)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if id, err := tenant.Parse(req.Header.Get("X-Test-Tenant")); err == nil {
					req = req.WithContext(tenant.WithID(req.Context(), id))
				}
				next.ServeHTTP(w, req)
			})
		})
		r.Post("/documents", docH.Upload)
		r.Get("/documents", docH.List)
		r.Get("/documents/{id}", docH.Get)
		r.Get("/documents/{id}/download", docH.Download)
		r.Post("/chat", ragH.Chat)
		r.Delete("/knowledge-base", ragH.DeleteKnowledgeBase)
	})
	e.router = r
	return e
}

func (e *env) do(t *testing.T, req *http.Request, as tenant.ID) *httptest.ResponseRecorder {
	t.Helper()
	if !as.IsZero() {
		req.Header.Set("X-Test-Tenant", as.String())
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

func TestUpload_QueuesPendingDocument(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, uploadRequest(t, "Handbook.PDF", pdfBytes), e.tenant)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "Handbook.PDF", resp.Filename)
	assert.Equal(t, e.tenant, resp.TenantID)
	assert.Equal(t, models.DocStatusPending, resp.Status)
	assert.Equal(t, []int64{resp.DocumentID}, e.queue.ids)

	doc, err := e.docs.GetByID(context.Background(), resp.DocumentID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.FilePath, e.tenant.String()+"/"))

	rc, err := e.files.Open(context.Background(), doc.FilePath)
	require.NoError(t, err)
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, stored)
}

func TestUpload_RollsBackWhenQueueIsDown(t *testing.T) {
	e := newEnv(t)
	e.queue.err = errors.New("dial tcp: connection refused")

	rec := e.do(t, uploadRequest(t, "handbook.pdf", pdfBytes), e.tenant)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "queue is unavailable")

	docs, err := e.docs.ListByTenant(context.Background(), e.tenant)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = e.docs.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		status   int
	}{
		{"wrong extension", "notes.txt", pdfBytes, http.StatusBadRequest},
		{"not a pdf", "fake.pdf", []byte("hello world"), http.StatusBadRequest},
		{"too large", "big.pdf", append([]byte("%PDF-"), make([]byte, 1<<20)...), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			rec := e.do(t, uploadRequest(t, tt.filename, tt.content), e.tenant)
			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, e.queue.ids)
		})
	}
}

func TestUpload_RequiresTenant(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, uploadRequest(t, "handbook.pdf", pdfBytes), tenant.ID{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDocuments_AreTenantScoped(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, uploadRequest(t, "handbook.pdf", pdfBytes), e.tenant)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var up UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	path := "/documents/" + strconv.FormatInt(up.DocumentID, 10)

	rec = e.do(t, httptest.NewRequest(http.MethodGet, path, nil), e.tenant)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, models.DocStatusPending, doc.Status)
	assert.NotContains(t, rec.Body.String(), "file_path")

	rec = e.do(t, httptest.NewRequest(http.MethodGet, path+"/download", nil), e.tenant)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pdfBytes, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "handbook.pdf")

	other := tenant.New()
	rec = e.do(t, httptest.NewRequest(http.MethodGet, path, nil), other)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, httptest.NewRequest(http.MethodGet, path+"/download", nil), other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/documents", nil), other)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"documents":[],"count":0}`, rec.Body.String())

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/documents", nil), e.tenant)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/documents/abc", nil), e.tenant)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_MapsOutcomes(t *testing.T) {
	tests := []struct {
		outcome rag.Outcome
		text    string
		status  int
	}{
		{rag.OutcomeSuccess, "Refunds take 14 days.", http.StatusOK},
		{rag.OutcomeSafetyRefusal, rag.RefusalMessage, http.StatusOK},
		{rag.OutcomeTransientFailure, rag.InternalErrorMessage, http.StatusServiceUnavailable},
		{rag.OutcomeContentFailure, rag.EmptyQuestionMessage, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			e := newEnv(t)
			e.asker.answer = rag.Answer{Text: tt.text, Outcome: tt.outcome}

			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"refunds?"}`))
			rec := e.do(t, req, e.tenant)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.text)
			assert.Equal(t, []tenant.ID{e.tenant}, e.asker.asked)
		})
	}
}

func TestWidgetChat_ValidatesClientToken(t *testing.T) {
	e := newEnv(t)

	body := `{"query":"refunds?","client_token":"` + e.tenant.String() + `"}`
	rec := e.do(t, httptest.NewRequest(http.MethodPost, "/widget/chat", strings.NewReader(body)), tenant.ID{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []tenant.ID{e.tenant}, e.asker.asked)

	body = `{"query":"refunds?","client_token":"` + tenant.New().String() + `"}`
	rec = e.do(t, httptest.NewRequest(http.MethodPost, "/widget/chat", strings.NewReader(body)), tenant.ID{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, httptest.NewRequest(http.MethodPost, "/widget/chat", strings.NewReader(`{"query":"x","client_token":"nope"}`)), tenant.ID{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, e.asker.asked, 1)
}

func TestDeleteKnowledgeBase(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, httptest.NewRequest(http.MethodDelete, "/knowledge-base", nil), e.tenant)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []tenant.ID{e.tenant}, e.asker.deleted)

	e.asker.deleteErr = errors.New("store down")
	rec = e.do(t, httptest.NewRequest(http.MethodDelete, "/knowledge-base", nil), e.tenant)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyz(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"database":"ok","redis":"unhealthy: connection refused"}}`, rec.Body.String())
}
