package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/nfse-reader/constants"
	"github.com/joseph-ayodele/nfse-reader/internal/common"
	"github.com/joseph-ayodele/nfse-reader/internal/entity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTasks struct {
	submitted map[string]string
	submitErr error
	submitID  int64
	views     map[int64]*entity.TaskStatusView
	results   map[int64]*entity.ExtractedRecord
	lastReqID string
}

func (f *fakeTasks) Submit(ctx context.Context, name string, r io.Reader) (int64, error) {
	f.lastReqID = common.RequestIDFromContext(ctx)
	b, _ := io.ReadAll(r)
	if f.submitted == nil {
		f.submitted = map[string]string{}
	}
	f.submitted[name] = string(b)
	return f.submitID, f.submitErr
}

func (f *fakeTasks) Status(_ context.Context, id int64) (*entity.TaskStatusView, error) {
	return f.views[id], nil
}

func (f *fakeTasks) Result(_ context.Context, id int64) (*entity.ExtractedRecord, error) {
	return f.results[id], nil
}

type memWebhooks struct {
	mu    sync.Mutex
	hooks []*entity.Webhook
}

func (m *memWebhooks) Create(_ context.Context, url, actions string) (*entity.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wh := &entity.Webhook{ID: int64(len(m.hooks) + 1), URL: url, Actions: actions, CreatedAt: time.Now()}
	m.hooks = append(m.hooks, wh)
	return wh, nil
}

func (m *memWebhooks) List(_ context.Context, limit int) ([]*entity.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Webhook
	for i := len(m.hooks) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.hooks[i])
	}
	return out, nil
}

func (m *memWebhooks) ListForAction(_ context.Context, a constants.Action) ([]*entity.Webhook, error) {
	return nil, nil
}

type fakeExporter struct{ data []byte }

func (f fakeExporter) TasksXLSX(context.Context) ([]byte, error) { return f.data, nil }

func newTestRouter(tasks *fakeTasks, hooks *memWebhooks, health HealthFunc) *gin.Engine {
	h := NewHandler(tasks, hooks, fakeExporter{data: []byte("PK")}, health, nil)
	return NewRouter(h, nil)
}

func multipartUpload(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-nfse", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	tasks := &fakeTasks{submitID: 7}
	r := newTestRouter(tasks, &memWebhooks{}, nil)

	req := multipartUpload(t, "nota.pdf", "%PDF-1.4")
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"task_id":7}`, w.Body.String())
	assert.Equal(t, "%PDF-1.4", tasks.submitted["nota.pdf"])
	assert.Equal(t, "req-1", tasks.lastReqID)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
}

func TestUploadRejections(t *testing.T) {
	tasks := &fakeTasks{submitID: 1}
	r := newTestRouter(tasks, &memWebhooks{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartUpload(t, "nota.png", "png"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, tasks.submitted)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload-nfse", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"), "generated when absent")
}

func TestUploadSchedulingFailure(t *testing.T) {
	tasks := &fakeTasks{submitID: 3, submitErr: errors.New("queue closed")}
	r := newTestRouter(tasks, &memWebhooks{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartUpload(t, "nota.pdf", "%PDF"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"task_id":3`)
}

func TestStatusAndResult(t *testing.T) {
	created := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	num := "123"
	tasks := &fakeTasks{
		views: map[int64]*entity.TaskStatusView{
			1: {ID: 1, Status: constants.TaskStatusCompleted, CreatedAt: created, CompletedAt: &created},
			2: {ID: 2, Status: constants.TaskStatusRunning, CreatedAt: created},
		},
		results: map[int64]*entity.ExtractedRecord{
			1: {InvoiceNumber: &num, Services: []entity.ServiceLine{{Quantity: 1}}},
		},
	}
	r := newTestRouter(tasks, &memWebhooks{}, nil)

	tests := []struct {
		path string
		code int
	}{
		{"/status/1", http.StatusOK},
		{"/status/2", http.StatusOK},
		{"/status/99", http.StatusNotFound},
		{"/status/abc", http.StatusBadRequest},
		{"/result/1", http.StatusOK},
		{"/result/2", http.StatusNotFound},
		{"/result/99", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, w.Code)
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status/2", nil))
	var view map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "running", view["status"])
	assert.Nil(t, view["completed_at"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/result/1", nil))
	var rec entity.ExtractedRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.NotNil(t, rec.InvoiceNumber)
	assert.Equal(t, "123", *rec.InvoiceNumber)
}

func TestWebhooks(t *testing.T) {
	hooks := &memWebhooks{}
	r := newTestRouter(&fakeTasks{}, hooks, nil)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, post(`{"url":"not a url","actions":"upload"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"url":"ftp://example.com/x","actions":"upload"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"url":"http://example.com/x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"url":"http://example.com/x","actions":" , "}`).Code)

	w := post(`{"url":"http://example.com/a","actions":"upload,completion"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"url":"http://example.com/a"`)
	require.Equal(t, http.StatusOK, post(`{"url":"https://example.com/b","actions":"completion"}`).Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []entity.Webhook
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "https://example.com/b", list[0].URL, "newest first")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?limit=1", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookListEmptyIsArray(t *testing.T) {
	r := newTestRouter(&fakeTasks{}, &memWebhooks{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, "[]", w.Body.String())
}

func TestHealthAndExport(t *testing.T) {
	var healthErr error
	r := newTestRouter(&fakeTasks{}, &memWebhooks{}, func(context.Context) error { return healthErr })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	healthErr = errors.New("db down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/export.xlsx", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "PK", w.Body.String())
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(nil))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-ID", "abc")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id":"abc"`)
}
