package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"txtinspect/internal/models"
	"txtinspect/internal/repository"
	"txtinspect/internal/service"
	"txtinspect/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newLimitedRouter(t, 1<<20)
}

func newLimitedRouter(t *testing.T, maxUploadBytes int64) *gin.Engine {
	t.Helper()
	return newRouterWithLLM(t, maxUploadBytes, nil)
}

func newRouterWithLLM(t *testing.T, maxUploadBytes int64, llmClient service.LLMClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	repo, err := repository.New(repository.TypeSQLite, filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	sessions := session.NewManager(session.Options{PreviewRows: 5}, logger)
	insp := service.NewInspector(sessions, llmClient, repo, service.Options{}, logger)
	t.Cleanup(insp.Close)

	r := gin.New()
	NewHandler(insp, maxUploadBytes, logger).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "data.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func upload(t *testing.T, r *gin.Engine, content string) string {
	t.Helper()
	req := uploadRequest(t, content)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Session.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestDropAndExport(t *testing.T) {
	r := newTestRouter(t)
	id := upload(t, r, "text,sentiment,topics\na,pos,sports\nb,neg,tech\n")
	base := "/api/v1/sessions/" + id

	w := do(t, r, http.MethodPost, base+"/cursor", `{"direction":"next"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["cursor"])

	w = do(t, r, http.MethodPost, base+"/edits", `{"action":"drop"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{float64(1)}, decode(t, w)["indexes"])

	w = do(t, r, http.MethodPost, base+"/commit", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = do(t, r, http.MethodGet, base+"/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "modified_df.csv")
	assert.Equal(t, "text,sentiment,topics\na,pos,sports\n", w.Body.String())

	w = do(t, r, http.MethodGet, base+"/edits", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["indexes"])

	// The same index can be queued again after export
	w = do(t, r, http.MethodPost, base+"/edits", `{"action":"drop","index":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{float64(1)}, decode(t, w)["indexes"])

	w = do(t, r, http.MethodGet, "/api/v1/exports?session_id="+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])
}

func TestCursorAndRecord(t *testing.T) {
	r := newTestRouter(t)
	id := upload(t, r, "text,sentiment,topics\na,pos,sports\nb,neg,tech\n")
	base := "/api/v1/sessions/" + id

	w := do(t, r, http.MethodGet, base+"/record", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a", decode(t, w)["text"])

	for i := 0; i < 3; i++ {
		do(t, r, http.MethodPost, base+"/cursor", `{"direction":"next"}`)
	}
	w = do(t, r, http.MethodGet, base+"/record", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b", decode(t, w)["text"])

	w = do(t, r, http.MethodPost, base+"/cursor", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewResize(t *testing.T) {
	r := newTestRouter(t)
	id := upload(t, r, "text,sentiment,topics\na,pos,sports\nb,neg,tech\n")

	w := do(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/preview", `{"delta":-10}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 0, body["preview_rows"])
	assert.Empty(t, body["records"])
}

func TestErrors(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/v1/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := upload(t, r, "text,sentiment,topics\na,pos,sports\n")
	w = do(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/suggest", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/edits", `{"action":"burn"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadTooLarge(t *testing.T) {
	r := newLimitedRouter(t, 512)
	big := "text,sentiment,topics\n" + strings.Repeat("some words here,pos,tech\n", 40)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// Without a declared length the body is cut off while the form is parsed
	req := uploadRequest(t, big)
	req.ContentLength = -1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())

	upload(t, r, "text,sentiment,topics\na,pos,tech\n")
}

func TestHealthCheck(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.NotContains(t, body, "model")
	assert.NotContains(t, body, "providers")
}

// stubFailover lists two providers with the second one active
type stubFailover struct{}

func (stubFailover) SuggestLabels(context.Context, string, models.LabelOptions) (*models.LabelSuggestion, error) {
	return nil, errors.New("not used")
}

func (stubFailover) Summarize(context.Context, string, float64) (*models.Summary, error) {
	return nil, errors.New("not used")
}

func (stubFailover) Close() error { return nil }

func (stubFailover) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"provider": "openrouter", "model": "m"}
}

func (stubFailover) ProvidersInfo() []map[string]interface{} {
	return []map[string]interface{}{
		{"provider": "groq", "is_current": false, "failure_count": 2},
		{"provider": "openrouter", "is_current": true, "failure_count": 0},
	}
}

func TestHealthCheckListsProviders(t *testing.T) {
	r := newRouterWithLLM(t, 1<<20, stubFailover{})
	w := do(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Model     map[string]interface{}   `json:"model"`
		Providers []map[string]interface{} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "openrouter", body.Model["provider"])
	require.Len(t, body.Providers, 2)
	assert.Equal(t, "groq", body.Providers[0]["provider"])
	assert.Equal(t, float64(2), body.Providers[0]["failure_count"])
	assert.Equal(t, true, body.Providers[1]["is_current"])
}
