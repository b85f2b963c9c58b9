package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tinylink/internal/apperrors"
	"tinylink/internal/config"
	"tinylink/internal/middleware"
	"tinylink/internal/model"
	"tinylink/internal/shortcode"
	"tinylink/internal/store"
	"tinylink/pkg/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(s LinkStore) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(zap.NewNop()))
	RegisterRoutes(r, NewLinkHandler(s, "1.0", zap.NewNop()))
	return r
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(config.DB{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	s := store.New(db, shortcode.NewGenerator(shortcode.DefaultLength))
	require.NoError(t, s.Migrate(context.Background()))
	return newRouter(s)
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeLink(t *testing.T, w *httptest.ResponseRecorder) model.Link {
	t.Helper()
	var link model.Link
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	return link
}

func TestLinkLifecycle(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/api/links", gin.H{"target_url": "https://a.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeLink(t, w)
	assert.Len(t, created.Code, 6)
	assert.Equal(t, "https://a.com", created.TargetURL)
	assert.Zero(t, created.TotalClicks)
	assert.Nil(t, created.LastClicked)

	w = do(r, http.MethodGet, "/"+created.Code, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://a.com", w.Header().Get("Location"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))

	w = do(r, http.MethodGet, "/api/links/"+created.Code, nil)
	require.Equal(t, http.StatusOK, w.Code)
	link := decodeLink(t, w)
	assert.EqualValues(t, 1, link.TotalClicks)
	assert.NotNil(t, link.LastClicked)

	do(r, http.MethodGet, "/"+created.Code, nil)
	link = decodeLink(t, do(r, http.MethodGet, "/api/links/"+created.Code, nil))
	assert.EqualValues(t, 2, link.TotalClicks)

	w = do(r, http.MethodDelete, "/api/links/"+created.Code, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Link deleted successfully"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/links/"+created.Code, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Link not found"}`, w.Body.String())

	w = do(r, http.MethodDelete, "/api/links/"+created.Code, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLinkJSONShape(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/api/links", gin.H{"target_url": "example.com", "code": "shape1"})
	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.ElementsMatch(t,
		[]string{"code", "target_url", "total_clicks", "last_clicked", "created_at"},
		keys(body))
	assert.Equal(t, "https://example.com", body["target_url"])
	assert.Equal(t, "shape1", body["code"])
	assert.Nil(t, body["last_clicked"])
}

func TestCreateLinkValidation(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
		error  string
	}{
		{"missing url", gin.H{}, http.StatusBadRequest, "URL is required"},
		{"bad scheme", gin.H{"target_url": "ftp://x.com"}, http.StatusBadRequest, "Invalid URL format"},
		{"short code", gin.H{"target_url": "https://a.com", "code": "abc12"}, http.StatusBadRequest, "Code must be 6-8 alphanumeric characters"},
		{"symbol code", gin.H{"target_url": "https://a.com", "code": "abc123!!"}, http.StatusBadRequest, "Code must be 6-8 alphanumeric characters"},
		{"not json", "plain", http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/links", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.error), w.Body.String())
		})
	}

	links, err := json.Marshal([]model.Link{})
	require.NoError(t, err)
	assert.JSONEq(t, string(links), do(r, http.MethodGet, "/api/links", nil).Body.String(), "nothing was stored")
}

func TestCreateLinkDuplicateCode(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/api/links", gin.H{"target_url": "https://a.com", "code": "abc123"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPost, "/api/links", gin.H{"target_url": "https://b.com", "code": "abc123"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"Code already exists"}`, w.Body.String())

	link := decodeLink(t, do(r, http.MethodGet, "/api/links/abc123", nil))
	assert.Equal(t, "https://a.com", link.TargetURL)
}

func TestCreateLinkLocalhost(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/api/links", gin.H{"target_url": "localhost:3000"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://localhost:3000", decodeLink(t, w).TargetURL)
}

func TestListLinks(t *testing.T) {
	r := setupRouter(t)

	for _, code := range []string{"list01", "list02", "other3"} {
		w := do(r, http.MethodPost, "/api/links", gin.H{"target_url": "https://" + code + ".com", "code": code})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	var links []model.Link
	w := do(r, http.MethodGet, "/api/links", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	assert.Equal(t, []string{"other3", "list02", "list01"}, codes(links))

	w = do(r, http.MethodGet, "/api/links?q=LIST&limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	assert.Equal(t, []string{"list01"}, codes(links))

	w = do(r, http.MethodGet, "/api/links?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid limit"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/links?offset=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	r := setupRouter(t)

	do(r, http.MethodPost, "/api/links", gin.H{"target_url": "https://a.com", "code": "stats1"})
	do(r, http.MethodPost, "/api/links", gin.H{"target_url": "https://b.com", "code": "stats2"})
	do(r, http.MethodGet, "/stats1", nil)
	do(r, http.MethodGet, "/stats1", nil)

	w := do(r, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_links":2,"total_clicks":2}`, w.Body.String())
}

func TestRedirectNotFound(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		path  string
		error string
	}{
		{"/nope00", "Link not found"},
		{"/abc", "Not found"},
		{"/abc123!!", "Not found"},
		{"/waytoolongcode", "Not found"},
		{"/api", "Not found"},
		{"/code", "Not found"},
		{"/swagger", "Not found"},
		{"/some/deep/path", "Not found"},
		{"/", "Not found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.error), w.Body.String())
		})
	}
}

func TestHealthCheck(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "1.0", body["version"])
	assert.Contains(t, body, "uptime")
	assert.Contains(t, body, "timestamp")
}

// failingStore 所有操作都返回存储错误
type failingStore struct{}

var errDown = apperrors.Store("query", errors.New("connection refused"))

func (failingStore) Create(context.Context, string, string) (*model.Link, error) { return nil, errDown }
func (failingStore) FindByCode(context.Context, string) (*model.Link, error)     { return nil, errDown }
func (failingStore) List(context.Context, store.ListOptions) ([]model.Link, error) {
	return nil, errDown
}
func (failingStore) RecordClick(context.Context, string) (*model.Link, error)  { return nil, errDown }
func (failingStore) DeleteByCode(context.Context, string) (*model.Link, error) { return nil, errDown }
func (failingStore) Exists(context.Context, string) (bool, error)              { return false, errDown }
func (failingStore) Stats(context.Context) (store.Stats, error)                { return store.Stats{}, errDown }
func (failingStore) Ping(context.Context) error                                { return errDown }

func TestStoreFailureIsGeneric500(t *testing.T) {
	r := newRouter(failingStore{})

	requests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodPost, "/api/links", gin.H{"target_url": "https://a.com"}},
		{http.MethodPost, "/api/links", gin.H{"target_url": "https://a.com", "code": "abc123"}},
		{http.MethodGet, "/api/links", nil},
		{http.MethodGet, "/api/links/abc123", nil},
		{http.MethodDelete, "/api/links/abc123", nil},
		{http.MethodGet, "/api/stats", nil},
		{http.MethodGet, "/abc123", nil},
	}
	for _, req := range requests {
		t.Run(req.method+" "+req.path, func(t *testing.T) {
			w := do(r, req.method, req.path, req.body)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}

	w := do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// 校验失败不访问存储
	w = do(r, http.MethodPost, "/api/links", gin.H{"target_url": "ftp://x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodGet, "/api", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func codes(links []model.Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.Code)
	}
	return out
}
