package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/apperr"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/config"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/db"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/logger"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/query"
)

const caJSON = `[
  {"id":"A1","description":"Brass disk near bridge","lat":37.50,"long":-122.20,
   "history":[{"reporter":"KT","condition":"GOOD"}]},
  {"id":"A2","description":"Iron pipe","lat":37.51,"long":-122.21,
   "history":[{"reporter":"KT","condition":"POOR"},{"reporter":"AB","condition":"GOOD"}]},
  {"id":"A3","description":"Disk destroyed","lat":40.0,"long":-120.0,
   "history":[{"reporter":"ZZ","condition":"MISSING"}]}
]`

type fakeLoader struct {
	datasets map[string][]query.Marker
	calls    atomic.Int32
	err      error
}

func (f *fakeLoader) Load(_ context.Context, id string) ([]query.Marker, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	markers, ok := f.datasets[id]
	if !ok {
		return nil, apperr.NotFound("dataset " + id + " not found").WithDetails(map[string]string{"dataset": id})
	}
	return markers, nil
}

type fakeDownloader struct{}

func (fakeDownloader) DownloadURL(_ context.Context, id string, _ time.Duration) (*url.URL, error) {
	if id != "ca" {
		return nil, apperr.NotFound("dataset " + id + " not found")
	}
	return url.Parse("https://blob.example.com/markers/ca.json?X-Amz-Signature=abc")
}

type fakeCatalog struct {
	rows []db.Dataset
	err  error
}

func (f *fakeCatalog) ListDatasets(context.Context) ([]db.Dataset, error) {
	return f.rows, f.err
}

func (f *fakeCatalog) GetDataset(_ context.Context, id string) (*db.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i], nil
		}
	}
	return nil, nil
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		Port:           8080,
		Engine:         query.DefaultConfig(),
		RequestTimeout: time.Second,
		DownloadURLTTL: time.Minute,
		AllowedOrigins: []string{"*"},
	}
}

func newTestServer(t *testing.T, cfg config.Config, catalog Catalog) (*Server, *fakeLoader) {
	t.Helper()
	markers, err := query.DecodeDataset([]byte(caJSON))
	require.NoError(t, err)
	loader := &fakeLoader{datasets: map[string][]query.Marker{"ca": markers}}
	return New(cfg, Deps{Loader: loader, Downloader: fakeDownloader{}, Catalog: catalog}), loader
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data []map[string]any `json:"data"`
	Meta struct {
		Count     int  `json:"count"`
		Total     int  `json:"total"`
		NextIndex int  `json:"next_index"`
		Truncated bool `json:"truncated"`
		Offset    int  `json:"offset"`
	} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "req-123")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))
}

func TestV1QueryMarkers_All(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	rec := get(t, s, "/api/v1/datasets/ca/markers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))

	env := decodeEnvelope(t, rec)
	require.Len(t, env.Data, 3)
	assert.Equal(t, "A1", env.Data[0]["id"])
	assert.Equal(t, 3, env.Meta.Count)
	assert.Equal(t, 3, env.Meta.Total)
	assert.Equal(t, 3, env.Meta.NextIndex)
	assert.False(t, env.Meta.Truncated)
	assert.Equal(t, "3", rec.Header().Get(headerTotalCount))
	assert.Equal(t, "3", rec.Header().Get(headerNextIndex))
	assert.Equal(t, "false", rec.Header().Get(headerTruncated))
}

func TestV1QueryMarkers_ConditionUsesLatestReport(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	rec := get(t, s, "/api/v1/datasets/CA/markers?condition=good&data=id")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Len(t, env.Data, 2)
	assert.Equal(t, map[string]any{"id": "A1"}, env.Data[0])
	assert.Equal(t, map[string]any{"id": "A2"}, env.Data[1])
}

func TestV1QueryMarkers_RadiusAndPaging(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	rec := get(t, s, "/api/v1/datasets/ca/markers?location=37.5,-122.2&radius=5&limit=1&data=id,description")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "A1", env.Data[0]["id"])
	assert.Equal(t, 1, env.Meta.NextIndex)

	rec = get(t, s, "/api/v1/datasets/ca/markers?location=37.5,-122.2&radius=5&offset=1&data=id")
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeEnvelope(t, rec)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "A2", env.Data[0]["id"])
	assert.Equal(t, 1, env.Meta.Offset)
	assert.Equal(t, 3, env.Meta.NextIndex)
}

func TestV1QueryMarkers_SearchAndReporter(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	rec := get(t, s, "/api/v1/datasets/ca/markers?search=disk&reporter=zz,qq&data=id")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "A3", env.Data[0]["id"])
}

func TestV1QueryMarkers_DefaultLimit(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLimit = 2
	s, _ := newTestServer(t, cfg, nil)

	env := decodeEnvelope(t, get(t, s, "/api/v1/datasets/ca/markers"))
	assert.Len(t, env.Data, 2)

	env = decodeEnvelope(t, get(t, s, "/api/v1/datasets/ca/markers?limit=10"))
	assert.Len(t, env.Data, 3)
}

func TestV1QueryMarkers_ByteBudgetTruncates(t *testing.T) {
	cfg := testConfig()
	cfg.Engine.ByteBudget = 16
	s, _ := newTestServer(t, cfg, nil)

	rec := get(t, s, "/api/v1/datasets/ca/markers?data=description")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Len(t, env.Data, 1)
	assert.True(t, env.Meta.Truncated)
	assert.Equal(t, 1, env.Meta.NextIndex)
	assert.Equal(t, "true", rec.Header().Get(headerTruncated))
}

func TestV1QueryMarkers_InvalidSpecSkipsFetch(t *testing.T) {
	s, loader := newTestServer(t, testConfig(), nil)

	for _, target := range []string{
		"/api/v1/datasets/ca/markers?radius=5",
		"/api/v1/datasets/ca/markers?location=91,0&radius=5",
		"/api/v1/datasets/ca/markers?offset=-1",
		"/api/v1/datasets/ca/markers?search=(",
		"/api/v1/datasets/bad.name/markers",
	} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body["error"], target)
	}
	assert.Equal(t, int32(0), loader.calls.Load())
}

func TestV1QueryMarkers_DatasetNotFound(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	rec := get(t, s, "/api/v1/datasets/zz/markers")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"dataset zz not found","details":{"dataset":"zz"}}`, rec.Body.String())
}

func TestV1QueryMarkers_UntypedErrorIsHidden(t *testing.T) {
	s, loader := newTestServer(t, testConfig(), nil)
	loader.err = errors.New("dial tcp: secret-host:9000 refused")

	rec := get(t, s, "/api/v1/datasets/ca/markers")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-host")
}

func TestServerErrorsAreLoggedWithKind(t *testing.T) {
	var buf bytes.Buffer
	loader := &fakeLoader{err: errors.New("dial tcp: refused")}
	s := New(testConfig(), Deps{Loader: loader, Downloader: fakeDownloader{}, Logger: logger.NewWithWriter("production", &buf)})

	rec := get(t, s, "/api/v1/datasets/ca/markers")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), `"msg":"http_error"`)
	assert.Contains(t, buf.String(), `"kind":"internal"`)

	buf.Reset()
	rec = get(t, s, "/api/v1/datasets/ca/markers?radius=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, buf.String(), "http_error")
}

func TestLegacyMarkers(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	rec := get(t, s, "/markers?state=ca&condition=missing")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "A3", records[0]["id"])
	assert.Equal(t, "3", rec.Header().Get(headerNextIndex))
}

func TestLegacyMarkers_Errors(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)

	rec := get(t, s, "/markers")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"code":400,"message":"state is required"}`, rec.Body.String())

	rec = get(t, s, "/markers?state=zz")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":404,"message":"dataset zz not found"}`, rec.Body.String())
}

func TestV1Download(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)

	rec := get(t, s, "/api/v1/datasets/ca/download")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "ca.json")

	rec = get(t, s, "/api/v1/datasets/zz/download")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestV1Catalog(t *testing.T) {
	catalog := &fakeCatalog{rows: []db.Dataset{{ID: "ca", ObjectKey: "ca.json", SizeBytes: 512, MarkerCount: 3}}}
	s, _ := newTestServer(t, testConfig(), catalog)

	rec := get(t, s, "/api/v1/datasets")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []db.Dataset `json:"data"`
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Meta.Count)
	assert.Equal(t, "ca.json", list.Data[0].ObjectKey)

	rec = get(t, s, "/api/v1/datasets/ca")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"marker_count":3`)

	rec = get(t, s, "/api/v1/datasets/zz")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestV1Catalog_Failures(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/v1/datasets").Code)

	s, _ = newTestServer(t, testConfig(), &fakeCatalog{err: errors.New("pool closed")})
	rec := get(t, s, "/api/v1/datasets")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSAllowsAnyOriginByDefault(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/markers?state=ca", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRestrictedOrigins(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://maps.example.com"}
	s, _ := newTestServer(t, cfg, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, "https://maps.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
