package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/reqjourney-go/internal/blob"
	"github.com/raphaelgruber/reqjourney-go/internal/db"
	"github.com/raphaelgruber/reqjourney-go/internal/extraction"
	"github.com/raphaelgruber/reqjourney-go/internal/metrics"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
	"github.com/raphaelgruber/reqjourney-go/internal/session"
)

const mb = 1024 * 1024

type fakeHistory struct {
	jobs   []models.AnalysisJob
	filter db.JobFilter
}

func (f *fakeHistory) ListJobs(_ context.Context, filter db.JobFilter) ([]models.AnalysisJob, error) {
	f.filter = filter
	return f.jobs, nil
}

func (f *fakeHistory) GetJob(_ context.Context, id string) (*models.AnalysisJob, error) {
	for i := range f.jobs {
		if f.jobs[i].JobID() == id {
			return &f.jobs[i], nil
		}
	}
	return nil, db.ErrNotFound
}

type testEnv struct {
	router  *gin.Engine
	deps    Deps
	blobs   *blob.MemoryStore
	metrics *metrics.Collector
}

func newTestEnv(t *testing.T, client extraction.Client) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	collector := metrics.NewCollector()
	catalog := models.NewCatalog(nil)
	validator := service.NewArtifactValidator(service.Limits{})
	sessions := session.NewManager(8, time.Hour, func() *service.Orchestrator {
		return service.NewOrchestrator(client,
			service.WithCatalog(catalog),
			service.WithValidator(validator),
			service.WithObservers(collector))
	})
	env := &testEnv{
		blobs:   blob.NewMemoryStore(),
		metrics: collector,
	}
	env.deps = Deps{
		Sessions:  sessions,
		Client:    client,
		Validator: validator,
		Catalog:   catalog,
		Blobs:     env.blobs,
		Metrics:   collector,
		History:   &fakeHistory{},
	}
	env.router = NewRouter(env.deps)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, path, name string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	method := http.MethodPut
	if strings.HasSuffix(path, "/analyze") {
		method = http.MethodPost
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func fastDemo() *extraction.DemoClient { return &extraction.DemoClient{Steps: 2} }

// =============================================================================
// POST /analyze
// =============================================================================

func TestAnalyze_JSON(t *testing.T) {
	env := newTestEnv(t, fastDemo())

	w := env.do(t, http.MethodPost, "/analyze", extraction.AnalyzeRequest{
		InputType:         "BRD",
		SourceSystem:      "Oracle ERP",
		DestinationSystem: "D365 F&O",
		FileData:          base64.StdEncoding.EncodeToString([]byte("The system must support multi-currency.")),
		FileExt:           "txt",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[extraction.AnalyzeResponse](t, w)
	require.NotNil(t, resp.Result)
	assert.Equal(t, models.StageRequirements, resp.Result.Stage)
	assert.Len(t, resp.Result.Requirements, 5)
}

func TestAnalyze_DownstreamStages(t *testing.T) {
	env := newTestEnv(t, fastDemo())
	reqs := extraction.DemoResult(extraction.Request{Stage: models.StageRequirements}).(*models.RequirementsResult)
	data := base64.StdEncoding.EncodeToString([]byte("brd"))

	w := env.do(t, http.MethodPost, "/analyze", extraction.AnalyzeRequest{
		InputType: "BRD", FileData: data, FileExt: "txt",
		Stage: "fitGap", SourceSystem: "oracle erp", DestinationSystem: "D365 F&O",
		Requirements: reqs.Requirements,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[extraction.AnalyzeResponse](t, w)
	assert.Len(t, resp.Result.FitGap, 5)
	require.NotNil(t, resp.Result.Pair)
	assert.Equal(t, models.DefaultSystemPair, *resp.Result.Pair)

	w = env.do(t, http.MethodPost, "/analyze", extraction.AnalyzeRequest{
		InputType: "BRD", FileData: data, FileExt: "txt", Stage: "userStories",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyze_Multipart(t *testing.T) {
	env := newTestEnv(t, fastDemo())
	w := env.upload(t, "/analyze", "spec.md", []byte("# Spec\nMust do things."), map[string]string{
		"inputType": "BRD", "sourceSystem": "Salesforce", "destinationSystem": "D365 CE",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[extraction.AnalyzeResponse](t, w)
	assert.Equal(t, models.StageRequirements, resp.Result.Stage)
}

func TestAnalyze_Errors(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte("content"))

	tests := []struct {
		name   string
		client extraction.Client
		body   any
		want   int
	}{
		{"missing input type", fastDemo(), extraction.AnalyzeRequest{FileData: data, FileExt: "txt"}, http.StatusBadRequest},
		{"missing file data", fastDemo(), extraction.AnalyzeRequest{InputType: "BRD", FileExt: "txt"}, http.StatusBadRequest},
		{"invalid input type", fastDemo(), extraction.AnalyzeRequest{InputType: "Slides", FileData: data, FileExt: "txt"}, http.StatusBadRequest},
		{"bad base64", fastDemo(), extraction.AnalyzeRequest{InputType: "BRD", FileData: "%%%", FileExt: "txt"}, http.StatusBadRequest},
		{"unsupported type", fastDemo(), extraction.AnalyzeRequest{InputType: "BRD", FileData: data, FileExt: "exe"}, http.StatusUnsupportedMediaType},
		{"unknown system", fastDemo(), extraction.AnalyzeRequest{InputType: "BRD", FileData: data, FileExt: "txt", SourceSystem: "SAP", DestinationSystem: "D365 CE"}, http.StatusBadRequest},
		{"upstream failure", &extraction.DemoClient{Fail: errors.New("model unavailable")}, extraction.AnalyzeRequest{InputType: "BRD", FileData: data, FileExt: "txt"}, http.StatusBadGateway},
		{"malformed json", fastDemo(), "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.client)
			w := env.do(t, http.MethodPost, "/analyze", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, w).Error)
		})
	}
}

func TestAnalyze_OversizedVideo(t *testing.T) {
	env := newTestEnv(t, fastDemo())
	w := env.do(t, http.MethodPost, "/analyze", extraction.AnalyzeRequest{
		InputType: "Video",
		FileData:  base64.StdEncoding.EncodeToString(make([]byte, 30*mb)),
		FileExt:   "mp4",
		FileName:  "clip.mp4",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, service.ErrFileTooLarge.Error(), decode[errorResponse](t, w).Reason)
}

// =============================================================================
// SESSIONS
// =============================================================================

func createSession(t *testing.T, env *testEnv) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[sessionResponse](t, w).ID
	require.NotEmpty(t, id)
	return id
}

func waitIdle(t *testing.T, env *testEnv, id string) jobResponse {
	t.Helper()
	var resp jobResponse
	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/job", nil)
		resp = decode[jobResponse](t, w)
		return resp.Active == nil && resp.Last != nil
	}, 5*time.Second, 5*time.Millisecond)
	return resp
}

func TestSession_FullScenario(t *testing.T) {
	env := newTestEnv(t, fastDemo())
	id := createSession(t, env)
	base := "/api/v1/sessions/" + id

	w := env.do(t, http.MethodPost, base+"/stages/requirements", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(service.KindNoArtifact), decode[errorResponse](t, w).Kind)

	w = env.upload(t, base+"/artifact", "spec.pdf", make([]byte, 2*mb), map[string]string{"inputType": "BRD"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state := decode[sessionResponse](t, w)
	require.NotNil(t, state.Artifact)
	assert.Equal(t, "spec.pdf", state.Artifact.Name)
	assert.Empty(t, state.ArtifactError)

	w = env.do(t, http.MethodPost, base+"/stages/userStories", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []string{"requirements"}, decode[errorResponse](t, w).Missing)

	w = env.do(t, http.MethodPost, base+"/stages/requirements", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, models.StageRequirements, decode[service.JobSnapshot](t, w).Stage)
	assert.Equal(t, service.JobStatusSucceeded, waitIdle(t, env, id).Last.Status)

	w = env.do(t, http.MethodGet, base+"/results/requirements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[models.ResultEnvelope](t, w).Requirements, 5)

	w = env.do(t, http.MethodPost, base+"/stages/userStories", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	waitIdle(t, env, id)

	w = env.do(t, http.MethodPut, base+"/systems", systemsRequest{Source: "Oracle ERP", Destination: "D365 F&O"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, base+"/stages/fitGap", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	history := waitIdle(t, env, id).History
	require.Len(t, history, 3)
	assert.Equal(t, models.StageFitGap, history[0].Stage)
	assert.Equal(t, models.StageRequirements, history[2].Stage)

	w = env.do(t, http.MethodGet, base, nil)
	state = decode[sessionResponse](t, w)
	assert.ElementsMatch(t, models.Stages, state.Completed)
	assert.Len(t, state.Results[models.StageFitGap].FitGap, 5)

	w = env.do(t, http.MethodGet, base+"/artifact", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2*mb, w.Body.Len())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	// Observers run just after the slot frees.
	assert.Eventually(t, func() bool {
		return env.metrics.Snapshot().Jobs.Succeeded == 3
	}, time.Second, 5*time.Millisecond)
}

func TestSession_SingleFlightConflict(t *testing.T) {
	gate := &blockingClient{release: make(chan struct{})}
	env := newTestEnv(t, gate)
	id := createSession(t, env)
	base := "/api/v1/sessions/" + id

	env.upload(t, base+"/artifact", "spec.pdf", []byte("%PDF"), nil)
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, base+"/stages/requirements", nil).Code)

	w := env.do(t, http.MethodPost, base+"/stages/requirements", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(service.KindAlreadyRunning), decode[errorResponse](t, w).Kind)

	close(gate.release)
	waitIdle(t, env, id)
}

func TestSession_OversizedVideoRefusedAtRun(t *testing.T) {
	env := newTestEnv(t, fastDemo())
	id := createSession(t, env)
	base := "/api/v1/sessions/" + id

	w := env.upload(t, base+"/artifact", "clip.mp4", make([]byte, 30*mb), map[string]string{"inputType": "Video"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[sessionResponse](t, w).ArtifactError, "file too large")

	w = env.do(t, http.MethodPost, base+"/stages/requirements", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, string(service.KindInvalidArtifact), resp.Kind)
	assert.Equal(t, service.ErrFileTooLarge.Error(), resp.Reason)

	w = env.do(t, http.MethodGet, base+"/job", nil)
	jobs := decode[jobResponse](t, w)
	assert.Nil(t, jobs.Last)
	assert.Empty(t, jobs.History)
}

func TestSession_ArtifactReplacementAndRemoval(t *testing.T) {
	env := newTestEnv(t, fastDemo())
	id := createSession(t, env)
	base := "/api/v1/sessions/" + id

	env.upload(t, base+"/artifact", "a.txt", []byte("first"), nil)
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, base+"/stages/requirements", nil).Code)
	waitIdle(t, env, id)

	w := env.upload(t, base+"/artifact", "b.txt", []byte("second"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[sessionResponse](t, w).Completed)

	_, err := env.blobs.Get(context.Background(), id, "a.txt")
	assert.ErrorIs(t, err, blob.ErrNotFound, "replaced artifact is removed from the store")

	w = env.do(t, http.MethodDelete, base+"/artifact", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[sessionResponse](t, w).Artifact)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, base+"/artifact", nil).Code)
}

func TestSession_Validation(t *testing.T) {
	env := newTestEnv(t, fastDemo())
	id := createSession(t, env)
	base := "/api/v1/sessions/" + id

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/sessions/missing", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, base+"/stages/summary", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, base+"/results/requirements", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, base+"/systems", systemsRequest{Source: "SAP", Destination: "D365 CE"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, base+"/systems", map[string]string{"source": "SAP"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.upload(t, base+"/artifact", "a.txt", []byte("x"), map[string]string{"inputType": "Slides"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, base+"/job/watch", nil).Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, base, nil).Code)
}

// blockingClient holds every submission until release is closed.
type blockingClient struct {
	release chan struct{}
}

func (b *blockingClient) Submit(ctx context.Context, req extraction.Request) (<-chan extraction.Event, error) {
	out := make(chan extraction.Event, 1)
	go func() {
		defer close(out)
		select {
		case <-b.release:
			out <- extraction.Event{Result: extraction.DemoResult(req)}
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func TestWatchJob(t *testing.T) {
	gate := &blockingClient{release: make(chan struct{})}
	env := newTestEnv(t, gate)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	id := createSession(t, env)
	base := "/api/v1/sessions/" + id
	env.upload(t, base+"/artifact", "spec.txt", []byte("brd"), nil)
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, base+"/stages/requirements", nil).Code)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + base + "/job/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first service.JobSnapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, service.JobStatusRunning, first.Status)

	close(gate.release)

	var last service.JobSnapshot
	for {
		var snap service.JobSnapshot
		if err := conn.ReadJSON(&snap); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		last = snap
	}
	assert.Equal(t, service.JobStatusSucceeded, last.Status)
	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, 5, last.Entries)
}

// =============================================================================
// MISC
// =============================================================================

func TestSystemsHealthStats(t *testing.T) {
	env := newTestEnv(t, fastDemo())

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/systems", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DefaultSystems, decode[map[string][]string](t, w)["systems"])

	createSession(t, env)
	w = env.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[statsResponse](t, w).Sessions)
}

func TestJobsHistory(t *testing.T) {
	env := newTestEnv(t, fastDemo())
	history := env.deps.History.(*fakeHistory)
	errMsg := "timed out"
	history.jobs = []models.AnalysisJob{{Stage: "requirements", Status: "failed", Error: &errMsg}}

	w := env.do(t, http.MethodGet, "/api/v1/jobs?stage=stories&limit=5&status=failed", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, db.JobFilter{Stage: "userStories", Status: "failed", Limit: 5}, history.filter)
	jobs := decode[map[string][]jobRecord](t, w)["jobs"]
	require.Len(t, jobs, 1)
	assert.Equal(t, "timed out", jobs[0].Error)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/jobs?limit=-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/jobs/nope", nil).Code)

	env.deps.History = nil
	router := NewRouter(env.deps)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery(slogDiscard()))
	router.GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
