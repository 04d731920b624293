//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-prospector/internal/metrics"
	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/store"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []model.RunConfig
	run   *model.Run
	err   error
}

func (f *fakeRunner) Run(_ context.Context, cfg model.RunConfig) (*model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cfg)
	return f.run, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	runs []*model.Run
	err  error
}

func (f *fakeNotifier) NotifyRun(_ context.Context, run *model.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return f.err
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestServer(t *testing.T, r *fakeRunner, n *fakeNotifier) (*server, http.Handler) {
	t.Helper()
	st := newTestStore(t)
	s := &server{
		runner:   r,
		runs:     st,
		ping:     st.Ping,
		metrics:  metrics.New().Handler(),
		defaults: model.DefaultRunConfig(),
		schedule: model.ScheduledRunConfig(),
		lockFile: filepath.Join(t.TempDir(), "cron.lock"),
	}
	if n != nil {
		s.notifier = n
	}
	return s, s.routes([]string{"*"})
}

func completedRun(hot int) *model.Run {
	res := model.NewRunResults()
	res.LeadsProcessed = 5
	res.LeadsCreated = 3
	res.LeadsByCategory[model.CategoryHot] = hot
	return &model.Run{ID: "run-1", Status: model.RunStatusCompleted, Results: res}
}

func do(h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestServer_Health(t *testing.T) {
	_, h := newTestServer(t, &fakeRunner{}, nil)

	rr := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode(t, rr)["status"])
}

func TestServer_HealthStoreDown(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, nil)
	s.ping = func(context.Context) error { return errors.New("connection refused") }

	rr := do(s.routes(nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "unavailable", decode(t, rr)["status"])
}

func TestServer_Metrics(t *testing.T) {
	_, h := newTestServer(t, &fakeRunner{}, nil)

	rr := do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	_, h := newTestServer(t, &fakeRunner{}, nil)

	rr := do(h, http.MethodOptions, "/prospection/run", "",
		"Origin", "https://crm.frioingenieria.mx",
		"Access-Control-Request-Method", http.MethodPost,
	)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RunDefaults(t *testing.T) {
	r := &fakeRunner{run: completedRun(1)}
	_, h := newTestServer(t, r, nil)

	rr := do(h, http.MethodPost, "/prospection/run", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decode(t, rr)
	assert.Equal(t, "run-1", body["runId"])
	results, ok := body["results"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 5, results["leadsProcessed"])

	require.Len(t, r.calls, 1)
	assert.Equal(t, model.DefaultRunConfig().Normalize(), r.calls[0])
}

func TestServer_RunOverrides(t *testing.T) {
	r := &fakeRunner{run: completedRun(0)}
	_, h := newTestServer(t, r, nil)

	rr := do(h, http.MethodPost, "/prospection/run",
		`{"industries":["Dairy"],"maxLeads":9,"sources":["siem"],"minScore":55,"dryRun":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.Len(t, r.calls, 1)
	got := r.calls[0]
	assert.Equal(t, []string{"dairy"}, got.Industries)
	assert.Equal(t, []string{"mexico"}, got.Regions)
	assert.Equal(t, 9, got.MaxLeads)
	assert.Equal(t, []string{"siem"}, got.Sources)
	assert.Equal(t, 55, got.MinScore)
	assert.True(t, got.DryRun)
}

func TestServer_RunBadBody(t *testing.T) {
	r := &fakeRunner{run: completedRun(0)}
	_, h := newTestServer(t, r, nil)

	rr := do(h, http.MethodPost, "/prospection/run", `{"maxLeads":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid request body", decode(t, rr)["error"])

	rr = do(h, http.MethodPost, "/prospection/run", `{"maxLeads":1000}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr)["error"], "MaxLeads failed lte")

	rr = do(h, http.MethodPost, "/prospection/run", `{"sources":[""]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Empty(t, r.calls)
}

func TestServer_RunCouldNotStart(t *testing.T) {
	r := &fakeRunner{err: errors.New("store unavailable")}
	_, h := newTestServer(t, r, nil)

	rr := do(h, http.MethodPost, "/prospection/run", "{}")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "failed to start prospection run", body["error"])
	assert.NotContains(t, rr.Body.String(), "store unavailable")
}

func TestServer_RunFailedKeepsRunID(t *testing.T) {
	run := completedRun(0)
	run.Status = model.RunStatusFailed
	run.Error = "prospect: run panicked: boom"
	r := &fakeRunner{run: run, err: errors.New("prospect: run panicked: boom")}
	_, h := newTestServer(t, r, nil)

	rr := do(h, http.MethodPost, "/prospection/run", "{}")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "run-1", body["runId"])
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "prospect: run panicked: boom", body["error"])
}

func TestServer_GetRun(t *testing.T) {
	s, h := newTestServer(t, &fakeRunner{}, nil)
	created, err := s.runs.(store.Store).CreateRun(context.Background(), model.AgentTypeProspector, model.DefaultRunConfig())
	require.NoError(t, err)

	rr := do(h, http.MethodGet, "/prospection/run?runId="+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, created.ID, body["runId"])
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, model.AgentTypeProspector, body["agentType"])
}

func TestServer_GetRunErrors(t *testing.T) {
	_, h := newTestServer(t, &fakeRunner{}, nil)

	rr := do(h, http.MethodGet, "/prospection/run", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "runId is required", decode(t, rr)["error"])

	rr = do(h, http.MethodGet, "/prospection/run?runId=does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_CronRequiresSecret(t *testing.T) {
	r := &fakeRunner{run: completedRun(1)}
	s, _ := newTestServer(t, r, &fakeNotifier{})
	s.cronSecret = "s3cret"
	h := s.routes(nil)

	rr := do(h, http.MethodGet, "/prospection/cron", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(h, http.MethodGet, "/prospection/cron", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, r.calls)

	rr = do(h, http.MethodGet, "/prospection/cron", "", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, r.calls, 1)
	assert.Equal(t, model.ScheduledRunConfig().MaxLeads, r.calls[0].MaxLeads)
}

func TestServer_CronNotifiesOnHotLeads(t *testing.T) {
	r := &fakeRunner{run: completedRun(2)}
	n := &fakeNotifier{}
	_, h := newTestServer(t, r, n)

	rr := do(h, http.MethodPost, "/prospection/cron", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, n.runs, 1)
	assert.Equal(t, "run-1", n.runs[0].ID)
}

func TestServer_CronConflictWhileLocked(t *testing.T) {
	r := &fakeRunner{run: completedRun(0)}
	s, h := newTestServer(t, r, nil)

	held := flock.New(s.lockFile)
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { held.Unlock() }) //nolint:errcheck

	rr := do(h, http.MethodGet, "/prospection/cron", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, r.calls)
}
