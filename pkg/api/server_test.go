package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftgate/shiftgate/pkg/controller"
	"github.com/shiftgate/shiftgate/pkg/record"
	"github.com/shiftgate/shiftgate/pkg/target"
	"github.com/shiftgate/shiftgate/pkg/target/targettest"
	"github.com/shiftgate/shiftgate/pkg/types"
)

type fixture struct {
	server  *Server
	engine  *controller.Engine
	fake    *targettest.FakeClient
	backend *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(backend.Close)

	fake := &targettest.FakeClient{
		Traffic:      types.TrafficSplit{"web:v1": 100},
		AggregateURL: backend.URL,
		PinnedURL:    backend.URL,
	}

	store, err := record.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine := controller.NewEngine("http://platform.invalid", store, nil).
		WithClientFactory(func(service string) target.Client {
			return fake
		})

	return &fixture{
		server:  NewServer(engine, nil),
		engine:  engine,
		fake:    fake,
		backend: backend,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func startBody() StartRolloutRequest {
	return StartRolloutRequest{
		Service:           "web",
		Environment:       "prod",
		CandidateRevision: "web:v2",
		Strategy:          "rolling",
		Thresholds: &types.Thresholds{
			MaxErrorRatePercent:   5,
			MaxAvgResponseTimeMs:  1000,
			MonitorWindowSeconds:  1,
			SampleIntervalSeconds: 1,
		},
	}
}

func (f *fixture) waitTerminal(t *testing.T, id string) *types.DeploymentAttempt {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		attempt, running, err := f.engine.Status(id)
		if err == nil && !running && attempt.Status.Terminal() {
			return attempt
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("attempt %s never settled", id)
	return nil
}

func TestStartRollout(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/rollouts", startBody())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)

	attempt := f.waitTerminal(t, resp.ID)
	assert.Equal(t, types.AttemptSucceeded, attempt.Status)
}

func TestStartRollout_Validation(t *testing.T) {
	f := newFixture(t)

	body := startBody()
	body.Service = ""
	rec := f.do(t, http.MethodPost, "/v1/rollouts", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = startBody()
	body.Strategy = "yolo"
	rec = f.do(t, http.MethodPost, "/v1/rollouts", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown strategy")
}

func TestStartRollout_ServiceBusy(t *testing.T) {
	f := newFixture(t)

	body := startBody()
	body.Strategy = "canary"
	body.Thresholds.MonitorWindowSeconds = 30

	rec := f.do(t, http.MethodPost, "/v1/rollouts", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = f.do(t, http.MethodPost, "/v1/rollouts", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Settle before the temp dir is torn down
	abort := f.do(t, http.MethodPost, "/v1/rollouts/"+resp.ID+"/abort", nil)
	require.Equal(t, http.StatusAccepted, abort.Code)
	f.waitTerminal(t, resp.ID)
}

func TestGetRollout(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/rollouts", startBody())
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	f.waitTerminal(t, resp.ID)

	rec = f.do(t, http.MethodGet, "/v1/rollouts/"+resp.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out RolloutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, resp.ID, out.Attempt.ID)
	assert.False(t, out.Running)
	assert.Equal(t, types.AttemptSucceeded, out.Attempt.Status)
}

func TestGetRollout_NotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/rollouts/prod-v9-deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRollouts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/rollouts", startBody())
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	f.waitTerminal(t, resp.ID)

	rec = f.do(t, http.MethodGet, "/v1/rollouts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Attempts []*types.DeploymentAttempt `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, resp.ID, out.Attempts[0].ID)
}

func TestAbortRollout_NotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/rollouts/prod-v9-deadbeef/abort", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAbortRollout_AlreadyTerminal(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/rollouts", startBody())
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	f.waitTerminal(t, resp.ID)

	rec = f.do(t, http.MethodPost, "/v1/rollouts/"+resp.ID+"/abort", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already terminal")
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shiftgate_rollouts_active")
}
