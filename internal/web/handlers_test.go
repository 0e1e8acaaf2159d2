// internal/web/handlers_test.go
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hellobridge/internal/command"
	"hellobridge/internal/config"
	"hellobridge/internal/forwarder"
	"hellobridge/internal/helloworld"
	"hellobridge/internal/ingest"
	"hellobridge/internal/metrics"
	"hellobridge/internal/storage"
)

// apiStub satisfies command.API with per-test hooks.
type apiStub struct {
	searchAlerts func(p helloworld.SearchParams) ([]helloworld.Alert, error)
	ipReputation func(ip string) (*helloworld.IPReport, error)
}

func (s *apiStub) SearchAlerts(_ context.Context, p helloworld.SearchParams) ([]helloworld.Alert, error) {
	if s.searchAlerts == nil {
		return nil, fmt.Errorf("unexpected SearchAlerts call")
	}
	return s.searchAlerts(p)
}

func (s *apiStub) GetIPReputation(_ context.Context, ip string) (*helloworld.IPReport, error) {
	if s.ipReputation == nil {
		return nil, fmt.Errorf("unexpected GetIPReputation call")
	}
	return s.ipReputation(ip)
}

func (s *apiStub) GetDomainReputation(_ context.Context, domain string) (*helloworld.DomainReport, error) {
	return nil, fmt.Errorf("unexpected GetDomainReputation call")
}

func (s *apiStub) GetAlert(_ context.Context, alertID string) (*helloworld.Alert, error) {
	return nil, fmt.Errorf("unexpected GetAlert call")
}

func (s *apiStub) UpdateAlertStatus(_ context.Context, alertID, status string) (*helloworld.Alert, error) {
	return nil, fmt.Errorf("unexpected UpdateAlertStatus call")
}

func (s *apiStub) ScanStart(_ context.Context, hostname string) (*helloworld.ScanJob, error) {
	return nil, fmt.Errorf("unexpected ScanStart call")
}

func (s *apiStub) ScanStatus(_ context.Context, scanID string) (*helloworld.ScanJob, error) {
	return nil, fmt.Errorf("unexpected ScanStatus call")
}

func (s *apiStub) ScanResults(_ context.Context, scanID string) (*helloworld.ScanResults, error) {
	return nil, fmt.Errorf("unexpected ScanResults call")
}

func (s *apiStub) SayHello(name string) string { return "Hello " + name }

func newTestServer(t *testing.T, stub *apiStub) (*Server, storage.Store) {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Port: ":0"},
		Fetch: config.FetchConfig{
			Interval:    time.Minute,
			FirstFetch:  72 * time.Hour,
			MaxAlerts:   50,
			MinSeverity: "Low",
		},
		Database: config.DatabaseConfig{
			Retention:     30 * 24 * time.Hour,
			PurgeInterval: 24 * time.Hour,
		},
		Logging: config.LoggingConfig{Level: "info"},
	}

	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fwd, err := forwarder.New(config.ForwarderConfig{Mode: config.ForwarderNone})
	require.NoError(t, err)

	collector := metrics.NewCollector(store)
	registry := command.NewRegistry(command.Deps{Client: stub})
	engine := ingest.NewEngine(cfg, stub, store, fwd, collector)

	return NewServer(cfg, store, registry, engine, fwd, collector), store
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	s, _ := newTestServer(t, &apiStub{})

	w := doRequest(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestExecuteCommand(t *testing.T) {
	s, _ := newTestServer(t, &apiStub{})

	w := doRequest(s, http.MethodPost, "/api/commands/helloworld-say-hello",
		`{"args":{"name":"Dave"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "## Hello Dave", resp["readable"])
}

func TestExecuteCommandUnknown(t *testing.T) {
	s, _ := newTestServer(t, &apiStub{})

	w := doRequest(s, http.MethodPost, "/api/commands/frobnicate", `{"args":{}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecuteCommandArgumentError(t *testing.T) {
	s, _ := newTestServer(t, &apiStub{})

	w := doRequest(s, http.MethodPost, "/api/commands/helloworld-say-hello", `{"args":{}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "name not specified")
}

func TestVendorErrorMapsToBadGateway(t *testing.T) {
	stub := &apiStub{
		searchAlerts: func(p helloworld.SearchParams) ([]helloworld.Alert, error) {
			return nil, &helloworld.APIError{StatusCode: 503, Status: "503 Service Unavailable"}
		},
	}
	s, _ := newTestServer(t, stub)

	w := doRequest(s, http.MethodGet, "/api/alerts", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestIPReputationRoute(t *testing.T) {
	stub := &apiStub{
		ipReputation: func(ip string) (*helloworld.IPReport, error) {
			return &helloworld.IPReport{
				IP:    ip,
				Score: 70,
				Raw:   map[string]interface{}{"ip": ip, "score": 70},
			}, nil
		},
	}
	s, _ := newTestServer(t, stub)

	w := doRequest(s, http.MethodGet, "/api/reputation/ip?ip=8.8.8.8", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Indicators []command.Indicator `json:"indicators"`
		Count      int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "8.8.8.8", resp.Indicators[0].Value)
	assert.Equal(t, command.VerdictMalicious, resp.Indicators[0].Verdict)
}

func TestIncidentEndpoints(t *testing.T) {
	s, store := newTestServer(t, &apiStub{})
	ctx := context.Background()

	incidents := []*storage.Incident{
		{AlertID: "a1", Name: "Low one", Severity: 1, Created: 1000, RawJSON: "{}"},
		{AlertID: "a2", Name: "High one", Severity: 3, Created: 2000, RawJSON: "{}"},
	}
	require.NoError(t, store.SaveIncidents(ctx, incidents))

	w := doRequest(s, http.MethodGet, "/api/incidents", "")
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Data  []storage.Incident `json:"data"`
		Count int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Equal(t, 2, listResp.Count)

	w = doRequest(s, http.MethodGet, "/api/incidents?severity=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Equal(t, 1, listResp.Count)
	assert.Equal(t, "a2", listResp.Data[0].AlertID)

	w = doRequest(s, http.MethodGet, "/api/incidents/"+incidents[0].ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/api/incidents/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(s, http.MethodGet, "/api/incidents?severity=9", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckpointEndpoints(t *testing.T) {
	s, _ := newTestServer(t, &apiStub{})

	w := doRequest(s, http.MethodGet, "/api/checkpoint", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"last_fetch":0`)

	w = doRequest(s, http.MethodPut, "/api/checkpoint", `{"last_fetch":12345}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/api/checkpoint", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"last_fetch":12345`)

	w = doRequest(s, http.MethodPut, "/api/checkpoint", `{"last_fetch":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerFetch(t *testing.T) {
	created := time.Now().Unix()
	stub := &apiStub{
		searchAlerts: func(p helloworld.SearchParams) ([]helloworld.Alert, error) {
			return []helloworld.Alert{
				{ID: "a1", Name: "First", Severity: "High", Created: helloworld.EpochSeconds(created)},
			}, nil
		},
	}
	s, store := newTestServer(t, stub)

	w := doRequest(s, http.MethodPost, "/api/fetch/run", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data storage.FetchRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Incidents)
	assert.True(t, resp.Data.Manual)
	assert.Equal(t, created, resp.Data.Checkpoint)

	cp, err := store.GetCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, created, cp)

	w = doRequest(s, http.MethodGet, "/api/fetch/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestAdminEndpoints(t *testing.T) {
	s, store := newTestServer(t, &apiStub{})
	ctx := context.Background()

	old := time.Now().Add(-60 * 24 * time.Hour)
	require.NoError(t, store.SaveIncidents(ctx, []*storage.Incident{
		{AlertID: "old", Name: "Stale", Severity: 1, Created: old.Unix(), RawJSON: "{}", IngestedAt: old},
	}))

	w := doRequest(s, http.MethodPost, "/api/admin/purge", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"purged":1`)

	w = doRequest(s, http.MethodPost, "/api/admin/compact", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/api/forwarder/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"target":"none"`)

	w = doRequest(s, http.MethodPost, "/api/forwarder/test", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
