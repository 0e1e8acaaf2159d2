// internal/helloworld/client_test.go
package helloworld

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Config{APIKey: "key"})
	assert.Error(t, err)
}

func TestNewClientRejectsBadProxy(t *testing.T) {
	_, err := NewClient(Config{URL: "http://example.com", Proxy: "://bad"})
	assert.Error(t, err)
}

func TestGetIPReputation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, APIPrefix+"/ip", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "1.1.1.1", r.URL.Query().Get("ip"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"score":"70","asn":"13335","network":{"links":["https://example.com/evil"]},` +
			`"objects":{"big":"blob"},"country":"AU"}`))
	})

	report, err := client.GetIPReputation(context.Background(), "1.1.1.1")
	require.NoError(t, err)

	assert.Equal(t, Score(70), report.Score)
	assert.Equal(t, "13335", report.ASN)
	assert.Equal(t, []string{"https://example.com/evil"}, report.Links())
	assert.Equal(t, "AU", report.Raw["country"])
}

func TestSearchAlertsParams(t *testing.T) {
	var query map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, APIPrefix+"/get_alerts", r.URL.Path)
		query = map[string]string{}
		for key := range r.URL.Query() {
			query[key] = r.URL.Query().Get(key)
		}
		w.Write([]byte(`[{"alert_id":"1","name":"a","created":1601398110}]`))
	})

	alerts, err := client.SearchAlerts(context.Background(), SearchParams{
		Status:     "ACTIVE",
		Severity:   "Medium,High,Critical",
		MaxResults: 10,
		StartTime:  1601000000,
	})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Equal(t, map[string]string{
		"alert_status": "ACTIVE",
		"severity":     "Medium,High,Critical",
		"max_results":  "10",
		"start_time":   "1601000000",
	}, query)
}

func TestSearchAlertsOmitsZeroParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		w.Write([]byte(`[]`))
	})

	alerts, err := client.SearchAlerts(context.Background(), SearchParams{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestForbiddenResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusForbidden)
	})

	_, err := client.SearchAlerts(context.Background(), SearchParams{MaxResults: 1})
	require.Error(t, err)

	assert.True(t, IsForbidden(err))
	assert.Contains(t, err.Error(), "Forbidden")
}

func TestServerErrorIsNotForbidden(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.GetAlert(context.Background(), "42")
	require.Error(t, err)
	assert.False(t, IsForbidden(err))
}

func TestUpdateAlertStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, APIPrefix+"/change_alert_status", r.URL.Path)
		assert.Equal(t, "695b3238", r.URL.Query().Get("alert_id"))
		assert.Equal(t, "CLOSED", r.URL.Query().Get("alert_status"))
		w.Write([]byte(`{"alert_id":"695b3238","alert_status":"CLOSED","updated":"1601398210"}`))
	})

	alert, err := client.UpdateAlertStatus(context.Background(), "695b3238", "CLOSED")
	require.NoError(t, err)

	assert.Equal(t, "CLOSED", alert.Status)
	assert.Equal(t, int64(1601398210), alert.Updated.Unix())
}

func TestScanLifecycleCalls(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case APIPrefix + "/start_scan":
			assert.Equal(t, "example.com", r.URL.Query().Get("hostname"))
			w.Write([]byte(`{"scan_id":"7a161a3f","status":"RUNNING"}`))
		case APIPrefix + "/check_scan":
			assert.Equal(t, "7a161a3f", r.URL.Query().Get("scan_id"))
			w.Write([]byte(`{"scan_id":"7a161a3f","status":"COMPLETE"}`))
		case APIPrefix + "/get_scan_results":
			w.Write([]byte(`{"scan_id":"7a161a3f","status":"COMPLETE","entities":[{"vulns":["CVE-2020-1"]}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	ctx := context.Background()

	job, err := client.ScanStart(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "7a161a3f", job.ScanID)
	assert.False(t, job.Done())

	job, err = client.ScanStatus(ctx, job.ScanID)
	require.NoError(t, err)
	assert.True(t, job.Done())

	results, err := client.ScanResults(ctx, job.ScanID)
	require.NoError(t, err)
	assert.Equal(t, []string{"CVE-2020-1"}, results.CVEs())
}

func TestGetDomainReputationDates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "example.net", r.URL.Query().Get("domain"))
		w.Write([]byte(`{"score":10,"creation_date":["1997-09-15 04:00:00"],"expiration_date":"2028-09-14 04:00:00",` +
			`"org":"Example Org","name_servers":["ns1.example.net"],"registrar":"Example Registrar"}`))
	})

	report, err := client.GetDomainReputation(context.Background(), "example.net")
	require.NoError(t, err)

	assert.Equal(t, Score(10), report.Score)
	assert.Equal(t, "1997-09-15 04:00:00", report.CreationDate.First())
	assert.Equal(t, "2028-09-14 04:00:00", report.ExpirationDate.First())
	assert.Equal(t, []string{"ns1.example.net"}, report.NameServers)
}

func TestSayHelloIsLocal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("say hello must not hit the API")
	})

	assert.Equal(t, "Hello DBot", client.SayHello("DBot"))
}
