// internal/helloworld/client.go - HTTP client for the HelloWorld API
package helloworld

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// APIPrefix is appended to the configured service URL; every endpoint
	// lives under it.
	APIPrefix = "/api/v1"

	UserAgent = "HelloBridge/1.0"

	defaultTimeout = 30 * time.Second
)

// Config holds the connection settings for the HelloWorld service.
type Config struct {
	URL      string
	APIKey   string
	Timeout  time.Duration
	Insecure bool
	Proxy    string
}

// RequestRecorder receives one observation per API request, for metrics.
type RequestRecorder interface {
	RecordAPIRequest(endpoint string, statusCode int, duration time.Duration)
}

// Client talks to the HelloWorld API. All calls are synchronous HTTP GETs
// authenticated with a bearer token; no call is ever retried.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	recorder   RequestRecorder
}

// APIError is a non-2xx response from the service. The message carries the
// HTTP status text, so an authentication failure reads "403 Forbidden".
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("helloworld API error: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("helloworld API error: %s", e.Status)
}

// IsForbidden reports whether err is an API response with HTTP 403.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

// NewClient creates a client for the service at cfg.URL. The API prefix is
// appended here, so cfg.URL is the bare service address.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("service URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure},
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/") + APIPrefix,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}, nil
}

// SetRecorder attaches a metrics recorder. Pass nil to detach.
func (c *Client) SetRecorder(rec RequestRecorder) {
	c.recorder = rec
}

// SearchParams filters an alert search. Zero values are omitted from the
// request entirely.
type SearchParams struct {
	Status     string
	Type       string
	Severity   string // comma-separated severity levels
	MaxResults int
	StartTime  int64 // epoch seconds
}

// GetIPReputation fetches the reputation report for a single IP address.
func (c *Client) GetIPReputation(ctx context.Context, ip string) (*IPReport, error) {
	params := url.Values{}
	params.Set("ip", ip)

	var report IPReport
	if err := c.get(ctx, "/ip", params, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetDomainReputation fetches the reputation report for a single domain.
func (c *Client) GetDomainReputation(ctx context.Context, domain string) (*DomainReport, error) {
	params := url.Values{}
	params.Set("domain", domain)

	var report DomainReport
	if err := c.get(ctx, "/domain", params, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SearchAlerts returns the alerts matching p.
func (c *Client) SearchAlerts(ctx context.Context, p SearchParams) ([]Alert, error) {
	params := url.Values{}
	if p.Status != "" {
		params.Set("alert_status", p.Status)
	}
	if p.Type != "" {
		params.Set("alert_type", p.Type)
	}
	if p.Severity != "" {
		params.Set("severity", p.Severity)
	}
	if p.MaxResults > 0 {
		params.Set("max_results", strconv.Itoa(p.MaxResults))
	}
	if p.StartTime > 0 {
		params.Set("start_time", strconv.FormatInt(p.StartTime, 10))
	}

	var alerts []Alert
	if err := c.get(ctx, "/get_alerts", params, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetAlert fetches a single alert by id.
func (c *Client) GetAlert(ctx context.Context, alertID string) (*Alert, error) {
	params := url.Values{}
	params.Set("alert_id", alertID)

	var alert Alert
	if err := c.get(ctx, "/get_alert_details", params, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// UpdateAlertStatus changes an alert's status and returns the updated alert.
func (c *Client) UpdateAlertStatus(ctx context.Context, alertID, status string) (*Alert, error) {
	params := url.Values{}
	params.Set("alert_id", alertID)
	params.Set("alert_status", status)

	var alert Alert
	if err := c.get(ctx, "/change_alert_status", params, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// ScanStart starts a scan against hostname and returns the new job.
func (c *Client) ScanStart(ctx context.Context, hostname string) (*ScanJob, error) {
	params := url.Values{}
	params.Set("hostname", hostname)

	var job ScanJob
	if err := c.get(ctx, "/start_scan", params, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ScanStatus returns the current state of a scan job.
func (c *Client) ScanStatus(ctx context.Context, scanID string) (*ScanJob, error) {
	params := url.Values{}
	params.Set("scan_id", scanID)

	var job ScanJob
	if err := c.get(ctx, "/check_scan", params, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ScanResults returns the result payload of a finished scan.
func (c *Client) ScanResults(ctx context.Context, scanID string) (*ScanResults, error) {
	params := url.Values{}
	params.Set("scan_id", scanID)

	var results ScanResults
	if err := c.get(ctx, "/get_scan_results", params, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// SayHello greets name. No request is made; the greeting is local.
func (c *Client) SayHello(name string) string {
	return "Hello " + name
}

// get performs one GET request against the API and decodes the JSON response
// into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	requestURL := c.baseURL + endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(endpoint, 0, start)
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.record(endpoint, resp.StatusCode, start)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
		logrus.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Debug("HelloWorld API request failed")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) record(endpoint string, statusCode int, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordAPIRequest(endpoint, statusCode, time.Since(start))
	}
}
