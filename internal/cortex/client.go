// Package cortex is a small client for the Cortex analysis engine REST API.
package cortex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/cortex-analyzer/internal/ratelimit"
)

// APIError is returned when the engine answers with a non-2xx status.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cortex %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Metrics tracks API call counters.
type Metrics struct {
	APICallsSuccess int64
	APICallsError   int64
	LastActivity    time.Time
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	RPS     int
	Burst   int
	Logger  logrus.FieldLogger

	// InsecureSkipVerify disables certificate checks on the built-in transport.
	InsecureSkipVerify bool

	// HTTPClient overrides the transport built from the options above.
	HTTPClient *http.Client
}

// Client talks to a single Cortex instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     logrus.FieldLogger

	mu      sync.RWMutex
	metrics Metrics
}

// NewClient validates the options and builds a client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("cortex base URL is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("cortex API key is required")
	}
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid cortex base URL: %w", err)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RPS == 0 {
		opts.RPS = 5
	}
	if opts.Burst == 0 {
		opts.Burst = opts.RPS * 2
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}

	hc := opts.HTTPClient
	if hc == nil {
		tr := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
		}
		if opts.InsecureSkipVerify {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
		hc = &http.Client{Timeout: opts.Timeout, Transport: tr}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: hc,
		limiter:    ratelimit.New(opts.RPS, opts.Burst, 0),
		logger:     opts.Logger.WithField("component", "cortex"),
	}, nil
}

// Close releases the rate limiter.
func (c *Client) Close() {
	if c.limiter != nil {
		c.limiter.Close()
	}
}

// Metrics returns a snapshot of the call counters.
func (c *Client) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

func (c *Client) recordAPICall(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.metrics.APICallsSuccess++
	} else {
		c.metrics.APICallsError++
	}
	c.metrics.LastActivity = time.Now()
}

// do performs an authenticated request and decodes a 2xx JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cortex-analyzer/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordAPICall(false)
		return fmt.Errorf("cortex %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.recordAPICall(resp.StatusCode < 400)

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("cortex request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// ListAnalyzers returns every analyzer enabled for the API key's organization.
func (c *Client) ListAnalyzers(ctx context.Context) ([]Analyzer, error) {
	var out []Analyzer
	if err := c.do(ctx, http.MethodGet, "/api/analyzer?range=all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunAnalyzer submits a job for the analyzer with the given ID.
func (c *Client) RunAnalyzer(ctx context.Context, analyzerID string, req AnalyzerRequest) (*Job, error) {
	path := "/api/analyzer/" + url.PathEscape(analyzerID) + "/run"
	if req.Force {
		path += "?force=1"
	}
	var job Job
	if err := c.do(ctx, http.MethodPost, path, req, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("cortex returned a job without id for analyzer %s", analyzerID)
	}
	return &job, nil
}

// GetJob fetches the current state of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/api/job/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetReport fetches the report of a finished job.
func (c *Client) GetReport(ctx context.Context, jobID string) (*Report, error) {
	var env jobReportEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/job/"+url.PathEscape(jobID)+"/report", nil, &env); err != nil {
		return nil, err
	}
	r := env.Report
	r.JobID = jobID
	if r.ErrorMessage == "" {
		r.ErrorMessage = env.ErrorMessage
	}
	return &r, nil
}
