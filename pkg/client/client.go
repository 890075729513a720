// Package client provides the raw HTTP transport used to talk to upstream
// real-estate providers, plus the retry policy that wraps it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/realty-gateway/pkg/logging"
)

// Prometheus metrics for upstream requests.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realty_upstream_requests_total",
		Help: "Total upstream requests by host and status",
	}, []string{"host", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realty_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by host",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"host"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realty_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// Config holds the transport configuration.
type Config struct {
	// UserAgent is sent with every request unless the caller overrides it.
	UserAgent string

	// AcceptLanguage is the baseline Accept-Language header.
	AcceptLanguage string

	// Timeout is the per-request timeout used when a call passes 0.
	Timeout time.Duration

	// HTTPClient is optional; its Transport is reused for the no-redirect client.
	HTTPClient *http.Client

	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:      userAgent,
		AcceptLanguage: "ru-RU,ru;q=0.9,en;q=0.8",
		Timeout:        15 * time.Second,
	}
}

// Request describes one upstream call.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration

	// NoRedirect returns 3xx responses as-is instead of following them.
	NoRedirect bool
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
	Duration   time.Duration
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRedirect reports a 3xx status.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response from %s: %w", r.URL, err)
	}
	return nil
}

// Client is the upstream transport. It carries no business knowledge.
type Client struct {
	httpClient       *http.Client
	noRedirectClient *http.Client
	baseHeaders      http.Header
	config           Config
	logger           zerolog.Logger
}

// New creates a new transport.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	logger := logging.NewLogger("transport")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "transport").Logger()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	noRedirect := &http.Client{
		Transport: httpClient.Transport,
		Jar:       httpClient.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	base := http.Header{}
	base.Set("User-Agent", cfg.UserAgent)
	base.Set("Accept", "application/json")
	if cfg.AcceptLanguage != "" {
		base.Set("Accept-Language", cfg.AcceptLanguage)
	}

	return &Client{
		httpClient:       httpClient,
		noRedirectClient: noRedirect,
		baseHeaders:      base,
		config:           cfg,
		logger:           logger,
	}, nil
}

// Do executes a single request. Non-2xx statuses are returned as a Response,
// not an error; only transport failures produce an error.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, r.URL, body)
	if err != nil {
		return nil, &UpstreamError{
			ErrorClass: ErrorClassClient,
			URL:        RedactURL(r.URL),
			Message:    "create request",
			Err:        err,
		}
	}
	c.applyHeaders(req, r.Header)

	host := req.URL.Host
	safeURL := RedactURL(r.URL)

	c.logger.Debug().
		Str("method", method).
		Str("url", safeURL).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("Executing upstream request")

	start := time.Now()
	httpClient := c.httpClient
	if r.NoRedirect {
		httpClient = c.noRedirectClient
	}
	resp, err := httpClient.Do(req)
	duration := time.Since(start)
	upstreamRequestDuration.WithLabelValues(host).Observe(duration.Seconds())

	if err != nil {
		class := ErrorClassNetwork
		if reqCtx.Err() != nil && ctx.Err() == nil {
			class = ErrorClassTimeout
		}
		upstreamErrorsTotal.WithLabelValues(string(class)).Inc()
		upstreamRequestsTotal.WithLabelValues(host, string(class)).Inc()
		c.logger.Warn().Err(err).Str("url", safeURL).Str("error_class", string(class)).Msg("Upstream request failed")
		return nil, &UpstreamError{
			ErrorClass: class,
			URL:        safeURL,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			URL:        safeURL,
			Message:    "read body",
			Err:        err,
		}
	}

	upstreamRequestsTotal.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()
	if class := ClassifyStatus(resp.StatusCode); class != "" {
		upstreamErrorsTotal.WithLabelValues(string(class)).Inc()
	}

	c.logger.Debug().
		Str("url", safeURL).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("Upstream response")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
		URL:        safeURL,
		Duration:   duration,
	}, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header, timeout time.Duration) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Header: header, Timeout: timeout})
}

// Post performs a POST request with the given body.
func (c *Client) Post(ctx context.Context, rawURL string, body []byte, header http.Header, timeout time.Duration) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Body: body, Header: header, Timeout: timeout})
}

// GetParallel issues one GET per named URL concurrently. Every name appears in
// exactly one of the two returned maps.
func (c *Client) GetParallel(ctx context.Context, urls map[string]string, header http.Header, timeout time.Duration) (map[string]*Response, map[string]error) {
	responses := make(map[string]*Response, len(urls))
	errs := make(map[string]error)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, u := range urls {
		wg.Add(1)
		go func(name, u string) {
			defer wg.Done()
			resp, err := c.Get(ctx, u, header, timeout)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[name] = err
				return
			}
			responses[name] = resp
		}(name, u)
	}
	wg.Wait()

	return responses, errs
}

// applyHeaders sets the baseline headers, then caller overrides on top.
func (c *Client) applyHeaders(req *http.Request, override http.Header) {
	for key, values := range c.baseHeaders {
		req.Header[key] = append([]string(nil), values...)
	}
	for key, values := range override {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
}

// RedactURL hides credential query parameters so URLs can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	changed := false
	for _, key := range []string{"auth_token", "client_secret", "password"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}
