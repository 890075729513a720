package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(DefaultConfig("RealtyGateway/1.0 (test@example.com)"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{name: "valid config", config: DefaultConfig("TestApp/1.0")},
		{name: "empty user agent", config: Config{}, expectError: true},
		{name: "zero timeout gets default", config: Config{UserAgent: "TestApp/1.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.config.Timeout <= 0 {
				t.Errorf("Timeout = %v, want > 0", c.config.Timeout)
			}
		})
	}
}

func TestClient_BaselineHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(t)
	override := http.Header{}
	override.Set("Accept-Language", "en")
	override.Set("Referer", "https://example.com/")

	resp, err := c.Get(context.Background(), server.URL, override, 0)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !resp.IsSuccess() {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if ua := got.Get("User-Agent"); ua != "RealtyGateway/1.0 (test@example.com)" {
		t.Errorf("User-Agent = %q", ua)
	}
	if accept := got.Get("Accept"); accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", accept)
	}
	if lang := got.Values("Accept-Language"); len(lang) != 1 || lang[0] != "en" {
		t.Errorf("Accept-Language = %v, want [en]", lang)
	}
	if ref := got.Get("Referer"); ref != "https://example.com/" {
		t.Errorf("Referer = %q", ref)
	}
	if got.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID to be set")
	}
}

func TestClient_NonSuccessIsNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resp, err := newTestClient(t).Get(context.Background(), server.URL, nil, 0)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestClient_Post(t *testing.T) {
	var body string
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		r.ParseForm()
		body = r.PostForm.Get("phone")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := newTestClient(t).Post(context.Background(), server.URL, []byte("phone=%2B79990001122"), header, 0)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	if method != http.MethodPost {
		t.Errorf("method = %s, want POST", method)
	}
	if body != "+79990001122" {
		t.Errorf("phone = %q", body)
	}
}

func TestClient_NoRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.Redirect(w, r, "/done?auth_token=abc", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t)
	resp, err := c.Do(context.Background(), Request{URL: server.URL + "/login", NoRedirect: true})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !resp.IsRedirect() {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.Contains(loc, "auth_token=abc") {
		t.Errorf("Location = %q", loc)
	}

	followed, err := c.Do(context.Background(), Request{URL: server.URL + "/login"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if followed.StatusCode != http.StatusOK {
		t.Errorf("followed status = %d, want 200", followed.StatusCode)
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	_, err := newTestClient(t).Get(context.Background(), server.URL, nil, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if class := ClassifyError(err); class != ErrorClassTimeout {
		t.Errorf("class = %s, want %s", class, ErrorClassTimeout)
	}
}

func TestClient_InvalidURLIsTerminal(t *testing.T) {
	_, err := newTestClient(t).Get(context.Background(), "http://[::1", nil, 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if class := ClassifyError(err); class != ErrorClassClient {
		t.Errorf("class = %s, want %s", class, ErrorClassClient)
	}
}

func TestClient_GetParallel(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	urls := map[string]string{
		"info":   server.URL + "/info",
		"photos": server.URL + "/photos",
		"broken": "http://127.0.0.1:1/unreachable",
	}

	responses, errs := newTestClient(t).GetParallel(context.Background(), urls, nil, time.Second)

	if len(responses)+len(errs) != len(urls) {
		t.Fatalf("got %d responses + %d errors, want %d", len(responses), len(errs), len(urls))
	}
	if string(responses["info"].Body) != "/info" {
		t.Errorf("info body = %q", responses["info"].Body)
	}
	if string(responses["photos"].Body) != "/photos" {
		t.Errorf("photos body = %q", responses["photos"].Body)
	}
	if _, ok := errs["broken"]; !ok {
		t.Error("expected error for broken endpoint")
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t).Get(ctx, server.URL, nil, time.Second)
	if err == nil {
		t.Fatal("expected error")
	}
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError, got %T", err)
	}
	if upErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("class = %s, want network for caller cancellation", upErr.ErrorClass)
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		changed bool
	}{
		{in: "https://api.example.com/v1/complex?city=msk", want: "https://api.example.com/v1/complex?city=msk"},
		{in: "https://api.example.com/v1/complex?auth_token=secret&city=msk", changed: true},
		{in: "https://sso.example.com/token?client_id=a&client_secret=b", changed: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RedactURL(tt.in)
			if tt.changed {
				if strings.Contains(got, "secret") && !strings.Contains(got, "client_secret=REDACTED") {
					t.Errorf("RedactURL(%q) = %q, secret leaked", tt.in, got)
				}
				if !strings.Contains(got, "REDACTED") {
					t.Errorf("RedactURL(%q) = %q, want REDACTED marker", tt.in, got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("RedactURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
