package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/realty-gateway/internal/testutil"
	"github.com/Sternrassler/realty-gateway/pkg/client"
	"github.com/Sternrassler/realty-gateway/pkg/gateway"
	"github.com/Sternrassler/realty-gateway/pkg/router"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Redis container not available: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		redisC.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newTestServer(t *testing.T, mock *testutil.MockUpstream) *httptest.Server {
	t.Helper()
	transport, err := client.New(client.DefaultConfig("realty-gateway-test"))
	if err != nil {
		t.Fatalf("Failed to create transport: %v", err)
	}
	logger := zerolog.Nop()
	host := mock.URL()
	svc, err := gateway.New(gateway.Config{
		Transport: transport,
		Hosts: router.HostSet{
			Complex: host, Unit: host, ParkingSpace: host, LandPlot: host,
			CommercialUnit: host, HouseProject: host, Settlement: host,
		},
		Retrier: client.NewRetrier(client.DefaultRetryConfig()).WithSleep(func(context.Context, time.Duration) error { return nil }),
		Logger:  &logger,
	})
	if err != nil {
		t.Fatalf("Failed to create gateway: %v", err)
	}
	srv := httptest.NewServer(newRouter(svc, nil))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint_InMemory(t *testing.T) {
	w := httptest.NewRecorder()
	readyHandler(nil)(w, httptest.NewRequest("GET", "/ready", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestReadyEndpoint_Redis(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	handler := readyHandler(redisClient)

	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/ready", nil))
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		redisClient.Close()

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/ready", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/v1/settlements/count", testutil.NewJSONResponse(`5`))
	srv := newTestServer(t, mock)

	// Issue one upstream call so the labelled series exist.
	get(t, srv.URL+"/api/v1/settlement/count")

	status, body := get(t, srv.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(body, "realty_upstream_requests_total") {
		t.Error("Expected metrics output to contain realty_upstream_requests_total")
	}
}

func TestCatalogRoute(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/v1/settlements", testutil.NewJSONResponse(`{"results":[{"id":"s1","name":"Pine"},{"id":"s2","name":"Oak"}],"totalCount":40}`))
	mock.SetResponse("/v1/settlements/count", testutil.NewJSONResponse(`{"total":40}`))
	srv := newTestServer(t, mock)

	status, body := get(t, srv.URL+"/api/v1/settlement/catalog?page=2&page_size=10&city=spb")
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", status, body)
	}

	var res struct {
		Items      []map[string]any `json:"items"`
		Total      int              `json:"total"`
		Pagination struct {
			CurrentPage int  `json:"current_page"`
			HasMore     bool `json:"has_more"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		t.Fatalf("Decode body: %v", err)
	}
	if len(res.Items) != 2 || res.Total != 40 {
		t.Errorf("Expected 2 items of 40, got %d of %d", len(res.Items), res.Total)
	}
	if res.Pagination.CurrentPage != 2 || !res.Pagination.HasMore {
		t.Errorf("Unexpected pagination: %+v", res.Pagination)
	}
	if got := mock.LastQuery("/v1/settlements").Get("offset"); got != "10" {
		t.Errorf("Expected offset 10, got %s", got)
	}
}

func TestErrorMapping(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/v1/commercial/count", testutil.NewServerErrorResponse())
	srv := newTestServer(t, mock)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown type", "/api/v1/castle/catalog", http.StatusBadRequest},
		{"unknown filter", "/api/v1/unit/count?nonexistent=1", http.StatusBadRequest},
		{"inapplicable filter", "/api/v1/land_plot/count?room=2", http.StatusBadRequest},
		{"missing detail", "/api/v1/settlement/items/nope", http.StatusNotFound},
		{"no dictionaries", "/api/v1/settlement/dictionaries/class", http.StatusBadRequest},
		{"upstream down", "/api/v1/commercial_unit/count", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, srv.URL+tt.path)
			if status != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, status, body)
			}
			if !strings.Contains(body, `"error"`) {
				t.Errorf("Expected JSON error body, got %s", body)
			}
		})
	}
}
