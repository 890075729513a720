package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("1.0.0")
	SetBuildInfo("1.1.0")

	if got := testutil.CollectAndCount(buildInfo); got != 1 {
		t.Errorf("Expected one build info series, got %d", got)
	}
	if got := testutil.ToFloat64(buildInfo.WithLabelValues("1.1.0")); got != 1 {
		t.Errorf("Expected build info 1, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	SetBuildInfo("test")

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `realty_build_info{version="test"} 1`) {
		t.Error("Expected metrics output to contain realty_build_info")
	}
}
