package aggregate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/realty-gateway/pkg/client"
	"github.com/Sternrassler/realty-gateway/pkg/domain"
	"github.com/Sternrassler/realty-gateway/pkg/mapper"
	"github.com/Sternrassler/realty-gateway/pkg/ratelimit"
	"github.com/Sternrassler/realty-gateway/pkg/router"
)

var fixedNow = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }

func noSleep(context.Context, time.Duration) error { return nil }

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	transport, err := client.New(client.DefaultConfig("realty-gateway-test"))
	require.NoError(t, err)
	retrier := client.NewRetrier(client.DefaultRetryConfig()).WithSleep(noSleep)
	limiter := ratelimit.NewLimiter(4, nil, zerolog.Nop())
	return NewExecutor(transport, retrier, limiter, zerolog.Nop())
}

func newAggregator(t *testing.T, srv *httptest.Server) *Aggregator {
	t.Helper()
	logger := zerolog.Nop()
	agg, err := NewAggregator(Config{
		Router:     router.NewRouter(router.HostSet{Complex: srv.URL, Unit: srv.URL}),
		Executor:   newExecutor(t),
		Strategies: DefaultStrategies(fixedNow),
		Lang:       "ru",
		Logger:     &logger,
	})
	require.NoError(t, err)
	return agg
}

// complexUpstream serves every complex sub-endpoint, failing the named sections with 400.
func complexUpstream(t *testing.T, failing ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/v2/complexes/c1")
		section := strings.TrimPrefix(path, "/")
		for _, f := range failing {
			if section == f {
				http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case path == "":
			fmt.Fprint(w, `{"data":{"_id":"c1","name":"River Park","developer":"Stroy"}}`)
		case section == "prices":
			fmt.Fprint(w, `{"data":{"min":5000000,"max":9000000}}`)
		case section == "advantages":
			fmt.Fprint(w, `{"data":["park","school"]}`)
		case section == "photos":
			fmt.Fprint(w, `{"data":[{"url":"https://img/1.jpg"},{"url":"https://img/2.jpg"}]}`)
		case section == "buildings":
			fmt.Fprint(w, `[{"id":"b1"},{"id":"b2"},{"id":"b3"}]`)
		case strings.HasPrefix(section, "progress/"):
			year := strings.TrimPrefix(section, "progress/")
			fmt.Fprintf(w, `{"data":{"photos":["https://img/progress-%s.jpg"]}}`, year)
		default:
			fmt.Fprintf(w, `{"data":{"section":%q}}`, section)
		}
	}))
}

func TestComplexStrategy_Endpoints(t *testing.T) {
	eps := complexStrategy{now: fixedNow}.EndpointsFor("c1")
	require.Len(t, eps, 22)

	names := make(map[string]bool)
	for _, ep := range eps {
		names[ep.Name] = true
	}
	assert.True(t, names[PrimaryEndpoint])
	assert.True(t, names["prices"])
	for year := 2022; year <= 2026; year++ {
		assert.True(t, names[fmt.Sprintf("progress_%d", year)], "year %d", year)
	}
	assert.False(t, names["progress_2021"])
}

func TestAggregate_AllSucceed(t *testing.T) {
	srv := complexUpstream(t)
	defer srv.Close()

	merged, err := newAggregator(t, srv).Aggregate(context.Background(), domain.TypeComplex, "c1", "msk", "tok")
	require.NoError(t, err)

	assert.Equal(t, "River Park", merged.Entity["name"])
	assert.Equal(t, float64(3), merged.Entity["buildings_count"])
	assert.Contains(t, merged.Related, "developer")
	assert.Len(t, merged.Related["progress"], 5)
}

func TestAggregate_PartialFailure(t *testing.T) {
	srv := complexUpstream(t, "prices", "advantages")
	defer srv.Close()

	merged, err := newAggregator(t, srv).Aggregate(context.Background(), domain.TypeComplex, "c1", "msk", "tok")
	require.Error(t, err)

	var partial *PartialAggregationError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []string{"advantages", "prices"}, partial.FailedEndpoints)
	assert.Len(t, partial.Causes, 2)
	assert.Equal(t, http.StatusBadRequest, client.StatusCodeOf(partial.Causes["prices"]))

	entity, err := mapper.NewFactory().Create(domain.TypeComplex, merged.Entity)
	require.NoError(t, err)
	c := entity.(domain.Complex)

	assert.Equal(t, "River Park", c.Name)
	assert.Equal(t, "Stroy", c.Developer)
	require.NotNil(t, c.BuildingsCount)
	assert.Equal(t, 3, *c.BuildingsCount)
	assert.Nil(t, c.MinPrice)
	assert.Nil(t, c.MaxPrice)
	assert.Empty(t, c.Advantages)

	photos := 0
	for _, m := range merged.Media {
		if m.Kind == domain.MediaPhoto {
			photos++
		}
	}
	assert.Equal(t, 2+5, photos)
}

func TestAggregate_PrimaryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newAggregator(t, srv).Aggregate(context.Background(), domain.TypeUnit, "u404", "msk", "tok")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAggregate_SingleEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/flats/u1", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get(router.TokenParam))
		fmt.Fprint(w, `{"id":"u1","rooms":2,"photos":["https://img/u1.jpg"]}`)
	}))
	defer srv.Close()

	merged, err := newAggregator(t, srv).Aggregate(context.Background(), domain.TypeUnit, "u1", "msk", "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", merged.Entity["id"])
	assert.Len(t, merged.Media, 1)
}

func TestAggregate_EverythingFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newAggregator(t, srv).Aggregate(context.Background(), domain.TypeUnit, "u1", "msk", "tok")
	require.Error(t, err)
	assert.True(t, client.IsRetryExhausted(err))

	var partial *PartialAggregationError
	assert.False(t, errors.As(err, &partial))
}

func TestExecuteAll_FailFastCancelsSiblings(t *testing.T) {
	var cancelled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		select {
		case <-r.Context().Done():
			cancelled.Store(true)
		case <-time.After(5 * time.Second):
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	exec := newExecutor(t)
	start := time.Now()
	_, err := exec.ExecuteAll(context.Background(), map[string]client.Request{
		"fail": {URL: srv.URL + "/fail"},
		"slow": {URL: srv.URL + "/slow"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail")
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Eventually(t, cancelled.Load, 2*time.Second, 10*time.Millisecond)
}

func TestExecuteAll_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"path":%q}`, r.URL.Path)
	}))
	defer srv.Close()

	out, err := newExecutor(t).ExecuteAll(context.Background(), map[string]client.Request{
		"a": {URL: srv.URL + "/a"},
		"b": {URL: srv.URL + "/b"},
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.JSONEq(t, `{"path":"/b"}`, string(out["b"].Body))
}

func TestExecuteAllSettled_EveryKeyResolves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	results := newExecutor(t).ExecuteAllSettled(context.Background(), map[string]client.Request{
		"ok":      {URL: srv.URL + "/ok"},
		"missing": {URL: srv.URL + "/missing"},
		"bad":     {URL: "://bad-url"},
	})
	require.Len(t, results, 3)
	assert.True(t, results["ok"].OK())
	assert.False(t, results["missing"].OK())
	assert.Equal(t, http.StatusNotFound, client.StatusCodeOf(results["missing"].Err))
	assert.False(t, results["bad"].OK())
}
