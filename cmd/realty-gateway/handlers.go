package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/realty-gateway/pkg/client"
	"github.com/Sternrassler/realty-gateway/pkg/domain"
	"github.com/Sternrassler/realty-gateway/pkg/gateway"
	"github.com/Sternrassler/realty-gateway/pkg/logging"
	"github.com/Sternrassler/realty-gateway/pkg/metrics"
)

// requestTimeout bounds one inbound call including all upstream retries.
const requestTimeout = 45 * time.Second

func newRouter(svc *gateway.Service, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(redisClient))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1/{type}", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/catalog", catalogHandler(svc))
		r.Get("/count", countHandler(svc))
		r.Get("/items/{id}", detailHandler(svc))
		r.Get("/slug/{slug}", slugHandler(svc))
		r.Get("/dictionaries/{key}", dictionaryHandler(svc))
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.FromContext(ctx).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler checks Redis when the caches live there.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func catalogHandler(svc *gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := objectType(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		set, err := svc.Filters().ParseQuery(t, q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		page, _ := strconv.Atoi(q.Get("page"))
		pageSize, _ := strconv.Atoi(q.Get("page_size"))

		res, err := svc.GetCatalog(r.Context(), gateway.CatalogQuery{
			ObjectType: t,
			City:       q.Get("city"),
			Filters:    set,
			Page:       page,
			PageSize:   pageSize,
			Sort:       q.Get("sort"),
			SortOrder:  q.Get("order"),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func countHandler(svc *gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := objectType(w, r)
		if !ok {
			return
		}
		set, err := svc.Filters().ParseQuery(t, r.URL.Query())
		if err != nil {
			writeError(w, r, err)
			return
		}
		n, err := svc.GetCount(r.Context(), t, r.URL.Query().Get("city"), set)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": n})
	}
}

func detailHandler(svc *gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := objectType(w, r)
		if !ok {
			return
		}
		res, err := svc.GetDetail(r.Context(), t, chi.URLParam(r, "id"), r.URL.Query().Get("city"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func slugHandler(svc *gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := objectType(w, r)
		if !ok {
			return
		}
		res, err := svc.GetDetailBySlug(r.Context(), t, chi.URLParam(r, "slug"), r.URL.Query().Get("city"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func dictionaryHandler(svc *gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := objectType(w, r)
		if !ok {
			return
		}
		dict, err := svc.GetDictionary(r.Context(), t, chi.URLParam(r, "key"), r.URL.Query().Get("city"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dict)
	}
}

func objectType(w http.ResponseWriter, r *http.Request) (domain.ObjectType, bool) {
	t, err := domain.ParseObjectType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, err)
		return "", false
	}
	return t, true
}

// statusFor maps gateway errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidFilter), errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, client.ErrContextCancelled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ev := logging.FromContext(r.Context()).Warn()
	if status == http.StatusBadGateway {
		ev = logging.FromContext(r.Context()).Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
