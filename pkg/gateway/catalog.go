package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/realty-gateway/pkg/client"
	"github.com/Sternrassler/realty-gateway/pkg/domain"
	"github.com/Sternrassler/realty-gateway/pkg/filter"
	"github.com/Sternrassler/realty-gateway/pkg/normalize"
	"github.com/Sternrassler/realty-gateway/pkg/pagination"
	"github.com/Sternrassler/realty-gateway/pkg/router"
)

// CatalogQuery selects one page of a catalog.
type CatalogQuery struct {
	ObjectType domain.ObjectType
	City       string
	// Filters is optional; when set it must be bound to ObjectType.
	Filters   *filter.Set
	Page      int
	PageSize  int
	Sort      string
	SortOrder string
}

// CatalogResult is one page of typed entities.
type CatalogResult struct {
	Items          []domain.Entity     `json:"items"`
	Total          int                 `json:"total"`
	Pagination     pagination.Metadata `json:"pagination"`
	AppliedFilters map[string]any      `json:"applied_filters"`
	Meta           map[string]any      `json:"meta"`
}

const (
	catalogRequest = "catalog"
	countRequest   = "count"
)

// GetCatalog fetches one page of t's catalog. The page and the total count
// are requested together; the count endpoint wins over the envelope total.
// Items that fail mapping are skipped and counted in Meta["skipped_items"].
func (s *Service) GetCatalog(ctx context.Context, q CatalogQuery) (*CatalogResult, error) {
	filters, err := s.query(q.ObjectType, q.Filters)
	if err != nil {
		return nil, err
	}
	window := pagination.ToOffsetCount(q.Page, q.PageSize)

	page := cloneValues(filters)
	page.Set("offset", strconv.Itoa(window.Offset))
	page.Set("count", strconv.Itoa(window.Count))
	if q.Sort != "" {
		page.Set("sort", q.Sort)
		if q.SortOrder != "" {
			page.Set("order", q.SortOrder)
		}
	}

	responses, err := withToken(ctx, s, q.ObjectType, func(token string) (map[string]*client.Response, error) {
		catalogReq, err := s.request(q.ObjectType, router.OpCatalog, nil, page, q.City, token)
		if err != nil {
			return nil, err
		}
		countReq, err := s.request(q.ObjectType, router.OpCount, nil, filters, q.City, token)
		if err != nil {
			return nil, err
		}
		return s.executor.ExecuteAll(ctx, map[string]client.Request{
			catalogRequest: catalogReq,
			countRequest:   countReq,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", q.ObjectType, err)
	}

	catalog, err := normalize.NormalizeCatalog(responses[catalogRequest].Body)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", q.ObjectType, err)
	}
	total := catalog.Total
	if n, err := normalize.ParseTotal(responses[countRequest].Body); err == nil {
		total = n
	} else {
		s.logger.Debug().Err(err).Str("object_type", string(q.ObjectType)).Msg("Count unreadable, using envelope total")
	}

	items := make([]domain.Entity, 0, len(catalog.Items))
	skipped := 0
	for _, raw := range catalog.Items {
		entity, err := s.factory.Create(q.ObjectType, raw)
		if err != nil {
			skipped++
			s.logger.Warn().Err(err).Str("object_type", string(q.ObjectType)).Msg("Skipping catalog item")
			continue
		}
		items = append(items, entity)
	}

	applied := map[string]any{}
	if q.Filters != nil {
		applied = q.Filters.Applied()
	}

	return &CatalogResult{
		Items:          items,
		Total:          total,
		Pagination:     pagination.ToMetadata(total, window.Offset, window.Count),
		AppliedFilters: applied,
		Meta: map[string]any{
			"object_type":   string(q.ObjectType),
			"city":          s.city(q.City),
			"skipped_items": skipped,
			"received":      len(catalog.Items),
		},
	}, nil
}

// GetCount returns the number of t's objects matching filters.
func (s *Service) GetCount(ctx context.Context, t domain.ObjectType, city string, filters *filter.Set) (int, error) {
	query, err := s.query(t, filters)
	if err != nil {
		return 0, err
	}

	resp, err := withToken(ctx, s, t, func(token string) (*client.Response, error) {
		req, err := s.request(t, router.OpCount, nil, query, city, token)
		if err != nil {
			return nil, err
		}
		return s.executor.Execute(ctx, req)
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", t, err)
	}
	return normalize.ParseTotal(resp.Body)
}

// FirstPage returns the first count raw items of t's catalog, unmapped.
func (s *Service) FirstPage(ctx context.Context, t domain.ObjectType, city string, count int) ([]map[string]any, error) {
	query := s.router.ApplySpecialParams(t, url.Values{})
	query.Set("offset", "0")
	query.Set("count", strconv.Itoa(count))

	resp, err := withToken(ctx, s, t, func(token string) (*client.Response, error) {
		req, err := s.request(t, router.OpCatalog, nil, query, city, token)
		if err != nil {
			return nil, err
		}
		return s.executor.Execute(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	catalog, err := normalize.NormalizeCatalog(resp.Body)
	if err != nil {
		return nil, err
	}
	return catalog.Items, nil
}

// query validates the filter binding and returns t's upstream filter
// parameters with forced type parameters applied.
func (s *Service) query(t domain.ObjectType, set *filter.Set) (url.Values, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("object type %q: %w", t, domain.ErrUnsupported)
	}
	params := url.Values{}
	if set != nil {
		if set.ObjectType() != t {
			return nil, &filter.InvalidFilterError{ObjectType: t, Reason: fmt.Sprintf("filter set is bound to %s", set.ObjectType())}
		}
		params = s.filters.ToQueryParams(set)
	}
	return s.router.ApplySpecialParams(t, params), nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
