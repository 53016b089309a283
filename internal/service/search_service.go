package service

import (
	"context"
	"fmt"
	"strings"

	"scicat/internal/models"
	"scicat/internal/repository"

	"go.uber.org/zap"
)

// SearchResult is a resource together with the tier it matched in.
// Tier is 0 for the unfiltered listing returned by an empty query.
type SearchResult struct {
	Resource models.Resource `json:"resource"`
	Tier     int             `json:"tier,omitempty"`
}

type SearchPage struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

type SearchService interface {
	Search(ctx context.Context, query string, page, limit int) (*SearchPage, error)
}

type searchService struct {
	resources repository.ResourceRepository
	cache     repository.CacheRepository
	site      models.SiteCode
	log       *zap.SugaredLogger
}

func NewSearchService(
	resources repository.ResourceRepository,
	cache repository.CacheRepository,
	site models.SiteCode,
	log *zap.SugaredLogger,
) SearchService {
	return &searchService{
		resources: resources,
		cache:     cache,
		site:      site,
		log:       log,
	}
}

// NormalizeQuery trims, lower-cases and collapses inner whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// MergeTiers concatenates per-tier results in tier order, keeping only the
// first occurrence of every resource.
func MergeTiers(tiers map[repository.SearchTier][]models.Resource) []SearchResult {
	seen := make(map[uint]struct{})
	merged := make([]SearchResult, 0)
	for _, tier := range repository.SearchTiers {
		for _, res := range tiers[tier] {
			if _, ok := seen[res.ID]; ok {
				continue
			}
			seen[res.ID] = struct{}{}
			merged = append(merged, SearchResult{Resource: res, Tier: int(tier)})
		}
	}
	return merged
}

// Paginate slices results for the given page.
func Paginate(results []SearchResult, page, limit int) []SearchResult {
	offset, size := repository.Page(page, limit, 100, 20)
	if offset >= len(results) {
		return []SearchResult{}
	}
	end := offset + size
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}

func (s *searchService) Search(ctx context.Context, query string, page, limit int) (*SearchPage, error) {
	q := NormalizeQuery(query)
	_, size := repository.Page(page, limit, 100, 20)
	if page < 1 {
		page = 1
	}

	if q == "" {
		listing, total, err := s.resources.ListPublished(ctx, page, size)
		if err != nil {
			return nil, fmt.Errorf("failed to list resources: %w", err)
		}
		results := make([]SearchResult, 0, len(listing))
		for _, res := range listing {
			results = append(results, SearchResult{Resource: res})
		}
		return &SearchPage{Query: q, Results: results, Total: int(total), Page: page, Limit: size}, nil
	}

	merged, err := s.lookup(ctx, q)
	if err != nil {
		return nil, err
	}

	return &SearchPage{
		Query:   q,
		Results: Paginate(merged, page, size),
		Total:   len(merged),
		Page:    page,
		Limit:   size,
	}, nil
}

func (s *searchService) lookup(ctx context.Context, q string) ([]SearchResult, error) {
	cacheKey := fmt.Sprintf("search:%s:%s", s.site, q)

	var cached []SearchResult
	if found, err := s.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		s.log.Warnw("search cache read failed", "key", cacheKey, "error", err)
	} else if found {
		return cached, nil
	}

	tiers := make(map[repository.SearchTier][]models.Resource, len(repository.SearchTiers))
	exclude := make([]uint, 0)
	for _, tier := range repository.SearchTiers {
		found, err := s.resources.SearchTier(ctx, tier, q, exclude)
		if err != nil {
			return nil, fmt.Errorf("search tier %d failed: %w", tier, err)
		}
		tiers[tier] = found
		for _, res := range found {
			exclude = append(exclude, res.ID)
		}
	}

	merged := MergeTiers(tiers)
	if err := s.cache.SetJSON(ctx, cacheKey, merged, searchCacheTTL); err != nil {
		s.log.Warnw("failed to cache search results", "key", cacheKey, "error", err)
	}
	return merged, nil
}
