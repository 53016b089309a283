package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scicat/internal/models"
	"scicat/internal/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	searchCacheTTL  = 5 * time.Minute
	catalogCacheTTL = 10 * time.Minute
	contactJobTTL   = 24 * time.Hour

	systemActor = "system"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct validation and reports failures as ErrInvalidArgument.
func validateInput(input interface{}) error {
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", models.ErrInvalidArgument, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	return nil
}

// ResourcePage is one page of a resource listing.
type ResourcePage struct {
	Items []models.Resource `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

func newResourcePage(items []models.Resource, total int64, page, limit int) *ResourcePage {
	_, size := repository.Page(page, limit, 100, 20)
	if page < 1 {
		page = 1
	}
	if items == nil {
		items = []models.Resource{}
	}
	return &ResourcePage{Items: items, Total: total, Page: page, Limit: size}
}

func searchCachePattern(site models.SiteCode) string {
	return fmt.Sprintf("search:%s:*", site)
}

func catalogCachePattern(site models.SiteCode) string {
	return fmt.Sprintf("catalog:%s:*", site)
}

// invalidateListings drops cached search results and catalogue listings after
// the set of published resources changed.
func invalidateListings(ctx context.Context, cache repository.CacheRepository, site models.SiteCode, log *zap.SugaredLogger) {
	for _, pattern := range []string{searchCachePattern(site), catalogCachePattern(site)} {
		if n, err := cache.DeletePattern(ctx, pattern); err != nil {
			log.Warnw("failed to invalidate cache", "pattern", pattern, "error", err)
		} else if n > 0 {
			log.Debugw("cache invalidated", "pattern", pattern, "keys", n)
		}
	}
}
