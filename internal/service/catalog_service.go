package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"scicat/internal/models"
	"scicat/internal/repository"
	"scicat/internal/utils"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const relatedLimit = 5

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Slug        string `json:"slug" validate:"omitempty,max=200"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
	SortOrder   int    `json:"sort_order"`
}

type TermInput struct {
	Kind string `json:"kind" validate:"required"`
	Name string `json:"name" validate:"required,max=200"`
}

type TeamMemberInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Role        string `json:"role" validate:"max=200"`
	Affiliation string `json:"affiliation" validate:"max=200"`
	Bio         string `json:"bio"`
	PhotoURL    string `json:"photo_url" validate:"omitempty,url,max=500"`
	SortOrder   int    `json:"sort_order"`
	Active      *bool  `json:"active"`
}

type CatalogService interface {
	CategoryTree(ctx context.Context) ([]*models.CategoryNode, error)
	ListByCategory(ctx context.Context, categorySlug string, page, limit int) (*ResourcePage, error)
	Browse(ctx context.Context, page, limit int) (*ResourcePage, error)
	Detail(ctx context.Context, resourceSlug string) (*models.ResourceDetail, error)
	ListTerms(ctx context.Context, kind string) ([]models.ControlledTerm, error)
	ListTeam(ctx context.Context) ([]models.TeamMember, error)

	CreateCategory(ctx context.Context, input CategoryInput) (*models.Category, error)
	CreateTerm(ctx context.Context, input TermInput) (*models.ControlledTerm, error)
	SetVisibility(ctx context.Context, resourceID uint, published bool) (*models.Resource, error)
	CreateTeamMember(ctx context.Context, input TeamMemberInput) (*models.TeamMember, error)
	DeleteTeamMember(ctx context.Context, id uint) error
}

type catalogService struct {
	repos repository.Repos
	cache repository.CacheRepository
	site  models.SiteCode
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewCatalogService(repos repository.Repos, cache repository.CacheRepository, site models.SiteCode, log *zap.SugaredLogger) CatalogService {
	return &catalogService{
		repos: repos,
		cache: cache,
		site:  site,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// BuildCategoryTree arranges categories into a forest ordered by sort order then
// name. Categories whose parent is missing are treated as roots.
func BuildCategoryTree(categories []models.Category, counts map[uint]int64) []*models.CategoryNode {
	nodes := make(map[uint]*models.CategoryNode, len(categories))
	for _, c := range categories {
		nodes[c.ID] = &models.CategoryNode{Category: c, ResourceCount: counts[c.ID]}
	}

	roots := make([]*models.CategoryNode, 0)
	for _, c := range categories {
		node := nodes[c.ID]
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok && *c.ParentID != c.ID {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*models.CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].SortOrder != nodes[j].SortOrder {
			return nodes[i].SortOrder < nodes[j].SortOrder
		}
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// Descendants returns rootID and the ids of every category below it.
func Descendants(categories []models.Category, rootID uint) []uint {
	children := make(map[uint][]uint)
	for _, c := range categories {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	visited := map[uint]bool{rootID: true}
	out := []uint{rootID}
	for i := 0; i < len(out); i++ {
		for _, child := range children[out[i]] {
			if !visited[child] {
				visited[child] = true
				out = append(out, child)
			}
		}
	}
	return out
}

func (s *catalogService) CategoryTree(ctx context.Context) ([]*models.CategoryNode, error) {
	cacheKey := fmt.Sprintf("catalog:%s:categories", s.site)

	var tree []*models.CategoryNode
	if found, err := s.cache.GetJSON(ctx, cacheKey, &tree); err == nil && found {
		return tree, nil
	}

	categories, err := s.repos.Categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	counts, err := s.repos.Categories.PublishedCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count resources per category: %w", err)
	}

	tree = BuildCategoryTree(categories, counts)
	if err := s.cache.SetJSON(ctx, cacheKey, tree, catalogCacheTTL); err != nil {
		s.log.Warnw("failed to cache category tree", "error", err)
	}
	return tree, nil
}

func (s *catalogService) ListByCategory(ctx context.Context, categorySlug string, page, limit int) (*ResourcePage, error) {
	category, err := s.repos.Categories.GetBySlug(ctx, categorySlug)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", categorySlug, err)
	}

	categories, err := s.repos.Categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	items, total, err := s.repos.Resources.ListByCategories(ctx, Descendants(categories, category.ID), page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list category resources: %w", err)
	}
	return newResourcePage(items, total, page, limit), nil
}

func (s *catalogService) Browse(ctx context.Context, page, limit int) (*ResourcePage, error) {
	items, total, err := s.repos.Resources.ListPublished(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return newResourcePage(items, total, page, limit), nil
}

func (s *catalogService) Detail(ctx context.Context, resourceSlug string) (*models.ResourceDetail, error) {
	cacheKey := fmt.Sprintf("catalog:%s:resource:%s", s.site, resourceSlug)

	var detail models.ResourceDetail
	if found, err := s.cache.GetJSON(ctx, cacheKey, &detail); err == nil && found {
		return &detail, nil
	}

	resource, err := s.repos.Resources.GetBySlug(ctx, resourceSlug, true)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", resourceSlug, err)
	}

	html, err := utils.RenderMarkdown(resource.Description)
	if err != nil {
		s.log.Warnw("failed to render description", "resource_id", resource.ID, "error", err)
		html = ""
	}

	related, err := s.repos.Resources.Related(ctx, resource, relatedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load related resources: %w", err)
	}

	detail = models.ResourceDetail{
		Resource:        resource,
		DescriptionHTML: html,
		Related:         related,
	}
	if err := s.cache.SetJSON(ctx, cacheKey, detail, catalogCacheTTL); err != nil {
		s.log.Warnw("failed to cache resource detail", "slug", resourceSlug, "error", err)
	}
	return &detail, nil
}

func (s *catalogService) ListTerms(ctx context.Context, kind string) ([]models.ControlledTerm, error) {
	k := models.TermKind(strings.ToLower(strings.TrimSpace(kind)))
	if k != "" && !k.Valid() {
		return nil, fmt.Errorf("%w: unknown term kind %q", models.ErrInvalidArgument, kind)
	}
	terms, err := s.repos.Vocabulary.ListTerms(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("failed to list terms: %w", err)
	}
	return terms, nil
}

func (s *catalogService) ListTeam(ctx context.Context) ([]models.TeamMember, error) {
	members, err := s.repos.Team.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}
	return members, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, input CategoryInput) (*models.Category, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	categorySlug := slug.Make(input.Slug)
	if categorySlug == "" {
		categorySlug = slug.Make(input.Name)
	}
	if categorySlug == "" {
		return nil, fmt.Errorf("%w: name does not produce a usable slug", models.ErrInvalidArgument)
	}

	if input.ParentID != nil {
		if _, err := s.repos.Categories.GetByID(ctx, *input.ParentID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("%w: parent category %d does not exist", models.ErrInvalidArgument, *input.ParentID)
			}
			return nil, err
		}
	}

	if _, err := s.repos.Categories.GetBySlug(ctx, categorySlug); err == nil {
		return nil, fmt.Errorf("category %q: %w", categorySlug, models.ErrSlugTaken)
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	category := &models.Category{
		Name:        strings.TrimSpace(input.Name),
		Slug:        categorySlug,
		Description: input.Description,
		ParentID:    input.ParentID,
		SortOrder:   input.SortOrder,
	}
	if err := s.repos.Categories.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	invalidateListings(ctx, s.cache, s.site, s.log)
	s.log.Infow("category created", "id", category.ID, "slug", category.Slug)
	return category, nil
}

func (s *catalogService) CreateTerm(ctx context.Context, input TermInput) (*models.ControlledTerm, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	kind := models.TermKind(strings.ToLower(input.Kind))
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown term kind %q", models.ErrInvalidArgument, input.Kind)
	}
	term, err := s.repos.Vocabulary.FindOrCreateTerm(ctx, kind, strings.TrimSpace(input.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to create term: %w", err)
	}
	return term, nil
}

func (s *catalogService) SetVisibility(ctx context.Context, resourceID uint, published bool) (*models.Resource, error) {
	resource, err := s.repos.Resources.SetVisibility(ctx, resourceID, published, s.now())
	if err != nil {
		return nil, fmt.Errorf("resource %d: %w", resourceID, err)
	}

	invalidateListings(ctx, s.cache, s.site, s.log)
	s.log.Infow("resource visibility changed", "id", resourceID, "published", published)
	return resource, nil
}

func (s *catalogService) CreateTeamMember(ctx context.Context, input TeamMemberInput) (*models.TeamMember, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	member := &models.TeamMember{
		Name:        strings.TrimSpace(input.Name),
		Role:        input.Role,
		Affiliation: input.Affiliation,
		Bio:         input.Bio,
		PhotoURL:    input.PhotoURL,
		SortOrder:   input.SortOrder,
		Active:      active,
	}
	if err := s.repos.Team.Create(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to create team member: %w", err)
	}
	return member, nil
}

func (s *catalogService) DeleteTeamMember(ctx context.Context, id uint) error {
	if err := s.repos.Team.Delete(ctx, id); err != nil {
		return fmt.Errorf("team member %d: %w", id, err)
	}
	return nil
}
