package repository

import (
	"context"
	"time"

	"scicat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SearchTier is a field-match priority band, lower tiers rank first.
type SearchTier int

const (
	TierNameDescription SearchTier = iota + 1
	TierKeyword
	TierRegionFunctionality
	TierOther
)

var SearchTiers = []SearchTier{TierNameDescription, TierKeyword, TierRegionFunctionality, TierOther}

type ResourceRepository interface {
	Create(ctx context.Context, resource *models.Resource) error
	Update(ctx context.Context, resource *models.Resource) error
	ReplaceAssociations(ctx context.Context, resource *models.Resource) error
	GetByID(ctx context.Context, id uint) (*models.Resource, error)
	GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*models.Resource, error)
	ExistsNameVersion(ctx context.Context, name, version string, excludeID uint) (bool, error)
	SlugTaken(ctx context.Context, slug string) (bool, error)
	ListPublished(ctx context.Context, page, limit int) ([]models.Resource, int64, error)
	ListByCategories(ctx context.Context, categoryIDs []uint, page, limit int) ([]models.Resource, int64, error)
	SearchTier(ctx context.Context, tier SearchTier, query string, exclude []uint) ([]models.Resource, error)
	Related(ctx context.Context, resource *models.Resource, limit int) ([]models.Resource, error)
	SetVisibility(ctx context.Context, id uint, published bool, at time.Time) (*models.Resource, error)
	PublishedBetween(ctx context.Context, from, to time.Time) ([]models.Resource, error)
	ListAll(ctx context.Context) ([]models.Resource, error)
	SaveLinkCheck(ctx context.Context, check models.LinkCheck) error
	BrokenLinks(ctx context.Context) ([]models.Resource, error)
	CountBrokenLinks(ctx context.Context) (int64, error)
	Count(ctx context.Context, publishedOnly bool) (int64, error)
}

type resourceRepository struct {
	db *gorm.DB
}

func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) withAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Preload("Terms", func(db *gorm.DB) *gorm.DB { return db.Order("kind ASC, name ASC") }).
		Preload("Developers").
		Preload("Organizations")
}

func (r *resourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	return translateConflict(r.db.WithContext(ctx).Create(resource).Error, models.ErrDuplicateResource)
}

func (r *resourceRepository) Update(ctx context.Context, resource *models.Resource) error {
	return translateConflict(r.db.WithContext(ctx).Omit(clause.Associations).Save(resource).Error, models.ErrDuplicateResource)
}

// ReplaceAssociations rewrites the many-to-many links of resource to match its slices.
func (r *resourceRepository) ReplaceAssociations(ctx context.Context, resource *models.Resource) error {
	db := r.db.WithContext(ctx).Model(resource)
	if err := db.Association("Categories").Replace(resource.Categories); err != nil {
		return err
	}
	if err := db.Association("Terms").Replace(resource.Terms); err != nil {
		return err
	}
	if err := db.Association("Developers").Replace(resource.Developers); err != nil {
		return err
	}
	return db.Association("Organizations").Replace(resource.Organizations)
}

func (r *resourceRepository) GetByID(ctx context.Context, id uint) (*models.Resource, error) {
	var resource models.Resource
	err := r.withAssociations(r.db.WithContext(ctx)).First(&resource, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &resource, nil
}

func (r *resourceRepository) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*models.Resource, error) {
	q := r.withAssociations(r.db.WithContext(ctx)).Where("slug = ?", slug)
	if publishedOnly {
		q = q.Where("published = ?", true)
	}

	var resource models.Resource
	if err := q.First(&resource).Error; err != nil {
		return nil, translate(err)
	}
	return &resource, nil
}

func (r *resourceRepository) ExistsNameVersion(ctx context.Context, name, version string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).
		Model(&models.Resource{}).
		Where("LOWER(name) = LOWER(?) AND version = ?", name, version)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *resourceRepository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Resource{}).
		Where("slug = ?", slug).
		Count(&count).
		Error
	return count > 0, err
}

func (r *resourceRepository) ListPublished(ctx context.Context, page, limit int) ([]models.Resource, int64, error) {
	offset, size := Page(page, limit, 100, 20)

	base := r.db.WithContext(ctx).
		Model(&models.Resource{}).
		Where("published = ?", true).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var resources []models.Resource
	err := r.withAssociations(base).
		Order("name ASC, version ASC").
		Offset(offset).
		Limit(size).
		Find(&resources).
		Error
	return resources, total, err
}

func (r *resourceRepository) ListByCategories(ctx context.Context, categoryIDs []uint, page, limit int) ([]models.Resource, int64, error) {
	offset, size := Page(page, limit, 100, 20)

	sub := r.db.Table("resource_categories").
		Select("resource_id").
		Where("category_id IN ?", categoryIDs)

	base := r.db.WithContext(ctx).
		Model(&models.Resource{}).
		Where("published = ?", true).
		Where("id IN (?)", sub).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var resources []models.Resource
	err := r.withAssociations(base).
		Order("name ASC, version ASC").
		Offset(offset).
		Limit(size).
		Find(&resources).
		Error
	return resources, total, err
}

func (r *resourceRepository) termSubquery(kinds []models.TermKind, pattern string) *gorm.DB {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return r.db.Table("resource_terms").
		Select("resource_terms.resource_id").
		Joins("JOIN controlled_terms ON controlled_terms.id = resource_terms.controlled_term_id").
		Where("controlled_terms.kind IN ? AND LOWER(controlled_terms.name) LIKE ?", names, pattern)
}

// SearchTier returns the published resources matching query in one tier,
// skipping the ids already found by earlier tiers.
func (r *resourceRepository) SearchTier(ctx context.Context, tier SearchTier, query string, exclude []uint) ([]models.Resource, error) {
	pattern := containsPattern(query)

	q := r.db.WithContext(ctx).Model(&models.Resource{}).Where("published = ?", true)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}

	switch tier {
	case TierNameDescription:
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	case TierKeyword:
		q = q.Where("id IN (?)", r.termSubquery([]models.TermKind{models.TermKeyword}, pattern))
	case TierRegionFunctionality:
		q = q.Where("id IN (?)", r.termSubquery([]models.TermKind{models.TermRegion, models.TermFunctionality}, pattern))
	default:
		categories := r.db.Table("resource_categories").
			Select("resource_categories.resource_id").
			Joins("JOIN categories ON categories.id = resource_categories.category_id").
			Where("LOWER(categories.name) LIKE ?", pattern)
		developers := r.db.Table("resource_developers").
			Select("resource_developers.resource_id").
			Joins("JOIN people ON people.id = resource_developers.person_id").
			Where("LOWER(people.name) LIKE ?", pattern)
		organizations := r.db.Table("resource_organizations").
			Select("resource_organizations.resource_id").
			Joins("JOIN organizations ON organizations.id = resource_organizations.organization_id").
			Where("LOWER(organizations.name) LIKE ?", pattern)
		otherTerms := r.termSubquery([]models.TermKind{models.TermLicense, models.TermLanguage, models.TermOS}, pattern)

		q = q.Where(
			r.db.Where("id IN (?)", categories).
				Or("id IN (?)", otherTerms).
				Or("id IN (?)", developers).
				Or("id IN (?)", organizations).
				Or("LOWER(publication) LIKE ?", pattern).
				Or("LOWER(code_url) LIKE ?", pattern).
				Or("LOWER(docs_url) LIKE ?", pattern),
		)
	}

	var resources []models.Resource
	err := r.withAssociations(q).Order("name ASC, version ASC").Find(&resources).Error
	return resources, err
}

type relatedRow struct {
	ID     uint
	Shared int64
}

func (r *resourceRepository) Related(ctx context.Context, resource *models.Resource, limit int) ([]models.Resource, error) {
	categoryIDs := resource.CategoryIDs()
	if len(categoryIDs) == 0 {
		return []models.Resource{}, nil
	}

	var rows []relatedRow
	err := r.db.WithContext(ctx).
		Table("resources").
		Select("resources.id AS id, COUNT(*) AS shared").
		Joins("JOIN resource_categories ON resource_categories.resource_id = resources.id").
		Where("resource_categories.category_id IN ?", categoryIDs).
		Where("resources.id <> ? AND resources.published = ?", resource.ID, true).
		Group("resources.id, resources.name").
		Order("shared DESC, resources.name ASC").
		Limit(limit).
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.Resource{}, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var found []models.Resource
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Resource, len(found))
	for _, res := range found {
		byID[res.ID] = res
	}
	related := make([]models.Resource, 0, len(ids))
	for _, id := range ids {
		if res, ok := byID[id]; ok {
			related = append(related, res)
		}
	}
	return related, nil
}

func (r *resourceRepository) SetVisibility(ctx context.Context, id uint, published bool, at time.Time) (*models.Resource, error) {
	var resource models.Resource
	if err := r.db.WithContext(ctx).First(&resource, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}

	updates := map[string]interface{}{"published": published}
	if published {
		if resource.PublishedAt == nil {
			updates["published_at"] = at
		}
	} else {
		updates["published_at"] = nil
	}

	if err := r.db.WithContext(ctx).Model(&resource).Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *resourceRepository) PublishedBetween(ctx context.Context, from, to time.Time) ([]models.Resource, error) {
	var resources []models.Resource
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Where("published = ? AND published_at > ? AND published_at <= ?", true, from, to).
		Order("published_at ASC, name ASC").
		Find(&resources).
		Error
	return resources, err
}

func (r *resourceRepository) ListAll(ctx context.Context) ([]models.Resource, error) {
	var resources []models.Resource
	err := r.withAssociations(r.db.WithContext(ctx)).
		Order("name ASC, version ASC").
		Find(&resources).
		Error
	return resources, err
}

func (r *resourceRepository) SaveLinkCheck(ctx context.Context, check models.LinkCheck) error {
	return r.db.WithContext(ctx).
		Model(&models.Resource{}).
		Where("id = ?", check.ResourceID).
		Updates(map[string]interface{}{
			"link_checked_at": check.CheckedAt,
			"link_ok":         check.OK,
			"link_status":     check.StatusCode,
			"link_error":      check.Error,
		}).
		Error
}

func (r *resourceRepository) BrokenLinks(ctx context.Context) ([]models.Resource, error) {
	var resources []models.Resource
	err := r.db.WithContext(ctx).
		Where("published = ? AND link_ok = ?", true, false).
		Order("link_checked_at DESC, name ASC").
		Find(&resources).
		Error
	return resources, err
}

func (r *resourceRepository) CountBrokenLinks(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Resource{}).
		Where("published = ? AND link_ok = ?", true, false).
		Count(&count).
		Error
	return count, err
}

func (r *resourceRepository) Count(ctx context.Context, publishedOnly bool) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Resource{})
	if publishedOnly {
		q = q.Where("published = ?", true)
	}
	err := q.Count(&count).Error
	return count, err
}
