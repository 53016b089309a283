package repository

import (
	"context"

	"scicat/internal/models"

	"gorm.io/gorm"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id uint) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	GetBySlugs(ctx context.Context, slugs []string) ([]models.Category, error)
	PublishedCounts(ctx context.Context) (map[uint]int64, error)
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	return translateConflict(r.db.WithContext(ctx).Create(category).Error, models.ErrSlugTaken)
}

func (r *categoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Order("sort_order ASC, name ASC").
		Find(&categories).
		Error
	return categories, err
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (r *categoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "slug = ?", slug).Error; err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (r *categoryRepository) GetBySlugs(ctx context.Context, slugs []string) ([]models.Category, error) {
	if len(slugs) == 0 {
		return []models.Category{}, nil
	}
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Where("slug IN ?", slugs).
		Order("name ASC").
		Find(&categories).
		Error
	return categories, err
}

type categoryCount struct {
	CategoryID uint
	Count      int64
}

// PublishedCounts returns the number of published resources directly attached to each category.
func (r *categoryRepository) PublishedCounts(ctx context.Context) (map[uint]int64, error) {
	var rows []categoryCount
	err := r.db.WithContext(ctx).
		Table("resource_categories").
		Select("resource_categories.category_id AS category_id, COUNT(*) AS count").
		Joins("JOIN resources ON resources.id = resource_categories.resource_id").
		Where("resources.published = ?", true).
		Group("resource_categories.category_id").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = row.Count
	}
	return counts, nil
}
