package repository

import (
	"context"
	"errors"
	"strings"

	"scicat/internal/models"

	"gorm.io/gorm"
)

type VocabularyRepository interface {
	FindOrCreateTerm(ctx context.Context, kind models.TermKind, name string) (*models.ControlledTerm, error)
	ListTerms(ctx context.Context, kind models.TermKind) ([]models.ControlledTerm, error)
	TopTerms(ctx context.Context, kind models.TermKind, limit int) ([]models.CountByKey, error)
	FindOrCreatePerson(ctx context.Context, name string) (*models.Person, error)
	FindOrCreateOrganization(ctx context.Context, name string) (*models.Organization, error)
}

type vocabularyRepository struct {
	db *gorm.DB
}

func NewVocabularyRepository(db *gorm.DB) VocabularyRepository {
	return &vocabularyRepository{db: db}
}

func (r *vocabularyRepository) FindOrCreateTerm(ctx context.Context, kind models.TermKind, name string) (*models.ControlledTerm, error) {
	name = strings.TrimSpace(name)

	var term models.ControlledTerm
	err := r.db.WithContext(ctx).
		Where("kind = ? AND LOWER(name) = LOWER(?)", kind, name).
		First(&term).
		Error
	if err == nil {
		return &term, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	term = models.ControlledTerm{Kind: kind, Name: name}
	if err := r.db.WithContext(ctx).Create(&term).Error; err != nil {
		return nil, err
	}
	return &term, nil
}

func (r *vocabularyRepository) ListTerms(ctx context.Context, kind models.TermKind) ([]models.ControlledTerm, error) {
	var terms []models.ControlledTerm
	q := r.db.WithContext(ctx).Order("kind ASC, name ASC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	err := q.Find(&terms).Error
	return terms, err
}

// TopTerms counts published resources per term of kind, most used first.
func (r *vocabularyRepository) TopTerms(ctx context.Context, kind models.TermKind, limit int) ([]models.CountByKey, error) {
	var rows []models.CountByKey
	err := r.db.WithContext(ctx).
		Table("controlled_terms").
		Select("controlled_terms.name AS label, COUNT(*) AS count").
		Joins("JOIN resource_terms ON resource_terms.controlled_term_id = controlled_terms.id").
		Joins("JOIN resources ON resources.id = resource_terms.resource_id").
		Where("controlled_terms.kind = ? AND resources.published = ?", kind, true).
		Group("controlled_terms.name").
		Order("count DESC, controlled_terms.name ASC").
		Limit(limit).
		Scan(&rows).
		Error
	return rows, err
}

func (r *vocabularyRepository) FindOrCreatePerson(ctx context.Context, name string) (*models.Person, error) {
	name = strings.TrimSpace(name)

	var person models.Person
	err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&person).Error
	if err == nil {
		return &person, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	person = models.Person{Name: name}
	if err := r.db.WithContext(ctx).Create(&person).Error; err != nil {
		return nil, err
	}
	return &person, nil
}

func (r *vocabularyRepository) FindOrCreateOrganization(ctx context.Context, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)

	var org models.Organization
	err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&org).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	org = models.Organization{Name: name}
	if err := r.db.WithContext(ctx).Create(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}
