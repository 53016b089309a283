package repository

import (
	"context"

	"scicat/internal/models"

	"gorm.io/gorm"
)

type TeamRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.TeamMember, error)
	Create(ctx context.Context, member *models.TeamMember) error
	Delete(ctx context.Context, id uint) error
}

type teamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) List(ctx context.Context, activeOnly bool) ([]models.TeamMember, error) {
	var members []models.TeamMember
	q := r.db.WithContext(ctx).Order("sort_order ASC, name ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	err := q.Find(&members).Error
	return members, err
}

func (r *teamRepository) Create(ctx context.Context, member *models.TeamMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *teamRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.TeamMember{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}
