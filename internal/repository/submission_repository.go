package repository

import (
	"context"
	"time"

	"scicat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (*models.Submission, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Submission, error)
	List(ctx context.Context, status models.SubmissionStatus, page, limit int) ([]models.Submission, int64, error)
	ListByStatus(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error)
	Save(ctx context.Context, submission *models.Submission) error
	AddEvent(ctx context.Context, event *models.SubmissionEvent) error
	CountByStatus(ctx context.Context) ([]models.CountByKey, error)
	CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error)
	ListAll(ctx context.Context) ([]models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		First(&submission, "id = ?", id).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &submission, nil
}

// GetForUpdate locks the submission row for the surrounding transaction.
func (r *submissionRepository) GetForUpdate(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&submission, "id = ?", id).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &submission, nil
}

func (r *submissionRepository) List(ctx context.Context, status models.SubmissionStatus, page, limit int) ([]models.Submission, int64, error) {
	offset, size := Page(page, limit, 200, 50)

	base := r.db.WithContext(ctx).Model(&models.Submission{})
	if status != "" {
		base = base.Where("status = ?", status)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var submissions []models.Submission
	err := base.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(size).
		Find(&submissions).
		Error
	return submissions, total, err
}

func (r *submissionRepository) ListByStatus(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Find(&submissions).
		Error
	return submissions, err
}

func (r *submissionRepository) Save(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(submission).Error
}

func (r *submissionRepository) AddEvent(ctx context.Context, event *models.SubmissionEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *submissionRepository) CountByStatus(ctx context.Context) ([]models.CountByKey, error) {
	var rows []models.CountByKey
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("status AS label, COUNT(*) AS count").
		Group("status").
		Order("status ASC").
		Scan(&rows).
		Error
	return rows, err
}

func (r *submissionRepository) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Pluck("created_at", &times).
		Error
	return times, err
}

func (r *submissionRepository) ListAll(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).Order("id ASC").Find(&submissions).Error
	return submissions, err
}
