package repository

import (
	"context"
	"time"

	"scicat/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByEmail(ctx context.Context, email string) (*models.Subscription, error)
	GetByToken(ctx context.Context, token uuid.UUID) (*models.Subscription, error)
	Save(ctx context.Context, sub *models.Subscription) error
	Delete(ctx context.Context, id uint) error
	ListConfirmed(ctx context.Context) ([]models.Subscription, error)
	LogDigest(ctx context.Context, log *models.DigestLog) error
	MarkDigested(ctx context.Context, ids []uint, at time.Time) error
	CountByFrequency(ctx context.Context) ([]models.CountByKey, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	return translateConflict(r.db.WithContext(ctx).Create(sub).Error, models.ErrAlreadySubscribed)
}

func (r *subscriptionRepository) GetByEmail(ctx context.Context, email string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Categories").
		First(&sub, "LOWER(email) = LOWER(?)", email).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByToken(ctx context.Context, token uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Categories").
		First(&sub, "token = ?", token.String()).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// Save persists sub and replaces its category filter.
func (r *subscriptionRepository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(sub).Error; err != nil {
			return err
		}
		return tx.Model(sub).Association("Categories").Replace(sub.Categories)
	})
}

func (r *subscriptionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := &models.Subscription{ID: id}
		if err := tx.Model(sub).Association("Categories").Clear(); err != nil {
			return err
		}
		return tx.Delete(sub).Error
	})
}

func (r *subscriptionRepository) ListConfirmed(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Where("confirmed = ?", true).
		Order("id ASC").
		Find(&subs).
		Error
	return subs, err
}

func (r *subscriptionRepository) LogDigest(ctx context.Context, log *models.DigestLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *subscriptionRepository) MarkDigested(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id IN ?", ids).
		Update("last_digest_at", at).
		Error
}

func (r *subscriptionRepository) CountByFrequency(ctx context.Context) ([]models.CountByKey, error) {
	var rows []models.CountByKey
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Select("frequency AS label, COUNT(*) AS count").
		Where("confirmed = ?", true).
		Group("frequency").
		Order("frequency ASC").
		Scan(&rows).
		Error
	return rows, err
}
