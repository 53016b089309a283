package models

import (
	"time"

	"github.com/google/uuid"
)

type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	return f == FrequencyWeekly || f == FrequencyMonthly
}

// Next returns the earliest time a digest may be sent again after last.
func (f Frequency) Next(last time.Time) time.Time {
	if f == FrequencyMonthly {
		return addMonthClamped(last)
	}
	return last.AddDate(0, 0, 7)
}

// addMonthClamped moves t one calendar month ahead, keeping the day within
// the target month (Jan 31 becomes Feb 28 or 29).
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

type Subscription struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"type:varchar(254);uniqueIndex;not null" json:"email"`
	Name         string     `gorm:"type:varchar(200)" json:"name,omitempty"`
	Frequency    Frequency  `gorm:"type:varchar(16);not null" json:"frequency"`
	Categories   []Category `gorm:"many2many:subscription_categories" json:"categories,omitempty"`
	Token        uuid.UUID  `gorm:"type:varchar(36);uniqueIndex;not null" json:"-"`
	Confirmed    bool       `gorm:"not null;default:false;index" json:"confirmed"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	LastDigestAt *time.Time `json:"last_digest_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type DigestLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"not null;index" json:"subscription_id"`
	ResourceCount  int       `gorm:"not null" json:"resource_count"`
	SentAt         time.Time `gorm:"not null;index" json:"sent_at"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
}
