package models

import "time"

type TeamMember struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(200);not null" json:"name"`
	Role        string    `gorm:"type:varchar(200)" json:"role"`
	Affiliation string    `gorm:"type:varchar(200)" json:"affiliation,omitempty"`
	Bio         string    `gorm:"type:text" json:"bio,omitempty"`
	PhotoURL    string    `gorm:"type:varchar(500)" json:"photo_url,omitempty"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	Active      bool      `gorm:"not null" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
