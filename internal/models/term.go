package models

import "time"

type TermKind string

const (
	TermLicense       TermKind = "license"
	TermKeyword       TermKind = "keyword"
	TermRegion        TermKind = "region"
	TermFunctionality TermKind = "functionality"
	TermLanguage      TermKind = "language"
	TermOS            TermKind = "os"
)

var TermKinds = []TermKind{TermLicense, TermKeyword, TermRegion, TermFunctionality, TermLanguage, TermOS}

func (k TermKind) Valid() bool {
	for _, kind := range TermKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ControlledTerm is one entry of a controlled vocabulary.
type ControlledTerm struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Kind      TermKind  `gorm:"type:varchar(32);not null;uniqueIndex:idx_term_kind_name" json:"kind"`
	Name      string    `gorm:"type:varchar(200);not null;uniqueIndex:idx_term_kind_name" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
}

type Person struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(200);not null;index" json:"name"`
	Email     string    `gorm:"type:varchar(254)" json:"email,omitempty"`
	ORCID     string    `gorm:"column:orcid;type:varchar(32)" json:"orcid,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
}

type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(200);uniqueIndex;not null" json:"name"`
	URL       string    `gorm:"type:varchar(500)" json:"url,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
}
