package models

import "time"

type Resource struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	Name          string           `gorm:"type:varchar(200);not null;uniqueIndex:idx_resource_name_version" json:"name"`
	Version       string           `gorm:"type:varchar(64);not null;default:'';uniqueIndex:idx_resource_name_version" json:"version,omitempty"`
	Slug          string           `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Description   string           `gorm:"type:text" json:"description"`
	Link          string           `gorm:"type:varchar(500)" json:"link"`
	CodeURL       string           `gorm:"type:varchar(500)" json:"code_url,omitempty"`
	DocsURL       string           `gorm:"type:varchar(500)" json:"docs_url,omitempty"`
	Publication   string           `gorm:"type:text" json:"publication,omitempty"`
	Published     bool             `gorm:"not null;default:false;index" json:"published"`
	PublishedAt   *time.Time       `gorm:"index" json:"published_at,omitempty"`
	Categories    []Category       `gorm:"many2many:resource_categories" json:"categories,omitempty"`
	Terms         []ControlledTerm `gorm:"many2many:resource_terms" json:"terms,omitempty"`
	Developers    []Person         `gorm:"many2many:resource_developers" json:"developers,omitempty"`
	Organizations []Organization   `gorm:"many2many:resource_organizations" json:"organizations,omitempty"`
	LinkCheckedAt *time.Time       `json:"link_checked_at,omitempty"`
	LinkOK        *bool            `json:"link_ok,omitempty"`
	LinkStatus    int              `json:"link_status,omitempty"`
	LinkError     string           `gorm:"type:varchar(500)" json:"link_error,omitempty"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// TermsOf returns the resource terms of the given kind.
func (r *Resource) TermsOf(kind TermKind) []ControlledTerm {
	var out []ControlledTerm
	for _, t := range r.Terms {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func (r *Resource) CategoryIDs() []uint {
	ids := make([]uint, 0, len(r.Categories))
	for _, c := range r.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

type ResourceDetail struct {
	Resource        *Resource  `json:"resource"`
	DescriptionHTML string     `json:"description_html"`
	Related         []Resource `json:"related"`
}

// LinkCheck is the outcome of probing a resource URL.
type LinkCheck struct {
	ResourceID uint      `json:"resource_id"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}
