package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	StatusReceived     SubmissionStatus = "received"
	StatusUnderReview  SubmissionStatus = "under_review"
	StatusContacted    SubmissionStatus = "contacted"
	StatusAccepted     SubmissionStatus = "accepted"
	StatusRejected     SubmissionStatus = "rejected"
	StatusPublished    SubmissionStatus = "published"
	StatusWithdrawn    SubmissionStatus = "withdrawn"
	StatusUnresponsive SubmissionStatus = "unresponsive"
)

var SubmissionStatuses = []SubmissionStatus{
	StatusReceived, StatusUnderReview, StatusContacted, StatusAccepted,
	StatusRejected, StatusPublished, StatusWithdrawn, StatusUnresponsive,
}

type SubmissionKind string

const (
	SubmissionNew    SubmissionKind = "new"
	SubmissionUpdate SubmissionKind = "update"
)

type Submission struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	Kind              SubmissionKind    `gorm:"type:varchar(16);not null" json:"kind"`
	UpdatesResourceID *uint             `gorm:"index" json:"updates_resource_id,omitempty"`
	SubmitterName     string            `gorm:"type:varchar(200);not null" json:"submitter_name"`
	SubmitterEmail    string            `gorm:"type:varchar(254);not null;index" json:"submitter_email"`
	ResourceName      string            `gorm:"type:varchar(200);not null" json:"resource_name"`
	Version           string            `gorm:"type:varchar(64)" json:"version,omitempty"`
	Description       string            `gorm:"type:text;not null" json:"description"`
	Link              string            `gorm:"type:varchar(500);not null" json:"link"`
	CodeURL           string            `gorm:"type:varchar(500)" json:"code_url,omitempty"`
	DocsURL           string            `gorm:"type:varchar(500)" json:"docs_url,omitempty"`
	Publication       string            `gorm:"type:text" json:"publication,omitempty"`
	Keywords          string            `gorm:"type:text" json:"keywords,omitempty"`
	Regions           string            `gorm:"type:text" json:"regions,omitempty"`
	Functionalities   string            `gorm:"type:text" json:"functionality,omitempty"`
	License           string            `gorm:"type:varchar(200)" json:"license,omitempty"`
	Languages         string            `gorm:"type:text" json:"programming_languages,omitempty"`
	OperatingSystems  string            `gorm:"type:text" json:"operating_systems,omitempty"`
	CategorySlugs     string            `gorm:"type:text" json:"category_slugs,omitempty"`
	Developers        string            `gorm:"type:text" json:"developers,omitempty"`
	Organization      string            `gorm:"type:varchar(200)" json:"organization,omitempty"`
	Notes             string            `gorm:"type:text" json:"notes,omitempty"`
	Status            SubmissionStatus  `gorm:"type:varchar(32);not null;index" json:"status"`
	ContactCount      int               `gorm:"not null;default:0" json:"contact_count"`
	LastContactedAt   *time.Time        `json:"last_contacted_at,omitempty"`
	ResourceID        *uint             `gorm:"index" json:"resource_id,omitempty"`
	Payload           datatypes.JSON    `json:"-"`
	Events            []SubmissionEvent `gorm:"constraint:OnDelete:CASCADE" json:"events,omitempty"`
	CreatedAt         time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// SubmissionEvent records one status transition.
type SubmissionEvent struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	SubmissionID uint             `gorm:"not null;index" json:"submission_id"`
	Action       string           `gorm:"type:varchar(32);not null" json:"action"`
	From         SubmissionStatus `gorm:"column:from_status;type:varchar(32)" json:"from"`
	To           SubmissionStatus `gorm:"column:to_status;type:varchar(32);not null" json:"to"`
	Actor        string           `gorm:"type:varchar(200)" json:"actor"`
	Note         string           `gorm:"type:text" json:"note,omitempty"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// SplitList splits a comma separated field into trimmed, non-empty, de-duplicated values.
func SplitList(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := strings.ToLower(part)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, part)
	}
	return out
}

// TermList is a set of vocabulary names of one kind.
type TermList struct {
	Kind  TermKind
	Names []string
}

// TermLists returns the multi-valued vocabulary fields of the submission.
// The license is single-valued and handled separately.
func (s *Submission) TermLists() []TermList {
	return []TermList{
		{Kind: TermKeyword, Names: SplitList(s.Keywords)},
		{Kind: TermRegion, Names: SplitList(s.Regions)},
		{Kind: TermFunctionality, Names: SplitList(s.Functionalities)},
		{Kind: TermLanguage, Names: SplitList(s.Languages)},
		{Kind: TermOS, Names: SplitList(s.OperatingSystems)},
	}
}
