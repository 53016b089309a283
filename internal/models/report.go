package models

import "time"

type CountByKey struct {
	Key   string `gorm:"column:label" json:"key"`
	Count int64  `json:"count"`
}

type ReportSummary struct {
	GeneratedAt          time.Time    `json:"generated_at"`
	ResourcesTotal       int64        `json:"resources_total"`
	ResourcesPublished   int64        `json:"resources_published"`
	SubmissionsByStatus  []CountByKey `json:"submissions_by_status"`
	SubmissionsPerMonth  []CountByKey `json:"submissions_per_month"`
	ResourcesPerCategory []CountByKey `json:"resources_per_category"`
	TopKeywords          []CountByKey `json:"top_keywords"`
	SubscriptionsByFreq  []CountByKey `json:"subscriptions_by_frequency"`
	BrokenLinks          int64        `json:"broken_links"`
}

type ContactJobState string

const (
	JobRunning   ContactJobState = "running"
	JobCompleted ContactJobState = "completed"
	JobCancelled ContactJobState = "cancelled"
	JobFailed    ContactJobState = "failed"
)

// ContactJob is the progress snapshot of a bulk contact job.
type ContactJob struct {
	ID         string          `json:"id"`
	Actor      string          `json:"actor"`
	Subject    string          `json:"subject"`
	Total      int             `json:"total"`
	Sent       int             `json:"sent"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	State      ContactJobState `json:"state"`
	Errors     []string        `json:"errors,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
