package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"scicat/internal/models"
	"scicat/internal/repository"
	"scicat/internal/utils"

	"go.uber.org/zap"
)

const (
	ExportResources   = "resources"
	ExportSubmissions = "submissions"

	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"

	summaryMonths  = 12
	topKeywordsMax = 10
)

type ReportService interface {
	Summary(ctx context.Context) (*models.ReportSummary, error)
	Export(ctx context.Context, kind, format string) (string, error)
	BrokenLinks(ctx context.Context) ([]models.Resource, error)
}

type reportService struct {
	repos     repository.Repos
	site      models.Site
	outputDir string
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewReportService(repos repository.Repos, site models.Site, outputDir string, log *zap.SugaredLogger) ReportService {
	if outputDir == "" {
		outputDir = "./data/reports"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Warnw("failed to create reports directory", "dir", outputDir, "error", err)
	}
	return &reportService{
		repos:     repos,
		site:      site,
		outputDir: outputDir,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MonthlyCounts buckets timestamps by calendar month (UTC) for the months
// ending with now's month, oldest first. Months without entries count zero.
func MonthlyCounts(times []time.Time, now time.Time, months int) []models.CountByKey {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	out := make([]models.CountByKey, months)
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		label := first.AddDate(0, i, 0).Format("2006-01")
		out[i] = models.CountByKey{Key: label}
		index[label] = i
	}
	for _, t := range times {
		if i, ok := index[t.UTC().Format("2006-01")]; ok {
			out[i].Count++
		}
	}
	return out
}

func monthStart(now time.Time, months int) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
}

// categoryCounts names the per-category counts, largest first.
func categoryCounts(categories []models.Category, counts map[uint]int64) []models.CountByKey {
	out := make([]models.CountByKey, 0, len(categories))
	for _, c := range categories {
		out = append(out, models.CountByKey{Key: c.Name, Count: counts[c.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (s *reportService) Summary(ctx context.Context) (*models.ReportSummary, error) {
	now := s.now()
	summary := &models.ReportSummary{GeneratedAt: now}

	var err error
	if summary.ResourcesTotal, err = s.repos.Resources.Count(ctx, false); err != nil {
		return nil, fmt.Errorf("failed to count resources: %w", err)
	}
	if summary.ResourcesPublished, err = s.repos.Resources.Count(ctx, true); err != nil {
		return nil, fmt.Errorf("failed to count published resources: %w", err)
	}
	if summary.SubmissionsByStatus, err = s.repos.Submissions.CountByStatus(ctx); err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}

	created, err := s.repos.Submissions.CreatedSince(ctx, monthStart(now, summaryMonths))
	if err != nil {
		return nil, fmt.Errorf("failed to load submission dates: %w", err)
	}
	summary.SubmissionsPerMonth = MonthlyCounts(created, now, summaryMonths)

	categories, err := s.repos.Categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	counts, err := s.repos.Categories.PublishedCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count category resources: %w", err)
	}
	summary.ResourcesPerCategory = categoryCounts(categories, counts)

	if summary.TopKeywords, err = s.repos.Vocabulary.TopTerms(ctx, models.TermKeyword, topKeywordsMax); err != nil {
		return nil, fmt.Errorf("failed to rank keywords: %w", err)
	}
	if summary.SubscriptionsByFreq, err = s.repos.Subscriptions.CountByFrequency(ctx); err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	if summary.BrokenLinks, err = s.repos.Resources.CountBrokenLinks(ctx); err != nil {
		return nil, fmt.Errorf("failed to count broken links: %w", err)
	}

	return summary, nil
}

func (s *reportService) BrokenLinks(ctx context.Context) ([]models.Resource, error) {
	resources, err := s.repos.Resources.BrokenLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list broken links: %w", err)
	}
	if resources == nil {
		resources = []models.Resource{}
	}
	return resources, nil
}

// Export writes kind in format to the output directory and returns the file path.
func (s *reportService) Export(ctx context.Context, kind, format string) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	switch format {
	case FormatCSV, FormatXLSX, FormatJSON:
	default:
		return "", fmt.Errorf("%w: unsupported format %q", models.ErrInvalidArgument, format)
	}

	var (
		table utils.Table
		data  interface{}
	)
	switch kind {
	case ExportResources:
		resources, err := s.repos.Resources.ListAll(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to load resources: %w", err)
		}
		table, data = ResourceTable(resources), resources
	case ExportSubmissions:
		submissions, err := s.repos.Submissions.ListAll(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to load submissions: %w", err)
		}
		table, data = SubmissionTable(submissions), submissions
	default:
		return "", fmt.Errorf("%w: unsupported export %q", models.ErrInvalidArgument, kind)
	}

	now := s.now()
	filename := fmt.Sprintf("%s_%s_%s.%s", s.site.Code, kind, now.Format("20060102_150405"), format)
	path := filepath.Join(s.outputDir, filename)

	var err error
	switch format {
	case FormatCSV:
		err = utils.WriteCSV(path, table)
	case FormatJSON:
		err = utils.SaveAsJSON(path, data)
	case FormatXLSX:
		err = s.writeWorkbook(ctx, path, table)
	}
	if err != nil {
		return "", fmt.Errorf("failed to write %s export: %w", format, err)
	}

	s.log.Infow("report exported", "kind", kind, "format", format, "rows", len(table.Rows), "file", filename)
	return path, nil
}

func (s *reportService) writeWorkbook(ctx context.Context, path string, table utils.Table) error {
	summary, err := s.Summary(ctx)
	if err != nil {
		return err
	}

	items := []utils.SummaryItem{
		{Label: "Site", Value: s.site.Name},
		{Label: "Generated", Value: summary.GeneratedAt.Format(time.RFC3339)},
		{Label: "Resources (total)", Value: summary.ResourcesTotal},
		{Label: "Resources (published)", Value: summary.ResourcesPublished},
		{Label: "Broken links", Value: summary.BrokenLinks},
	}
	for _, c := range summary.SubmissionsByStatus {
		items = append(items, utils.SummaryItem{Label: "Submissions: " + c.Key, Value: c.Count})
	}
	for _, c := range summary.SubscriptionsByFreq {
		items = append(items, utils.SummaryItem{Label: "Subscribers: " + c.Key, Value: c.Count})
	}

	chart := &utils.ChartSeries{Title: "Submissions per month"}
	for _, c := range summary.SubmissionsPerMonth {
		chart.Labels = append(chart.Labels, c.Key)
		chart.Values = append(chart.Values, c.Count)
	}

	return utils.CreateReportWorkbook(path, table, items, chart)
}

func termNames(terms []models.ControlledTerm) string {
	names := make([]string, len(terms))
	for i, t := range terms {
		names[i] = t.Name
	}
	return strings.Join(names, "; ")
}

func ResourceTable(resources []models.Resource) utils.Table {
	table := utils.Table{
		Sheet: "Resources",
		Headers: []string{
			"ID", "Name", "Version", "Slug", "Published", "Published At", "Link", "Code URL",
			"Categories", "Keywords", "Developers", "Organizations", "Link OK", "Link Status",
		},
	}
	for _, r := range resources {
		categories := make([]string, len(r.Categories))
		for i, c := range r.Categories {
			categories[i] = c.Name
		}
		developers := make([]string, len(r.Developers))
		for i, d := range r.Developers {
			developers[i] = d.Name
		}
		orgs := make([]string, len(r.Organizations))
		for i, o := range r.Organizations {
			orgs[i] = o.Name
		}
		linkOK := ""
		if r.LinkOK != nil {
			linkOK = utils.CellString(*r.LinkOK)
		}
		table.Rows = append(table.Rows, []interface{}{
			r.ID, r.Name, r.Version, r.Slug, r.Published, utils.CellString(r.PublishedAt), r.Link, r.CodeURL,
			strings.Join(categories, "; "), termNames(r.TermsOf(models.TermKeyword)),
			strings.Join(developers, "; "), strings.Join(orgs, "; "), linkOK, r.LinkStatus,
		})
	}
	return table
}

func SubmissionTable(submissions []models.Submission) utils.Table {
	table := utils.Table{
		Sheet: "Submissions",
		Headers: []string{
			"ID", "Kind", "Status", "Resource", "Version", "Submitter", "Email", "Link",
			"Keywords", "Categories", "Contacts", "Last Contacted", "Resource ID", "Created At",
		},
	}
	for _, s := range submissions {
		resourceID := ""
		if s.ResourceID != nil {
			resourceID = fmt.Sprint(*s.ResourceID)
		}
		table.Rows = append(table.Rows, []interface{}{
			s.ID, string(s.Kind), string(s.Status), s.ResourceName, s.Version, s.SubmitterName, s.SubmitterEmail, s.Link,
			s.Keywords, s.CategorySlugs, s.ContactCount, utils.CellString(s.LastContactedAt), resourceID,
			utils.CellString(s.CreatedAt),
		})
	}
	return table
}
