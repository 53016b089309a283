package service

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scicat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMonthlyCounts(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	counts := MonthlyCounts(times, now, 3)
	assert.Equal(t, []models.CountByKey{
		{Key: "2026-01", Count: 1},
		{Key: "2026-02", Count: 0},
		{Key: "2026-03", Count: 2},
	}, counts)

	assert.Len(t, MonthlyCounts(nil, now, 12), 12)
	assert.Equal(t, "2025-04", MonthlyCounts(nil, now, 12)[0].Key)
}

func TestCategoryCounts(t *testing.T) {
	out := categoryCounts([]models.Category{
		{ID: 1, Name: "Models"},
		{ID: 2, Name: "Data"},
		{ID: 3, Name: "Atmospheres"},
	}, map[uint]int64{1: 2, 2: 5, 3: 2})

	assert.Equal(t, []models.CountByKey{
		{Key: "Data", Count: 5},
		{Key: "Atmospheres", Count: 2},
		{Key: "Models", Count: 2},
	}, out)
}

func newReportFixture(t *testing.T) (*testRepos, *reportService, string) {
	r := newTestRepos()
	dir := t.TempDir()
	svc := NewReportService(r.repos(), testSite, dir, testLog).(*reportService)
	svc.now = func() time.Time { return time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC) }
	return r, svc, dir
}

func TestExportResourcesCSV(t *testing.T) {
	r, svc, dir := newReportFixture(t)
	ok := true
	r.resources.On("ListAll", mock.Anything).Return([]models.Resource{
		{
			ID:         1,
			Name:       "OrbitFit",
			Version:    "1.2",
			Slug:       "orbitfit-1-2",
			Published:  true,
			Categories: []models.Category{{Name: "Models"}, {Name: "Fitting"}},
			Terms:      []models.ControlledTerm{{Kind: models.TermKeyword, Name: "orbits"}, {Kind: models.TermLicense, Name: "MIT"}},
			LinkOK:     &ok,
		},
	}, nil)

	path, err := svc.Export(context.Background(), "Resources", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "emac_resources_20260402_093000.csv"), path)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Name", records[0][1])
	assert.Equal(t, "OrbitFit", records[1][1])
	assert.Equal(t, "Models; Fitting", records[1][8])
	assert.Equal(t, "orbits", records[1][9])
	assert.Equal(t, "true", records[1][12])
}

func TestExportSubmissionsJSON(t *testing.T) {
	r, svc, _ := newReportFixture(t)
	r.submissions.On("ListAll", mock.Anything).Return([]models.Submission{
		{ID: 4, ResourceName: "OrbitFit", Status: models.StatusReceived},
	}, nil)

	path, err := svc.Export(context.Background(), "submissions", "json")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"resource_name": "OrbitFit"`))
}

func TestExportRejectsUnknownKindOrFormat(t *testing.T) {
	_, svc, _ := newReportFixture(t)

	_, err := svc.Export(context.Background(), "people", "csv")
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))

	_, err = svc.Export(context.Background(), "resources", "pdf")
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))
}

func TestSummary(t *testing.T) {
	r, svc, _ := newReportFixture(t)

	r.resources.On("Count", mock.Anything, false).Return(int64(10), nil)
	r.resources.On("Count", mock.Anything, true).Return(int64(7), nil)
	r.resources.On("CountBrokenLinks", mock.Anything).Return(int64(1), nil)
	r.submissions.On("CountByStatus", mock.Anything).Return([]models.CountByKey{{Key: "received", Count: 3}}, nil)
	r.submissions.On("CreatedSince", mock.Anything, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)).
		Return([]time.Time{time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}, nil)
	r.categories.On("List", mock.Anything).Return([]models.Category{{ID: 1, Name: "Models"}}, nil)
	r.categories.On("PublishedCounts", mock.Anything).Return(map[uint]int64{1: 7}, nil)
	r.vocabulary.On("TopTerms", mock.Anything, models.TermKeyword, 10).Return([]models.CountByKey{{Key: "orbits", Count: 4}}, nil)
	r.subscriptions.On("CountByFrequency", mock.Anything).Return([]models.CountByKey{{Key: "weekly", Count: 2}}, nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), summary.ResourcesTotal)
	assert.Equal(t, int64(7), summary.ResourcesPublished)
	assert.Equal(t, int64(1), summary.BrokenLinks)
	require.Len(t, summary.SubmissionsPerMonth, 12)
	assert.Equal(t, models.CountByKey{Key: "2026-04", Count: 1}, summary.SubmissionsPerMonth[11])
	assert.Equal(t, []models.CountByKey{{Key: "Models", Count: 7}}, summary.ResourcesPerCategory)
}
