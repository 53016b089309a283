package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scicat/internal/middleware"
	"scicat/internal/models"
	"scicat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCatalog struct {
	service.CatalogService
	detail     *models.ResourceDetail
	err        error
	visibility struct {
		id        uint
		published bool
	}
}

func (f *fakeCatalog) Detail(ctx context.Context, slug string) (*models.ResourceDetail, error) {
	return f.detail, f.err
}

func (f *fakeCatalog) CategoryTree(ctx context.Context) ([]*models.CategoryNode, error) {
	return []*models.CategoryNode{{Category: models.Category{ID: 1, Name: "Models", Slug: "models"}, ResourceCount: 2}}, nil
}

func (f *fakeCatalog) SetVisibility(ctx context.Context, id uint, published bool) (*models.Resource, error) {
	f.visibility.id, f.visibility.published = id, published
	return &models.Resource{ID: id, Published: published}, f.err
}

func (f *fakeCatalog) CreateCategory(ctx context.Context, input service.CategoryInput) (*models.Category, error) {
	return nil, f.err
}

type fakeSearch struct {
	query       string
	page, limit int
}

func (f *fakeSearch) Search(ctx context.Context, q string, page, limit int) (*service.SearchPage, error) {
	f.query, f.page, f.limit = q, page, limit
	return &service.SearchPage{Query: q, Page: page, Limit: limit}, nil
}

type fakeSubmissions struct {
	service.SubmissionService
	raw        []byte
	input      service.SubmissionInput
	transition service.TransitionInput
	actor      string
	err        error
}

func (f *fakeSubmissions) Submit(ctx context.Context, input service.SubmissionInput, raw []byte) (*models.Submission, error) {
	f.input, f.raw = input, raw
	if f.err != nil {
		return nil, f.err
	}
	return &models.Submission{ID: 7, ResourceName: input.ResourceName, Status: models.StatusReceived}, nil
}

func (f *fakeSubmissions) Transition(ctx context.Context, id uint, input service.TransitionInput, actor string) (*models.Submission, error) {
	f.transition, f.actor = input, actor
	if f.err != nil {
		return nil, f.err
	}
	return &models.Submission{ID: id, Status: models.StatusUnderReview}, nil
}

type fakeContacts struct {
	service.ContactJobService
	err error
}

func (f *fakeContacts) Cancel(ctx context.Context, id string) (*models.ContactJob, error) {
	return &models.ContactJob{ID: id, State: models.JobCompleted}, f.err
}

type fakeReports struct {
	service.ReportService
	path string
	kind string
	fmt  string
}

func (f *fakeReports) Export(ctx context.Context, kind, format string) (string, error) {
	f.kind, f.fmt = kind, format
	if format == "pdf" {
		return "", fmt.Errorf("unsupported format %q: %w", format, models.ErrInvalidArgument)
	}
	return f.path, nil
}

type fixture struct {
	router      *gin.Engine
	catalog     *fakeCatalog
	search      *fakeSearch
	submissions *fakeSubmissions
	contacts    *fakeContacts
	reports     *fakeReports
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog:     &fakeCatalog{},
		search:      &fakeSearch{},
		submissions: &fakeSubmissions{},
		contacts:    &fakeContacts{},
		reports:     &fakeReports{},
	}
	site := models.Site{Code: models.SiteHSSI, Name: "HSSI"}

	r := gin.New()
	RegisterRoutes(r, Handlers{
		System: NewSystemHandler(site,
			map[string]HealthCheck{"database": func(ctx context.Context) error { return nil }},
			map[string]StatsSource{"database": func(ctx context.Context) (interface{}, error) { return gin.H{"open": 1}, nil }},
			map[string]bool{"digest": true}),
		Catalog:      NewCatalogHandler(f.catalog, f.search),
		Submissions:  NewSubmissionHandler(f.submissions),
		Subscription: NewSubscriptionHandler(nil),
		Admin:        NewAdminHandler(f.catalog, f.contacts, nil),
		Reports:      NewReportHandler(f.reports),
	}, middleware.AdminAuth(map[string]string{"tok": "curator"}))
	f.router = r
	return f
}

func (f *fixture) do(method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, isString := body.(string); isString {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer tok")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("resource x: %w", models.ErrNotFound), http.StatusNotFound, "not_found"},
		{models.ErrJobNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("bad: %w", models.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{models.ErrDuplicateResource, http.StatusConflict, "duplicate_resource"},
		{models.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{models.ErrAlreadySubscribed, http.StatusConflict, "already_subscribed"},
		{models.ErrSlugTaken, http.StatusConflict, "slug_taken"},
		{models.ErrJobFinished, http.StatusConflict, "job_finished"},
		{errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			writeError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, errors.New("dial tcp 10.0.0.5:5432: refused"))
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query string
		page  int
		limit int
	}{
		{"", 1, defaultPageLimit},
		{"?page=3&limit=5", 3, 5},
		{"?page=-1&limit=abc", 1, defaultPageLimit},
		{"?limit=1000", 1, maxPageLimit},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
		page, limit := pagination(c)
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.limit, limit, tt.query)
	}
}

func TestSearchPassesQueryAndPaging(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/v1/search?q=radiative+transfer&page=2&limit=10", nil, false)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "radiative transfer", f.search.query)
	assert.Equal(t, 2, f.search.page)
	assert.Equal(t, 10, f.search.limit)
	assert.Equal(t, true, decode(t, w)["success"])
}

func TestResourceDetailNotFound(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = fmt.Errorf("resource %q: %w", "nope", models.ErrNotFound)

	w := f.do(http.MethodGet, "/api/v1/resources/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/v1/categories", nil, false)

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "models", data[0].(map[string]interface{})["slug"])
}

func TestSubmitKeepsRawBody(t *testing.T) {
	f := newFixture(t)
	body := `{"resource_name":"PSG","submitter_email":"a@b.org","extra":"kept"}`

	w := f.do(http.MethodPost, "/api/v1/submissions", body, false)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "PSG", f.submissions.input.ResourceName)
	assert.JSONEq(t, body, string(f.submissions.raw))
}

func TestSubmitRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/v1/submissions", `{"resource_name":`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitDuplicateIsConflict(t *testing.T) {
	f := newFixture(t)
	f.submissions.err = models.ErrDuplicateResource
	w := f.do(http.MethodPost, "/api/v1/submissions", `{"resource_name":"PSG"}`, false)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/v1/admin/submissions/3/transitions", service.TransitionInput{Action: "review"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransitionUsesAuthenticatedActor(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/v1/admin/submissions/3/transitions", service.TransitionInput{Action: "review", Note: "looks fine"}, true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "curator", f.submissions.actor)
	assert.Equal(t, "review", f.submissions.transition.Action)
}

func TestTransitionInvalidID(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/v1/admin/submissions/abc/transitions", service.TransitionInput{Action: "review"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransitionNotAllowed(t *testing.T) {
	f := newFixture(t)
	f.submissions.err = fmt.Errorf("publish from submitted: %w", models.ErrInvalidTransition)
	w := f.do(http.MethodPost, "/api/v1/admin/submissions/3/transitions", service.TransitionInput{Action: "publish"}, true)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSetVisibilityRequiresFlag(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPut, "/api/v1/admin/resources/4/visibility", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPut, "/api/v1/admin/resources/4/visibility", `{"published":false}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(4), f.catalog.visibility.id)
	assert.False(t, f.catalog.visibility.published)
}

func TestCreateCategorySlugTaken(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = models.ErrSlugTaken
	w := f.do(http.MethodPost, "/api/v1/admin/categories", service.CategoryInput{Name: "Models"}, true)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelFinishedContactJob(t *testing.T) {
	f := newFixture(t)
	f.contacts.err = models.ErrJobFinished

	w := f.do(http.MethodDelete, "/api/v1/admin/contact-jobs/job-1", nil, true)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "job_finished", body["error"])
	assert.Equal(t, "completed", body["data"].(map[string]interface{})["state"])
}

func TestExportServesFile(t *testing.T) {
	f := newFixture(t)
	f.reports.path = filepath.Join(t.TempDir(), "hssi_resources_20260101_120000.csv")
	require.NoError(t, os.WriteFile(f.reports.path, []byte("id,name\n1,PSG\n"), 0o644))

	w := f.do(http.MethodGet, "/api/v1/admin/reports/export?kind=resources&format=excel", nil, true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.FormatXLSX, f.reports.fmt)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "hssi_resources_20260101_120000.csv")
	assert.Equal(t, "id,name\n1,PSG\n", w.Body.String())
}

func TestExportUnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/v1/admin/reports/export?format=pdf", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthReportsDegradedCheck(t *testing.T) {
	h := NewSystemHandler(models.Site{Code: models.SiteEMAC}, map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("timeout") },
	}, nil, nil)

	r := gin.New()
	r.GET("/health", h.Health)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connected", body["services"].(map[string]interface{})["database"])
}

func TestSystemStats(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/v1/admin/system/stats", nil, true)

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["workers"].(map[string]interface{})["digest"])
	assert.Equal(t, float64(1), data["database"].(map[string]interface{})["open"])
}

func TestSiteProfile(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/v1/site", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hssi", decode(t, w)["data"].(map[string]interface{})["code"])
}

func TestNowUTCIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, nowUTC().Location())
}
