package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"scicat/internal/clients"
	"scicat/internal/models"
	"scicat/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

var testLog = zap.NewNop().Sugar()

var testSite = models.Site{
	Code:          models.SiteEMAC,
	Name:          "Exoplanet Modeling and Analysis Center",
	BaseURL:       "https://emac.example.org",
	DigestSubject: "EMAC",
}

// memCache is an in-memory CacheRepository.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.data[key]), nil
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *memCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *memCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, key, value, ttl)
}

func (c *memCache) Increment(_ context.Context, key string) (int64, error) {
	return 0, nil
}

// DeletePattern supports trailing-star patterns only.
func (c *memCache) DeletePattern(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	n := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *memCache) has(key string) bool {
	ok, _ := c.Exists(context.Background(), key)
	return ok
}

type mockResourceRepo struct{ mock.Mock }

func (m *mockResourceRepo) Create(ctx context.Context, resource *models.Resource) error {
	return m.Called(ctx, resource).Error(0)
}

func (m *mockResourceRepo) Update(ctx context.Context, resource *models.Resource) error {
	return m.Called(ctx, resource).Error(0)
}

func (m *mockResourceRepo) ReplaceAssociations(ctx context.Context, resource *models.Resource) error {
	return m.Called(ctx, resource).Error(0)
}

func (m *mockResourceRepo) GetByID(ctx context.Context, id uint) (*models.Resource, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.Resource)
	return res, args.Error(1)
}

func (m *mockResourceRepo) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*models.Resource, error) {
	args := m.Called(ctx, slug, publishedOnly)
	res, _ := args.Get(0).(*models.Resource)
	return res, args.Error(1)
}

func (m *mockResourceRepo) ExistsNameVersion(ctx context.Context, name, version string, excludeID uint) (bool, error) {
	args := m.Called(ctx, name, version, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockResourceRepo) SlugTaken(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *mockResourceRepo) ListPublished(ctx context.Context, page, limit int) ([]models.Resource, int64, error) {
	args := m.Called(ctx, page, limit)
	res, _ := args.Get(0).([]models.Resource)
	return res, args.Get(1).(int64), args.Error(2)
}

func (m *mockResourceRepo) ListByCategories(ctx context.Context, ids []uint, page, limit int) ([]models.Resource, int64, error) {
	args := m.Called(ctx, ids, page, limit)
	res, _ := args.Get(0).([]models.Resource)
	return res, args.Get(1).(int64), args.Error(2)
}

func (m *mockResourceRepo) SearchTier(ctx context.Context, tier repository.SearchTier, query string, exclude []uint) ([]models.Resource, error) {
	args := m.Called(ctx, tier, query, exclude)
	res, _ := args.Get(0).([]models.Resource)
	return res, args.Error(1)
}

func (m *mockResourceRepo) Related(ctx context.Context, resource *models.Resource, limit int) ([]models.Resource, error) {
	args := m.Called(ctx, resource, limit)
	res, _ := args.Get(0).([]models.Resource)
	return res, args.Error(1)
}

func (m *mockResourceRepo) SetVisibility(ctx context.Context, id uint, published bool, at time.Time) (*models.Resource, error) {
	args := m.Called(ctx, id, published, at)
	res, _ := args.Get(0).(*models.Resource)
	return res, args.Error(1)
}

func (m *mockResourceRepo) PublishedBetween(ctx context.Context, from, to time.Time) ([]models.Resource, error) {
	args := m.Called(ctx, from, to)
	res, _ := args.Get(0).([]models.Resource)
	return res, args.Error(1)
}

func (m *mockResourceRepo) ListAll(ctx context.Context) ([]models.Resource, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]models.Resource)
	return res, args.Error(1)
}

func (m *mockResourceRepo) SaveLinkCheck(ctx context.Context, check models.LinkCheck) error {
	return m.Called(ctx, check).Error(0)
}

func (m *mockResourceRepo) BrokenLinks(ctx context.Context) ([]models.Resource, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]models.Resource)
	return res, args.Error(1)
}

func (m *mockResourceRepo) CountBrokenLinks(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResourceRepo) Count(ctx context.Context, publishedOnly bool) (int64, error) {
	args := m.Called(ctx, publishedOnly)
	return args.Get(0).(int64), args.Error(1)
}

type mockCategoryRepo struct{ mock.Mock }

func (m *mockCategoryRepo) Create(ctx context.Context, category *models.Category) error {
	return m.Called(ctx, category).Error(0)
}

func (m *mockCategoryRepo) List(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]models.Category)
	return res, args.Error(1)
}

func (m *mockCategoryRepo) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.Category)
	return res, args.Error(1)
}

func (m *mockCategoryRepo) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	args := m.Called(ctx, slug)
	res, _ := args.Get(0).(*models.Category)
	return res, args.Error(1)
}

func (m *mockCategoryRepo) GetBySlugs(ctx context.Context, slugs []string) ([]models.Category, error) {
	args := m.Called(ctx, slugs)
	res, _ := args.Get(0).([]models.Category)
	return res, args.Error(1)
}

func (m *mockCategoryRepo) PublishedCounts(ctx context.Context) (map[uint]int64, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(map[uint]int64)
	return res, args.Error(1)
}

type mockVocabularyRepo struct{ mock.Mock }

func (m *mockVocabularyRepo) FindOrCreateTerm(ctx context.Context, kind models.TermKind, name string) (*models.ControlledTerm, error) {
	args := m.Called(ctx, kind, name)
	if fn, ok := args.Get(0).(func(context.Context, models.TermKind, string) *models.ControlledTerm); ok {
		return fn(ctx, kind, name), args.Error(1)
	}
	res, _ := args.Get(0).(*models.ControlledTerm)
	return res, args.Error(1)
}

func (m *mockVocabularyRepo) ListTerms(ctx context.Context, kind models.TermKind) ([]models.ControlledTerm, error) {
	args := m.Called(ctx, kind)
	res, _ := args.Get(0).([]models.ControlledTerm)
	return res, args.Error(1)
}

func (m *mockVocabularyRepo) TopTerms(ctx context.Context, kind models.TermKind, limit int) ([]models.CountByKey, error) {
	args := m.Called(ctx, kind, limit)
	res, _ := args.Get(0).([]models.CountByKey)
	return res, args.Error(1)
}

func (m *mockVocabularyRepo) FindOrCreatePerson(ctx context.Context, name string) (*models.Person, error) {
	args := m.Called(ctx, name)
	res, _ := args.Get(0).(*models.Person)
	return res, args.Error(1)
}

func (m *mockVocabularyRepo) FindOrCreateOrganization(ctx context.Context, name string) (*models.Organization, error) {
	args := m.Called(ctx, name)
	res, _ := args.Get(0).(*models.Organization)
	return res, args.Error(1)
}

type mockSubmissionRepo struct{ mock.Mock }

func (m *mockSubmissionRepo) Create(ctx context.Context, sub *models.Submission) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockSubmissionRepo) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.Submission)
	return res, args.Error(1)
}

func (m *mockSubmissionRepo) GetForUpdate(ctx context.Context, id uint) (*models.Submission, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.Submission)
	return res, args.Error(1)
}

func (m *mockSubmissionRepo) List(ctx context.Context, status models.SubmissionStatus, page, limit int) ([]models.Submission, int64, error) {
	args := m.Called(ctx, status, page, limit)
	res, _ := args.Get(0).([]models.Submission)
	return res, args.Get(1).(int64), args.Error(2)
}

func (m *mockSubmissionRepo) ListByStatus(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error) {
	args := m.Called(ctx, status)
	res, _ := args.Get(0).([]models.Submission)
	return res, args.Error(1)
}

func (m *mockSubmissionRepo) Save(ctx context.Context, sub *models.Submission) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockSubmissionRepo) AddEvent(ctx context.Context, event *models.SubmissionEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockSubmissionRepo) CountByStatus(ctx context.Context) ([]models.CountByKey, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]models.CountByKey)
	return res, args.Error(1)
}

func (m *mockSubmissionRepo) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	args := m.Called(ctx, since)
	res, _ := args.Get(0).([]time.Time)
	return res, args.Error(1)
}

func (m *mockSubmissionRepo) ListAll(ctx context.Context) ([]models.Submission, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]models.Submission)
	return res, args.Error(1)
}

type mockSubscriptionRepo struct{ mock.Mock }

func (m *mockSubscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockSubscriptionRepo) GetByEmail(ctx context.Context, email string) (*models.Subscription, error) {
	args := m.Called(ctx, email)
	res, _ := args.Get(0).(*models.Subscription)
	return res, args.Error(1)
}

func (m *mockSubscriptionRepo) GetByToken(ctx context.Context, token uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, token)
	res, _ := args.Get(0).(*models.Subscription)
	return res, args.Error(1)
}

func (m *mockSubscriptionRepo) Save(ctx context.Context, sub *models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockSubscriptionRepo) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSubscriptionRepo) ListConfirmed(ctx context.Context) ([]models.Subscription, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]models.Subscription)
	return res, args.Error(1)
}

func (m *mockSubscriptionRepo) LogDigest(ctx context.Context, entry *models.DigestLog) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockSubscriptionRepo) MarkDigested(ctx context.Context, ids []uint, at time.Time) error {
	return m.Called(ctx, ids, at).Error(0)
}

func (m *mockSubscriptionRepo) CountByFrequency(ctx context.Context) ([]models.CountByKey, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]models.CountByKey)
	return res, args.Error(1)
}

type mockTeamRepo struct{ mock.Mock }

func (m *mockTeamRepo) List(ctx context.Context, activeOnly bool) ([]models.TeamMember, error) {
	args := m.Called(ctx, activeOnly)
	res, _ := args.Get(0).([]models.TeamMember)
	return res, args.Error(1)
}

func (m *mockTeamRepo) Create(ctx context.Context, member *models.TeamMember) error {
	return m.Called(ctx, member).Error(0)
}

func (m *mockTeamRepo) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

// recordingMailer keeps every message it is asked to send.
type recordingMailer struct {
	mu   sync.Mutex
	sent []clients.Mail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msgs ...clients.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msgs...)
	return nil
}

func (m *recordingMailer) messages() []clients.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]clients.Mail(nil), m.sent...)
}

// directTx runs the callback against the same repositories without a transaction.
type directTx struct {
	repos repository.Repos
}

func (t directTx) WithinTx(_ context.Context, fn func(tx repository.Repos) error) error {
	return fn(t.repos)
}

type testRepos struct {
	resources     *mockResourceRepo
	categories    *mockCategoryRepo
	vocabulary    *mockVocabularyRepo
	submissions   *mockSubmissionRepo
	subscriptions *mockSubscriptionRepo
	team          *mockTeamRepo
}

func newTestRepos() *testRepos {
	return &testRepos{
		resources:     &mockResourceRepo{},
		categories:    &mockCategoryRepo{},
		vocabulary:    &mockVocabularyRepo{},
		submissions:   &mockSubmissionRepo{},
		subscriptions: &mockSubscriptionRepo{},
		team:          &mockTeamRepo{},
	}
}

func (r *testRepos) repos() repository.Repos {
	return repository.Repos{
		Resources:     r.resources,
		Categories:    r.categories,
		Vocabulary:    r.vocabulary,
		Submissions:   r.submissions,
		Subscriptions: r.subscriptions,
		Team:          r.team,
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrUint(v uint) *uint { return &v }
