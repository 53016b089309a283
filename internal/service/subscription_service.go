package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"scicat/internal/clients"
	"scicat/internal/models"
	"scicat/internal/repository"
	"scicat/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const digestConcurrency = 4

type SubscribeInput struct {
	Email      string   `json:"email" validate:"required,email,max=254"`
	Name       string   `json:"name" validate:"max=200"`
	Frequency  string   `json:"frequency" validate:"required,oneof=weekly monthly"`
	Categories []string `json:"categories" validate:"max=50,dive,max=200"`
}

type PreferencesInput struct {
	Frequency  string   `json:"frequency" validate:"omitempty,oneof=weekly monthly"`
	Categories []string `json:"categories" validate:"max=50,dive,max=200"`
}

// DigestBatch is one set of resources shared by every subscription with the
// same window start and category filter.
type DigestBatch struct {
	WindowStart   time.Time
	WindowEnd     time.Time
	CategoryIDs   []uint
	Subscriptions []models.Subscription
	Resources     []models.Resource
}

type DigestRun struct {
	Due     int `json:"due"`
	Batches int `json:"batches"`
	Sent    int `json:"sent"`
	Empty   int `json:"empty"`
	Failed  int `json:"failed"`
}

type SubscriptionService interface {
	Subscribe(ctx context.Context, input SubscribeInput) (*models.Subscription, error)
	Confirm(ctx context.Context, token string) (*models.Subscription, error)
	Unsubscribe(ctx context.Context, token string) error
	UpdatePreferences(ctx context.Context, token string, input PreferencesInput) (*models.Subscription, error)
	RunDigests(ctx context.Context, now time.Time) (*DigestRun, error)
}

type subscriptionService struct {
	subscriptions repository.SubscriptionRepository
	categories    repository.CategoryRepository
	resources     repository.ResourceRepository
	mailer        clients.Mailer
	site          models.Site
	log           *zap.SugaredLogger
	now           func() time.Time
}

func NewSubscriptionService(repos repository.Repos, mailer clients.Mailer, site models.Site, log *zap.SugaredLogger) SubscriptionService {
	return &subscriptionService{
		subscriptions: repos.Subscriptions,
		categories:    repos.Categories,
		resources:     repos.Resources,
		mailer:        mailer,
		site:          site,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *subscriptionService) Subscribe(ctx context.Context, input SubscribeInput) (*models.Subscription, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Frequency = strings.ToLower(strings.TrimSpace(input.Frequency))
	if err := validateInput(input); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	categories, err := s.categories.GetBySlugs(ctx, input.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	sub, err := s.subscriptions.GetByEmail(ctx, email)
	switch {
	case err == nil && sub.Confirmed:
		return nil, models.ErrAlreadySubscribed
	case err == nil:
		sub.Name = strings.TrimSpace(input.Name)
		sub.Frequency = models.Frequency(input.Frequency)
		sub.Categories = categories
		if err := s.subscriptions.Save(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to update subscription: %w", err)
		}
	case errors.Is(err, models.ErrNotFound):
		sub = &models.Subscription{
			Email:      email,
			Name:       strings.TrimSpace(input.Name),
			Frequency:  models.Frequency(input.Frequency),
			Categories: categories,
			Token:      uuid.New(),
		}
		if err := s.subscriptions.Create(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to create subscription: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up subscription: %w", err)
	}

	if err := s.mailer.Send(ctx, confirmationMail(s.site, sub)); err != nil {
		s.log.Warnw("failed to send confirmation", "subscription_id", sub.ID, "error", err)
	}

	s.log.Infow("subscription requested", "id", sub.ID, "frequency", sub.Frequency, "categories", len(sub.Categories))
	return sub, nil
}

func (s *subscriptionService) byToken(ctx context.Context, token string) (*models.Subscription, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed token", models.ErrInvalidArgument)
	}
	sub, err := s.subscriptions.GetByToken(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("subscription: %w", err)
	}
	return sub, nil
}

func (s *subscriptionService) Confirm(ctx context.Context, token string) (*models.Subscription, error) {
	sub, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sub.Confirmed {
		return sub, nil
	}

	now := s.now()
	sub.Confirmed = true
	sub.ConfirmedAt = &now
	if err := s.subscriptions.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to confirm subscription: %w", err)
	}
	s.log.Infow("subscription confirmed", "id", sub.ID)
	return sub, nil
}

func (s *subscriptionService) Unsubscribe(ctx context.Context, token string) error {
	sub, err := s.byToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.subscriptions.Delete(ctx, sub.ID); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	s.log.Infow("subscription removed", "id", sub.ID)
	return nil
}

func (s *subscriptionService) UpdatePreferences(ctx context.Context, token string, input PreferencesInput) (*models.Subscription, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	sub, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if input.Frequency != "" {
		sub.Frequency = models.Frequency(input.Frequency)
	}
	if input.Categories != nil {
		categories, err := s.categories.GetBySlugs(ctx, input.Categories)
		if err != nil {
			return nil, fmt.Errorf("failed to load categories: %w", err)
		}
		sub.Categories = categories
	}

	if err := s.subscriptions.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	return sub, nil
}

// DigestDue reports whether sub should receive a digest at now.
func DigestDue(sub models.Subscription, now time.Time) bool {
	if !sub.Confirmed {
		return false
	}
	if sub.LastDigestAt == nil {
		return true
	}
	return !now.Before(sub.Frequency.Next(*sub.LastDigestAt))
}

// windowStart is the instant after which resources are new for sub.
func windowStart(sub models.Subscription) time.Time {
	switch {
	case sub.LastDigestAt != nil:
		return *sub.LastDigestAt
	case sub.ConfirmedAt != nil:
		return *sub.ConfirmedAt
	default:
		return sub.CreatedAt
	}
}

func categoryKey(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

func sortedCategoryIDs(sub models.Subscription) []uint {
	ids := make([]uint, 0, len(sub.Categories))
	seen := make(map[uint]bool)
	for _, c := range sub.Categories {
		if !seen[c.ID] {
			seen[c.ID] = true
			ids = append(ids, c.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BuildDigests groups due subscriptions by window start and category filter and
// computes each group's resources once. resources must be published; those
// outside a batch's window or categories are dropped. An empty category filter
// matches every category.
func BuildDigests(subs []models.Subscription, resources []models.Resource, now time.Time) []DigestBatch {
	type groupKey struct {
		start      int64
		categories string
	}

	groups := make(map[groupKey]*DigestBatch)
	var order []groupKey
	for _, sub := range subs {
		if !DigestDue(sub, now) {
			continue
		}
		ids := sortedCategoryIDs(sub)
		start := windowStart(sub)
		key := groupKey{start: start.UnixNano(), categories: categoryKey(ids)}
		batch, ok := groups[key]
		if !ok {
			batch = &DigestBatch{WindowStart: start, WindowEnd: now, CategoryIDs: ids}
			groups[key] = batch
			order = append(order, key)
		}
		batch.Subscriptions = append(batch.Subscriptions, sub)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].start != order[j].start {
			return order[i].start < order[j].start
		}
		return order[i].categories < order[j].categories
	})

	batches := make([]DigestBatch, 0, len(order))
	for _, key := range order {
		batch := groups[key]
		batch.Resources = selectResources(resources, batch.WindowStart, batch.WindowEnd, batch.CategoryIDs)
		batches = append(batches, *batch)
	}
	return batches
}

func selectResources(resources []models.Resource, from, to time.Time, categoryIDs []uint) []models.Resource {
	wanted := make(map[uint]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		wanted[id] = true
	}

	out := make([]models.Resource, 0)
	for _, res := range resources {
		if !res.Published || res.PublishedAt == nil {
			continue
		}
		if !res.PublishedAt.After(from) || res.PublishedAt.After(to) {
			continue
		}
		if len(wanted) > 0 {
			match := false
			for _, c := range res.Categories {
				if wanted[c.ID] {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, res)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(*out[j].PublishedAt) {
			return out[i].PublishedAt.Before(*out[j].PublishedAt)
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// DigestMarkdown renders the body of a digest listing resources.
func DigestMarkdown(site models.Site, resources []models.Resource, from, to time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# New in the %s\n\n", site.Name)
	fmt.Fprintf(&b, "%d resource(s) published between %s and %s.\n\n",
		len(resources), from.Format("2006-01-02"), to.Format("2006-01-02"))
	for _, res := range resources {
		title := res.Name
		if res.Version != "" {
			title += " " + res.Version
		}
		fmt.Fprintf(&b, "- [%s](%s/resources/%s)", title, site.BaseURL, res.Slug)
		if summary := firstLine(res.Description); summary != "" {
			fmt.Fprintf(&b, ": %s", summary)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func (s *subscriptionService) RunDigests(ctx context.Context, now time.Time) (*DigestRun, error) {
	subs, err := s.subscriptions.ListConfirmed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	var due []models.Subscription
	earliest := now
	for _, sub := range subs {
		if DigestDue(sub, now) {
			due = append(due, sub)
			if start := windowStart(sub); start.Before(earliest) {
				earliest = start
			}
		}
	}

	run := &DigestRun{Due: len(due)}
	if len(due) == 0 {
		return run, nil
	}

	resources, err := s.resources.PublishedBetween(ctx, earliest, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent resources: %w", err)
	}

	batches := BuildDigests(due, resources, now)
	run.Batches = len(batches)

	var mu sync.Mutex
	failed := make(map[uint]bool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(digestConcurrency)

	for _, batch := range batches {
		batch := batch
		if len(batch.Resources) == 0 {
			mu.Lock()
			run.Empty += len(batch.Subscriptions)
			mu.Unlock()
			continue
		}

		text := DigestMarkdown(s.site, batch.Resources, batch.WindowStart, batch.WindowEnd)
		html, err := utils.RenderMarkdown(text)
		if err != nil {
			s.log.Warnw("failed to render digest", "error", err)
			html = ""
		}

		for _, sub := range batch.Subscriptions {
			sub := sub
			g.Go(func() error {
				sendErr := s.mailer.Send(gctx, clients.Mail{
					To:      sub.Email,
					ToName:  sub.Name,
					Subject: fmt.Sprintf("[%s] %s digest: %d new resource(s)", s.site.DigestSubject, sub.Frequency, len(batch.Resources)),
					Text:    text,
					HTML:    html,
				})

				entry := &models.DigestLog{
					SubscriptionID: sub.ID,
					ResourceCount:  len(batch.Resources),
					SentAt:         now,
				}
				if sendErr != nil {
					entry.Error = sendErr.Error()
					s.log.Warnw("digest delivery failed", "subscription_id", sub.ID, "error", sendErr)
				}
				if err := s.subscriptions.LogDigest(gctx, entry); err != nil {
					s.log.Warnw("failed to log digest", "subscription_id", sub.ID, "error", err)
				}

				mu.Lock()
				if sendErr != nil {
					run.Failed++
					failed[sub.ID] = true
				} else {
					run.Sent++
				}
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return run, err
	}

	// failed deliveries keep their window and are retried on the next run
	ids := make([]uint, 0, len(due))
	for _, sub := range due {
		if !failed[sub.ID] {
			ids = append(ids, sub.ID)
		}
	}
	if err := s.subscriptions.MarkDigested(ctx, ids, now); err != nil {
		return run, fmt.Errorf("failed to advance digest windows: %w", err)
	}

	s.log.Infow("digests processed", "due", run.Due, "batches", run.Batches, "sent", run.Sent, "empty", run.Empty, "failed", run.Failed)
	return run, nil
}
