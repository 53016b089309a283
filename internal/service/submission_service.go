package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scicat/internal/clients"
	"scicat/internal/models"
	"scicat/internal/repository"
	"scicat/internal/workflow"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type SubmissionInput struct {
	Kind              string   `json:"kind" validate:"omitempty,oneof=new update"`
	UpdatesResourceID *uint    `json:"updates_resource_id" validate:"required_if=Kind update"`
	SubmitterName     string   `json:"submitter_name" validate:"required,max=200"`
	SubmitterEmail    string   `json:"submitter_email" validate:"required,email,max=254"`
	ResourceName      string   `json:"resource_name" validate:"required,max=200"`
	Version           string   `json:"version" validate:"max=64"`
	Description       string   `json:"description" validate:"required"`
	Link              string   `json:"link" validate:"required,url,max=500"`
	CodeURL           string   `json:"code_url" validate:"omitempty,url,max=500"`
	DocsURL           string   `json:"docs_url" validate:"omitempty,url,max=500"`
	Publication       string   `json:"publication" validate:"max=2000"`
	Keywords          []string `json:"keywords" validate:"max=50,dive,max=200"`
	Regions           []string `json:"regions" validate:"max=20,dive,max=200"`
	Functionalities   []string `json:"functionality" validate:"max=20,dive,max=200"`
	License           string   `json:"license" validate:"max=200"`
	Languages         []string `json:"programming_languages" validate:"max=20,dive,max=200"`
	OperatingSystems  []string `json:"operating_systems" validate:"max=20,dive,max=200"`
	Categories        []string `json:"categories" validate:"max=20,dive,max=200"`
	Developers        []string `json:"developers" validate:"max=50,dive,max=200"`
	Organization      string   `json:"organization" validate:"max=200"`
	Notes             string   `json:"notes"`
}

type TransitionInput struct {
	Action  string `json:"action" validate:"required"`
	Note    string `json:"note"`
	Subject string `json:"subject" validate:"max=200"`
}

type SubmissionPage struct {
	Items []models.Submission `json:"items"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

type ReminderRun struct {
	Checked  int `json:"checked"`
	Reminded int `json:"reminded"`
	Expired  int `json:"expired"`
	Failed   int `json:"failed"`
}

type SubmissionService interface {
	Submit(ctx context.Context, input SubmissionInput, raw []byte) (*models.Submission, error)
	List(ctx context.Context, status string, page, limit int) (*SubmissionPage, error)
	Get(ctx context.Context, id uint) (*models.Submission, error)
	Transition(ctx context.Context, id uint, input TransitionInput, actor string) (*models.Submission, error)
	Notify(ctx context.Context, id uint, subject, message, actor string) error
	ProcessReminders(ctx context.Context, now time.Time) (*ReminderRun, error)
}

type submissionService struct {
	repos  repository.Repos
	tx     repository.TxRunner
	cache  repository.CacheRepository
	mailer clients.Mailer
	site   models.Site
	policy workflow.ContactPolicy
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewSubmissionService(
	repos repository.Repos,
	tx repository.TxRunner,
	cache repository.CacheRepository,
	mailer clients.Mailer,
	site models.Site,
	policy workflow.ContactPolicy,
	log *zap.SugaredLogger,
) SubmissionService {
	return &submissionService{
		repos:  repos,
		tx:     tx,
		cache:  cache,
		mailer: mailer,
		site:   site,
		policy: policy,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *submissionService) Submit(ctx context.Context, input SubmissionInput, raw []byte) (*models.Submission, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	kind := models.SubmissionKind(input.Kind)
	if kind == "" {
		kind = models.SubmissionNew
	}
	if kind == models.SubmissionUpdate {
		if _, err := s.repos.Resources.GetByID(ctx, *input.UpdatesResourceID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("%w: resource %d does not exist", models.ErrInvalidArgument, *input.UpdatesResourceID)
			}
			return nil, err
		}
	} else {
		input.UpdatesResourceID = nil
	}

	if len(raw) == 0 || !json.Valid(raw) {
		raw, _ = json.Marshal(input)
	}

	sub := &models.Submission{
		Kind:              kind,
		UpdatesResourceID: input.UpdatesResourceID,
		SubmitterName:     strings.TrimSpace(input.SubmitterName),
		SubmitterEmail:    strings.ToLower(strings.TrimSpace(input.SubmitterEmail)),
		ResourceName:      strings.TrimSpace(input.ResourceName),
		Version:           strings.TrimSpace(input.Version),
		Description:       input.Description,
		Link:              input.Link,
		CodeURL:           input.CodeURL,
		DocsURL:           input.DocsURL,
		Publication:       strings.TrimSpace(input.Publication),
		Keywords:          joinList(input.Keywords),
		Regions:           joinList(input.Regions),
		Functionalities:   joinList(input.Functionalities),
		License:           strings.TrimSpace(input.License),
		Languages:         joinList(input.Languages),
		OperatingSystems:  joinList(input.OperatingSystems),
		CategorySlugs:     joinList(input.Categories),
		Developers:        joinList(input.Developers),
		Organization:      strings.TrimSpace(input.Organization),
		Notes:             input.Notes,
		Status:            models.StatusReceived,
		Payload:           datatypes.JSON(raw),
	}

	err := s.tx.WithinTx(ctx, func(tx repository.Repos) error {
		if err := tx.Submissions.Create(ctx, sub); err != nil {
			return err
		}
		return tx.Submissions.AddEvent(ctx, &models.SubmissionEvent{
			SubmissionID: sub.ID,
			Action:       "submit",
			To:           models.StatusReceived,
			Actor:        sub.SubmitterEmail,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	if err := s.mailer.Send(ctx, acknowledgementMail(s.site, sub)); err != nil {
		s.log.Warnw("failed to send acknowledgement", "submission_id", sub.ID, "error", err)
	}

	s.log.Infow("submission received", "id", sub.ID, "kind", sub.Kind, "resource", sub.ResourceName)
	return sub, nil
}

func (s *submissionService) List(ctx context.Context, status string, page, limit int) (*SubmissionPage, error) {
	st := models.SubmissionStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !validStatus(st) {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidArgument, status)
	}

	items, total, err := s.repos.Submissions.List(ctx, st, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	if items == nil {
		items = []models.Submission{}
	}

	_, size := repository.Page(page, limit, 100, 20)
	if page < 1 {
		page = 1
	}
	return &SubmissionPage{Items: items, Total: total, Page: page, Limit: size}, nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (*models.Submission, error) {
	sub, err := s.repos.Submissions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("submission %d: %w", id, err)
	}
	return sub, nil
}

func (s *submissionService) Transition(ctx context.Context, id uint, input TransitionInput, actor string) (*models.Submission, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	action, err := workflow.ParseAction(strings.ToLower(strings.TrimSpace(input.Action)))
	if err != nil {
		return nil, err
	}

	sub, err := s.apply(ctx, id, action, actor, input.Note)
	if err != nil {
		return nil, err
	}

	switch action {
	case workflow.ActionContact:
		if err := s.mailer.Send(ctx, contactMail(s.site, sub, input.Subject, input.Note)); err != nil {
			s.log.Warnw("failed to send contact mail", "submission_id", sub.ID, "error", err)
		}
	case workflow.ActionPublish:
		invalidateListings(ctx, s.cache, s.site.Code, s.log)
	}

	return s.Get(ctx, id)
}

// apply runs one workflow action inside a transaction and persists the event.
func (s *submissionService) apply(ctx context.Context, id uint, action workflow.Action, actor, note string) (*models.Submission, error) {
	var result *models.Submission
	err := s.tx.WithinTx(ctx, func(tx repository.Repos) error {
		sub, err := tx.Submissions.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("submission %d: %w", id, err)
		}

		if action == workflow.ActionExpire && sub.ContactCount < s.policy.MaxContacts {
			return fmt.Errorf("%w: submission has %d of %d contacts", models.ErrInvalidTransition, sub.ContactCount, s.policy.MaxContacts)
		}

		now := s.now()
		event, err := workflow.Apply(sub, action, actor, note, now)
		if err != nil {
			return err
		}

		if action == workflow.ActionPublish {
			resource, err := s.promote(ctx, tx, sub, now)
			if err != nil {
				return err
			}
			sub.ResourceID = &resource.ID
		}

		if err := tx.Submissions.Save(ctx, sub); err != nil {
			return err
		}
		if err := tx.Submissions.AddEvent(ctx, event); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("submission transitioned", "id", id, "action", action, "status", result.Status, "actor", actor)
	return result, nil
}

// Notify emails the submitter and records a contact transition when the
// current status allows one.
func (s *submissionService) Notify(ctx context.Context, id uint, subject, message, actor string) error {
	sub, err := s.repos.Submissions.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("submission %d: %w", id, err)
	}

	if err := s.mailer.Send(ctx, contactMail(s.site, sub, subject, message)); err != nil {
		return fmt.Errorf("failed to mail submission %d: %w", id, err)
	}

	if _, err := workflow.Next(sub.Status, workflow.ActionContact); err != nil {
		return nil
	}
	if _, err := s.apply(ctx, id, workflow.ActionContact, actor, subject); err != nil {
		return fmt.Errorf("mail sent but contact not recorded for submission %d: %w", id, err)
	}
	return nil
}

func (s *submissionService) ProcessReminders(ctx context.Context, now time.Time) (*ReminderRun, error) {
	subs, err := s.repos.Submissions.ListByStatus(ctx, models.StatusContacted)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacted submissions: %w", err)
	}

	run := &ReminderRun{Checked: len(subs)}
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return run, err
		}

		sub := &subs[i]
		switch workflow.ContactDue(sub, s.policy, now) {
		case workflow.CadenceRemind:
			updated, err := s.apply(ctx, sub.ID, workflow.ActionContact, systemActor, "automatic reminder")
			if err != nil {
				run.Failed++
				s.log.Errorw("reminder failed", "submission_id", sub.ID, "error", err)
				continue
			}
			msg := contactMail(s.site, updated, "Reminder: "+updated.ResourceName, reminderMessage(updated, s.policy.MaxContacts))
			if err := s.mailer.Send(ctx, msg); err != nil {
				s.log.Warnw("failed to send reminder", "submission_id", sub.ID, "error", err)
			}
			run.Reminded++
		case workflow.CadenceExpire:
			if _, err := s.apply(ctx, sub.ID, workflow.ActionExpire, systemActor, "no response after final reminder"); err != nil {
				run.Failed++
				s.log.Errorw("expiry failed", "submission_id", sub.ID, "error", err)
				continue
			}
			run.Expired++
		}
	}

	s.log.Infow("reminders processed", "checked", run.Checked, "reminded", run.Reminded, "expired", run.Expired, "failed", run.Failed)
	return run, nil
}

// promote turns an accepted submission into a published resource.
func (s *submissionService) promote(ctx context.Context, tx repository.Repos, sub *models.Submission, now time.Time) (*models.Resource, error) {
	if sub.Kind == models.SubmissionUpdate && sub.UpdatesResourceID != nil {
		return s.promoteUpdate(ctx, tx, sub, now)
	}

	exists, err := tx.Resources.ExistsNameVersion(ctx, sub.ResourceName, sub.Version, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%s %s: %w", sub.ResourceName, sub.Version, models.ErrDuplicateResource)
	}

	resourceSlug, err := uniqueSlug(ctx, tx.Resources, sub.ResourceName, sub.Version)
	if err != nil {
		return nil, err
	}

	published := now
	resource := &models.Resource{
		Name:        sub.ResourceName,
		Version:     sub.Version,
		Slug:        resourceSlug,
		Description: sub.Description,
		Link:        sub.Link,
		CodeURL:     sub.CodeURL,
		DocsURL:     sub.DocsURL,
		Publication: sub.Publication,
		Published:   true,
		PublishedAt: &published,
	}
	if err := s.attach(ctx, tx, resource, sub); err != nil {
		return nil, err
	}
	if err := tx.Resources.Create(ctx, resource); err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return resource, nil
}

func (s *submissionService) promoteUpdate(ctx context.Context, tx repository.Repos, sub *models.Submission, now time.Time) (*models.Resource, error) {
	resource, err := tx.Resources.GetByID(ctx, *sub.UpdatesResourceID)
	if err != nil {
		return nil, fmt.Errorf("resource %d: %w", *sub.UpdatesResourceID, err)
	}

	exists, err := tx.Resources.ExistsNameVersion(ctx, sub.ResourceName, sub.Version, resource.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%s %s: %w", sub.ResourceName, sub.Version, models.ErrDuplicateResource)
	}

	resource.Name = sub.ResourceName
	resource.Version = sub.Version
	resource.Description = sub.Description
	resource.Link = sub.Link
	if sub.CodeURL != "" {
		resource.CodeURL = sub.CodeURL
	}
	if sub.DocsURL != "" {
		resource.DocsURL = sub.DocsURL
	}
	if sub.Publication != "" {
		resource.Publication = sub.Publication
	}
	resource.Published = true
	if resource.PublishedAt == nil {
		published := now
		resource.PublishedAt = &published
	}

	if err := s.attach(ctx, tx, resource, sub); err != nil {
		return nil, err
	}
	if err := tx.Resources.Update(ctx, resource); err != nil {
		return nil, fmt.Errorf("failed to update resource: %w", err)
	}
	if err := tx.Resources.ReplaceAssociations(ctx, resource); err != nil {
		return nil, fmt.Errorf("failed to update resource associations: %w", err)
	}
	return resource, nil
}

// attach merges the submission's categories, vocabulary terms, developers
// and organization into resource. Unknown category slugs are ignored and a
// submitted license replaces the previous one.
func (s *submissionService) attach(ctx context.Context, tx repository.Repos, resource *models.Resource, sub *models.Submission) error {
	categories, err := tx.Categories.GetBySlugs(ctx, models.SplitList(sub.CategorySlugs))
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	haveCategory := make(map[uint]bool, len(resource.Categories))
	for _, c := range resource.Categories {
		haveCategory[c.ID] = true
	}
	for _, c := range categories {
		if !haveCategory[c.ID] {
			resource.Categories = append(resource.Categories, c)
			haveCategory[c.ID] = true
		}
	}

	if sub.License != "" {
		license, err := tx.Vocabulary.FindOrCreateTerm(ctx, models.TermLicense, sub.License)
		if err != nil {
			return fmt.Errorf("failed to resolve license %q: %w", sub.License, err)
		}
		terms := resource.Terms[:0:0]
		for _, t := range resource.Terms {
			if t.Kind != models.TermLicense {
				terms = append(terms, t)
			}
		}
		resource.Terms = append(terms, *license)
	}

	haveTerm := make(map[uint]bool, len(resource.Terms))
	for _, t := range resource.Terms {
		haveTerm[t.ID] = true
	}
	for _, group := range sub.TermLists() {
		for _, name := range group.Names {
			term, err := tx.Vocabulary.FindOrCreateTerm(ctx, group.Kind, name)
			if err != nil {
				return fmt.Errorf("failed to resolve %s %q: %w", group.Kind, name, err)
			}
			if !haveTerm[term.ID] {
				resource.Terms = append(resource.Terms, *term)
				haveTerm[term.ID] = true
			}
		}
	}

	havePerson := make(map[uint]bool, len(resource.Developers))
	for _, p := range resource.Developers {
		havePerson[p.ID] = true
	}
	for _, name := range models.SplitList(sub.Developers) {
		person, err := tx.Vocabulary.FindOrCreatePerson(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to resolve developer %q: %w", name, err)
		}
		if !havePerson[person.ID] {
			resource.Developers = append(resource.Developers, *person)
			havePerson[person.ID] = true
		}
	}

	if sub.Organization != "" {
		org, err := tx.Vocabulary.FindOrCreateOrganization(ctx, sub.Organization)
		if err != nil {
			return fmt.Errorf("failed to resolve organization %q: %w", sub.Organization, err)
		}
		found := false
		for _, o := range resource.Organizations {
			if o.ID == org.ID {
				found = true
				break
			}
		}
		if !found {
			resource.Organizations = append(resource.Organizations, *org)
		}
	}
	return nil
}

// uniqueSlug derives a slug from name and version, suffixing a counter on collision.
func uniqueSlug(ctx context.Context, resources repository.ResourceRepository, name, version string) (string, error) {
	base := slug.Make(strings.TrimSpace(name + " " + version))
	if base == "" {
		base = "resource"
	}
	candidate := base
	for i := 2; ; i++ {
		taken, err := resources.SlugTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func validStatus(status models.SubmissionStatus) bool {
	for _, st := range models.SubmissionStatuses {
		if st == status {
			return true
		}
	}
	return false
}

func joinList(values []string) string {
	return strings.Join(models.SplitList(strings.Join(values, ",")), ", ")
}
