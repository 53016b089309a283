package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"scicat/internal/models"
	"scicat/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxJobErrors caps how many delivery errors a job snapshot keeps.
const maxJobErrors = 50

type ContactJobInput struct {
	Subject       string `json:"subject" validate:"required,max=200"`
	Message       string `json:"message" validate:"required"`
	SubmissionIDs []uint `json:"submission_ids" validate:"required,min=1,max=1000,dive,gt=0"`
}

type ContactJobService interface {
	Start(ctx context.Context, input ContactJobInput, actor string) (*models.ContactJob, error)
	Status(ctx context.Context, id string) (*models.ContactJob, error)
	Cancel(ctx context.Context, id string) (*models.ContactJob, error)
	Shutdown(ctx context.Context) error
}

type runningJob struct {
	mu     sync.Mutex
	job    models.ContactJob
	cancel context.CancelFunc

	// persistMu orders progress writes; persisted is the progress last written.
	persistMu sync.Mutex
	persisted int
}

type contactJobService struct {
	submissions SubmissionService
	cache       repository.CacheRepository
	concurrency int
	log         *zap.SugaredLogger

	root     context.Context
	stopAll  context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	jobs     map[string]*runningJob
	shutdown bool
}

func NewContactJobService(
	submissions SubmissionService,
	cache repository.CacheRepository,
	concurrency int,
	log *zap.SugaredLogger,
) ContactJobService {
	if concurrency < 1 {
		concurrency = 1
	}
	root, cancel := context.WithCancel(context.Background())
	return &contactJobService{
		submissions: submissions,
		cache:       cache,
		concurrency: concurrency,
		log:         log,
		root:        root,
		stopAll:     cancel,
		jobs:        make(map[string]*runningJob),
	}
}

func jobKey(id string) string {
	return "contact:job:" + id
}

func (s *contactJobService) Start(ctx context.Context, input ContactJobInput, actor string) (*models.ContactJob, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	ids := dedupeIDs(input.SubmissionIDs)
	jobCtx, cancel := context.WithCancel(s.root)
	rj := &runningJob{
		cancel: cancel,
		job: models.ContactJob{
			ID:        uuid.NewString(),
			Actor:     actor,
			Subject:   input.Subject,
			Total:     len(ids),
			State:     models.JobRunning,
			StartedAt: time.Now().UTC(),
		},
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		cancel()
		return nil, errors.New("contact job runner is shutting down")
	}
	s.jobs[rj.job.ID] = rj
	s.wg.Add(1)
	s.mu.Unlock()

	snapshot := rj.snapshot()
	s.persist(ctx, snapshot)

	go s.run(jobCtx, rj, ids, input)

	s.log.Infow("contact job started", "job_id", snapshot.ID, "total", snapshot.Total, "actor", actor)
	return &snapshot, nil
}

func (s *contactJobService) run(ctx context.Context, rj *runningJob, ids []uint, input ContactJobInput) {
	defer s.wg.Done()
	defer rj.cancel()

	actor := rj.snapshot().Actor
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		if ctx.Err() != nil {
			rj.update(func(job *models.ContactJob) { job.Skipped += len(ids) - i })
			break
		}
		id := id
		g.Go(func() error {
			if ctx.Err() != nil {
				rj.update(func(job *models.ContactJob) { job.Skipped++ })
				return nil
			}
			err := s.submissions.Notify(ctx, id, input.Subject, input.Message, actor)
			snapshot := rj.update(func(job *models.ContactJob) {
				if err != nil && ctx.Err() != nil {
					job.Skipped++
					return
				}
				if err != nil {
					job.Failed++
					if len(job.Errors) < maxJobErrors {
						job.Errors = append(job.Errors, fmt.Sprintf("submission %d: %v", id, err))
					}
					return
				}
				job.Sent++
			})
			s.persistProgress(rj, snapshot)
			return nil
		})
	}
	_ = g.Wait()

	final := rj.update(func(job *models.ContactJob) {
		now := time.Now().UTC()
		job.FinishedAt = &now
		switch {
		case ctx.Err() != nil && job.Sent+job.Failed < job.Total:
			job.State = models.JobCancelled
		case job.Total > 0 && job.Failed == job.Total:
			job.State = models.JobFailed
		default:
			job.State = models.JobCompleted
		}
	})
	s.persistProgress(rj, final)

	s.mu.Lock()
	delete(s.jobs, final.ID)
	s.mu.Unlock()

	s.log.Infow("contact job finished",
		"job_id", final.ID,
		"state", final.State,
		"sent", final.Sent,
		"failed", final.Failed,
		"skipped", final.Skipped,
	)
}

func (s *contactJobService) Status(ctx context.Context, id string) (*models.ContactJob, error) {
	s.mu.Lock()
	rj, ok := s.jobs[id]
	s.mu.Unlock()
	if ok {
		snapshot := rj.snapshot()
		return &snapshot, nil
	}

	var job models.ContactJob
	found, err := s.cache.GetJSON(ctx, jobKey(id), &job)
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}
	if !found {
		return nil, models.ErrJobNotFound
	}
	return &job, nil
}

func (s *contactJobService) Cancel(ctx context.Context, id string) (*models.ContactJob, error) {
	s.mu.Lock()
	rj, ok := s.jobs[id]
	s.mu.Unlock()
	if ok {
		snapshot := rj.snapshot()
		if snapshot.State != models.JobRunning {
			return &snapshot, models.ErrJobFinished
		}
		rj.cancel()
		s.log.Infow("contact job cancelled", "job_id", id)
		return &snapshot, nil
	}

	job, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State != models.JobRunning {
		return job, models.ErrJobFinished
	}
	// running in another process
	return nil, models.ErrJobNotFound
}

// Shutdown cancels every running job and waits for them to record their final state.
func (s *contactJobService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	s.stopAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *contactJobService) persist(ctx context.Context, job models.ContactJob) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.cache.SetJSON(ctx, jobKey(job.ID), job, contactJobTTL); err != nil {
		s.log.Warnw("failed to persist contact job progress", "job_id", job.ID, "error", err)
	}
}

// persistProgress writes snapshot unless a running snapshot with less
// progress arrives after a newer one was stored. It reports whether it wrote.
func (s *contactJobService) persistProgress(rj *runningJob, snapshot models.ContactJob) bool {
	rj.persistMu.Lock()
	defer rj.persistMu.Unlock()

	progress := snapshot.Sent + snapshot.Failed + snapshot.Skipped
	if snapshot.State == models.JobRunning && progress < rj.persisted {
		return false
	}
	s.persist(context.Background(), snapshot)
	rj.persisted = progress
	return true
}

func (rj *runningJob) update(fn func(job *models.ContactJob)) models.ContactJob {
	rj.mu.Lock()
	defer rj.mu.Unlock()
	fn(&rj.job)
	return rj.copyLocked()
}

func (rj *runningJob) snapshot() models.ContactJob {
	rj.mu.Lock()
	defer rj.mu.Unlock()
	return rj.copyLocked()
}

func (rj *runningJob) copyLocked() models.ContactJob {
	out := rj.job
	out.Errors = append([]string(nil), rj.job.Errors...)
	return out
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
