package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scicat/internal/clients"
	"scicat/internal/models"
	"scicat/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type LinkCheckRun struct {
	Checked int `json:"checked"`
	Broken  int `json:"broken"`
}

type LinkCheckService interface {
	CheckLinks(ctx context.Context) (*LinkCheckRun, error)
}

type linkCheckService struct {
	resources   repository.ResourceRepository
	client      clients.LinkClient
	concurrency int
	log         *zap.SugaredLogger
}

func NewLinkCheckService(resources repository.ResourceRepository, client clients.LinkClient, concurrency int, log *zap.SugaredLogger) LinkCheckService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &linkCheckService{
		resources:   resources,
		client:      client,
		concurrency: concurrency,
		log:         log,
	}
}

func (s *linkCheckService) CheckLinks(ctx context.Context) (*LinkCheckRun, error) {
	resources, err := s.resources.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	var (
		mu  sync.Mutex
		run = &LinkCheckRun{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, res := range resources {
		if !res.Published || res.Link == "" {
			continue
		}
		res := res
		g.Go(func() error {
			result := s.client.Check(gctx, res.Link)
			if gctx.Err() != nil {
				return gctx.Err()
			}

			check := models.LinkCheck{
				ResourceID: res.ID,
				URL:        res.Link,
				StatusCode: result.StatusCode,
				OK:         result.OK,
				CheckedAt:  time.Now().UTC(),
			}
			if result.Err != nil {
				check.Error = truncate(result.Err.Error(), 500)
			} else if !result.OK {
				check.Error = fmt.Sprintf("unexpected status %d", result.StatusCode)
			}

			if err := s.resources.SaveLinkCheck(gctx, check); err != nil {
				s.log.Warnw("failed to save link check", "resource_id", res.ID, "error", err)
			}

			mu.Lock()
			run.Checked++
			if !check.OK {
				run.Broken++
			}
			mu.Unlock()

			if !check.OK {
				s.log.Infow("broken link", "resource_id", res.ID, "url", res.Link, "status", result.StatusCode, "error", check.Error)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return run, err
	}

	s.log.Infow("link check completed", "checked", run.Checked, "broken", run.Broken)
	return run, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
