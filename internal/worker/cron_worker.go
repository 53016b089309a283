package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronWorker runs a TickFunc on a standard five-field cron schedule in UTC.
type CronWorker struct {
	name     string
	schedule string
	timeout  time.Duration
	tick     TickFunc
	log      *zap.SugaredLogger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

func NewCronWorker(name, schedule string, timeout time.Duration, tick TickFunc, log *zap.SugaredLogger) (*CronWorker, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q for %s: %w", schedule, name, err)
	}
	return &CronWorker{
		name:     name,
		schedule: schedule,
		timeout:  timeout,
		tick:     tick,
		log:      log.With("worker", name),
	}, nil
}

func (w *CronWorker) Name() string { return w.name }

func (w *CronWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := w.cron.AddFunc(w.schedule, w.execute); err != nil {
		w.log.Errorw("failed to schedule worker", "schedule", w.schedule, "error", err)
		w.cancel()
		return
	}
	w.cron.Start()
	w.running = true

	next := w.cron.Entries()[0].Next
	w.log.Infow("worker started", "schedule", w.schedule, "next_run", next)
}

func (w *CronWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	stopped := w.cron.Stop()
	w.mu.Unlock()

	<-stopped.Done()
	w.log.Infow("worker stopped")
}

func (w *CronWorker) execute() {
	w.mu.Lock()
	parent := w.ctx
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.tick(ctx); err != nil {
		w.log.Errorw("run failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	w.log.Infow("run completed", "duration_ms", time.Since(start).Milliseconds())
}
