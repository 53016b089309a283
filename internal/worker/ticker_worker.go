package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TickFunc performs one unit of periodic work.
type TickFunc func(ctx context.Context) error

// TickerWorker runs a TickFunc on a fixed interval, each run bounded by its own timeout.
type TickerWorker struct {
	name       string
	interval   time.Duration
	timeout    time.Duration
	runOnStart bool
	tick       TickFunc
	log        *zap.SugaredLogger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func NewTickerWorker(name string, interval, timeout time.Duration, runOnStart bool, tick TickFunc, log *zap.SugaredLogger) *TickerWorker {
	return &TickerWorker{
		name:       name,
		interval:   interval,
		timeout:    timeout,
		runOnStart: runOnStart,
		tick:       tick,
		log:        log.With("worker", name),
	}
}

func (w *TickerWorker) Name() string { return w.name }

func (w *TickerWorker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	stop, done := w.stopChan, w.done
	w.mu.Unlock()

	w.log.Infow("worker started", "interval", w.interval)
	go w.run(stop, done)
}

func (w *TickerWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	done := w.done
	w.mu.Unlock()

	<-done
	w.log.Infow("worker stopped")
}

func (w *TickerWorker) run(stop, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if w.runOnStart {
		w.execute(ctx)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.execute(ctx)
		case <-stop:
			return
		}
	}
}

func (w *TickerWorker) execute(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.tick(ctx); err != nil {
		w.log.Errorw("tick failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	w.log.Debugw("tick completed", "duration_ms", time.Since(start).Milliseconds())
}
