package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scicat/internal/handlers"
	"scicat/internal/middleware"
	"scicat/internal/worker"
	"scicat/pkg/database"
	"scicat/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func newServeCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate {
				if err := database.Migrate(a.db, a.log); err != nil {
					return err
				}
			}
			return serve(a)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "run database migrations before serving")
	return cmd
}

func serve(a *app) error {
	cfg := a.cfg

	scheduler, err := buildScheduler(a)
	if err != nil {
		return err
	}
	scheduler.Start()

	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(a.log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.App.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		r.Use(middleware.IPRateLimitMiddleware(limiter, a.log))
		go cleanupLimiter(limiter, a)
	}

	if len(cfg.App.AdminTokens) == 0 {
		a.log.Warnw("no admin tokens configured, admin API is unreachable")
	}

	handlers.RegisterRoutes(r, buildHandlers(a), middleware.AdminAuth(cfg.App.AdminTokens))

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Infow("server starting", "addr", server.Addr, "site", a.site.Code)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		a.log.Infow("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		scheduler.Stop()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		a.log.Errorw("server forced to shutdown", "error", err)
	}
	scheduler.Stop()
	if err := a.contacts.Shutdown(ctx); err != nil {
		a.log.Warnw("contact jobs did not finish in time", "error", err)
	}

	a.log.Infow("server exited")
	return nil
}

func buildScheduler(a *app) (*worker.Scheduler, error) {
	cfg := a.cfg
	scheduler := worker.NewScheduler(a.log)

	if cfg.Workers.DigestEnabled {
		w, err := worker.NewDigestWorker(a.subscriptions, cfg.Workers.DigestSchedule, a.log)
		if err != nil {
			return nil, err
		}
		scheduler.AddWorker(w)
	}
	if cfg.Workers.ReminderEnabled {
		scheduler.AddWorker(worker.NewReminderWorker(a.submissions, cfg.Workers.ReminderInterval, a.log))
	}
	if cfg.Workers.LinkCheckEnabled {
		scheduler.AddWorker(worker.NewLinkCheckWorker(a.links, cfg.Workers.LinkCheckInterval, a.log))
	}
	return scheduler, nil
}

func buildHandlers(a *app) handlers.Handlers {
	cfg := a.cfg

	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		},
	}

	stats := map[string]handlers.StatsSource{
		"database": func(ctx context.Context) (interface{}, error) {
			sqlDB, err := a.db.DB()
			if err != nil {
				return nil, err
			}
			s := sqlDB.Stats()
			return gin.H{
				"driver":           a.db.Dialector.Name(),
				"open_connections": s.OpenConnections,
				"in_use":           s.InUse,
				"idle":             s.Idle,
				"wait_count":       s.WaitCount,
			}, nil
		},
		"redis": func(ctx context.Context) (interface{}, error) {
			return redis.GetStats(ctx, a.redis)
		},
	}

	workers := map[string]bool{
		"digest":    cfg.Workers.DigestEnabled,
		"reminder":  cfg.Workers.ReminderEnabled,
		"linkcheck": cfg.Workers.LinkCheckEnabled,
	}

	return handlers.Handlers{
		System:       handlers.NewSystemHandler(a.site, checks, stats, workers),
		Catalog:      handlers.NewCatalogHandler(a.catalog, a.search),
		Submissions:  handlers.NewSubmissionHandler(a.submissions),
		Subscription: handlers.NewSubscriptionHandler(a.subscriptions),
		Admin:        handlers.NewAdminHandler(a.catalog, a.contacts, a.links),
		Reports:      handlers.NewReportHandler(a.reports),
	}
}

func cleanupLimiter(limiter *middleware.IPRateLimiter, a *app) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		if removed := limiter.Cleanup(); removed > 0 {
			a.log.Debugw("rate limiter cleanup", "removed", removed, "remaining", limiter.Size())
		}
	}
}
