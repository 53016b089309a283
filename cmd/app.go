package main

import (
	"fmt"
	"time"

	"scicat/internal/clients"
	"scicat/internal/config"
	"scicat/internal/models"
	"scicat/internal/repository"
	"scicat/internal/service"
	"scicat/internal/workflow"
	"scicat/pkg/database"
	"scicat/pkg/logger"
	"scicat/pkg/redis"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	db    *gorm.DB
	redis *goredis.Client
	site  models.Site

	repos  repository.Repos
	cache  repository.CacheRepository
	mailer clients.Mailer

	catalog       service.CatalogService
	search        service.SearchService
	submissions   service.SubmissionService
	contacts      service.ContactJobService
	subscriptions service.SubscriptionService
	reports       service.ReportService
	links         service.LinkCheckService
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(database.Config{
		Driver:   cfg.DB.Driver,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
		Debug:    cfg.App.Debug,
	}, log)
	if err != nil {
		return nil, err
	}

	redisClient, err := redis.Connect(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		redis: redisClient,
		site:  cfg.SiteProfile(),
		repos: repository.NewRepos(db),
		cache: repository.NewCacheRepository(redisClient),
	}
	a.mailer = a.newMailer()
	a.wireServices()

	log.Infow("application initialised", "site", a.site.Code, "base_url", a.site.BaseURL)
	return a, nil
}

func (a *app) newMailer() clients.Mailer {
	if a.cfg.Mail.Disabled {
		a.log.Warnw("mail delivery disabled, messages will only be logged")
		return clients.NewLogMailer(a.log)
	}
	return clients.NewSMTPMailer(clients.MailConfig{
		Host:     a.cfg.Mail.Host,
		Port:     a.cfg.Mail.Port,
		Username: a.cfg.Mail.Username,
		Password: a.cfg.Mail.Password,
		From:     a.cfg.Mail.From,
		FromName: a.site.Name,
		TLS:      a.cfg.Mail.TLS,
	})
}

func (a *app) wireServices() {
	policy := workflow.ContactPolicy{
		ReminderAfter: a.cfg.Contact.ReminderAfter,
		MaxContacts:   a.cfg.Contact.MaxContacts,
	}
	linkClient := clients.NewLinkClient(a.cfg.LinkCheck.Timeout, fmt.Sprintf("scicat-linkcheck/%s", a.site.Code))

	a.catalog = service.NewCatalogService(a.repos, a.cache, a.site.Code, a.log)
	a.search = service.NewSearchService(a.repos.Resources, a.cache, a.site.Code, a.log)
	a.submissions = service.NewSubmissionService(a.repos, repository.NewTxRunner(a.db), a.cache, a.mailer, a.site, policy, a.log)
	a.contacts = service.NewContactJobService(a.submissions, a.cache, a.cfg.Contact.Concurrency, a.log)
	a.subscriptions = service.NewSubscriptionService(a.repos, a.mailer, a.site, a.log)
	a.reports = service.NewReportService(a.repos, a.site, a.cfg.Reports.OutputDir, a.log)
	a.links = service.NewLinkCheckService(a.repos.Resources, linkClient, a.cfg.LinkCheck.Concurrency, a.log)
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.Warnw("failed to close redis", "error", err)
	}
	closeDB(a.db)
	_ = a.log.Sync()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func elapsed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
