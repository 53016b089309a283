package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"scicat/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Port        string
		Debug       bool
		FrontendURL string
		Site        string
		BaseURL     string
		AdminTokens map[string]string
	}
	Log struct {
		Level string
	}
	DB struct {
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
	}
	Redis struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	Mail struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
		TLS      bool
		Disabled bool
	}
	Workers struct {
		DigestEnabled     bool
		ReminderEnabled   bool
		LinkCheckEnabled  bool
		DigestSchedule    string
		ReminderInterval  time.Duration
		LinkCheckInterval time.Duration
	}
	Contact struct {
		ReminderAfter time.Duration
		MaxContacts   int
		Concurrency   int
	}
	LinkCheck struct {
		Timeout     time.Duration
		Concurrency int
	}
	RateLimit struct {
		RequestsPerSecond int
		Burst             int
	}
	Reports struct {
		OutputDir string
	}
}

// Load reads the optional .env file, then resolves every setting from the
// environment with defaults.
func Load() (*Config, error) {
	if envMap, err := godotenv.Read(".env"); err == nil {
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}

	// App
	cfg.App.Port = v.GetString("port")
	cfg.App.Debug = v.GetBool("debug")
	cfg.App.FrontendURL = v.GetString("frontend.url")
	cfg.App.Site = strings.ToLower(v.GetString("site"))
	cfg.App.BaseURL = strings.TrimRight(v.GetString("base.url"), "/")
	cfg.App.AdminTokens = parseTokens(v.GetString("admin.tokens"))
	cfg.Log.Level = v.GetString("log.level")

	// DB
	cfg.DB.Driver = v.GetString("db.driver")
	cfg.DB.Host = v.GetString("db.host")
	cfg.DB.Port = v.GetString("db.port")
	cfg.DB.User = v.GetString("db.user")
	cfg.DB.Password = v.GetString("db.password")
	cfg.DB.DBName = v.GetString("db.name")
	cfg.DB.SSLMode = v.GetString("db.sslmode")

	// Redis
	cfg.Redis.Host = v.GetString("redis.host")
	cfg.Redis.Port = v.GetString("redis.port")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")

	// Mail
	cfg.Mail.Host = v.GetString("smtp.host")
	cfg.Mail.Port = v.GetInt("smtp.port")
	cfg.Mail.Username = v.GetString("smtp.username")
	cfg.Mail.Password = v.GetString("smtp.password")
	cfg.Mail.From = v.GetString("mail.from")
	cfg.Mail.TLS = v.GetBool("smtp.tls")
	cfg.Mail.Disabled = v.GetBool("mail.disabled")

	// Workers
	cfg.Workers.DigestEnabled = v.GetBool("digest.enabled")
	cfg.Workers.ReminderEnabled = v.GetBool("reminder.enabled")
	cfg.Workers.LinkCheckEnabled = v.GetBool("linkcheck.enabled")
	cfg.Workers.DigestSchedule = v.GetString("worker.digest.schedule")
	cfg.Workers.ReminderInterval = v.GetDuration("worker.reminder.interval")
	cfg.Workers.LinkCheckInterval = v.GetDuration("worker.linkcheck.interval")

	// Contact cadence
	cfg.Contact.ReminderAfter = v.GetDuration("contact.reminder.after")
	cfg.Contact.MaxContacts = v.GetInt("contact.max")
	cfg.Contact.Concurrency = v.GetInt("contact.concurrency")

	cfg.LinkCheck.Timeout = v.GetDuration("linkcheck.timeout")
	cfg.LinkCheck.Concurrency = v.GetInt("linkcheck.concurrency")

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = v.GetInt("rate.limit.rps")
	cfg.RateLimit.Burst = v.GetInt("rate.limit.burst")

	cfg.Reports.OutputDir = v.GetString("reports.output.dir")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("debug", false)
	v.SetDefault("frontend.url", "http://localhost:3000")
	v.SetDefault("site", string(models.SiteEMAC))
	v.SetDefault("base.url", "http://localhost:8080")
	v.SetDefault("admin.tokens", "")
	v.SetDefault("log.level", "info")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "scicat")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.tls", false)
	v.SetDefault("mail.from", "catalogue@localhost")
	v.SetDefault("mail.disabled", false)

	v.SetDefault("digest.enabled", true)
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("linkcheck.enabled", true)
	v.SetDefault("worker.digest.schedule", "0 8 * * 1")
	v.SetDefault("worker.reminder.interval", 24*time.Hour)
	v.SetDefault("worker.linkcheck.interval", 24*time.Hour)

	v.SetDefault("contact.reminder.after", 14*24*time.Hour)
	v.SetDefault("contact.max", 3)
	v.SetDefault("contact.concurrency", 4)

	v.SetDefault("linkcheck.timeout", 10*time.Second)
	v.SetDefault("linkcheck.concurrency", 8)

	v.SetDefault("rate.limit.rps", 10)
	v.SetDefault("rate.limit.burst", 20)

	v.SetDefault("reports.output.dir", "./data/reports")
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if _, err := models.LookupSite(c.App.Site, c.App.BaseURL); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.DB.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.Mail.From == "" {
		return fmt.Errorf("config: MAIL_FROM must not be empty")
	}
	if c.Contact.MaxContacts < 1 {
		return fmt.Errorf("config: CONTACT_MAX must be at least 1")
	}
	if c.Contact.Concurrency < 1 {
		c.Contact.Concurrency = 1
	}
	if c.LinkCheck.Concurrency < 1 {
		c.LinkCheck.Concurrency = 1
	}
	return nil
}

func (c *Config) SiteProfile() models.Site {
	site, _ := models.LookupSite(c.App.Site, c.App.BaseURL)
	return site
}

// parseTokens reads "name:token,name2:token2" pairs; a bare token is named "admin".
func parseTokens(raw string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, token, found := strings.Cut(pair, ":")
		if !found {
			name, token = "admin", pair
		}
		if token = strings.TrimSpace(token); token != "" {
			tokens[token] = strings.TrimSpace(name)
		}
	}
	return tokens
}
