package database

import (
	"fmt"
	"time"

	"scicat/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

func dialector(config Config) (gorm.Dialector, error) {
	switch config.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			config.User, config.Password, config.Host, config.Port, config.DBName,
		)
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", config.Driver)
	}
}

func Connect(config Config, log *zap.SugaredLogger) (*gorm.DB, error) {
	d, err := dialector(config)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if config.Debug {
		level = logger.Info
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Infow("database connected", "driver", db.Dialector.Name(), "host", config.Host, "db", config.DBName)
	return db, nil
}

func Migrate(db *gorm.DB, log *zap.SugaredLogger) error {
	isPostgres := db.Dialector.Name() == "postgres"

	if isPostgres {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error; err != nil {
			return fmt.Errorf("failed to create pg_trgm extension: %w", err)
		}
	}

	err := db.AutoMigrate(
		&models.Category{},
		&models.ControlledTerm{},
		&models.Person{},
		&models.Organization{},
		&models.Resource{},
		&models.Submission{},
		&models.SubmissionEvent{},
		&models.Subscription{},
		&models.DigestLog{},
		&models.TeamMember{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	if isPostgres {
		if err := createIndexes(db); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	log.Infow("database migration completed")
	return nil
}

// createIndexes adds the postgres-only trigram indexes used by substring search.
func createIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_resource_name_trgm ON resources USING gin(lower(name) gin_trgm_ops)",
		"CREATE INDEX IF NOT EXISTS idx_resource_description_trgm ON resources USING gin(lower(description) gin_trgm_ops)",
		"CREATE INDEX IF NOT EXISTS idx_controlled_term_name_trgm ON controlled_terms USING gin(lower(name) gin_trgm_ops)",
		"CREATE INDEX IF NOT EXISTS idx_resource_published_at ON resources(published_at DESC)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
