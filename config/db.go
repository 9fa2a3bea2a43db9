package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB connects to Postgres when DATABASE_URL is a postgres URL and to a local
// SQLite file otherwise (default "baby.db").
func OpenDB(cfg *Config) (*gorm.DB, error) {
	dialector := dialectorFor(cfg.DatabaseURL)

	level := logger.Warn
	if cfg.IsProduction() {
		level = logger.Error
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return cfg.Now()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func dialectorFor(url string) gorm.Dialector {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"),
		strings.Contains(url, "host="):
		return postgres.Open(url)
	case url == "":
		return sqlite.Open("baby.db")
	default:
		return sqlite.Open(strings.TrimPrefix(url, "sqlite:///"))
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.Moment{},
	); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}
	return nil
}
