package store

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/markwise/markwise-server/internal/config"
)

// InitDB opens the database configured for the service. Production runs
// against PostgreSQL; sqlite backs local development and tests.
func InitDB(cfg *config.Database) (*gorm.DB, error) {
	var dia gorm.Dialector

	if cfg.Type == "pgsql" {
		dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s",
			cfg.Hostname,
			cfg.User,
			cfg.Password,
			cfg.Port,
		)
		if cfg.Name != "" {
			dsn = fmt.Sprintf("%s dbname=%s", dsn, cfg.Name)
		}
		dia = postgres.Open(dsn)
	} else {
		dia = sqlite.Open(cfg.Name)
	}

	db, err := gorm.Open(dia, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("configuring connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if cfg.Type == "pgsql" {
		var version string
		if result := db.Raw("SELECT version()").Scan(&version); result.Error != nil {
			return nil, result.Error
		}
		zap.S().Named("gorm").Infof("PostgreSQL information: '%s'", version)
	}

	return db, nil
}
