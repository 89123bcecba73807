package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alertbridge/src/model"
)

// MainDB is the archive database connection, nil unless the archive is
// enabled and InitMainDB succeeded.
var MainDB *gorm.DB

func openDialector(config Config) (gorm.Dialector, error) {
	switch config.DatabaseDriver {
	case "postgres":
		return postgres.Open(config.DatabaseURL), nil
	case "sqlite":
		return sqlite.Open(config.DatabaseURL), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", config.DatabaseDriver)
}

// InitMainDB opens the archive database and runs migrations. Call once
// at startup, and only when the archive is enabled.
func InitMainDB() error {
	config := GetConfig()

	dialector, err := openDialector(config)
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to archive database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB from GORM: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	MainDB = db

	logrus.Info("[database] archive connection established")

	if err := MainDB.AutoMigrate(&model.DispatchArchive{}); err != nil {
		return fmt.Errorf("failed to run migrations on archive database: %w", err)
	}

	logrus.Info("[database] archive migrations completed")
	return nil
}
