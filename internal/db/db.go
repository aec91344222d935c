package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/luzparatodos-am/localidades-backend/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var DB *gorm.DB

// Connect opens the configured database, sets DB and returns it.
func Connect(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.LogLevel == "debug" {
		level = logger.Info
	}

	// Slow queries surface through the process logger.
	lg := logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelInfo),
		logger.Config{
			SlowThreshold:             100 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var (
		dialector gorm.Dialector
		naming    schema.NamingStrategy
	)
	switch cfg.DBDriver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	default:
		dialector = postgres.Open(cfg.DatabaseURL)
		naming.TablePrefix = cfg.DBSchema + "."
	}

	d, err := gorm.Open(dialector, &gorm.Config{
		Logger:         lg,
		NamingStrategy: naming,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.DBDriver == config.DriverSQLite {
		// One writer at a time.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)

		if err := EnsureSchema(d, cfg.DBSchema); err != nil {
			return nil, fmt.Errorf("ensure schema %s: %w", cfg.DBSchema, err)
		}
	}

	DB = d
	log.Info("connected to database", "driver", cfg.DBDriver)
	return d, nil
}

// Ping checks the connection; it backs the readiness probe.
func Ping(ctx context.Context, d *gorm.DB) error {
	sqlDB, err := d.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Readiness adapts a gorm handle to the readiness probe.
type Readiness struct {
	DB *gorm.DB
}

func (r Readiness) CheckReadiness(ctx context.Context) error {
	return Ping(ctx, r.DB)
}
