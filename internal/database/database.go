package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/team-spoved/spoved/internal/config"
	"github.com/team-spoved/spoved/internal/model"
)

// Open connects gorm to the configured driver. SQLite databases are brought
// up to date with AutoMigrate; postgres relies on the goose migrations.
func Open(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("database: unknown driver %q", cfg.DB.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(log, 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.DB.Driver, err)
	}
	if cfg.DB.Driver == config.DriverSQLite {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// AutoMigrate creates the schema from the models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Media{}, &model.Ticket{}); err != nil {
		return fmt.Errorf("database: auto migrate: %w", err)
	}
	return nil
}

type zerologWriter struct {
	log zerolog.Logger
}

func (w zerologWriter) Printf(format string, args ...any) {
	w.log.Warn().Msgf(format, args...)
}

// NewGormLogger routes slow queries and errors to log.
func NewGormLogger(log zerolog.Logger, slow time.Duration) gormlogger.Interface {
	return gormlogger.New(zerologWriter{log.With().Str("component", "gorm").Logger()}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
