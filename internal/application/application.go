package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/team-spoved/spoved/internal/config"
	"github.com/team-spoved/spoved/internal/database"
	"github.com/team-spoved/spoved/internal/events"
	"github.com/team-spoved/spoved/internal/handler"
	"github.com/team-spoved/spoved/internal/router"
	"github.com/team-spoved/spoved/internal/service"
)

// API is the reference REST backend (mode "api").
type API struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *gorm.DB
	producer *events.Producer
	httpSrv  *http.Server
}

// NewAPI migrates and opens the database and wires the HTTP stack.
func NewAPI(cfg *config.Config, log zerolog.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.DB.Driver == config.DriverPostgres {
		if err := database.MigrateUp(cfg.DatabaseURL(), log); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket, log)
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := NewHandler(cfg, db, producer, log)
	return &API{
		cfg:      cfg,
		log:      log,
		db:       db,
		producer: producer,
		httpSrv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// NewHandler builds the router over an open database.
func NewHandler(cfg *config.Config, db *gorm.DB, pub events.TicketPublisher, log zerolog.Logger) http.Handler {
	return router.New(router.Options{
		CORSOrigins:  cfg.CORSOrigins,
		AuthRequired: cfg.AuthRequired,
		JWTSecret:    cfg.JWTSecret,
		Log:          log.With().Str("component", "http").Logger(),
	}, router.Handlers{
		Health:  handler.NewHealthHandler(db),
		Auth:    handler.NewAuthHandler(service.NewAuthService(db, cfg.JWTSecret, cfg.JWTTTL, log)),
		Users:   handler.NewUserHandler(service.NewUserService(db, log)),
		Tickets: handler.NewTicketHandler(service.NewTicketService(db, pub, log)),
		Media:   handler.NewMediaHandler(service.NewMediaService(db, log)),
	})
}

// Run serves HTTP until ctx is cancelled.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info().
		Str("addr", a.httpSrv.Addr).
		Str("swagger", base+router.PathSwagger).
		Str("health", base+router.PathHealth).
		Str("api", base+router.PathAPI+"/").
		Bool("kafka", a.producer.Enabled()).
		Str("db", a.cfg.DB.Driver).
		Msg("HTTP server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := a.producer.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close kafka producer")
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if serveErr != nil {
		return fmt.Errorf("http: %w", serveErr)
	}
	return nil
}
