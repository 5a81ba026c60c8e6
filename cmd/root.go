package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/team-spoved/spoved/internal/automation"
	"github.com/team-spoved/spoved/internal/client"
	"github.com/team-spoved/spoved/internal/config"
	"github.com/team-spoved/spoved/internal/session"
	"github.com/team-spoved/spoved/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "spoved",
	Short:         "Maintenance ticketing: tickets, photo/video capture and a voice assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAPI,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config: %w", err)
	}
	return cfg, logger.New(cfg.AppEnv, cfg.LogLevel), nil
}

// app is what the client-side commands share.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  *session.Store
	client *client.Client
}

func newApp() (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store := session.NewStore(cfg.SessionFile)
	sess, err := store.Load()
	if err != nil {
		return nil, err
	}
	c := client.New(client.Endpoints{
		Auth:   cfg.Services.Auth,
		User:   cfg.Services.User,
		Ticket: cfg.Services.Ticket,
		Media:  cfg.Services.Media,
		GenAI:  cfg.Services.GenAI,
	}, sess, automation.NewClient(cfg.Services.Automation, log), client.WithLogger(log))
	return &app{cfg: cfg, log: log, store: store, client: c}, nil
}

// requireSession fails unless someone is signed in.
func (a *app) requireSession() (*session.Session, error) {
	s := a.client.Session()
	if !s.SignedIn() {
		return nil, fmt.Errorf("not signed in: run \"spoved login\" first")
	}
	return s, nil
}
