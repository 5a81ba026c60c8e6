package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/team-spoved/spoved/internal/automation"
	"github.com/team-spoved/spoved/internal/database"
	"github.com/team-spoved/spoved/internal/service"
)

var replayMediaCmd = &cobra.Command{
	Use:   "replay-media",
	Short: "Re-fire the media-uploaded automation webhook for every media asset not yet analyzed",
	RunE:  runReplayMedia,
}

func init() {
	rootCmd.AddCommand(replayMediaCmd)
	replayMediaCmd.Flags().Int("uploaded-by", 0, "user id reported as the uploader")
	replayMediaCmd.Flags().String("token", "", "bearer token forwarded to the automation service")
}

func runReplayMedia(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	hook := automation.NewClient(cfg.Services.Automation, log)
	if !hook.Enabled() {
		return fmt.Errorf("replay-media: AUTOMATION_API_URL is not set")
	}
	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	uploadedBy, _ := cmd.Flags().GetInt("uploaded-by")
	token, _ := cmd.Flags().GetString("token")

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	pending, err := service.NewMediaService(db, log).ListUnanalyzed(ctx)
	if err != nil {
		return fmt.Errorf("list media: %w", err)
	}
	log.Info().Int("count", len(pending)).Msg("replay-media: found unanalyzed media")

	failed := 0
	for i := range pending {
		if err := hook.MediaUploaded(ctx, &pending[i], uploadedBy, token); err != nil {
			failed++
			log.Warn().Err(err).Int("media_id", pending[i].MediaID).Msg("replay-media: webhook failed")
			continue
		}
		if (i+1)%50 == 0 || i == len(pending)-1 {
			log.Info().Msgf("replay-media: sent %d/%d", i+1, len(pending))
		}
	}
	if failed > 0 {
		return fmt.Errorf("replay-media: %d of %d webhooks failed", failed, len(pending))
	}
	return nil
}
