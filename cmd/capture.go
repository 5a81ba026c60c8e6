package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/team-spoved/spoved/internal/capture"
	"github.com/team-spoved/spoved/internal/client"
	"github.com/team-spoved/spoved/internal/device"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture photos or a video clip and upload them",
	Long: `Capture drives the photo and video sessions against a file-backed camera:
--back-* and --front-* name the still image and clip each camera serves.`,
}

var capturePhotoCmd = &cobra.Command{
	Use:   "photo",
	Short: "Take one or more photos and upload each as a PHOTO asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cam, err := captureSetup(cmd)
		if err != nil {
			return err
		}
		shots, _ := cmd.Flags().GetInt("shots")
		if shots < 1 {
			return fmt.Errorf("--shots must be at least 1")
		}
		sess := capture.NewPhotoSession(cam, a.client.Media, capture.WithLogger(a.log))
		defer sess.Close()

		ctx := cmd.Context()
		if err := startCamera(cmd, sess.Start, sess.SwitchDevice); err != nil {
			return err
		}
		for i := 0; i < shots; i++ {
			if err := sess.Capture(ctx); err != nil {
				return err
			}
		}
		created, err := sess.Send(ctx)
		for _, m := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s\n", client.MediaLabel(m))
		}
		return err
	},
}

var captureVideoCmd = &cobra.Command{
	Use:   "video",
	Short: "Record a clip and upload it as a VIDEO asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cam, err := captureSetup(cmd)
		if err != nil {
			return err
		}
		duration, _ := cmd.Flags().GetDuration("duration")
		sess := capture.NewVideoSession(cam, a.client.Media, capture.WithLogger(a.log))
		defer sess.Close()

		ctx := cmd.Context()
		if err := startCamera(cmd, sess.Start, sess.SwitchDevice); err != nil {
			return err
		}
		if err := sess.StartRecording(ctx); err != nil {
			return err
		}
		select {
		case <-time.After(duration):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := sess.StopRecording(); err != nil {
			return err
		}
		m, err := sess.Send(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s\n", client.MediaLabel(m))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{capturePhotoCmd, captureVideoCmd} {
		fl := c.Flags()
		fl.String("back-still", "", "still image served by the back camera")
		fl.String("back-clip", "", "clip served by the back camera")
		fl.String("front-still", "", "still image served by the front camera")
		fl.String("front-clip", "", "clip served by the front camera")
		fl.String("device", "", "camera to use: back or front")
	}
	capturePhotoCmd.Flags().Int("shots", 1, "number of photos")
	captureVideoCmd.Flags().Duration("duration", 3*time.Second, "recording length")
	captureCmd.AddCommand(capturePhotoCmd, captureVideoCmd)
	rootCmd.AddCommand(captureCmd)
}

func captureSetup(cmd *cobra.Command) (*app, *device.FileCamera, error) {
	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	if _, err := a.requireSession(); err != nil {
		return nil, nil, err
	}
	fl := cmd.Flags()
	backStill, _ := fl.GetString("back-still")
	backClip, _ := fl.GetString("back-clip")
	frontStill, _ := fl.GetString("front-still")
	frontClip, _ := fl.GetString("front-clip")

	var sources []device.FileSource
	if backStill != "" || backClip != "" {
		sources = append(sources, device.FileSource{
			ID: "back", Label: "Back camera", Facing: device.FacingEnvironment, Still: backStill, Clip: backClip,
		})
	}
	if frontStill != "" || frontClip != "" {
		sources = append(sources, device.FileSource{
			ID: "front", Label: "Front camera", Facing: device.FacingUser, Still: frontStill, Clip: frontClip,
		})
	}
	if len(sources) == 0 {
		return nil, nil, errors.New("no camera: pass --back-still/--back-clip or --front-still/--front-clip")
	}
	return a, device.NewFileCamera(sources...), nil
}

func startCamera(cmd *cobra.Command, start func(context.Context) error, switchTo func(context.Context, string) error) error {
	ctx := cmd.Context()
	if err := start(ctx); err != nil {
		if errors.Is(err, capture.ErrPermissionDenied) {
			return fmt.Errorf("%w (check file permissions of the camera sources)", err)
		}
		return err
	}
	if id, _ := cmd.Flags().GetString("device"); id != "" {
		return switchTo(ctx, id)
	}
	return nil
}
