package cmd

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/team-spoved/spoved/internal/model"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Upload and inspect media assets",
}

var mediaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List media assets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.requireSession(); err != nil {
			return err
		}
		items, err := a.client.Media.List(cmd.Context())
		if err != nil {
			return err
		}
		printMedia(cmd.OutOrStdout(), items)
		return nil
	},
}

var mediaShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one asset; --out saves its content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, id, err := appWithID(args[0])
		if err != nil {
			return err
		}
		m, err := a.client.Media.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		printMedia(cmd.OutOrStdout(), []model.Media{*m})
		if out, _ := cmd.Flags().GetString("out"); out != "" {
			if err := os.WriteFile(out, m.Content, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d bytes to %s\n", len(m.Content), out)
		}
		return nil
	},
}

var mediaUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file as a media asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.requireSession(); err != nil {
			return err
		}
		typeFlag, _ := cmd.Flags().GetString("type")
		mt, err := model.ParseMediaType(typeFlag)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		blobType := mime.TypeByExtension(filepath.Ext(args[0]))
		if blobType == "" {
			blobType = "application/octet-stream"
		}
		m, err := a.client.Media.Create(cmd.Context(), model.MediaUpload{
			Filename:  filepath.Base(args[0]),
			MediaType: mt,
			BlobType:  blobType,
			Content:   content,
		})
		if err != nil {
			return err
		}
		printMedia(cmd.OutOrStdout(), []model.Media{*m})
		return nil
	},
}

var mediaAnalyzedCmd = &cobra.Command{
	Use:   "analyzed <id> <true|false>",
	Short: "Set the analyzed flag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, id, err := appWithID(args[0])
		if err != nil {
			return err
		}
		v, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid flag value %q", args[1])
		}
		m, err := a.client.Media.UpdateAnalyzed(cmd.Context(), id, v)
		if err != nil {
			return err
		}
		printMedia(cmd.OutOrStdout(), []model.Media{*m})
		return nil
	},
}

var mediaResultCmd = &cobra.Command{
	Use:   "result <id> <text>",
	Short: "Set the analysis result",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, id, err := appWithID(args[0])
		if err != nil {
			return err
		}
		m, err := a.client.Media.UpdateResult(cmd.Context(), id, args[1])
		if err != nil {
			return err
		}
		printMedia(cmd.OutOrStdout(), []model.Media{*m})
		return nil
	},
}

var mediaReasonCmd = &cobra.Command{
	Use:   "reason <id> <text>",
	Short: "Set the analysis reason",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, id, err := appWithID(args[0])
		if err != nil {
			return err
		}
		m, err := a.client.Media.UpdateReason(cmd.Context(), id, args[1])
		if err != nil {
			return err
		}
		printMedia(cmd.OutOrStdout(), []model.Media{*m})
		return nil
	},
}

func init() {
	mediaShowCmd.Flags().String("out", "", "write the content to this file")
	mediaUploadCmd.Flags().String("type", string(model.MediaTypePhoto), "PHOTO, VIDEO or AUDIO")
	mediaCmd.AddCommand(mediaListCmd, mediaShowCmd, mediaUploadCmd, mediaAnalyzedCmd, mediaResultCmd, mediaReasonCmd)
	rootCmd.AddCommand(mediaCmd)
}

func printMedia(w io.Writer, items []model.Media) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No media")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, m := range items {
		rows = append(rows, []string{
			strconv.Itoa(m.MediaID),
			string(m.MediaType),
			m.BlobType,
			strconv.Itoa(len(m.Content)),
			strconv.FormatBool(m.Analyzed),
			m.Result,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Type", "Blob type", "Bytes", "Analyzed", "Result"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	))
}
