package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/team-spoved/spoved/internal/client"
	"github.com/team-spoved/spoved/internal/device"
	"github.com/team-spoved/spoved/internal/model"
	"github.com/team-spoved/spoved/internal/voice"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Talk to the assistant; each --input WAV file is one spoken turn",
	Long: `Voice runs a conversation with the generative-AI assistant. Every --input
file is streamed as the microphone for one turn; replies are played with
--play-cmd (for example "ffplay -nodisp -autoexit -") or saved under --out.
When the assistant confirms it is creating a ticket, the whole conversation
is merged into one WAV and uploaded as an AUDIO asset.`,
	RunE: runVoice,
}

func init() {
	fl := voiceCmd.Flags()
	fl.StringArray("input", nil, "WAV file for one turn (repeatable, in order)")
	fl.String("play-cmd", "", "command that plays audio from stdin")
	fl.String("out", "replies", "directory for reply audio when --play-cmd is not set")
	fl.String("ext", "wav", "file extension for saved replies")
	fl.Bool("realtime", false, "pace the input files at recording speed")
	_ = voiceCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(voiceCmd)
}

func runVoice(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if _, err := a.requireSession(); err != nil {
		return err
	}
	fl := cmd.Flags()
	inputs, _ := fl.GetStringArray("input")
	realtime, _ := fl.GetBool("realtime")
	playCmd, _ := fl.GetString("play-cmd")
	outDir, _ := fl.GetString("out")
	ext, _ := fl.GetString("ext")

	var player device.Player
	if fields := strings.Fields(playCmd); len(fields) > 0 {
		player = &device.CommandPlayer{Name: fields[0], Args: fields[1:]}
	} else {
		player = &device.DirPlayer{Dir: outDir, Ext: ext}
	}
	mic := &device.WAVMicrophone{Realtime: realtime}
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	sess := voice.NewSession(mic, player, a.client.Voice, a.client.Media, voice.Config{
		MaxRecording:     a.cfg.Voice.MaxRecording,
		CompletionPhrase: a.cfg.Voice.CompletionPhrase,
		ArchiveRate:      a.cfg.Voice.ArchiveRate,
		ArchiveMaxBytes:  a.cfg.Voice.ArchiveMaxBytes,
		QuietLevel:       a.cfg.Voice.QuietLevel,
	}, voice.Callbacks{
		OnState: func(st voice.State) {
			a.log.Debug().Str("state", string(st)).Msg("voice state")
		},
		OnMessage: func(m voice.Message) {
			fmt.Fprintf(out, "[%s] %s: %s\n", m.At.Format("15:04:05"), m.Role, m.Text)
		},
		OnQuietInput: func() {
			fmt.Fprintln(errOut, "Input is very quiet; speak closer to the microphone")
		},
		OnError: func(err error) {
			fmt.Fprintln(errOut, "Error:", err)
		},
		OnComplete: func(m *model.Media, err error) {
			switch {
			case err != nil:
				fmt.Fprintln(errOut, "Conversation not archived:", err)
			case m != nil:
				fmt.Fprintf(out, "Conversation archived as %s\n", client.MediaLabel(m))
			}
		},
	}, voice.WithLogger(a.log))

	ctx := cmd.Context()
	for i, in := range inputs {
		if _, err := os.Stat(in); err != nil {
			return err
		}
		mic.Path = in
		turn, err := sess.StartRecording(ctx)
		if err != nil {
			return err
		}
		if err := turn.Wait(ctx); err != nil {
			if errors.Is(err, client.ErrNoSpeech) {
				continue
			}
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		if sess.Completed() {
			if i < len(inputs)-1 {
				fmt.Fprintf(errOut, "Conversation completed; %d remaining input(s) ignored\n", len(inputs)-1-i)
			}
			return nil
		}
	}
	fmt.Fprintln(out, "Conversation ended without creating a ticket")
	return nil
}
