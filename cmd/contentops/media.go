package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"contentops/internal/adapter/cache"
	"contentops/internal/adapter/vendor"
	"contentops/internal/domain"
	"contentops/internal/infra/logger"
	"contentops/internal/infra/metrics"
)

// withVendors builds the adapter set without the store for one-off media calls.
func withVendors(fn func(s *vendor.Set) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer closeLog()

	set := vendor.NewSet(cfg.Vendors, vendor.Deps{
		Loader:  cache.NewLoader(cache.NewMemory(), cfg.Cache.DefaultTTL, log),
		Metrics: metrics.New(cfg.Alerting.Window),
		Logger:  log,
	})
	defer set.Close()
	return fn(set)
}

func newMediaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Render speech and avatar videos through the media vendors",
	}
	cmd.AddCommand(newSpeakCmd(), newVideoCmd())
	return cmd
}

func newSpeakCmd() *cobra.Command {
	var voice, upload string
	cmd := &cobra.Command{
		Use:   "speak <text|@file>",
		Short: "Synthesize speech and optionally upload the audio to object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readArg(args[0])
			if err != nil {
				return err
			}
			return withVendors(func(s *vendor.Set) error {
				speech := s.Speech.TextToSpeech(cmd.Context(), text, voice)
				if speech.Error != "" {
					return errors.New(speech.Error)
				}
				out := map[string]any{"characters": speech.Characters, "content_type": speech.ContentType}
				if upload != "" {
					up := s.Storage.UploadFromBase64(cmd.Context(), speech.AudioBase64, upload, speech.ContentType)
					out["upload"] = up
				} else {
					out["audio_base64"] = speech.AudioBase64
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&voice, "voice", "", "voice id; empty uses the configured default")
	cmd.Flags().StringVar(&upload, "upload", "", "object name to upload the audio as")
	return cmd
}

func newVideoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Create avatar videos and poll their status",
	}

	var req domain.VideoRequest
	create := &cobra.Command{
		Use:   "create <script|@file>",
		Short: "Start an avatar video render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readArg(args[0])
			if err != nil {
				return err
			}
			r := req
			r.Script = script
			return withVendors(func(s *vendor.Set) error {
				return printJob(cmd.OutOrStdout(), s.Media.CreateVideo(cmd.Context(), r))
			})
		},
	}
	create.Flags().StringVar(&req.Title, "title", "", "video title")
	create.Flags().StringVar(&req.AvatarID, "avatar", "", "avatar id; empty uses the configured default")
	create.Flags().StringVar(&req.VoiceID, "voice", "", "voice id; empty uses the configured default")

	status := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Poll a render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVendors(func(s *vendor.Set) error {
				return printJob(cmd.OutOrStdout(), s.Media.GetVideoStatus(cmd.Context(), args[0]))
			})
		},
	}
	cmd.AddCommand(create, status)
	return cmd
}

func printJob(w io.Writer, job domain.MediaJob) error {
	if err := printJSON(w, job); err != nil {
		return err
	}
	if job.Status == domain.MediaFailed {
		return fmt.Errorf("render failed: %s", job.Error)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readArg returns s, or the contents of the file when s starts with "@".
func readArg(s string) (string, error) {
	if !strings.HasPrefix(s, "@") {
		return s, nil
	}
	b, err := os.ReadFile(strings.TrimPrefix(s, "@"))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s, err)
	}
	return strings.TrimSpace(string(b)), nil
}
