package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/image-compare/internal/app"
	"github.com/example/image-compare/internal/config"
	"github.com/example/image-compare/internal/imagesource/webcam/opencv"
	"github.com/example/image-compare/internal/logging"
)

type flags struct {
	configPath string
	endpoint   string
	galleryDir string
	camera     int
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:          "image-compare",
		Short:        "Pick two images and ask the comparison service whether they match",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Run(ctx, cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout(), opencv.Open); err != nil {
				logger.Error("comparison screen failed", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "config file (default $CONFIG_PATH or config.yaml)")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "comparison endpoint URL")
	cmd.Flags().StringVar(&f.galleryDir, "gallery", "", "directory the gallery picker lists")
	cmd.Flags().IntVar(&f.camera, "camera", 0, "camera device index")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

// loadConfig reads .env, the config file and the environment, then applies any flag
// the user set explicitly.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path := f.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("endpoint") {
		cfg.Compare.Endpoint = f.endpoint
	}
	if changed("gallery") {
		cfg.Gallery.Dir = f.galleryDir
	}
	if changed("camera") {
		cfg.Camera.Device = f.camera
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
