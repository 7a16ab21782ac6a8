// Package app assembles the comparison screen from configuration and runs it on a
// terminal.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/image-compare/internal/compare"
	"github.com/example/image-compare/internal/config"
	"github.com/example/image-compare/internal/imagesource"
	"github.com/example/image-compare/internal/imagesource/webcam"
	"github.com/example/image-compare/internal/permission"
	"github.com/example/image-compare/internal/screen"
	"github.com/example/image-compare/internal/terminal"
)

const redisPingTimeout = 5 * time.Second

// Run wires every collaborator for one screen activation and blocks until the user
// quits, input ends or ctx is cancelled. open is the camera backend. Edited images
// live in a working directory that is removed when Run returns.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger, in io.Reader, out io.Writer, open webcam.Opener) error {
	store, closeStore, err := NewPermissionStore(ctx, cfg.Permissions)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close permission store", zap.Error(err))
		}
	}()

	workDir, err := os.MkdirTemp(cfg.Picker.TempDir, "image-compare-*")
	if err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("failed to remove working directory", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	session := terminal.New(in, out, logger)
	editor := imagesource.NewEditor(workDir)

	controller := screen.New(screen.Dependencies{
		Gallery: imagesource.NewGalleryPicker(cfg.Gallery.Dir, session, editor, logger),
		Camera:  webcam.NewPicker(cfg.Camera.Device, open, session, editor, logger),
		Permissions: permission.NewManager(store, session,
			permission.WithMaxPrompts(cfg.Permissions.MaxPrompts),
			permission.WithLogger(logger)),
		Client: compare.NewHTTPClient(cfg.Compare.Endpoint,
			compare.WithTimeout(cfg.Compare.Timeout),
			compare.WithAuthSecret(cfg.Compare.AuthSecret),
			compare.WithLogger(logger)),
		Notifier: session,
		Logger:   logger,
		Assets:   editor,
	}, screen.WithPickerOptions(PickerOptions(cfg.Picker)))

	logger.Info("comparison screen started",
		zap.String("endpoint", cfg.Compare.Endpoint),
		zap.String("gallery", cfg.Gallery.Dir),
		zap.String("permission_store", cfg.Permissions.Store))

	return session.Run(ctx, controller)
}

// PickerOptions converts the picker configuration into the request both pickers get.
func PickerOptions(cfg config.Picker) imagesource.Options {
	opts := imagesource.DefaultOptions()
	opts.Aspect = imagesource.Aspect{Width: cfg.AspectWidth, Height: cfg.AspectHeight}
	opts.Quality = cfg.Quality
	return opts
}

// NewPermissionStore builds the configured grant store. The returned close function
// releases any connection it holds.
func NewPermissionStore(ctx context.Context, cfg config.Permissions) (permission.Store, func() error, error) {
	switch cfg.Store {
	case "", "memory":
		return permission.NewMemoryStore(), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return permission.NewRedisStore(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown permission store %q", cfg.Store)
	}
}
