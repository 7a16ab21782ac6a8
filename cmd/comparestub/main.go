// Command comparestub serves a local stand-in for the comparison endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/image-compare/internal/config"
	"github.com/example/image-compare/internal/logging"
	"github.com/example/image-compare/internal/stubserver"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configPath, addr string

	cmd := &cobra.Command{
		Use:          "comparestub",
		Short:        "Serve a local comparison endpoint that matches byte-identical images",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			var addrOverride *string
			if cmd.Flags().Changed("addr") {
				addrOverride = &addr
			}
			cfg, err := loadConfig(configPath, addrOverride)
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

			listener, err := net.Listen("tcp", cfg.Stub.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Stub.Addr, err)
			}

			server := &http.Server{Handler: newRouter(cfg.Stub, logger)}
			logger.Info("comparison stub listening",
				zap.String("addr", listener.Addr().String()),
				zap.Bool("auth", cfg.Stub.AuthSecret != ""))
			if err := serve(ctx, server, listener, shutdownTimeout, logger); err != nil {
				logger.Error("server failed", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or config.yaml)")
	cmd.Flags().StringVar(&addr, "addr", config.DefaultStubAddr, "listen address")
	return cmd
}

// loadConfig resolves the config path the same way the screen command does and
// validates the result after the listen address override.
func loadConfig(configPath string, addr *string) (*config.Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if addr != nil {
		cfg.Stub.Addr = *addr
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newRouter(cfg config.Stub, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = stubserver.MaxUploadSize

	var middleware []gin.HandlerFunc
	if cfg.AuthSecret != "" {
		middleware = append(middleware, stubserver.JWTMiddleware(cfg.AuthSecret))
	}
	stubserver.RegisterRoutes(router, logger, middleware...)
	return router
}

// serve runs server on listener until ctx is done, then drains in-flight requests for
// at most shutdownTimeout.
func serve(ctx context.Context, server *http.Server, listener net.Listener, shutdownTimeout time.Duration, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return g.Wait()
}
