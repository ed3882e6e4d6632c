package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/capability"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/server"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/helper"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Long:  `Start the decompilation HTTP service and serve until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), logger.NewLogger("main"))
	},
}

func runServer(parent context.Context, log *logger.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	svc, err := newService(Cfg, true)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvCfg := Cfg.Server
	api := server.New(svc, server.Options{
		MaxUploadBytes: srvCfg.MaxUploadMB << 20,
		RateLimit:      srvCfg.RateLimit,
		RateBurst:      srvCfg.RateBurst,
		MaxConcurrent:  srvCfg.MaxConcurrent,
	})
	httpServer := &http.Server{
		Addr:              srvCfg.Address(),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       srvCfg.ReadTimeout,
		WriteTimeout:      srvCfg.WriteTimeout,
	}

	if Cfg.Engines.WatchTools {
		go watchTools(ctx, log, Cfg.Engines.ToolsDir)
	}

	availability := svc.Detector().DetectAvailability(ctx)
	log.WithFields(logger.Fields{
		"addr":         httpServer.Addr,
		"version":      Version,
		"default_mode": Cfg.Engines.DefaultMode,
		"tools_dir":    Cfg.Engines.ToolsDir,
		"modes":        availability,
	}).Info("Starting decompiler service")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.WithError(err).Warn("Failed to notify systemd")
	} else if sent {
		log.Debug("Notified systemd of readiness")
	}

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Warn("Shutdown requested, draining requests...")
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("Shutdown completed")
	return nil
}

func watchTools(ctx context.Context, log *logger.Logger, dir string) {
	defer helper.RecoverPanic(log, "tools-watcher")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithError(err).Warn("Tools directory unavailable, not watching")
		return
	}
	if err := capability.Watch(ctx, dir, nil); err != nil {
		log.WithError(err).Warn("Tools watcher stopped")
	}
}

func init() {
	RootCmd.AddCommand(ServeCmd)
}
