package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/kevmo314/go-kinect/internal/api"
	"github.com/kevmo314/go-kinect/internal/config"
	"github.com/kevmo314/go-kinect/internal/events"
	"github.com/kevmo314/go-kinect/internal/logging"
	"github.com/kevmo314/go-kinect/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		// Flags set on the command line win over the file and environment.
		if err := config.LoadConfig(opts, cli.Root()); err != nil {
			slog.Warn("Failed to load config", "error", err)
		}

		logging.Initialize(opts.Logging(config.LoadLoggingConfig(opts.Config)))
		logger := logging.GetLogger("main")

		kopts, err := deviceOptions(opts)
		if err != nil {
			logger.Error("Invalid device options", "error", err)
			os.Exit(1)
		}

		// Create event bus for frame, stream and motor events
		bus := events.New()
		kopts.Bus = bus

		dev, err := openDevice(opts, kopts)
		if err != nil {
			logger.Error("Failed to open kinect", "error", err)
			os.Exit(1)
		}
		if err := applyControls(dev, opts); err != nil {
			logger.Warn("Failed to apply controls", "error", err)
		}

		apiOpts := api.Options{Device: dev, Bus: bus}
		if opts.Metrics {
			apiOpts.MetricsHandler = metrics.Handler()
		}
		server := api.NewServer(apiOpts)

		var watcher *config.Watcher[config.Options]
		if opts.Watch && opts.Config != "" {
			watcher = config.NewWatcher(opts.Config, config.Load, logging.GetLogger("config"))
			watcher.OnReload(func(reloaded config.Options) {
				logging.Initialize(reloaded.Logging(config.LoadLoggingConfig(reloaded.Config)))
				if err := applyControls(dev, &reloaded); err != nil {
					logger.Warn("Failed to apply reloaded controls", "error", err)
					return
				}
				logger.Info("Controls reloaded", "brightness", reloaded.Brightness, "led", reloaded.Led, "tilt", reloaded.Tilt)
			})
		}

		hooks.OnStart(func() {
			if watcher != nil {
				// Non-fatal, the daemon runs without hot reload
				if err := watcher.Start(); err != nil {
					logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
				}
			}

			logger.Info("Starting HTTP server", "listen", opts.Listen, "device", dev.Name(), "motor", dev.HasMotor())
			if err := server.Start(opts.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", err)
				dev.Close()
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Stop(ctx); err != nil {
				logger.Error("Error stopping HTTP server", "error", err)
			}
			if watcher != nil {
				_ = watcher.Stop()
			}
			if err := dev.Close(); err != nil {
				logger.Error("Error closing device", "error", err)
			}
		})
	})

	cli.Root().Use = "kinectd"
	cli.Root().Short = "Serve a Kinect sensor over HTTP"

	cli.Run()
}
