// Overture - headless Bancho protocol client
//
// Overture maintains a live session with an osu! style game server:
// login, chat, presence tracking, spectating and multiplayer rooms over
// the packet stream, plus leaderboards, replays and score submission
// over the web side-channel. A local REST API and an interactive CLI
// drive it, and MQTT telemetry mirrors the session for overlays.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/overture-project/overture/internal/api"
	"github.com/overture-project/overture/internal/cli"
	"github.com/overture-project/overture/internal/client"
	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/db"
	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/scheduler"
	"github.com/overture-project/overture/internal/telemetry"
	"github.com/overture-project/overture/internal/util"
)

const (
	AppName    = "Overture"
	AppVersion = "1.0.0"
	Banner     = `
   ____                 _
  / __ \               | |
 | |  | |_   _____ _ __| |_ _   _ _ __ ___
 | |  | \ \ / / _ \ '__| __| | | | '__/ _ \
 | |__| |\ V /  __/ |  | |_| |_| | | |  __/
  \____/  \_/ \___|_|   \__|\__,_|_|  \___|
                                  v%s
 Headless Bancho Protocol Client
`
)

func main() {
	// Print banner
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Initialize logger with defaults first (will be reconfigured after config load)
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting Overture")

	// Load configuration
	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Re-initialize logger with config-based settings
	logCfg := util.LogConfig{
		Level:      cfg.GetApplicationData().Logging.Level,
		Directory:  cfg.GetApplicationData().Logging.Directory,
		MaxBackups: cfg.GetApplicationData().Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	// Validate configuration
	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}

		if cfg.IsFirstRun() {
			log.Info().Msg("first run detected, launching setup wizard")
			if err := config.RunSetupWizard(cfg); err != nil {
				log.Fatal().Err(err).Msg("setup wizard failed")
			}
		} else {
			log.Fatal().Msg("configuration validation failed, please fix the errors above")
		}
	}

	// Log system info
	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("endpoint", cfg.GetServerData().Endpoint).
		Str("user", cfg.GetServerData().Username).
		Msg("system information")

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize core components
	eventBus := events.NewEventBus()

	// Local persistence: beatmap cache, read state, submission journal
	beatmaps, err := db.NewBeatmapDatabase(cfg.GetApplicationData().Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local database")
	}
	defer beatmaps.Close()

	// The protocol client: session, dispatcher, transports, web requests
	cl := client.New(cfg, eventBus, beatmaps)

	// Initialize REST API
	apiServer := api.NewServer(cfg, eventBus, cl, beatmaps)

	// Initialize MQTT telemetry
	var mqttHandler *telemetry.MQTTHandler
	if cfg.GetApplicationData().MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	// Initialize scheduler
	sched := scheduler.NewScheduler(cfg, eventBus)

	// Initialize CLI
	cliHandler := cli.NewCLI(cfg, eventBus, cl)

	// ---------------------------------------------------------------
	// Launch all concurrent tasks
	// ---------------------------------------------------------------
	var wg sync.WaitGroup
	errCh := make(chan error, 10)

	// Task 1: the connection supervisor
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting connection supervisor")
		if err := cl.Run(ctx); err != nil {
			errCh <- fmt.Errorf("client: %w", err)
		}
	}()

	// Task 2: REST API server
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Int("port", cfg.GetApplicationData().API.Port).Msg("starting REST API server")
		if err := apiServer.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("API server failed (non-fatal)")
		}
	}()

	// Task 3: MQTT telemetry
	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	// Task 4: Scheduler (replay cleanup, stats)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting task scheduler")
		sched.Start(ctx)
	}()

	// Task 5: Interactive CLI
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting interactive CLI")
		cliHandler.Start(ctx)
	}()

	// Shutdown requests from the CLI flow through the bus.
	eventBus.Subscribe(events.EventShutdown, "main.shutdown", func(ctx context.Context, e events.Event) error {
		cancel()
		return nil
	})

	// Kick off a background update check, then log in if configured.
	cl.Web.CheckForUpdate(ctx)
	if !cfg.IsFirstRun() {
		cl.Login()
	}

	// ---------------------------------------------------------------
	// Graceful shutdown handling
	// ---------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	}

	log.Info().Msg("initiating graceful shutdown...")

	// Log out cleanly before tearing the transports down.
	cl.Logout()

	// Cancel the root context to signal all goroutines
	cancel()

	// Wait for all goroutines with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	// Stop the event bus last
	eventBus.Stop()

	// Shutdown MQTT
	if mqttHandler != nil {
		mqttHandler.PublishShutdown()
	}

	log.Info().Msg("Overture stopped")
}
