package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carillon/config"
	"carillon/internal/alert"
	"carillon/internal/api"
	"carillon/internal/audio"
	"carillon/internal/auth"
	"carillon/internal/holiday"
	"carillon/internal/logging"
	"carillon/internal/notify"
	"carillon/internal/schedule"
	"carillon/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	defaultConfigPath = "config.json"
)

func main() {
	// The same binary is re-executed as the audio child process. That mode
	// has its own flag set and never reaches the server setup below.
	if len(os.Args) > 1 && os.Args[1] == "--play-sound" {
		runPlaySound(os.Args[2:])
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "carillon: %v\n", err)
		os.Exit(1)
	}
}

// runPlaySound plays one sound file and exits. Exit code is always 0 so the
// parent never mistakes a playback failure for a crash worth retrying.
func runPlaySound(args []string) {
	logger := logging.NewLogger(logging.LoggerConfig{Format: "text", Level: slog.LevelInfo})
	if len(args) < 1 {
		logger.Error("No sound file given")
		os.Exit(0)
	}
	file := args[0]

	fs := flag.NewFlagSet("play-sound", flag.ExitOnError)
	device := fs.String("device", "", "Audio output device name")
	loop := fs.Bool("loop", false, "Repeat the sound until killed")
	fs.Parse(args[1:])

	if err := audio.RunPlayback(file, *device, *loop, logger); err != nil {
		logger.Error("Playback failed", "file", file, "error", err)
	}
	os.Exit(0)
}

func run() error {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	useEnv := flag.Bool("env", false, "Load configuration from environment variables")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
		if err == config.ErrConfigFileNotFound {
			cfg, err = config.LoadFromEnv()
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: cfg.Logging.Format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
		File:   cfg.Logging.File,
	})
	slog.SetDefault(logger)

	logger.Info("Carillon starting",
		"config_dir", cfg.Paths.ConfigDir,
		"mp3_dir", cfg.Paths.MP3Dir,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	st := store.New(cfg.Paths.ConfigDir, logger)
	for name, err := range st.LoadAll() {
		if err != nil {
			logger.Warn("Config file loaded with defaults", "file", name, "error", err)
		}
	}
	params := st.Params()
	bells := st.BellData()

	// Holiday and vacation data load before the first scheduling pass so the
	// very first bell decision already sees them. Failures are not fatal, the
	// resolver falls back to its disk cache.
	resolver := holiday.NewResolver(cfg.Paths.ConfigDir, logger)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 60*time.Second)
	resolver.LoadHolidays(loadCtx, params.HolidayAPIURL, params.HolidayCountryCode, false)
	if err := resolver.LoadVacations(loadCtx, params.Zone, bells.Vacations.ICSFilePath, params.VacationICSBaseURL); err != nil {
		logger.Warn("Vacation data unavailable", "error", err)
	}
	loadCancel()

	player, err := audio.NewPlayer(logger)
	if err != nil {
		return fmt.Errorf("failed to create audio player: %w", err)
	}

	sched := schedule.NewScheduler(resolver, player, cfg.Paths.MP3Dir, st.Snapshot(), logger)
	go sched.Run()
	sched.Start()

	alerts := alert.NewController(player, cfg.Paths.MP3Dir, logger)
	notifier := notify.NewNotifier(params.TelegramBotToken, params.TelegramChatID, logger)
	sessions := auth.NewSessionManager(0)

	router := api.NewRouter(api.RouterConfig{
		Store:     st,
		Scheduler: sched,
		Resolver:  resolver,
		Alerts:    alerts,
		Sessions:  sessions,
		Notifier:  notifier,
		MP3Dir:    cfg.Paths.MP3Dir,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}

		sched.Shutdown()
		alerts.Shutdown()

		logger.Info("Carillon stopped")
	}

	return nil
}
