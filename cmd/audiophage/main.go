package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/petems/audiophage/internal/app"
	"github.com/petems/audiophage/internal/audio"
	"github.com/petems/audiophage/internal/command"
	"github.com/petems/audiophage/internal/config"
	"github.com/petems/audiophage/internal/logging"
	"github.com/petems/audiophage/internal/permissions"
	"github.com/petems/audiophage/internal/session"
	"github.com/petems/audiophage/internal/tray"
	"github.com/petems/audiophage/internal/voice"
	"github.com/rs/zerolog"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.json (defaults to the platform config directory)")
	listDevices := flag.Bool("list-devices", false, "print audio APIs and input devices, then exit")
	flag.Parse()

	if *listDevices {
		if err := printDevices(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// Load config from XDG/Library/AppData
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New("info")
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger with configured level
	log := logging.New(cfg.LogLevel)

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsurePermissions(log); err != nil {
		log.Fatal().Err(err).Msg("Required permissions not granted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PortAudio and snapshot the host's devices
	pa, err := audio.NewPortAudio()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}
	defer pa.Close()

	registry, err := audio.Enumerate(pa, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to enumerate audio devices")
	}
	input := audio.NewInput(registry, audio.NewSource(pa, cfg.Audio.Channels, log), log)

	dialer := voice.NewWebSocketDialer(voice.WebSocketConfig{
		URL:          cfg.Transport.URL,
		Token:        cfg.Transport.Token,
		DialAttempts: cfg.Transport.DialAttempts,
	}, log)

	application := app.New(app.Config{
		Input:  input,
		Dialer: dialer,
		State:  session.New(log),
		Audio:  cfg.Audio,
		Logger: log,
	})

	dispatcher := command.New(command.Config{
		Controller:    application,
		Registry:      registry,
		Primary:       voice.Target{ID: cfg.AutoJoin.Target},
		AllowedUsers:  cfg.Permissions.UserIDs,
		InitialVolume: cfg.Audio.InitialVolume,
		Logger:        log,
	})
	go dispatcher.Run(ctx)

	operator := currentUser()
	log.Info().
		Str("version", Version).
		Str("operator", operator).
		Strs("whitelisted_users", cfg.Permissions.UserIDs).
		Str("device", cfg.Audio.InputDeviceName).
		Str("host_api", cfg.Audio.HostAPIName).
		Msg("Audiophage starting...")

	// Setup shutdown signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		if err := application.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
		pa.Close()
		os.Exit(0)
	}()

	var ui interface{ Run(context.Context) error }
	switch cfg.UI {
	case config.UITray:
		trayUI := tray.New(tray.Config{
			Commands: dispatcher,
			Registry: registry,
			Config:   cfg,
			User:     operator,
			Version:  Version,
			Commit:   Commit,
			Logger:   log,
		})
		application.SetStatusUpdater(trayUI)
		ui = trayUI
	default:
		ui = command.NewConsole(dispatcher, operator, os.Stdin, os.Stdout)
	}

	if cfg.AutoJoin.Enabled {
		go autoJoin(ctx, dispatcher, cfg.AutoJoin.Target, log)
	}

	// Tray UI MUST run on main thread
	if err := ui.Run(ctx); err != nil && !errors.Is(err, command.ErrStopped) {
		log.Error().Err(err).Msg("UI error")
	}

	log.Info().Msg("Shutting down...")
	if err := application.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

func autoJoin(ctx context.Context, d *command.Dispatcher, target string, log zerolog.Logger) {
	log.Info().Str("target", target).Msg("Auto-join is enabled, joining primary target")
	reply, err := d.Submit(ctx, command.Request{
		Name:     command.Join,
		Args:     []string{command.PrimaryTarget},
		Internal: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("Couldn't auto-join")
		return
	}
	if reply.Err != nil {
		log.Error().Err(reply.Err).Msg("Couldn't auto-join")
		return
	}
	log.Info().Msg("Auto-joined")
}

// printDevices lists host APIs and devices for filling in audio.host_api_name
// and audio.input_device_name.
func printDevices() error {
	pa, err := audio.NewPortAudio()
	if err != nil {
		return err
	}
	defer pa.Close()

	registry, err := audio.Enumerate(pa, zerolog.Nop())
	if err != nil {
		return err
	}

	fmt.Println("Available audio devices, grouped by audio API.")
	fmt.Println(`Use the API name for "host_api_name" and the exact device name for "input_device_name".`)
	fmt.Println()
	return audio.WriteDeviceTable(os.Stdout, registry)
}

// currentUser is the identity console and tray commands are issued as.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return os.Getenv("USERNAME")
}
