package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/petems/audiophage/internal/audio"
	"github.com/petems/audiophage/internal/config"
	"github.com/petems/audiophage/internal/session"
	"github.com/petems/audiophage/internal/voice"
	"github.com/rs/zerolog"
)

// ErrNoVolumeControl is returned when the active source cannot change volume.
var ErrNoVolumeControl = errors.New("active source has no volume control")

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetStreaming(target string)
	SetError()
}

// Opener selects and opens the configured capture device.
type Opener interface {
	ResolveAndOpen(name string, sampleRate int, hostAPIName string) (*audio.Session, int, error)
}

type Config struct {
	Input         Opener
	Dialer        voice.Dialer
	State         *session.State
	Audio         config.AudioConfig
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

// App starts and stops the relay from the capture device into a voice
// connection. Only one relay runs at a time.
type App struct {
	input  Opener
	dialer voice.Dialer
	state  *session.State
	audio  config.AudioConfig
	log    zerolog.Logger
	status StatusUpdater

	mu sync.Mutex
}

func New(cfg Config) *App {
	return &App{
		input:  cfg.Input,
		dialer: cfg.Dialer,
		state:  cfg.State,
		audio:  cfg.Audio,
		log:    cfg.Logger,
		status: cfg.StatusUpdater,
	}
}

// SetStatusUpdater sets the status updater (for circular dependency resolution)
func (a *App) SetStatusUpdater(s StatusUpdater) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

// ConnectAndStream opens the configured input device, connects to target and
// starts relaying. Device and transport errors are returned unchanged.
func (a *App) ConnectAndStream(ctx context.Context, target voice.Target) (voice.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.state.Current(); ok {
		return nil, session.ErrAlreadyStreaming
	}

	capture, framesPerBuffer, err := a.input.ResolveAndOpen(a.audio.InputDeviceName, a.audio.InputSampleRate, a.audio.HostAPIName)
	if err != nil {
		a.setErrorLocked()
		return nil, err
	}

	conn, err := a.dialer.Dial(ctx, target)
	if err != nil {
		a.closeCapture(capture)
		a.setErrorLocked()
		return nil, err
	}

	producer := voice.NewVolume(capture, a.audio.InitialVolume)
	if err := conn.Play(producer, capture.Format()); err != nil {
		a.closeConn(conn)
		a.closeCapture(capture)
		a.setErrorLocked()
		return nil, fmt.Errorf("failed to attach audio to %s: %w", target, err)
	}

	if err := a.state.Start(conn, capture); err != nil {
		a.closeConn(conn)
		a.closeCapture(capture)
		return nil, err
	}

	go a.watch(conn)

	a.log.Info().
		Str("target", target.String()).
		Str("device", capture.Device().Name).
		Int("frames_per_buffer", framesPerBuffer).
		Float64("volume", producer.Level()).
		Msg("Streaming")
	if a.status != nil {
		a.status.SetStreaming(target.String())
	}
	return conn, nil
}

// StopAndDisconnect ends the active relay and returns the target it streamed to.
func (a *App) StopAndDisconnect(ctx context.Context) (voice.Target, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked()
}

// stopLocked stops the producer, closes the connection, then releases the
// device.
func (a *App) stopLocked() (voice.Target, error) {
	relay, err := a.state.End()
	if err != nil {
		return voice.Target{}, err
	}

	target := relay.Conn.Target()
	relay.Conn.Stop()
	a.closeConn(relay.Conn)
	a.closeCapture(relay.Capture)

	a.log.Info().Str("target", target.String()).Msg("Stopped streaming")
	if a.status != nil {
		a.status.SetIdle()
	}
	return target, nil
}

// watch tears the relay down when the connection ends on its own.
func (a *App) watch(conn voice.Conn) {
	<-conn.Done()
	if conn.Err() == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	current, ok := a.state.Current()
	if !ok || current != conn {
		return
	}
	a.log.Error().Err(conn.Err()).Str("target", conn.Target().String()).Msg("Relay interrupted")
	if _, err := a.stopLocked(); err != nil {
		a.log.Error().Err(err).Msg("Failed to tear down interrupted relay")
	}
	a.setErrorLocked()
}

// SetVolume changes the volume of the active relay and returns the applied,
// clamped level.
func (a *App) SetVolume(level float64) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	conn, ok := a.state.Current()
	if !ok {
		return 0, session.ErrNotConnected
	}
	vol, ok := conn.Source().(*voice.Volume)
	if !ok {
		return 0, ErrNoVolumeControl
	}
	applied := vol.SetLevel(level)
	a.log.Info().Float64("volume", applied).Msg("Volume changed")
	return applied, nil
}

// Current returns the active connection, if any.
func (a *App) Current() (voice.Conn, bool) {
	return a.state.Current()
}

func (a *App) IsStreaming() bool {
	return a.state.Phase() == session.Streaming
}

// Shutdown stops the active relay, if any.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.stopLocked(); err != nil && !errors.Is(err, session.ErrNotConnected) {
		return err
	}
	return nil
}

func (a *App) closeConn(conn voice.Conn) {
	if err := conn.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Error closing voice connection")
	}
}

func (a *App) closeCapture(capture *audio.Session) {
	if err := capture.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Error closing capture session")
	}
}

func (a *App) setErrorLocked() {
	if a.status != nil {
		a.status.SetError()
	}
}
