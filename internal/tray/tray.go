package tray

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/audiophage/internal/audio"
	"github.com/petems/audiophage/internal/command"
	"github.com/petems/audiophage/internal/config"
	"github.com/petems/audiophage/internal/logging"
)

// volumeLevels are the presets offered in the Volume menu.
var volumeLevels = []float64{0, 0.25, 0.5, 0.75, 1, 1.25, 1.5, 2}

type UI struct {
	commands command.Submitter
	registry *audio.Registry
	cfg      *config.Config
	user     string
	version  string
	commit   string
	log      zerolog.Logger

	mu     sync.Mutex
	status string
	target string
	ready  bool

	// Menu items
	mStatus *systray.MenuItem
	mJoin   *systray.MenuItem
	mLeave  *systray.MenuItem
	mVolume *systray.MenuItem
}

type Config struct {
	Commands command.Submitter
	Registry *audio.Registry
	Config   *config.Config
	User     string
	Version  string
	Commit   string
	Logger   zerolog.Logger
}

func New(cfg Config) *UI {
	return &UI{
		commands: cfg.Commands,
		registry: cfg.Registry,
		cfg:      cfg.Config,
		user:     cfg.User,
		version:  cfg.Version,
		commit:   cfg.Commit,
		log:      cfg.Logger,
		status:   "idle",
	}
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus("idle", "")
}

func (u *UI) SetStreaming(target string) {
	u.updateStatus("streaming", target)
}

func (u *UI) SetError() {
	u.updateStatus("error", "")
}

// Run shows the tray icon and blocks until Quit is chosen or ctx is cancelled.
// It must be called from the main goroutine.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	systray.SetTooltip("Microphone relay")

	u.mStatus = systray.AddMenuItem("", "Relay status")
	u.mStatus.Disable()
	systray.AddSeparator()

	u.mJoin = systray.AddMenuItem("Join Primary", fmt.Sprintf("Stream to %s", u.cfg.AutoJoin.Target))
	if u.cfg.AutoJoin.Target == "" {
		u.mJoin.Disable()
	}
	u.mLeave = systray.AddMenuItem("Leave", "Stop streaming")
	systray.AddSeparator()

	u.mVolume = systray.AddMenuItem("Volume", "Adjust the stream volume")
	u.buildVolumeMenu()

	mDevices := systray.AddMenuItem("Input Devices", "Click a device to copy its name")
	u.buildDeviceMenu(mDevices)

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Copy Log Path", logging.LogPath())
	mAbout := systray.AddMenuItem("About", "About Audiophage")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	u.mu.Lock()
	u.ready = true
	u.mu.Unlock()
	u.refresh()

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mJoin.ClickedCh:
			u.run(command.Join, command.PrimaryTarget)
		case <-u.mLeave.ClickedCh:
			u.run(command.Leave)
		case <-mLogs.ClickedCh:
			u.copy(logging.LogPath())
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

// run submits a command as the tray user and logs the reply. It reports
// whether the command succeeded.
func (u *UI) run(name string, args ...string) bool {
	reply, err := u.commands.Submit(context.Background(), command.Request{User: u.user, Name: name, Args: args})
	if err != nil {
		u.log.Error().Err(err).Str("command", name).Msg("Failed to submit command")
		return false
	}
	if reply.Err != nil {
		u.log.Warn().Err(reply.Err).Str("command", name).Msg(reply.Text)
		return false
	}
	u.log.Info().Str("command", name).Msg(reply.Text)
	return true
}

type checkable interface {
	Check()
	Uncheck()
}

func (u *UI) buildVolumeMenu() {
	volumeItems := make(map[float64]checkable)

	for _, level := range volumeLevels {
		item := u.mVolume.AddSubMenuItem(volumeLabel(level), "")
		if level == u.cfg.Audio.InitialVolume {
			item.Check()
		}
		volumeItems[level] = item

		go func(l float64, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				u.setVolume(volumeItems, l)
			}
		}(level, item)
	}
}

// setVolume applies level and moves the check mark to it once the command
// has succeeded.
func (u *UI) setVolume(items map[float64]checkable, level float64) {
	if !u.run(command.Volume, strconv.FormatFloat(level, 'g', -1, 64)) {
		return
	}
	for lvl, item := range items {
		if lvl == level {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (u *UI) buildDeviceMenu(parent *systray.MenuItem) {
	for _, group := range u.registry.Grouped() {
		for _, dev := range group.Devices {
			item := parent.AddSubMenuItem(deviceLabel(group.API, dev), "Copy device name")
			if dev.Name == u.cfg.Audio.InputDeviceName && group.API.Name == u.cfg.Audio.HostAPIName {
				item.Check()
			}

			go func(name string, menuItem *systray.MenuItem) {
				for {
					<-menuItem.ClickedCh
					u.copy(name)
				}
			}(dev.Name, item)
		}
	}
}

func (u *UI) copy(text string) {
	if err := clipboard.WriteAll(text); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy to clipboard")
		return
	}
	u.log.Info().Str("text", text).Msg("Copied to clipboard")
}

func (u *UI) showAbout() {
	u.log.Info().Str("version", u.version).Str("commit", u.commit).Msg("Audiophage, microphone to voice channel relay")
}

func (u *UI) onExit() {
	u.log.Debug().Msg("Tray closed")
}

// updateStatus records the status and redraws the tray once it is ready
func (u *UI) updateStatus(status, target string) {
	u.mu.Lock()
	u.status = status
	u.target = target
	u.mu.Unlock()
	u.refresh()
}

func (u *UI) refresh() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.ready {
		return
	}

	systray.SetTitle(fmt.Sprintf("🎤 %s", emojiForStatus(u.status)))
	u.mStatus.SetTitle(statusText(u.status, u.target))
	if u.status == "streaming" {
		u.mJoin.Disable()
		u.mLeave.Enable()
		u.mVolume.Enable()
		return
	}
	if u.cfg.AutoJoin.Target != "" {
		u.mJoin.Enable()
	}
	u.mLeave.Disable()
	u.mVolume.Disable()
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "streaming":
		return "🔴" // Red - live
	case "idle":
		return "🟢" // Green - ready/idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}

func statusText(status, target string) string {
	switch status {
	case "streaming":
		return fmt.Sprintf("Streaming to %s", target)
	case "error":
		return "Error (see logs)"
	default:
		return "Idle"
	}
}

func volumeLabel(level float64) string {
	return fmt.Sprintf("%d%%", int(level*100))
}

func deviceLabel(api audio.HostAPI, dev audio.Device) string {
	return fmt.Sprintf("%s: %s (%d Hz)", api.Name, dev.Name, dev.DefaultSampleRate)
}
