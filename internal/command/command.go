// Package command parses operator commands and runs them one at a time
// against the streaming controller.
package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/petems/audiophage/internal/app"
	"github.com/petems/audiophage/internal/audio"
	"github.com/petems/audiophage/internal/session"
	"github.com/petems/audiophage/internal/voice"
)

// Command names.
const (
	Ping    = "ping"
	Join    = "join"
	Leave   = "leave"
	Volume  = "volume"
	Devices = "devices"
)

// PrimaryTarget is the join argument naming the configured auto-join target.
const PrimaryTarget = "primary"

// ErrStopped is returned by Submit once the dispatcher has stopped.
var ErrStopped = errors.New("command dispatcher stopped")

// ErrNotAllowed is carried by the reply to a user missing from the whitelist.
var ErrNotAllowed = errors.New("user not allowed to operate the relay")

// Controller is the part of the streaming controller commands drive.
type Controller interface {
	ConnectAndStream(ctx context.Context, target voice.Target) (voice.Conn, error)
	StopAndDisconnect(ctx context.Context) (voice.Target, error)
	SetVolume(level float64) (float64, error)
}

// Request is one command issued by User.
type Request struct {
	User string
	Name string
	Args []string
	// Internal marks requests issued by the process itself, such as
	// auto-join. They skip the user whitelist.
	Internal bool
}

// Parse splits a command line such as "join primary" into a Request.
func Parse(user, line string) (Request, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, false
	}
	return Request{
		User: user,
		Name: strings.ToLower(strings.TrimPrefix(fields[0], "/")),
		Args: fields[1:],
	}, true
}

// Reply is the user-facing result of a command. Err carries the underlying
// failure, if any, for logging and tests.
type Reply struct {
	Text string
	Err  error
}

type Config struct {
	Controller    Controller
	Registry      *audio.Registry
	Primary       voice.Target
	AllowedUsers  []string
	InitialVolume float64
	Logger        zerolog.Logger
}

type call struct {
	ctx   context.Context
	req   Request
	reply chan Reply
}

// Dispatcher runs submitted commands sequentially on a single goroutine.
type Dispatcher struct {
	ctrl          Controller
	registry      *audio.Registry
	primary       voice.Target
	allowed       []string
	initialVolume float64
	log           zerolog.Logger

	calls chan call
	done  chan struct{}
}

func New(cfg Config) *Dispatcher {
	if len(cfg.AllowedUsers) == 0 {
		cfg.Logger.Error().Msg("permissions.user_ids is empty, nobody will be able to operate the relay")
	}
	return &Dispatcher{
		ctrl:          cfg.Controller,
		registry:      cfg.Registry,
		primary:       cfg.Primary,
		allowed:       cfg.AllowedUsers,
		initialVolume: cfg.InitialVolume,
		log:           cfg.Logger,
		calls:         make(chan call),
		done:          make(chan struct{}),
	}
}

// Run executes submitted commands until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-d.calls:
			c.reply <- d.handle(c.ctx, c.req)
		}
	}
}

// Submit queues req and waits for its reply.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (Reply, error) {
	c := call{ctx: ctx, req: req, reply: make(chan Reply, 1)}
	select {
	case d.calls <- c:
	case <-d.done:
		return Reply{}, ErrStopped
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
	return <-c.reply, nil
}

func (d *Dispatcher) handle(ctx context.Context, req Request) Reply {
	d.log.Info().Str("user", req.User).Str("command", req.Name).Strs("args", req.Args).Msg("Command requested")

	if req.Name == Ping {
		return Reply{Text: "🏓 Pong!"}
	}

	switch req.Name {
	case Join, Leave, Volume, Devices:
	default:
		return Reply{Text: fmt.Sprintf("⚠️ Unknown command `%s`. Available: ping, join, leave, volume, devices.", req.Name)}
	}

	if !req.Internal && !d.isAllowed(req.User) {
		d.log.Warn().Str("user", req.User).Str("command", req.Name).Msg("Refused command from user not on the whitelist")
		return Reply{Text: "⛔ You are not allowed to operate this relay.", Err: ErrNotAllowed}
	}

	switch req.Name {
	case Join:
		return d.join(ctx, req.Args)
	case Leave:
		return d.leave(ctx)
	case Volume:
		return d.volume(req.Args)
	default:
		return d.devices()
	}
}

func (d *Dispatcher) isAllowed(user string) bool {
	return slices.Contains(d.allowed, user)
}

func (d *Dispatcher) join(ctx context.Context, args []string) Reply {
	if len(args) != 1 {
		return Reply{Text: "⚠️ Not a valid argument (expected either `primary` or a target ID)!"}
	}

	target := voice.Target{ID: args[0]}
	if args[0] == PrimaryTarget {
		if d.primary.ID == "" {
			return Reply{Text: "⚠️ Can't join primary channel: no auto-join target configured!"}
		}
		target = d.primary
	}

	_, err := d.ctrl.ConnectAndStream(ctx, target)
	switch {
	case err == nil:
		d.log.Info().Str("target", target.String()).Msg("Joined and streaming")
		return Reply{Text: fmt.Sprintf("📯 Joined voice channel: %s (volume: `%s`).", target, formatLevel(d.initialVolume))}
	case errors.Is(err, session.ErrAlreadyStreaming):
		d.log.Info().Msg("Can't join: already streaming somewhere else")
		return Reply{Text: "⚠️ Can't join: already streaming somewhere else - only a single stream is supported.", Err: err}
	case errors.Is(err, audio.ErrDeviceNotFound):
		d.log.Error().Err(err).Msg("Couldn't open stream: the configured audio device does not exist")
		return Reply{Text: "👀 The configured audio input device does not exist (disconnected or otherwise unavailable)!", Err: err}
	case errors.Is(err, audio.ErrStreamOpen):
		d.log.Error().Err(err).Msg("Couldn't join, audio error")
		return Reply{Text: "👀 Error while opening input audio stream!", Err: err}
	case errors.Is(err, voice.ErrDial):
		d.log.Error().Err(err).Msg("Couldn't join, transport error")
		return Reply{Text: fmt.Sprintf("👀 Couldn't connect to %s!", target), Err: err}
	default:
		d.log.Error().Err(err).Msg("Couldn't join")
		return Reply{Text: fmt.Sprintf("👀 Couldn't join %s: %v", target, err), Err: err}
	}
}

func (d *Dispatcher) leave(ctx context.Context) Reply {
	target, err := d.ctrl.StopAndDisconnect(ctx)
	if errors.Is(err, session.ErrNotConnected) {
		d.log.Info().Msg("Can't leave: not connected")
		return Reply{Text: "⚠️ Can't leave: not connected.", Err: err}
	}
	if err != nil {
		d.log.Error().Err(err).Msg("Couldn't leave")
		return Reply{Text: fmt.Sprintf("👀 Couldn't leave: %v", err), Err: err}
	}
	return Reply{Text: fmt.Sprintf("👋 Leaving %s.", target)}
}

func (d *Dispatcher) volume(args []string) Reply {
	if len(args) != 1 {
		return Reply{Text: "⚠️ Usage: volume <0..2>"}
	}
	level, err := strconv.ParseFloat(args[0], 64)
	if err != nil || level < voice.MinVolume || level > voice.MaxVolume {
		return Reply{Text: "⚠️ Volume must be a number between 0 and 2."}
	}

	applied, err := d.ctrl.SetVolume(level)
	switch {
	case err == nil:
		return Reply{Text: fmt.Sprintf("✅ Volume set to `%s`.", formatLevel(applied))}
	case errors.Is(err, session.ErrNotConnected):
		d.log.Info().Msg("Can't set volume: not connected")
		return Reply{Text: "⚠️ Can't set volume: not connected.", Err: err}
	case errors.Is(err, app.ErrNoVolumeControl):
		d.log.Error().Err(err).Msg("Can't change volume")
		return Reply{Text: "👀 Can't change volume: the source has no volume control (this is a bug)!", Err: err}
	default:
		return Reply{Text: fmt.Sprintf("👀 Can't change volume: %v", err), Err: err}
	}
}

func (d *Dispatcher) devices() Reply {
	var b strings.Builder
	b.WriteString("🎙️ Available audio devices, grouped by audio API:\n")
	if err := audio.WriteDeviceTable(&b, d.registry); err != nil {
		return Reply{Text: fmt.Sprintf("👀 Couldn't list devices: %v", err), Err: err}
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}
}

func formatLevel(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
