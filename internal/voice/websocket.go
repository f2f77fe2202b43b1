package voice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/petems/audiophage/internal/audio"
)

const (
	defaultWriteTimeout = 5 * time.Second
	dialInitialDelay    = 250 * time.Millisecond
	dialMaxDelay        = 5 * time.Second
)

// WebSocketConfig configures the WebSocket voice sink.
type WebSocketConfig struct {
	URL          string
	Token        string
	DialAttempts int
	// FrameInterval is the pull cadence; defaults to one frame duration.
	FrameInterval time.Duration
	WriteTimeout  time.Duration
}

// WebSocketDialer connects to a voice sink speaking the stream protocol:
// a JSON start message, one binary message per PCM frame, a JSON stop message.
type WebSocketDialer struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
	log    zerolog.Logger
}

// NewWebSocketDialer creates a dialer for the sink at cfg.URL.
func NewWebSocketDialer(cfg WebSocketConfig, log zerolog.Logger) *WebSocketDialer {
	if cfg.DialAttempts < 1 {
		cfg.DialAttempts = 1
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = audio.FrameDuration * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &WebSocketDialer{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		log:    log,
	}
}

// Dial connects to the sink for target, retrying with exponential backoff.
func (d *WebSocketDialer) Dial(ctx context.Context, target Target) (Conn, error) {
	u, err := url.Parse(d.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", ErrDial, err)
	}
	q := u.Query()
	q.Set("target", target.ID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if d.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+d.cfg.Token)
	}

	delays := newBackoff(dialInitialDelay, dialMaxDelay)
	var lastErr error
	for attempt := 1; attempt <= d.cfg.DialAttempts; attempt++ {
		ws, resp, err := d.dialer.DialContext(ctx, u.String(), header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err == nil {
			d.log.Info().Str("target", target.String()).Str("url", u.Redacted()).Msg("Connected to voice sink")
			return newWSConn(ws, target, d.cfg, d.log), nil
		}
		lastErr = err

		if attempt == d.cfg.DialAttempts {
			break
		}
		delay := delays.next()
		d.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("Voice sink dial failed")
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrDial, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrDial, target, lastErr)
}

type startMessage struct {
	Type       string `json:"type"`
	Target     string `json:"target"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	FrameBytes int    `json:"frame_bytes"`
}

type stopMessage struct {
	Type string `json:"type"`
}

type wsConn struct {
	ws           *websocket.Conn
	target       Target
	interval     time.Duration
	writeTimeout time.Duration
	log          zerolog.Logger

	mu       sync.Mutex
	source   Producer
	stop     chan struct{}
	pumpDone chan struct{}
	err      error

	closing   atomic.Bool
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn, target Target, cfg WebSocketConfig, log zerolog.Logger) *wsConn {
	c := &wsConn{
		ws:           ws,
		target:       target,
		interval:     cfg.FrameInterval,
		writeTimeout: cfg.WriteTimeout,
		log:          log.With().Str("target", target.String()).Logger(),
		done:         make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// readLoop drains incoming messages so control frames are processed.
func (c *wsConn) readLoop() {
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if !c.closing.Load() {
				c.fail(fmt.Errorf("voice sink closed: %w", err))
			}
			return
		}
	}
}

func (c *wsConn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.log.Error().Err(err).Msg("Voice connection lost")
	c.markDone()
}

func (c *wsConn) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *wsConn) Target() Target {
	return c.target
}

func (c *wsConn) Play(p Producer, format audio.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source != nil {
		return errors.New("already playing")
	}
	if p.IsEncoded() {
		return errors.New("encoded producers are not supported")
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	err := c.ws.WriteJSON(startMessage{
		Type:       "start",
		Target:     c.target.ID,
		Encoding:   "pcm_s16le",
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		FrameBytes: format.FrameBytes(),
	})
	if err != nil {
		return fmt.Errorf("failed to send stream header: %w", err)
	}

	c.source = p
	c.stop = make(chan struct{})
	c.pumpDone = make(chan struct{})
	go c.pump(p, c.stop, c.pumpDone)
	return nil
}

// pump pulls one frame per interval and writes it to the sink.
func (c *wsConn) pump(p Producer, stop <-chan struct{}, pumpDone chan<- struct{}) {
	defer close(pumpDone)

	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for n := 1; ; n++ {
		select {
		case <-stop:
			return
		default:
		}

		frame, err := p.Read()
		if err != nil {
			c.fail(fmt.Errorf("failed to read frame: %w", err))
			return
		}

		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			c.fail(fmt.Errorf("failed to send frame: %w", err))
			return
		}

		delay := time.Until(start.Add(time.Duration(n) * c.interval))
		if delay <= 0 {
			continue
		}
		timer.Reset(delay)
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}

func (c *wsConn) Source() Producer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

func (c *wsConn) Stop() {
	c.mu.Lock()
	stop, pumpDone := c.stop, c.pumpDone
	c.stop = nil
	c.mu.Unlock()
	if stop == nil {
		return
	}

	close(stop)
	<-pumpDone

	// The sink may hang up as soon as it sees "stop".
	c.closing.Store(true)
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteJSON(stopMessage{Type: "stop"}); err != nil {
		c.log.Debug().Err(err).Msg("Failed to send stop message")
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.Stop()

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		err = c.ws.Close()
		c.markDone()
		c.log.Info().Msg("Disconnected from voice sink")
	})
	return err
}

func (c *wsConn) Done() <-chan struct{} {
	return c.done
}

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
