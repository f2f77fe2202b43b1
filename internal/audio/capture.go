package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Source opens capture sessions on devices.
type Source struct {
	opener   StreamOpener
	channels int
	log      zerolog.Logger
}

// NewSource creates a Source producing channels-channel PCM (1 or 2).
func NewSource(opener StreamOpener, channels int, log zerolog.Logger) *Source {
	return &Source{
		opener:   opener,
		channels: channels,
		log:      log,
	}
}

// Open acquires an input stream on device at its default sample rate.
// If the stream is not running after open it is started once; a stream that
// still is not running is closed again and ErrStreamOpen returned.
func (s *Source) Open(device Device) (*Session, error) {
	format := Format{
		SampleRate:      device.DefaultSampleRate,
		Channels:        s.channels,
		FramesPerBuffer: FramesPerBuffer(device.DefaultSampleRate),
	}
	buf := make([]int16, format.FramesPerBuffer*format.Channels)

	stream, err := s.opener.OpenInput(device, format.Channels, format.FramesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrStreamOpen, device.Name, err)
	}

	if !stream.Active() {
		if err := stream.Start(); err != nil {
			_ = stream.Close()
			return nil, fmt.Errorf("%w: %q: start: %v", ErrStreamOpen, device.Name, err)
		}
		if !stream.Active() {
			_ = stream.Close()
			return nil, fmt.Errorf("%w: %q: stream inactive after start", ErrStreamOpen, device.Name)
		}
	}

	s.log.Debug().
		Str("device", device.Name).
		Int("sample_rate", format.SampleRate).
		Int("channels", format.Channels).
		Int("frames_per_buffer", format.FramesPerBuffer).
		Msg("Opened capture session")

	return &Session{
		stream: stream,
		buf:    buf,
		format: format,
		device: device,
		log:    s.log,
	}, nil
}

// Session is an open capture stream producing fixed-size PCM frames.
// Read and Close may be called from different goroutines; reads themselves
// must come from a single goroutine.
type Session struct {
	mu     sync.Mutex // held while the stream handle is in use
	stream Stream
	buf    []int16
	format Format
	device Device
	closed atomic.Bool
	log    zerolog.Logger
}

// Read returns one frame of little-endian interleaved int16 PCM. After Close
// it returns silence of the same length without touching the device.
func (s *Session) Read() ([]byte, error) {
	if s.closed.Load() {
		return s.silence(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Close may have won the race for the lock.
	if s.closed.Load() {
		return s.silence(), nil
	}

	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("failed to read from %q: %w", s.device.Name, err)
	}

	out := make([]byte, len(s.buf)*bytesPerSample)
	for i, sample := range s.buf {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(sample))
	}
	return out, nil
}

func (s *Session) silence() []byte {
	return make([]byte, s.format.FrameBytes())
}

// IsEncoded always reports false: frames are raw PCM.
func (s *Session) IsEncoded() bool {
	return false
}

// Close marks the session closed, waits for an in-flight Read to finish, and
// releases the device. Calls after the first are no-ops.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.stream
	s.stream = nil

	err := errors.Join(stream.Stop(), stream.Close())
	if err != nil {
		s.log.Warn().Err(err).Str("device", s.device.Name).Msg("Error releasing capture device")
		return fmt.Errorf("failed to release %q: %w", s.device.Name, err)
	}
	s.log.Debug().Str("device", s.device.Name).Msg("Closed capture session")
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Format returns the PCM format of the frames.
func (s *Session) Format() Format {
	return s.format
}

// Device returns the device the session was opened on.
func (s *Session) Device() Device {
	return s.device
}
