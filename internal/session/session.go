package session

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/audiophage/internal/audio"
	"github.com/petems/audiophage/internal/voice"
)

var (
	// ErrAlreadyStreaming is returned when a relay is started while one is active.
	ErrAlreadyStreaming = errors.New("already streaming")
	// ErrNotConnected is returned when there is no active relay to act on.
	ErrNotConnected = errors.New("not connected")
	// ErrIncompleteRelay is returned by Start for a relay missing its capture or connection.
	ErrIncompleteRelay = errors.New("relay needs both a capture session and a connection")
)

// Phase is the externally visible state of the relay
type Phase int

const (
	// Idle means no relay is active
	Idle Phase = iota
	// Streaming means a capture session is relayed into a connection
	Streaming
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Streaming:
		return "Streaming"
	default:
		return "Unknown"
	}
}

// Relay is an active capture session together with the connection it feeds.
type Relay struct {
	Capture *audio.Session
	Conn    voice.Conn
}

func (r *Relay) complete() bool {
	return r != nil && r.Capture != nil && r.Conn != nil
}

// State records the single active relay. The zero value is not usable; use New.
type State struct {
	mu     sync.Mutex
	active *Relay // nil while Idle
	log    zerolog.Logger
}

// New returns a State in Idle.
func New(log zerolog.Logger) *State {
	return &State{log: log}
}

// Start moves Idle to Streaming.
func (s *State) Start(conn voice.Conn, capture *audio.Session) error {
	relay := &Relay{Capture: capture, Conn: conn}
	if !relay.complete() {
		return ErrIncompleteRelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.repairLocked()
	if s.active != nil {
		return ErrAlreadyStreaming
	}
	s.active = relay
	return nil
}

// End moves Streaming to Idle and hands back the relay for teardown.
func (s *State) End() (Relay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.repairLocked()
	if s.active == nil {
		return Relay{}, ErrNotConnected
	}
	relay := *s.active
	s.active = nil
	return relay, nil
}

// Current returns the connection of the active relay, if any.
func (s *State) Current() (voice.Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.repairLocked()
	if s.active == nil {
		return nil, false
	}
	return s.active.Conn, true
}

// Phase reports Idle or Streaming.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.repairLocked()
	if s.active == nil {
		return Idle
	}
	return Streaming
}

// repairLocked resets a relay that lost its capture or connection to Idle.
func (s *State) repairLocked() {
	if s.active != nil && !s.active.complete() {
		s.log.Error().Msg("Active relay is missing its capture session or connection, resetting to idle")
		s.active = nil
	}
}
