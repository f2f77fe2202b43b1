package voice

import (
	"context"
	"errors"

	"github.com/petems/audiophage/internal/audio"
)

// ErrDial is returned when the outward connection could not be established.
var ErrDial = errors.New("failed to connect to voice sink")

// Producer is a pull-based source of raw PCM frames
type Producer interface {
	Read() ([]byte, error)
	IsEncoded() bool
	Close() error
}

// Target identifies the voice channel a connection streams into.
type Target struct {
	ID   string
	Name string
}

// String returns the display name, falling back to the ID.
func (t Target) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// Conn is an outward voice connection.
type Conn interface {
	Target() Target
	// Play attaches p and starts pulling frames from it on the frame cadence.
	Play(p Producer, format audio.Format) error
	// Source returns the attached producer, or nil.
	Source() Producer
	// Stop stops pulling frames. When it returns no further Read is issued.
	Stop()
	Close() error
	// Done is closed once the connection has ended, for any reason.
	Done() <-chan struct{}
	// Err reports why the connection ended on its own, or nil.
	Err() error
}

// Dialer establishes outward connections.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Conn, error)
}
