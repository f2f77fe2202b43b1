package audio

import (
	"github.com/rs/zerolog"
)

// Input combines device selection and capture.
type Input struct {
	registry *Registry
	source   *Source
	log      zerolog.Logger
}

// NewInput creates an Input selecting devices from registry and opening them
// through source.
func NewInput(registry *Registry, source *Source, log zerolog.Logger) *Input {
	return &Input{
		registry: registry,
		source:   source,
		log:      log,
	}
}

// ResolveAndOpen selects the device named name at sampleRate on hostAPIName
// and opens a capture session on it. It returns the session and its frames per
// buffer. Errors wrap ErrDeviceNotFound or ErrStreamOpen.
func (in *Input) ResolveAndOpen(name string, sampleRate int, hostAPIName string) (*Session, int, error) {
	matches := in.registry.Matches(name, sampleRate, hostAPIName, in.source.channels)
	if len(matches) > 1 {
		indexes := make([]int, len(matches))
		for i, d := range matches {
			indexes[i] = d.Index
		}
		in.log.Warn().
			Str("device", name).
			Ints("candidates", indexes).
			Int("selected", matches[0].Index).
			Msg("Several devices match, using the lowest index")
	}

	device, err := in.registry.Resolve(name, sampleRate, hostAPIName, in.source.channels)
	if err != nil {
		return nil, 0, err
	}

	session, err := in.source.Open(device)
	if err != nil {
		return nil, 0, err
	}
	return session, session.Format().FramesPerBuffer, nil
}
