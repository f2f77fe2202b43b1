package voice

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

const (
	// MinVolume mutes the stream.
	MinVolume = 0.0
	// MaxVolume doubles the amplitude.
	MaxVolume = 2.0
)

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Volume scales the 16-bit samples of the wrapped producer.
type Volume struct {
	source Producer
	level  atomic.Uint64 // math.Float64bits of the level
}

// NewVolume wraps p at the given level, clamped to [MinVolume, MaxVolume].
func NewVolume(p Producer, level float64) *Volume {
	v := &Volume{source: p}
	v.SetLevel(level)
	return v
}

// SetLevel changes the level and returns the clamped value applied.
func (v *Volume) SetLevel(level float64) float64 {
	if math.IsNaN(level) {
		level = 1
	}
	level = Clamp(level, MinVolume, MaxVolume)
	v.level.Store(math.Float64bits(level))
	return level
}

// Level returns the current level.
func (v *Volume) Level() float64 {
	return math.Float64frombits(v.level.Load())
}

func (v *Volume) Read() ([]byte, error) {
	frame, err := v.source.Read()
	if err != nil {
		return nil, err
	}

	level := v.Level()
	if level == 1 {
		return frame, nil
	}

	for i := 0; i+1 < len(frame); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(frame[i:])))
		scaled := Clamp(math.Round(sample*level), math.MinInt16, math.MaxInt16)
		binary.LittleEndian.PutUint16(frame[i:], uint16(int16(scaled)))
	}
	return frame, nil
}

func (v *Volume) IsEncoded() bool {
	return false
}

func (v *Volume) Close() error {
	return v.source.Close()
}

// Source returns the wrapped producer.
func (v *Volume) Source() Producer {
	return v.source
}
