package audio

import "errors"

var (
	// ErrRegistryCorrupt is returned by Enumerate when a device references a
	// host API that was never populated.
	ErrRegistryCorrupt = errors.New("audio registry corrupt")
	// ErrDeviceNotFound is returned when no device matches the selection criteria.
	ErrDeviceNotFound = errors.New("no such audio device")
	// ErrStreamOpen is returned when a device could not be opened or started.
	ErrStreamOpen = errors.New("failed to open input stream")
)

// FrameDuration is the length of one PCM frame in milliseconds.
const FrameDuration = 20

// bytesPerSample is the width of one signed 16-bit sample.
const bytesPerSample = 2

// HostAPIInfo is one host API slot as reported by a Backend.
// An empty Name or a zero DeviceCount means the value was absent.
type HostAPIInfo struct {
	Name        string
	DeviceCount int
}

// DeviceInfo is one device slot as reported by a Backend.
// An empty Name, a zero DefaultSampleRate or a negative HostAPI means the
// value was absent.
type DeviceInfo struct {
	Name              string
	HostAPI           int
	DefaultSampleRate float64
	MaxInputChannels  int
}

// Backend enumerates the host audio subsystem
type Backend interface {
	HostAPICount() int
	HostAPIInfo(index int) HostAPIInfo
	DeviceCount() int
	DeviceInfo(index int) DeviceInfo
}

// Stream is a native blocking input stream bound to the sample buffer it was
// opened with.
type Stream interface {
	Start() error
	Active() bool
	// Read blocks until the bound buffer holds one full buffer of frames.
	Read() error
	Stop() error
	Close() error
}

// StreamOpener acquires input streams on devices.
type StreamOpener interface {
	OpenInput(device Device, channels, framesPerBuffer int, buf []int16) (Stream, error)
}

// Format describes the PCM produced by a capture session: signed 16-bit
// little-endian interleaved samples.
type Format struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// FrameBytes returns the byte length of one frame buffer.
func (f Format) FrameBytes() int {
	return f.FramesPerBuffer * f.Channels * bytesPerSample
}

// FramesPerBuffer returns the number of frames in 20ms of audio at sampleRate,
// rounded down.
func FramesPerBuffer(sampleRate int) int {
	return sampleRate * FrameDuration / 1000
}
