package audio

import (
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudio exposes the host's PortAudio APIs and devices as a Backend and
// opens blocking int16 input streams on them.
type PortAudio struct {
	apis    []*portaudio.HostApiInfo
	devices []*portaudio.DeviceInfo
}

// NewPortAudio initializes PortAudio and snapshots its API and device tables.
// Close must be called to terminate PortAudio.
func NewPortAudio() (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	apis, err := portaudio.HostApis()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to list host APIs: %w", err)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	return &PortAudio{apis: apis, devices: devices}, nil
}

func (p *PortAudio) HostAPICount() int {
	return len(p.apis)
}

func (p *PortAudio) HostAPIInfo(index int) HostAPIInfo {
	api := p.apis[index]
	return HostAPIInfo{
		Name:        api.Name,
		DeviceCount: len(api.Devices),
	}
}

func (p *PortAudio) DeviceCount() int {
	return len(p.devices)
}

func (p *PortAudio) DeviceInfo(index int) DeviceInfo {
	d := p.devices[index]
	return DeviceInfo{
		Name:              d.Name,
		HostAPI:           p.hostAPIIndex(d),
		DefaultSampleRate: d.DefaultSampleRate,
		MaxInputChannels:  d.MaxInputChannels,
	}
}

// hostAPIIndex finds the slot of the device's host API. Devices and APIs come
// from separate PortAudio queries, so APIs are matched by type.
func (p *PortAudio) hostAPIIndex(d *portaudio.DeviceInfo) int {
	if d.HostApi == nil {
		return -1
	}
	for i, api := range p.apis {
		if api.Type == d.HostApi.Type {
			return i
		}
	}
	return -1
}

// OpenInput opens an input-only stream on device. The returned stream is not
// started.
func (p *PortAudio) OpenInput(device Device, channels, framesPerBuffer int, buf []int16) (Stream, error) {
	if device.Index < 0 || device.Index >= len(p.devices) {
		return nil, fmt.Errorf("invalid device index: %d", device.Index)
	}
	info := p.devices[device.Index]

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(device.DefaultSampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, buf)
	if err != nil {
		return nil, err
	}

	return &portAudioStream{stream: stream}, nil
}

// Close terminates PortAudio.
func (p *PortAudio) Close() error {
	return portaudio.Terminate()
}

type portAudioStream struct {
	stream *portaudio.Stream
	active bool
}

func (s *portAudioStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return err
	}
	s.active = true
	return nil
}

func (s *portAudioStream) Active() bool {
	return s.active
}

func (s *portAudioStream) Read() error {
	err := s.stream.Read()
	// An overflow still delivers a full buffer; the dropped input is gone either way.
	if errors.Is(err, portaudio.InputOverflowed) {
		return nil
	}
	return err
}

func (s *portAudioStream) Stop() error {
	if !s.active {
		return nil
	}
	s.active = false
	err := s.stream.Stop()
	if errors.Is(err, portaudio.StreamIsStopped) {
		return nil
	}
	return err
}

func (s *portAudioStream) Close() error {
	return s.stream.Close()
}
