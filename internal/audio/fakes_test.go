package audio

import (
	"errors"
	"sync"
	"time"
)

type fakeBackend struct {
	apis    []HostAPIInfo
	devices []DeviceInfo
}

func (b *fakeBackend) HostAPICount() int                 { return len(b.apis) }
func (b *fakeBackend) HostAPIInfo(index int) HostAPIInfo { return b.apis[index] }
func (b *fakeBackend) DeviceCount() int                  { return len(b.devices) }
func (b *fakeBackend) DeviceInfo(index int) DeviceInfo   { return b.devices[index] }

type fakeStream struct {
	mu         sync.Mutex
	buf        []int16
	fill       int16
	active     bool
	startErr   error
	stayIdle   bool // Start succeeds but the stream never becomes active
	readDelay  time.Duration
	reads      int
	stops      int
	closes     int
	stopErr    error
	closeErr   error
	readErr    error
	readActive bool // set while Read is in progress
}

func (s *fakeStream) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	if !s.stayIdle {
		s.active = true
	}
	return nil
}

func (s *fakeStream) Active() bool { return s.active }

func (s *fakeStream) Read() error {
	s.mu.Lock()
	s.readActive = true
	s.mu.Unlock()
	if s.readDelay > 0 {
		time.Sleep(s.readDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readActive = false
	if s.closes > 0 {
		return errors.New("read on closed stream")
	}
	s.reads++
	for i := range s.buf {
		s.buf[i] = s.fill
	}
	return s.readErr
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.active = false
	return s.stopErr
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readActive {
		panic("stream closed during read")
	}
	s.closes++
	return s.closeErr
}

type fakeOpener struct {
	stream   *fakeStream
	err      error
	opened   int
	channels int
	frames   int
}

func (o *fakeOpener) OpenInput(device Device, channels, framesPerBuffer int, buf []int16) (Stream, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.opened++
	o.channels = channels
	o.frames = framesPerBuffer
	if o.stream == nil {
		o.stream = &fakeStream{}
	}
	o.stream.buf = buf
	return o.stream, nil
}

func headsetRegistry() *Registry {
	wasapi := HostAPI{Index: 0, Name: "Windows WASAPI", DeviceCount: 2}
	mme := HostAPI{Index: 1, Name: "MME", DeviceCount: 1}
	r, err := NewRegistry([]HostAPI{wasapi, mme}, []Device{
		{Index: 0, Name: "Headset Mic", HostAPI: &wasapi, DefaultSampleRate: 48000, MaxInputChannels: 2},
		{Index: 1, Name: "Line In", HostAPI: &wasapi, DefaultSampleRate: 44100, MaxInputChannels: 2},
		{Index: 2, Name: "Headset Mic", HostAPI: &mme, DefaultSampleRate: 44100, MaxInputChannels: 1},
	})
	if err != nil {
		panic(err)
	}
	return r
}
