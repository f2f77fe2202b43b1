package audio

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestPortAudioEnumerate(t *testing.T) {
	pa, err := NewPortAudio()
	if err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	defer pa.Close()

	reg, err := Enumerate(pa, zerolog.Nop())
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}

	for _, d := range reg.Devices() {
		if d.HostAPI == nil {
			t.Errorf("device %d has no host API", d.Index)
			continue
		}
		t.Logf("Device %d: %q (API = %s, rate = %d, inputs = %d)",
			d.Index, d.Name, d.HostAPI.Name, d.DefaultSampleRate, d.MaxInputChannels)
	}
}

func TestPortAudioOpenInvalidDevice(t *testing.T) {
	pa, err := NewPortAudio()
	if err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	defer pa.Close()

	_, err = pa.OpenInput(Device{Index: pa.DeviceCount() + 10, DefaultSampleRate: 48000}, 1, 960, make([]int16, 960))
	if err == nil {
		t.Error("expected error for out-of-range device index")
	}
}
