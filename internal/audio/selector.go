package audio

import "fmt"

// Matches returns every device whose name, default sample rate and host API
// name equal the given values exactly and which can capture at least channels
// input channels, ordered by device index.
func (r *Registry) Matches(name string, sampleRate int, hostAPIName string, channels int) []Device {
	var out []Device
	for _, d := range r.Devices() {
		if d.MaxInputChannels < channels || d.MaxInputChannels == 0 {
			continue
		}
		if d.Name == name && d.DefaultSampleRate == sampleRate && d.HostAPI.Name == hostAPIName {
			out = append(out, d)
		}
	}
	return out
}

// Resolve selects the input device matching all three criteria. When several
// devices match, the one with the lowest index wins.
func (r *Registry) Resolve(name string, sampleRate int, hostAPIName string, channels int) (Device, error) {
	matches := r.Matches(name, sampleRate, hostAPIName, channels)
	if len(matches) == 0 {
		return Device{}, fmt.Errorf("%w: %q at %d Hz on %q with %d input channel(s)",
			ErrDeviceNotFound, name, sampleRate, hostAPIName, channels)
	}
	return matches[0], nil
}
