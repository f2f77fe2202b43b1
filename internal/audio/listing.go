package audio

import (
	"fmt"
	"io"
)

// WriteDeviceTable prints every host API and its devices, sorted by name,
// in the form used for filling in audio.host_api_name and
// audio.input_device_name.
func WriteDeviceTable(w io.Writer, r *Registry) error {
	for _, g := range r.Grouped() {
		if _, err := fmt.Fprintf(w, "API: %q (id: %d, %d devices)\n", g.API.Name, g.API.Index, g.API.DeviceCount); err != nil {
			return err
		}
		for _, d := range g.Devices {
			if _, err := fmt.Fprintf(w, "  %q (id: %d, sample rate: %d, inputs: %d)\n",
				d.Name, d.Index, d.DefaultSampleRate, d.MaxInputChannels); err != nil {
				return err
			}
		}
	}
	return nil
}
