package audio

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// HostAPI is a named audio backend exposing one or more devices
type HostAPI struct {
	Index       int
	Name        string
	DeviceCount int
}

// Device is an addressable audio endpoint belonging to one HostAPI.
type Device struct {
	Index             int
	Name              string
	HostAPI           *HostAPI
	DefaultSampleRate int
	MaxInputChannels  int
}

// Registry holds the host APIs and devices enumerated at startup.
// It is immutable once built.
type Registry struct {
	apis    map[int]*HostAPI
	devices map[int]Device
}

// Enumerate walks every host API and device slot of the backend and builds a
// Registry. Slots with missing values are skipped; only a device that points
// at a host API index which was never populated fails the enumeration.
func Enumerate(backend Backend, log zerolog.Logger) (*Registry, error) {
	r := &Registry{
		apis:    make(map[int]*HostAPI),
		devices: make(map[int]Device),
	}

	for i := 0; i < backend.HostAPICount(); i++ {
		info := backend.HostAPIInfo(i)
		if info.Name == "" || info.DeviceCount <= 0 {
			continue
		}
		r.apis[i] = &HostAPI{
			Index:       i,
			Name:        info.Name,
			DeviceCount: info.DeviceCount,
		}
	}
	log.Info().Int("count", len(r.apis)).Msg("Enumerated host audio APIs")

	for i := 0; i < backend.DeviceCount(); i++ {
		info := backend.DeviceInfo(i)
		if info.Name == "" || info.DefaultSampleRate <= 0 || info.HostAPI < 0 {
			continue
		}
		api, ok := r.apis[info.HostAPI]
		if !ok {
			return nil, fmt.Errorf("%w: device %d (%q) references unknown host API %d",
				ErrRegistryCorrupt, i, info.Name, info.HostAPI)
		}
		r.devices[i] = Device{
			Index:             i,
			Name:              info.Name,
			HostAPI:           api,
			DefaultSampleRate: int(info.DefaultSampleRate),
			MaxInputChannels:  info.MaxInputChannels,
		}
	}
	log.Info().Int("count", len(r.devices)).Msg("Enumerated host audio devices")

	return r, nil
}

// NewRegistry builds a Registry from already-resolved tables.
// Devices whose HostAPI is not one of apis are rejected with ErrRegistryCorrupt.
func NewRegistry(apis []HostAPI, devices []Device) (*Registry, error) {
	r := &Registry{
		apis:    make(map[int]*HostAPI, len(apis)),
		devices: make(map[int]Device, len(devices)),
	}
	for _, a := range apis {
		a := a
		r.apis[a.Index] = &a
	}
	for _, d := range devices {
		if d.HostAPI == nil {
			return nil, fmt.Errorf("%w: device %d has no host API", ErrRegistryCorrupt, d.Index)
		}
		api, ok := r.apis[d.HostAPI.Index]
		if !ok {
			return nil, fmt.Errorf("%w: device %d references unknown host API %d",
				ErrRegistryCorrupt, d.Index, d.HostAPI.Index)
		}
		d.HostAPI = api
		r.devices[d.Index] = d
	}
	return r, nil
}

// HostAPI looks up a host API by index.
func (r *Registry) HostAPI(index int) (HostAPI, bool) {
	a, ok := r.apis[index]
	if !ok {
		return HostAPI{}, false
	}
	return *a, true
}

// Device looks up a device by index.
func (r *Registry) Device(index int) (Device, bool) {
	d, ok := r.devices[index]
	return d, ok
}

// HostAPIs returns all host APIs ordered by index.
func (r *Registry) HostAPIs() []HostAPI {
	out := make([]HostAPI, 0, len(r.apis))
	for _, a := range r.apis {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Devices returns all devices ordered by index.
func (r *Registry) Devices() []Device {
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// APIGroup is a host API with its devices sorted by name.
type APIGroup struct {
	API     HostAPI
	Devices []Device
}

// Grouped returns every host API (by index) together with its devices sorted
// by name. APIs without devices are included with an empty list.
func (r *Registry) Grouped() []APIGroup {
	apis := r.HostAPIs()
	groups := make([]APIGroup, len(apis))
	pos := make(map[int]int, len(apis))
	for i, a := range apis {
		groups[i] = APIGroup{API: a}
		pos[a.Index] = i
	}
	for _, d := range r.Devices() {
		i := pos[d.HostAPI.Index]
		groups[i].Devices = append(groups[i].Devices, d)
	}
	for i := range groups {
		sort.SliceStable(groups[i].Devices, func(a, b int) bool {
			return groups[i].Devices[a].Name < groups[i].Devices[b].Name
		})
	}
	return groups
}
