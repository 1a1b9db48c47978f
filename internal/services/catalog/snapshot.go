package catalog

import (
	"time"

	"github.com/bbernstein/mirusuite-bridge/internal/miru"
)

// Snapshot is an immutable view of the server catalog. A new snapshot is
// built on every refresh; readers never see a partially updated one.
type Snapshot struct {
	Devices       []miru.Device
	Faces         []miru.Face
	Presets       []miru.Preset
	ActivePresets map[int]miru.ActivePreset
	LiveInputs    []string
	AutoCut       bool
	LoadedAt      time.Time

	deviceIndex   map[int]int
	presetIndex   map[int]int
	deviceInputs  map[int]string
	liveInputSet  map[string]bool
	activePresets map[int]bool
}

func newSnapshot(s Snapshot) *Snapshot {
	if s.ActivePresets == nil {
		s.ActivePresets = map[int]miru.ActivePreset{}
	}
	s.deviceIndex = make(map[int]int, len(s.Devices))
	s.deviceInputs = make(map[int]string, len(s.Devices))
	for i := range s.Devices {
		d := &s.Devices[i]
		s.deviceIndex[d.ID] = i
		if input := d.SwitcherInput(); input != "" {
			s.deviceInputs[d.ID] = input
		}
	}
	s.presetIndex = make(map[int]int, len(s.Presets))
	for i, p := range s.Presets {
		s.presetIndex[p.ID] = i
	}
	s.liveInputSet = make(map[string]bool, len(s.LiveInputs))
	for _, in := range s.LiveInputs {
		s.liveInputSet[in] = true
	}
	s.activePresets = make(map[int]bool, len(s.ActivePresets))
	for _, ap := range s.ActivePresets {
		s.activePresets[ap.PresetID] = true
	}
	return &s
}

func (s *Snapshot) device(id int) *miru.Device {
	if i, ok := s.deviceIndex[id]; ok {
		return &s.Devices[i]
	}
	return nil
}

func (s *Snapshot) preset(id int) *miru.Preset {
	if i, ok := s.presetIndex[id]; ok {
		return &s.Presets[i]
	}
	return nil
}

func (s *Snapshot) deviceLive(id int) bool {
	input, ok := s.deviceInputs[id]
	return ok && s.liveInputSet[input]
}
