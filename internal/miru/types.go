package miru

import (
	"sort"
	"strings"
)

// ComponentState is the run state reported for a device component.
type ComponentState string

const (
	StateRunning ComponentState = "RUNNING"
	StateWarn    ComponentState = "WARN"
	StateError   ComponentState = "ERROR"
	StateOff     ComponentState = "OFF"
)

// ShotSize is the framing target of a head tracking director.
type ShotSize string

const (
	ShotSizeWide    ShotSize = "WIDE"
	ShotSizeMedium  ShotSize = "MEDIUM"
	ShotSizeCloseUp ShotSize = "CLOSE_UP"
)

// TrackingMode selects which persons a person tracker follows.
type TrackingMode string

const (
	TrackingAll    TrackingMode = "ALL"
	TrackingManual TrackingMode = "MANUAL"
	TrackingSingle TrackingMode = "SINGLE"
)

// Component feedback keys.
const (
	ComponentHeadTrackingDirector = "DIRECTOR_HEAD_TRACKING"
	ComponentAutoMoveDirector     = "DIRECTOR_AUTO_MOVE"
)

// ComponentFeedback is the live state of one component.
type ComponentFeedback struct {
	State ComponentState `json:"state"`
}

// ComponentSettings holds the settings object of a component. It is kept as a
// loose map so that patches send back every field the server returned.
type ComponentSettings map[string]any

// String returns a string field or "".
func (s ComponentSettings) String(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// Int returns a numeric field. JSON numbers decode as float64.
func (s ComponentSettings) Int(key string) (int, bool) {
	switch v := s[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// With returns a copy of the settings with key set to value.
func (s ComponentSettings) With(key string, value any) ComponentSettings {
	out := make(ComponentSettings, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[key] = value
	return out
}

// DeviceComponents are the installed components of a device. Nil means not installed.
type DeviceComponents struct {
	HeadTrackingDirector ComponentSettings `json:"headTrackingDirector,omitempty"`
	AutoMoveDirector     ComponentSettings `json:"autoMoveDirector,omitempty"`
	PersonTracker        ComponentSettings `json:"personTracker,omitempty"`
	Controller           ComponentSettings `json:"controller,omitempty"`
	VideoInput           ComponentSettings `json:"videoInput,omitempty"`
}

// Device is a camera (or other device) configured on the server.
type Device struct {
	ID         int                          `json:"id"`
	Name       string                       `json:"name"`
	Components DeviceComponents             `json:"components"`
	Feedback   map[string]ComponentFeedback `json:"feedback,omitempty"`
}

// IsVideoDevice reports whether the device has a video input attached.
func (d *Device) IsVideoDevice() bool {
	return d != nil && d.Components.VideoInput != nil
}

// SwitcherInput returns the switcher input the device's video is routed to.
func (d *Device) SwitcherInput() string {
	if d == nil {
		return ""
	}
	return d.Components.VideoInput.String("switcherInput")
}

// ComponentOfType returns the first feedback component id starting with
// prefix, in sorted order, or "".
func (d *Device) ComponentOfType(prefix string) string {
	if d == nil {
		return ""
	}
	keys := make([]string, 0, len(d.Feedback))
	for k := range d.Feedback {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}

// ComponentState returns the state of a component, StateOff when unknown.
func (d *Device) ComponentState(component string) ComponentState {
	if d == nil {
		return StateOff
	}
	if fb, ok := d.Feedback[component]; ok && fb.State != "" {
		return fb.State
	}
	return StateOff
}

// PresetCommand is one device move contained in a preset.
type PresetCommand struct {
	DeviceID *int `json:"deviceId,omitempty"`
}

// Preset is a stored camera position set from the active project.
type Preset struct {
	ID            int               `json:"id"`
	Name          string            `json:"name"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Commands      []PresetCommand   `json:"commands,omitempty"`
	PreviewBase64 string            `json:"previewBase64,omitempty"`
}

// Instrument returns the instrument metadata value.
func (p Preset) Instrument() string { return p.Metadata["instrument"] }

// ShotSize returns the shot size metadata value (wide, medium, close).
func (p Preset) ShotSize() string { return p.Metadata["shotSize"] }

// Scene returns the scene metadata value.
func (p Preset) Scene() string { return p.Metadata["scene"] }

// AffectedDeviceIDs returns the ids of every device the preset moves.
func (p Preset) AffectedDeviceIDs() []int {
	ids := make([]int, 0, len(p.Commands))
	for _, cmd := range p.Commands {
		if cmd.DeviceID != nil {
			ids = append(ids, *cmd.DeviceID)
		}
	}
	return ids
}

// Project is the active project as returned by the server.
type Project struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Presets []Preset `json:"presets"`
}

// ActivePreset is the preset currently applied to a device.
type ActivePreset struct {
	PresetID int `json:"presetId"`
}

// Face is a persistent face identity known to the server.
type Face struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SwitcherStatus is the state of the connected video switcher.
type SwitcherStatus struct {
	ConnectionStatus string   `json:"connectionStatus"`
	Programs         []string `json:"programs"`
}

// AutoCutStatus reports whether AutoCut is running.
type AutoCutStatus struct {
	Running bool `json:"running"`
}
