package host

import (
	"fmt"
	"strings"

	"github.com/bbernstein/mirusuite-bridge/internal/miru"
	"github.com/bbernstein/mirusuite-bridge/internal/services/autolearn"
	"github.com/bbernstein/mirusuite-bridge/internal/services/metadata"
)

func (i *Instance) videoDeviceChoices() []Choice {
	devices := i.catalog.VideoDevices()
	choices := make([]Choice, 0, len(devices))
	for _, d := range devices {
		choices = append(choices, Choice{ID: d.ID, Label: d.Name})
	}
	return choices
}

func (i *Instance) faceChoices() []Choice {
	faces := i.catalog.Faces()
	choices := make([]Choice, 0, len(faces))
	for _, f := range faces {
		choices = append(choices, Choice{ID: f.ID, Label: f.Name})
	}
	return choices
}

// deviceNames returns the names of the video devices a preset moves.
func (i *Instance) deviceNames(p miru.Preset) string {
	var names []string
	for _, id := range p.AffectedDeviceIDs() {
		d := i.catalog.DeviceByID(id)
		if d == nil || !d.IsVideoDevice() {
			continue
		}
		names = append(names, d.Name)
	}
	return strings.Join(names, ", ")
}

func (i *Instance) presetLabel(p miru.Preset) string {
	names := i.deviceNames(p)
	if names == "" {
		return p.Name
	}
	return fmt.Sprintf("%s (%s)", p.Name, names)
}

func (i *Instance) presetChoices() []Choice {
	presets := metadata.SortPresets(i.catalog.Presets())
	choices := make([]Choice, 0, len(presets))
	for _, p := range presets {
		choices = append(choices, Choice{ID: p.ID, Label: i.presetLabel(p)})
	}
	return choices
}

func deviceSelector(choices []Choice) OptionDefinition {
	opt := OptionDefinition{
		ID:      "deviceId",
		Type:    OptionDropdown,
		Label:   "Device",
		Choices: choices,
	}
	if len(choices) > 0 {
		opt.Default = choices[0].ID
	}
	return opt
}

func multiDeviceSelector(choices []Choice) OptionDefinition {
	return OptionDefinition{
		ID:      "deviceIds",
		Type:    OptionMultiDropdown,
		Label:   "Select devices",
		Choices: choices,
		Default: []any{},
	}
}

func faceSelector(choices []Choice) OptionDefinition {
	opt := OptionDefinition{
		ID:      "person",
		Type:    OptionDropdown,
		Label:   "Person",
		Choices: choices,
		Default: -1,
		Tooltip: "Only used in SINGLE mode",
	}
	if len(choices) > 0 {
		opt.Default = choices[0].ID
	}
	return opt
}

func presetSelector(choices []Choice) OptionDefinition {
	opt := OptionDefinition{
		ID:      "preset",
		Type:    OptionDropdown,
		Label:   "Preset",
		Choices: choices,
	}
	if len(choices) > 0 {
		opt.Default = choices[0].ID
	}
	return opt
}

func instrumentGroupSelector() OptionDefinition {
	choices := []Choice{{ID: autolearn.AllGroups, Label: autolearn.AllGroups}}
	for _, g := range metadata.Groups() {
		choices = append(choices, Choice{ID: g, Label: strings.ToUpper(g[:1]) + g[1:]})
	}
	return OptionDefinition{
		ID:      "instrumentGroups",
		Type:    OptionMultiDropdown,
		Label:   "Instrument groups",
		Choices: choices,
		Default: []any{autolearn.AllGroups},
	}
}

var shotSizeOption = OptionDefinition{
	ID:    "size",
	Type:  OptionDropdown,
	Label: "Size",
	Choices: []Choice{
		{ID: string(miru.ShotSizeCloseUp), Label: "Close"},
		{ID: string(miru.ShotSizeMedium), Label: "Medium"},
		{ID: string(miru.ShotSizeWide), Label: "Wide"},
	},
	Default: string(miru.ShotSizeWide),
}

var trackingModeOption = OptionDefinition{
	ID:    "mode",
	Type:  OptionDropdown,
	Label: "Mode",
	Choices: []Choice{
		{ID: string(miru.TrackingAll), Label: "ALL"},
		{ID: string(miru.TrackingManual), Label: "MANUAL"},
		{ID: string(miru.TrackingSingle), Label: "SINGLE"},
	},
	Default: string(miru.TrackingAll),
}
