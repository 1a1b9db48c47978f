package host

import (
	"fmt"
	"strconv"

	"github.com/bbernstein/mirusuite-bridge/internal/miru"
	"github.com/bbernstein/mirusuite-bridge/internal/services/metadata"
)

// Preset categories.
const (
	CategoryGeneral        = "General"
	CategoryPersonTracking = "Person Tracking"
	CategoryPresets        = "Presets"
	CategoryAutoPresets    = "Auto Presets"
	CategoryAutoCut        = "AutoCut"
)

// holdMs is the long press duration of overwrite steps.
const holdMs = 1000

func button(id, category, name, text string, bg int) ButtonPreset {
	style := Colors(bg, white).WithText(text)
	style.Size = "auto"
	return ButtonPreset{
		ID:        id,
		Type:      "button",
		Category:  category,
		Name:      name,
		Style:     style,
		Feedbacks: []PresetFeedback{},
	}
}

func onDown(actionID string, options map[string]any) []PresetStep {
	return []PresetStep{{Down: []PresetAction{{ActionID: actionID, Options: options}}, Up: []PresetAction{}}}
}

func onUp(actionID string, options map[string]any) PresetStep {
	return PresetStep{Down: []PresetAction{}, Up: []PresetAction{{ActionID: actionID, Options: options}}}
}

func withHold(step PresetStep, actionID string, options map[string]any) []PresetStep {
	step.Hold = []PresetAction{{ActionID: actionID, Options: options}}
	step.HoldMs = holdMs
	return []PresetStep{step}
}

func styled(s Style) *Style {
	return &s
}

// buttonPresets builds the ready-made buttons for the current catalog.
func (i *Instance) buttonPresets() []ButtonPreset {
	devices := i.videoDeviceChoices()
	faces := i.faceChoices()
	if len(devices) == 0 {
		devices = []Choice{{ID: 0, Label: "Dummy device"}}
	}

	var out []ButtonPreset
	for _, choice := range devices {
		id, _ := choice.ID.(int)
		out = append(out, i.devicePresets(id, choice.Label, faces)...)
	}

	presets := metadata.SortPresets(i.catalog.Presets())
	for _, p := range presets {
		out = append(out, i.playPresetButton(p))
	}
	i.Log("debug", "Updating presets with %d devices and %d presets", len(devices), len(presets))

	return append(out, autoPresetButtons()...)
}

func (i *Instance) devicePresets(deviceID int, deviceName string, faces []Choice) []ButtonPreset {
	var out []ButtonPreset
	opts := func(kv ...any) map[string]any {
		m := map[string]any{"deviceId": deviceID}
		for n := 0; n+1 < len(kv); n += 2 {
			m[kv[n].(string)] = kv[n+1]
		}
		return m
	}
	suffix := "\n (" + deviceName + ")"

	device := i.catalog.DeviceByID(deviceID)
	var components miru.DeviceComponents
	if device != nil {
		components = device.Components
	}

	if components.AutoMoveDirector != nil || components.HeadTrackingDirector != nil {
		b := button(fmt.Sprintf("toggledDirector-%d", deviceID), CategoryGeneral, "⏻ Director"+suffix, "⏻ Director"+suffix, black)
		b.Steps = onDown(ActionToggleDirector, opts())
		b.Feedbacks = []PresetFeedback{{FeedbackID: FeedbackDirectorStatus, Options: opts()}}
		out = append(out, b)

		for _, enable := range []bool{true, false} {
			label, prefix := "Enable Director", "enableDirector"
			if !enable {
				label, prefix = "Disable Director", "disableDirector"
			}
			b := button(fmt.Sprintf("%s-%d", prefix, deviceID), CategoryGeneral, label+suffix, label+suffix, black)
			b.Steps = onDown(ActionSetDirector, opts("enabled", strconv.FormatBool(enable)))
			b.Feedbacks = []PresetFeedback{{
				FeedbackID: FeedbackEnabledDirector,
				Options:    opts(),
				Style:      styled(Colors(green, black)),
				IsInverted: !enable,
			}}
			out = append(out, b)
		}
	}

	if components.AutoMoveDirector != nil {
		for _, t := range []string{moveRandom, movePreset} {
			label := "Preset Move\n"
			if t == moveRandom {
				label = "Random Move\n"
			}
			text := label + "(" + deviceName + ")"
			b := button(fmt.Sprintf("movement-%s-%d", t, deviceID), CategoryGeneral, text, text, black)
			b.Steps = onDown(ActionTriggerMovement, opts("type", t))
			out = append(out, b)
		}
		b := button(fmt.Sprintf("stop-%d", deviceID), CategoryGeneral, "Stop Move"+suffix, "Stop Move"+suffix, black)
		b.Steps = onDown(ActionStopAutoMove, opts())
		out = append(out, b)
	}

	if components.HeadTrackingDirector != nil {
		b := button(fmt.Sprintf("exitSteadyMode%d", deviceID), CategoryPersonTracking, "Exit Steady"+suffix, "Exit Steady"+suffix, black)
		b.Steps = onDown(ActionExitSteadyMode, opts())
		out = append(out, b)

		for _, size := range []struct {
			value miru.ShotSize
			label string
		}{
			{miru.ShotSizeWide, "Wide"},
			{miru.ShotSizeMedium, "Medium"},
			{miru.ShotSizeCloseUp, "Close"},
		} {
			text := size.label + " (" + deviceName + ")"
			b := button(fmt.Sprintf("shotSize-%s-%d", size.value, deviceID), CategoryPersonTracking, text, text, black)
			b.Steps = onDown(ActionSetShotSize, opts("size", string(size.value)))
			b.Feedbacks = []PresetFeedback{{
				FeedbackID: FeedbackShotSize,
				Options:    opts("size", string(size.value)),
				Style:      styled(Background(red)),
			}}
			out = append(out, b)
		}

		var person any = -1
		if len(faces) > 0 {
			person = faces[0].ID
		}
		modes := []miru.TrackingMode{miru.TrackingAll, miru.TrackingManual}
		if len(faces) > 0 {
			modes = append(modes, miru.TrackingSingle)
		}
		for _, mode := range modes {
			text := string(mode) + suffix
			b := button(fmt.Sprintf("trackingMode%s-%d", mode, deviceID), CategoryPersonTracking, text, text, black)
			b.Steps = onDown(ActionSetTrackingMode, opts("mode", string(mode), "person", person))
			b.Feedbacks = []PresetFeedback{{
				FeedbackID: FeedbackTrackingMode,
				Options:    opts("mode", string(mode), "person", person),
			}}
			out = append(out, b)
		}

		b = button(fmt.Sprintf("learnTargetFace-%d", deviceID), CategoryPersonTracking, "Learn Target Face"+suffix, "Learn Target Face"+suffix, black)
		b.Steps = onDown(ActionLearnTargetFace, opts())
		out = append(out, b)
	}

	home := "Return\nHome" + suffix
	b := button(fmt.Sprintf("returnToHome%d", deviceID), CategoryGeneral, home, home, black)
	b.Steps = onDown(ActionReturnToHome, opts())
	out = append(out, b)

	b = button(fmt.Sprintf("reapplyPreset-%d", deviceID), CategoryPresets, "Play active preset\n"+deviceName, "Play active preset"+suffix, black)
	b.Steps = []PresetStep{onUp(ActionPlayActivePreset, opts())}
	out = append(out, b)

	return out
}

func (i *Instance) playPresetButton(p miru.Preset) ButtonPreset {
	label := i.presetLabel(p)
	opts := map[string]any{"preset": p.ID}
	b := button(fmt.Sprintf("playPreset-%d", p.ID), CategoryPresets, label, label, black)
	b.Steps = withHold(onUp(ActionPlayPreset, opts), ActionOverwritePreset, opts)
	b.Feedbacks = []PresetFeedback{{FeedbackID: FeedbackActivePreset, Options: opts, Style: styled(Background(red))}}
	return b
}

func autoPresetButtons() []ButtonPreset {
	learn := button("learnAutoButtons", CategoryAutoPresets, "Learn Presets", "Learn Presets", CombineRGB(0, 0, 255))
	learn.Steps = onDown(ActionLearnAutoButtons, map[string]any{})
	learn.Feedbacks = []PresetFeedback{{FeedbackID: FeedbackLearnMode, Options: map[string]any{}, Style: styled(Background(red))}}

	slot := button("autoPreset", CategoryAutoPresets, "Auto Preset Slot", "Auto Preset Slot", black)
	slot.Steps = withHold(onUp(ActionPlayAutoPreset, map[string]any{}), ActionOverwriteAutoPreset, map[string]any{})
	slot.Feedbacks = []PresetFeedback{{FeedbackID: FeedbackAutoPreset, Options: map[string]any{}, Style: styled(Background(red))}}

	unlearn := button("clearAllAutoButtons", CategoryAutoPresets, "Unlearn Presets", "Unlearn Presets", red)
	unlearn.Steps = onDown(ActionClearAllAutoButtons, map[string]any{})

	autoCut := button("toggleAutoCut", CategoryAutoCut, "Toggle AutoCut", "⏻ AutoCut", black)
	autoCut.Steps = onDown(ActionToggleAutoCut, map[string]any{})
	autoCut.Feedbacks = []PresetFeedback{{FeedbackID: FeedbackAutoCut, Options: map[string]any{}, Style: styled(Background(red))}}

	return []ButtonPreset{learn, slot, unlearn, autoCut}
}
