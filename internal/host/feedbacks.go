package host

import (
	"context"
	"fmt"
	"log"

	"github.com/bbernstein/mirusuite-bridge/internal/miru"
	"github.com/bbernstein/mirusuite-bridge/internal/services/autolearn"
	"github.com/bbernstein/mirusuite-bridge/internal/services/metadata"
)

// Feedback ids.
const (
	FeedbackEnabledDirector = "enabledDirector"
	FeedbackDirectorStatus  = "directorStatus"
	FeedbackTrackingMode    = "trackingMode"
	FeedbackShotSize        = "shotSize"
	FeedbackActivePreset    = "activePreset"
	FeedbackLearnMode       = "learnMode"
	FeedbackAutoPreset      = "autoPreset"
	FeedbackLiveDevice      = "liveDevice"
	FeedbackLiveInput       = "liveInput"
	FeedbackAutoCut         = "autoCut"
)

var allFeedbacks = []string{
	FeedbackAutoPreset,
	FeedbackLearnMode,
	FeedbackEnabledDirector,
	FeedbackDirectorStatus,
	FeedbackTrackingMode,
	FeedbackShotSize,
	FeedbackActivePreset,
	FeedbackLiveDevice,
	FeedbackLiveInput,
	FeedbackAutoCut,
}

var (
	black     = CombineRGB(0, 0, 0)
	white     = CombineRGB(255, 255, 255)
	red       = CombineRGB(255, 0, 0)
	green     = CombineRGB(0, 255, 0)
	yellow    = CombineRGB(255, 255, 0)
	darkRed   = CombineRGB(100, 0, 0)
	learnBlue = CombineRGB(1, 43, 252)
	idleGreen = CombineRGB(0, 40, 0)
	warnGold  = CombineRGB(230, 215, 0)
)

func (i *Instance) feedbackDefinitions() []FeedbackDefinition {
	devices := i.videoDeviceChoices()
	faces := i.faceChoices()
	presets := i.presetChoices()

	redWhite := Colors(red, white)
	redBlack := Colors(red, black)
	greenBlack := Colors(green, black)

	return []FeedbackDefinition{
		{
			ID:           FeedbackEnabledDirector,
			Name:         "Director Enabled",
			Type:         FeedbackBoolean,
			Description:  "Is active when the device's director component is enabled." + needsVideoInput,
			DefaultStyle: &greenBlack,
			Options:      []OptionDefinition{deviceSelector(devices)},
			Callback:     i.enabledDirector,
		},
		{
			ID:          FeedbackDirectorStatus,
			Name:        "Director Status",
			Type:        FeedbackAdvanced,
			Description: "Turns green when the director is running and yellow when in warning or error state." + needsVideoInput,
			Options:     []OptionDefinition{deviceSelector(devices)},
			Callback:    i.directorStatus,
		},
		{
			ID:          FeedbackTrackingMode,
			Name:        "Tracking Mode",
			Type:        FeedbackAdvanced,
			Description: "Get the tracking mode for a device. The person option is only used in SINGLE mode." + needsVideoInput,
			Options:     []OptionDefinition{trackingModeOption, faceSelector(faces), deviceSelector(devices)},
			Callback:    i.trackingMode,
		},
		{
			ID:           FeedbackShotSize,
			Name:         "Shot Size",
			Type:         FeedbackBoolean,
			Description:  "Check if the shot size is set to a specific value." + needsVideoInput,
			DefaultStyle: &redBlack,
			Options:      []OptionDefinition{shotSizeOption, deviceSelector(devices)},
			Callback:     i.shotSize,
		},
		{
			ID:           FeedbackActivePreset,
			Name:         "Is Preset Active",
			Type:         FeedbackBoolean,
			Description:  "Check if a specific preset is active." + needsVideoInput,
			DefaultStyle: &redWhite,
			Options:      []OptionDefinition{presetSelector(presets)},
			Callback:     i.activePreset,
		},
		{
			ID:       FeedbackLearnMode,
			Name:     "Learn Mode",
			Type:     FeedbackAdvanced,
			Options:  []OptionDefinition{},
			Callback: i.learnMode,
		},
		{
			ID:       FeedbackAutoPreset,
			Name:     "Auto Preset",
			Type:     FeedbackAdvanced,
			Options:  []OptionDefinition{},
			Callback: i.autoPreset,
		},
		{
			ID:           FeedbackLiveDevice,
			Name:         "Live Device",
			Type:         FeedbackBoolean,
			Description:  "Check if a specific device is live." + needsVideoInput,
			DefaultStyle: &redWhite,
			Options:      []OptionDefinition{deviceSelector(devices)},
			Callback:     i.liveDevice,
		},
		{
			ID:           FeedbackLiveInput,
			Name:         "Live Input",
			Type:         FeedbackBoolean,
			Description:  "Check if a specific input is live.",
			DefaultStyle: &redWhite,
			Options:      []OptionDefinition{{ID: "input", Type: OptionTextInput, Label: "Input", Default: "1"}},
			Callback:     i.liveInput,
		},
		{
			ID:           FeedbackAutoCut,
			Name:         "Auto Cut Active",
			Type:         FeedbackBoolean,
			Description:  "Check if AutoCut is running.",
			DefaultStyle: &redWhite,
			Options:      []OptionDefinition{},
			Callback:     i.autoCut,
		},
	}
}

// optionDevice returns the device selected in a feedback, nil when unknown.
func (i *Instance) optionDevice(o Options) *miru.Device {
	id, ok := o.Int("deviceId")
	if !ok {
		return nil
	}
	return i.catalog.DeviceByID(id)
}

func (i *Instance) enabledDirector(_ context.Context, ev FeedbackEvent) (FeedbackResult, error) {
	d := i.optionDevice(ev.Options)
	running := d.ComponentState(miru.ComponentHeadTrackingDirector) == miru.StateRunning ||
		d.ComponentState(miru.ComponentAutoMoveDirector) == miru.StateRunning
	return BoolResult(running), nil
}

func (i *Instance) directorStatus(_ context.Context, ev FeedbackEvent) (FeedbackResult, error) {
	d := i.optionDevice(ev.Options)
	state := miru.StateOff
	if d != nil {
		if fb, ok := d.Feedback[miru.ComponentHeadTrackingDirector]; ok {
			state = fb.State
		}
		// auto move wins when both are installed
		if fb, ok := d.Feedback[miru.ComponentAutoMoveDirector]; ok {
			state = fb.State
		}
	}
	switch state {
	case miru.StateRunning:
		return StyleResult(Colors(green, black)), nil
	case miru.StateWarn, miru.StateError:
		return StyleResult(Colors(yellow, black)), nil
	}
	return StyleResult(Colors(black, white)), nil
}

func (i *Instance) trackingMode(ctx context.Context, ev FeedbackEvent) (FeedbackResult, error) {
	wanted, err := parseTrackingMode(ev.Options)
	if err != nil {
		return FeedbackResult{}, err
	}
	var mode miru.TrackingMode
	person := -1
	if d := i.optionDevice(ev.Options); d != nil && d.Components.PersonTracker != nil {
		mode = miru.TrackingMode(d.Components.PersonTracker.String("trackingMode"))
		if id, ok := d.Components.PersonTracker.Int("targetFaceId"); ok {
			person = id
		}
	}

	if wanted != miru.TrackingSingle {
		if mode == wanted {
			return StyleResult(Background(red)), nil
		}
		return StyleResult(Background(black)), nil
	}

	wantedPerson, ok := ev.Options.Int("person")
	if !ok {
		wantedPerson = -1
	}
	w, h := ev.imageSize()
	png64, err := i.previews.FaceThumbnail(ctx, wantedPerson, w, h)
	if err != nil {
		log.Printf("Warning: no preview for face %d: %v", wantedPerson, err)
	}
	if mode == wanted && person == wantedPerson {
		return StyleResult(Colors(red, black).WithImage(png64)), nil
	}
	return StyleResult(Style{PNG64: png64}), nil
}

func (i *Instance) shotSize(_ context.Context, ev FeedbackEvent) (FeedbackResult, error) {
	d := i.optionDevice(ev.Options)
	if d == nil || d.Components.HeadTrackingDirector == nil {
		return BoolResult(false), nil
	}
	size := d.Components.HeadTrackingDirector.String("targetShotSize")
	return BoolResult(size != "" && size == ev.Options.String("size")), nil
}

func (i *Instance) activePreset(_ context.Context, ev FeedbackEvent) (FeedbackResult, error) {
	id, ok := ev.Options.Int("preset")
	return BoolResult(ok && i.catalog.IsPresetActive(id)), nil
}

func (i *Instance) learnMode(ctx context.Context, ev FeedbackEvent) (FeedbackResult, error) {
	bank, err := i.bindings.GetBank(ctx, ev.ControlID)
	if err != nil {
		return FeedbackResult{}, err
	}
	filtered, err := i.resolver.FilteredOrderedPresets(ctx, ev.ControlID)
	if err != nil {
		return FeedbackResult{}, err
	}
	learned := len(bank.LearnedButtons)
	counts := fmt.Sprintf("(%d/%d)", len(filtered), learned)

	if i.learner.Mode() == ev.ControlID {
		return StyleResult(Colors(learnBlue, white).WithText("Learning Save? " + counts)), nil
	}
	bg := idleGreen
	if learned < len(filtered) {
		bg = warnGold
	}
	return StyleResult(Colors(bg, white).WithText("Learn Presets " + counts)), nil
}

func (i *Instance) autoPreset(ctx context.Context, ev FeedbackEvent) (FeedbackResult, error) {
	preset, loc, err := i.resolver.Resolve(ctx, ev.ControlID)
	if err != nil {
		return FeedbackResult{}, err
	}

	if mode := i.learner.Mode(); mode != autolearn.Disabled {
		switch {
		case !loc.Found():
			return StyleResult(Colors(red, white).WithText("Learning")), nil
		case loc.BankID == mode:
			return StyleResult(Colors(green, black).WithText(fmt.Sprintf("#%d", loc.Index))), nil
		default:
			return StyleResult(Colors(yellow, black).WithText("Overwrite?")), nil
		}
	}

	if preset == nil {
		return StyleResult(i.logoStyle(ev)), nil
	}

	label := preset.Name
	bank, err := i.bindings.GetBank(ctx, loc.BankID)
	if err != nil {
		return FeedbackResult{}, err
	}
	if bank.DisplayDeviceName {
		label += "\n(" + i.deviceNames(*preset) + ")"
	}

	active := i.catalog.IsPresetActive(preset.ID)
	live := i.catalog.IsPresetLive(preset.ID)
	instrument := CombineRGB(metadata.ColorForInstrument(preset.Instrument()))
	var style Style
	switch {
	case active && live:
		style = Colors(darkRed, CombineRGB(150, 150, 150))
	case active:
		style = Colors(red, white)
	case live:
		style = Colors(instrument, CombineRGB(140, 140, 140))
	default:
		style = Colors(instrument, white)
	}
	return StyleResult(style.WithText(label)), nil
}

// logoStyle renders an unbound auto preset button.
func (i *Instance) logoStyle(ev FeedbackEvent) Style {
	w, h := ev.imageSize()
	png64, err := i.previews.Logo(w, h)
	if err != nil {
		log.Printf("Warning: failed to render logo: %v", err)
	}
	if png64 == "" {
		return Colors(black, white).WithText("Auto Preset")
	}
	return Style{PNG64: png64}.WithText("")
}

func (i *Instance) liveDevice(_ context.Context, ev FeedbackEvent) (FeedbackResult, error) {
	id, ok := ev.Options.Int("deviceId")
	return BoolResult(ok && i.catalog.IsDeviceLive(id)), nil
}

func (i *Instance) liveInput(_ context.Context, ev FeedbackEvent) (FeedbackResult, error) {
	return BoolResult(i.catalog.IsInputLive(ev.Options.String("input"))), nil
}

func (i *Instance) autoCut(_ context.Context, _ FeedbackEvent) (FeedbackResult, error) {
	return BoolResult(i.catalog.AutoCutRunning()), nil
}
