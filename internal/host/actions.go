package host

import (
	"context"
	"errors"
	"log"

	"github.com/bbernstein/mirusuite-bridge/internal/miru"
	"github.com/bbernstein/mirusuite-bridge/internal/services/autolearn"
)

// Action ids.
const (
	ActionSetShotSize         = "setShotSize"
	ActionToggleDirector      = "toggleDirector"
	ActionSetDirector         = "setDirector"
	ActionSetTrackingMode     = "setTrackingMode"
	ActionLearnTargetFace     = "learnTargetFace"
	ActionPlayPreset          = "playPreset"
	ActionPlayActivePreset    = "playActivePreset"
	ActionOverwritePreset     = "overwritePreset"
	ActionLearnAutoButtons    = "learnAutoButtons"
	ActionPlayAutoPreset      = "playAutoPreset"
	ActionOverwriteAutoPreset = "overwriteAutoPreset"
	ActionClearAllAutoButtons = "clearAllAutoButtons"
	ActionTriggerMovement     = "triggerMovement"
	ActionReturnToHome        = "triggerReturnToHome"
	ActionExitSteadyMode      = "exitSteadyMode"
	ActionStopAutoMove        = "stopAutoMove"
	ActionToggleAutoCut       = "toggleAutoCut"
	ActionCutToInput          = "cutToInput"
)

const needsVideoInput = " To select a device, you first need to create a device in MiruSuite and add a video input to it."

func (i *Instance) actionDefinitions() []ActionDefinition {
	devices := i.videoDeviceChoices()
	faces := i.faceChoices()
	presets := i.presetChoices()

	return []ActionDefinition{
		{
			ID:          ActionSetShotSize,
			Name:        "Set Shot Size",
			Description: "Set the shot size for a device." + needsVideoInput,
			Options:     []OptionDefinition{shotSizeOption, deviceSelector(devices)},
			Callback:    i.setShotSize,
		},
		{
			ID:          ActionToggleDirector,
			Name:        "Toggle Director",
			Description: "Enables/disables the director. Use this if you want to temporarily disable tracking." + needsVideoInput,
			Options:     []OptionDefinition{deviceSelector(devices)},
			Callback:    i.toggleDirector,
		},
		{
			ID:          ActionSetDirector,
			Name:        "Enable/Disable Director",
			Description: "Enable or disable the director for a device." + needsVideoInput,
			Options: []OptionDefinition{
				deviceSelector(devices),
				{
					ID:      "enabled",
					Type:    OptionDropdown,
					Label:   "Enable",
					Choices: []Choice{{ID: "true", Label: "Enable"}, {ID: "false", Label: "Disable"}},
					Default: "true",
				},
			},
			Callback: i.setDirector,
		},
		{
			ID:          ActionSetTrackingMode,
			Name:        "Set Tracking Mode",
			Description: "Set the tracking mode for a device. The person option is only used in SINGLE mode." + needsVideoInput,
			Options:     []OptionDefinition{trackingModeOption, faceSelector(faces), deviceSelector(devices)},
			Callback:    i.setTrackingMode,
		},
		{
			ID:          ActionLearnTargetFace,
			Name:        "Learn Target Face",
			Description: "Learn the face of the current target person." + needsVideoInput,
			Options:     []OptionDefinition{deviceSelector(devices)},
			Callback:    i.learnTargetFace,
		},
		{
			ID:          ActionPlayPreset,
			Name:        "Play Preset",
			Description: "Play a preset." + needsVideoInput,
			Options:     []OptionDefinition{presetSelector(presets)},
			Callback:    i.playPreset,
		},
		{
			ID:          ActionPlayActivePreset,
			Name:        "Play Active Preset",
			Description: "Re-apply the active preset of a camera." + needsVideoInput,
			Options:     []OptionDefinition{deviceSelector(devices)},
			Callback:    i.deviceAction("Re-applying active preset of", Backend.ReapplyActivePreset),
		},
		{
			ID:          ActionOverwritePreset,
			Name:        "Overwrite Preset",
			Description: "Overwrite a preset with the current device position",
			Options:     []OptionDefinition{presetSelector(presets)},
			Callback:    i.overwritePreset,
		},
		{
			ID:   ActionLearnAutoButtons,
			Name: "Learn Auto Preset Buttons",
			Description: "1. Press this button to start learning. 2. Press your auto preset buttons in the order you want them to be used. " +
				"3. Press this button again to finish the learning. Available presets for the configured devices will be automatically arranged on the learned buttons.",
			Options: []OptionDefinition{
				multiDeviceSelector(devices),
				instrumentGroupSelector(),
				{ID: "displayName", Type: OptionCheckbox, Label: "Display Device Names", Default: false},
			},
			Callback: i.learnAutoButtons,
		},
		{
			ID:          ActionPlayAutoPreset,
			Name:        "Play Auto Preset",
			Description: "Play the automatically linked preset",
			Options:     []OptionDefinition{},
			Callback:    i.playAutoPreset,
		},
		{
			ID:          ActionOverwriteAutoPreset,
			Name:        "Overwrite Auto Preset",
			Description: "Overwrite the automatically linked preset with the current position",
			Options:     []OptionDefinition{},
			Callback:    i.overwriteAutoPreset,
		},
		{
			ID:          ActionClearAllAutoButtons,
			Name:        "Clear All Auto Buttons",
			Description: "Clear all auto button data.",
			Options:     []OptionDefinition{},
			Callback:    i.clearAllAutoButtons,
		},
		{
			ID:          ActionTriggerMovement,
			Name:        "Trigger move",
			Description: "Execute a preset or random move on an auto-move director." + needsVideoInput,
			Options: []OptionDefinition{
				deviceSelector(devices),
				{
					ID:      "type",
					Type:    OptionDropdown,
					Label:   "Movement type",
					Choices: []Choice{{ID: movePreset, Label: "Nearby preset"}, {ID: moveRandom, Label: "Random direction"}},
					Default: movePreset,
				},
			},
			Callback: i.triggerMovement,
		},
		{
			ID:          ActionReturnToHome,
			Name:        "Return to home",
			Description: "Return device to home position." + needsVideoInput,
			Options:     []OptionDefinition{deviceSelector(devices)},
			Callback:    i.deviceAction("Returning home", Backend.ReturnToHome),
		},
		{
			ID:          ActionExitSteadyMode,
			Name:        "Exit steady mode",
			Description: "Exit steady mode of device." + needsVideoInput,
			Options:     []OptionDefinition{deviceSelector(devices)},
			Callback:    i.deviceAction("Exiting steady mode", Backend.ExitSteadyMode),
		},
		{
			ID:          ActionStopAutoMove,
			Name:        "Stop move",
			Description: "Stop auto-movement of device." + needsVideoInput,
			Options:     []OptionDefinition{deviceSelector(devices)},
			Callback:    i.deviceAction("Stopping move", Backend.StopAutoMove),
		},
		{
			ID:          ActionToggleAutoCut,
			Name:        "Toggle Auto Cut",
			Description: "Enable or disable Auto cut. You first need to correctly setup AutoCut in MiruSuite.",
			Options:     []OptionDefinition{},
			Callback:    i.toggleAutoCut,
		},
		{
			ID:          ActionCutToInput,
			Name:        "Cut",
			Description: "Cut to an input of the connected switcher.",
			Options:     []OptionDefinition{{ID: "input", Type: OptionTextInput, Label: "Input", Default: ""}},
			Callback:    i.cutToInput,
		},
	}
}

// backendOrWarn returns the backend, or nil after logging when the instance
// has not been initialized.
func (i *Instance) backendOrWarn() Backend {
	b := i.currentBackend()
	if b == nil {
		log.Printf("Warning: backend not initialized")
	}
	return b
}

// device resolves a device option. Unknown devices are logged and yield nil.
func (i *Instance) device(o Options) (*miru.Device, error) {
	cmd, err := parseDeviceCommand(o)
	if err != nil {
		return nil, err
	}
	d := i.catalog.DeviceByID(cmd.DeviceID)
	if d == nil {
		i.Log("warn", "Device %d not found", cmd.DeviceID)
	}
	return d, nil
}

func (i *Instance) setShotSize(ctx context.Context, ev ActionEvent) error {
	cmd, err := parseShotSizeCommand(ev.Options)
	if err != nil {
		return err
	}
	device := i.catalog.DeviceByID(cmd.DeviceID)
	if device == nil {
		i.Log("warn", "Device %d not found", cmd.DeviceID)
		return nil
	}
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	i.Log("info", "Setting shot size for device %d to %s", cmd.DeviceID, cmd.Size)
	return b.SetShotSize(ctx, device, cmd.Size)
}

func (i *Instance) toggleDirector(ctx context.Context, ev ActionEvent) error {
	device, err := i.device(ev.Options)
	if err != nil || device == nil {
		return err
	}
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	i.Log("info", "Toggling director for device %d", device.ID)
	return b.SetDirector(ctx, device, nil)
}

func (i *Instance) setDirector(ctx context.Context, ev ActionEvent) error {
	cmd, err := parseDirectorCommand(ev.Options)
	if err != nil {
		return err
	}
	device := i.catalog.DeviceByID(cmd.DeviceID)
	if device == nil {
		i.Log("warn", "Device %d not found", cmd.DeviceID)
		return nil
	}
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	i.Log("info", "Setting director for device %d to %t", cmd.DeviceID, cmd.Enabled)
	return b.SetDirector(ctx, device, &cmd.Enabled)
}

func (i *Instance) setTrackingMode(ctx context.Context, ev ActionEvent) error {
	cmd, err := parseTrackingCommand(ev.Options)
	if err != nil {
		return err
	}
	device := i.catalog.DeviceByID(cmd.DeviceID)
	if device == nil {
		i.Log("warn", "Device %d not found", cmd.DeviceID)
		return nil
	}
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	i.Log("info", "Setting tracking mode for device %d to %s with person %d", cmd.DeviceID, cmd.Mode, cmd.FaceID)
	return b.SetTrackingMode(ctx, device, cmd.Mode, cmd.FaceID)
}

func (i *Instance) learnTargetFace(ctx context.Context, ev ActionEvent) error {
	device, err := i.device(ev.Options)
	if err != nil || device == nil {
		return err
	}
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	i.Log("info", "Learning face for device %d", device.ID)
	return b.LearnTargetFace(ctx, device)
}

// presetAction runs fn for a known preset option.
func (i *Instance) presetAction(ctx context.Context, o Options, verb string, fn func(Backend, context.Context, int) error) error {
	cmd, err := parsePresetCommand(o)
	if err != nil {
		return err
	}
	if i.catalog.PresetByID(cmd.PresetID) == nil {
		i.Log("warn", "Preset %d not found", cmd.PresetID)
		return nil
	}
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	i.Log("info", "%s preset %d", verb, cmd.PresetID)
	return fn(b, ctx, cmd.PresetID)
}

func (i *Instance) playPreset(ctx context.Context, ev ActionEvent) error {
	return i.presetAction(ctx, ev.Options, "Playing", Backend.PlayPreset)
}

func (i *Instance) overwritePreset(ctx context.Context, ev ActionEvent) error {
	return i.presetAction(ctx, ev.Options, "Overwriting", Backend.OverwritePreset)
}

// deviceAction builds a handler calling a device id scoped backend method.
func (i *Instance) deviceAction(verb string, fn func(Backend, context.Context, int) error) ActionCallback {
	return func(ctx context.Context, ev ActionEvent) error {
		device, err := i.device(ev.Options)
		if err != nil || device == nil {
			return err
		}
		b := i.backendOrWarn()
		if b == nil {
			return nil
		}
		i.Log("info", "%s device %d", verb, device.ID)
		return fn(b, ctx, device.ID)
	}
}

func (i *Instance) learnAutoButtons(ctx context.Context, ev ActionEvent) error {
	req := autolearn.LearnRequest{BankID: ev.ControlID}
	if _, learning := i.learner.ActiveBank(); !learning {
		cmd, err := parseLearnCommand(ev.Options)
		if err != nil {
			return err
		}
		req.Devices = cmd.Devices
		req.InstrumentGroups = cmd.InstrumentGroups
		req.DisplayDeviceName = cmd.DisplayDeviceName
		i.Log("debug", "Learning auto preset buttons for %s with devices %v", ev.ControlID, cmd.Devices)
	} else {
		i.Log("debug", "Stopping learning auto preset buttons for %s", ev.ControlID)
	}

	_, err := i.learner.Toggle(ctx, req)
	if errors.Is(err, autolearn.ErrNoDevicesSelected) {
		i.Log("warn", "No devices selected")
		return nil
	}
	return err
}

func (i *Instance) playAutoPreset(ctx context.Context, ev ActionEvent) error {
	outcome, err := i.learner.Press(ctx, ev.ControlID)
	if err != nil {
		return err
	}
	if outcome != autolearn.PressNotLearning {
		i.Log("debug", "Auto preset button %s %s", ev.ControlID, outcome)
		return nil
	}

	preset, loc, err := i.resolver.Resolve(ctx, ev.ControlID)
	if err != nil {
		return err
	}
	if preset == nil {
		i.Log("warn", "Preset not set for button %d", loc.Index)
		return nil
	}
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	i.Log("info", "Playing auto preset %d", preset.ID)
	if err := b.PlayPreset(ctx, preset.ID); err != nil {
		return err
	}
	i.CheckFeedbacks(FeedbackAutoPreset, FeedbackLearnMode)
	return nil
}

func (i *Instance) overwriteAutoPreset(ctx context.Context, ev ActionEvent) error {
	if i.learner.Mode() != autolearn.Disabled {
		return nil
	}
	preset, loc, err := i.resolver.Resolve(ctx, ev.ControlID)
	if err != nil {
		return err
	}
	if preset == nil {
		i.Log("warn", "Preset not set for button %d", loc.Index)
		return nil
	}
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	i.Log("debug", "Overwriting auto preset %d", preset.ID)
	if err := b.OverwritePreset(ctx, preset.ID); err != nil {
		return err
	}
	i.CheckFeedbacks(FeedbackAutoPreset, FeedbackLearnMode)
	return nil
}

func (i *Instance) clearAllAutoButtons(ctx context.Context, _ ActionEvent) error {
	i.Log("info", "Clearing all auto preset buttons")
	return i.learner.ClearAll(ctx)
}

func (i *Instance) triggerMovement(ctx context.Context, ev ActionEvent) error {
	cmd, err := parseMoveCommand(ev.Options)
	if err != nil {
		return err
	}
	if i.catalog.DeviceByID(cmd.DeviceID) == nil {
		i.Log("warn", "Device %d not found", cmd.DeviceID)
		return nil
	}
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	if cmd.Type == moveRandom {
		i.Log("info", "Triggering random move for device %d", cmd.DeviceID)
		return b.TriggerRandomMove(ctx, cmd.DeviceID)
	}
	i.Log("info", "Triggering preset transition move for device %d", cmd.DeviceID)
	return b.TriggerPresetMove(ctx, cmd.DeviceID)
}

func (i *Instance) toggleAutoCut(ctx context.Context, _ ActionEvent) error {
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	running := !i.catalog.AutoCutRunning()
	i.Log("info", "Setting AutoCut running to %t", running)
	if err := b.SetAutoCut(ctx, running); err != nil {
		return err
	}
	if err := i.catalog.RefreshAutoCut(ctx); err != nil {
		log.Printf("Warning: %v", err)
	}
	i.CheckFeedbacks(FeedbackAutoCut)
	return nil
}

func (i *Instance) cutToInput(ctx context.Context, ev ActionEvent) error {
	cmd, err := parseCutCommand(ev.Options)
	if err != nil {
		return err
	}
	b := i.backendOrWarn()
	if b == nil {
		return nil
	}
	i.Log("info", "Cutting to input %s", cmd.Input)
	return b.CutTo(ctx, cmd.Input)
}
