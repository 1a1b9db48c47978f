package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bbernstein/mirusuite-bridge/internal/miru"
)

// ErrInvalidOptions is returned when action options cannot be coerced into
// the action's command.
var ErrInvalidOptions = errors.New("invalid options")

// Options is the loosely typed option payload sent by the host.
type Options map[string]any

// Int returns a numeric option. Numbers may arrive as JSON numbers or
// numeric strings.
func (o Options) Int(key string) (int, bool) {
	return toInt(o[key])
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// String returns an option as text. Numbers and booleans are formatted.
func (o Options) String(key string) string {
	switch v := o[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns a checkbox option. The strings "true" and "1" count as true.
func (o Options) Bool(key string) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	case float64:
		return v != 0
	}
	return false
}

// IntList returns a multi-select option of ids. Accepts a list of numbers or
// numeric strings, a comma separated string, or a single number.
func (o Options) IntList(key string) ([]int, error) {
	switch v := o[key].(type) {
	case nil:
		return nil, nil
	case []int:
		return v, nil
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			n, ok := toInt(item)
			if !ok {
				return nil, fmt.Errorf("%w: %s contains %v", ErrInvalidOptions, key, item)
			}
			out = append(out, n)
		}
		return out, nil
	case string:
		var out []int
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: %s contains %q", ErrInvalidOptions, key, part)
			}
			out = append(out, n)
		}
		return out, nil
	default:
		if n, ok := toInt(v); ok {
			return []int{n}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is %T", ErrInvalidOptions, key, o[key])
}

// StringList returns a multi-select option of strings.
func (o Options) StringList(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

func requireInt(o Options, key string) (int, error) {
	n, ok := o.Int(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s is missing or not a number", ErrInvalidOptions, key)
	}
	return n, nil
}

type deviceCommand struct {
	DeviceID int
}

func parseDeviceCommand(o Options) (deviceCommand, error) {
	id, err := requireInt(o, "deviceId")
	return deviceCommand{DeviceID: id}, err
}

type directorCommand struct {
	deviceCommand
	Enabled bool
}

func parseDirectorCommand(o Options) (directorCommand, error) {
	dev, err := parseDeviceCommand(o)
	if err != nil {
		return directorCommand{}, err
	}
	return directorCommand{deviceCommand: dev, Enabled: o.Bool("enabled")}, nil
}

type shotSizeCommand struct {
	deviceCommand
	Size miru.ShotSize
}

func parseShotSizeCommand(o Options) (shotSizeCommand, error) {
	dev, err := parseDeviceCommand(o)
	if err != nil {
		return shotSizeCommand{}, err
	}
	size := miru.ShotSize(o.String("size"))
	switch size {
	case miru.ShotSizeWide, miru.ShotSizeMedium, miru.ShotSizeCloseUp:
	default:
		return shotSizeCommand{}, fmt.Errorf("%w: unknown shot size %q", ErrInvalidOptions, size)
	}
	return shotSizeCommand{deviceCommand: dev, Size: size}, nil
}

type trackingCommand struct {
	deviceCommand
	Mode   miru.TrackingMode
	FaceID int
}

func parseTrackingMode(o Options) (miru.TrackingMode, error) {
	mode := miru.TrackingMode(o.String("mode"))
	switch mode {
	case miru.TrackingAll, miru.TrackingManual, miru.TrackingSingle:
		return mode, nil
	}
	return "", fmt.Errorf("%w: unknown tracking mode %q", ErrInvalidOptions, mode)
}

func parseTrackingCommand(o Options) (trackingCommand, error) {
	dev, err := parseDeviceCommand(o)
	if err != nil {
		return trackingCommand{}, err
	}
	mode, err := parseTrackingMode(o)
	if err != nil {
		return trackingCommand{}, err
	}
	face, ok := o.Int("person")
	if !ok {
		face = -1
	}
	return trackingCommand{deviceCommand: dev, Mode: mode, FaceID: face}, nil
}

type presetCommand struct {
	PresetID int
}

func parsePresetCommand(o Options) (presetCommand, error) {
	id, err := requireInt(o, "preset")
	return presetCommand{PresetID: id}, err
}

type learnCommand struct {
	Devices           []int
	InstrumentGroups  []string
	DisplayDeviceName bool
}

func parseLearnCommand(o Options) (learnCommand, error) {
	devices, err := o.IntList("deviceIds")
	if err != nil {
		return learnCommand{}, err
	}
	return learnCommand{
		Devices:           devices,
		InstrumentGroups:  o.StringList("instrumentGroups"),
		DisplayDeviceName: o.Bool("displayName"),
	}, nil
}

// Movement types of triggerMovement.
const (
	movePreset = "preset"
	moveRandom = "random"
)

type moveCommand struct {
	deviceCommand
	Type string
}

func parseMoveCommand(o Options) (moveCommand, error) {
	dev, err := parseDeviceCommand(o)
	if err != nil {
		return moveCommand{}, err
	}
	t := o.String("type")
	if t == "" {
		t = movePreset
	}
	if t != movePreset && t != moveRandom {
		return moveCommand{}, fmt.Errorf("%w: unknown movement type %q", ErrInvalidOptions, t)
	}
	return moveCommand{deviceCommand: dev, Type: t}, nil
}

type cutCommand struct {
	Input string
}

func parseCutCommand(o Options) (cutCommand, error) {
	input := strings.TrimSpace(o.String("input"))
	if input == "" {
		return cutCommand{}, fmt.Errorf("%w: input is empty", ErrInvalidOptions)
	}
	return cutCommand{Input: input}, nil
}
