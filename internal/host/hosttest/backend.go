// Package hosttest provides an in-memory MiruSuite backend for host tests.
package hosttest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bbernstein/mirusuite-bridge/internal/miru"
)

// ErrOffline is returned by every call while Fail is set.
var ErrOffline = errors.New("connection refused")

// Backend serves a fixed catalog and records write calls as strings such as
// "PlayPreset 12".
type Backend struct {
	mu sync.Mutex

	DeviceList    []miru.Device
	FaceList      []miru.Face
	PresetList    []miru.Preset
	Active        map[int]miru.ActivePreset
	Live          []string
	AutoCut       bool
	FaceImageData []byte

	// Fail makes every call return ErrOffline.
	Fail bool
	// PanicOn makes write calls starting with this prefix panic.
	PanicOn string

	calls []string
}

// NewBackend returns a backend with three cameras on switcher inputs 1-3,
// one face and three presets (11 flute/cam 1, 12 trumpet/cam 2, 13 flute/cam 3).
func NewBackend() *Backend {
	return &Backend{
		DeviceList: []miru.Device{Camera(1, "1"), Camera(2, "2"), Camera(3, "3")},
		FaceList:   []miru.Face{{ID: 7, Name: "Anna"}},
		PresetList: []miru.Preset{
			Preset(13, "Flute far", "flute", 3),
			Preset(12, "Trumpet", "trumpet", 2),
			Preset(11, "Flute", "flute", 1),
		},
		Active: map[int]miru.ActivePreset{},
	}
}

// Camera returns a video device with a head tracking director and a person
// tracker following face 7.
func Camera(id int, input string) miru.Device {
	return miru.Device{
		ID:   id,
		Name: fmt.Sprintf("Cam %d", id),
		Components: miru.DeviceComponents{
			VideoInput:           miru.ComponentSettings{"switcherInput": input},
			HeadTrackingDirector: miru.ComponentSettings{"targetShotSize": "WIDE"},
			PersonTracker:        miru.ComponentSettings{"trackingMode": "SINGLE", "targetFaceId": float64(7)},
		},
		Feedback: map[string]miru.ComponentFeedback{
			miru.ComponentHeadTrackingDirector: {State: miru.StateRunning},
		},
	}
}

// Preset returns a preset moving one device.
func Preset(id int, name, instrument string, device int) miru.Preset {
	return miru.Preset{
		ID:       id,
		Name:     name,
		Metadata: map[string]string{"instrument": instrument},
		Commands: []miru.PresetCommand{{DeviceID: &device}},
	}
}

// Calls returns the recorded write calls.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *Backend) record(format string, args ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	call := fmt.Sprintf(format, args...)
	if b.PanicOn != "" && strings.HasPrefix(call, b.PanicOn) {
		panic("hosttest: " + call)
	}
	if b.Fail {
		return ErrOffline
	}
	b.calls = append(b.calls, call)
	return nil
}

func (b *Backend) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail {
		return ErrOffline
	}
	return nil
}

func (b *Backend) Devices(context.Context) ([]miru.Device, error) { return b.DeviceList, b.err() }
func (b *Backend) Faces(context.Context) ([]miru.Face, error)     { return b.FaceList, b.err() }
func (b *Backend) Presets(context.Context) ([]miru.Preset, error) { return b.PresetList, b.err() }
func (b *Backend) LiveInputs(context.Context) ([]string, error)   { return b.Live, b.err() }

func (b *Backend) ActivePresetMap(context.Context) (map[int]miru.ActivePreset, error) {
	return b.Active, b.err()
}

func (b *Backend) AutoCutRunning(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail {
		return false, ErrOffline
	}
	return b.AutoCut, nil
}

func (b *Backend) FaceImage(_ context.Context, faceID int) ([]byte, error) {
	if b.FaceImageData == nil {
		return nil, fmt.Errorf("face %d not found", faceID)
	}
	return b.FaceImageData, nil
}

func (b *Backend) SetDirector(_ context.Context, d *miru.Device, enabled *bool) error {
	if enabled == nil {
		return b.record("SetDirector %d toggle", d.ID)
	}
	return b.record("SetDirector %d %t", d.ID, *enabled)
}

func (b *Backend) SetShotSize(_ context.Context, d *miru.Device, size miru.ShotSize) error {
	return b.record("SetShotSize %d %s", d.ID, size)
}

func (b *Backend) SetTrackingMode(_ context.Context, d *miru.Device, mode miru.TrackingMode, faceID int) error {
	return b.record("SetTrackingMode %d %s %d", d.ID, mode, faceID)
}

func (b *Backend) LearnTargetFace(_ context.Context, d *miru.Device) error {
	return b.record("LearnTargetFace %d", d.ID)
}

func (b *Backend) PlayPreset(_ context.Context, id int) error {
	return b.record("PlayPreset %d", id)
}

func (b *Backend) OverwritePreset(_ context.Context, id int) error {
	return b.record("OverwritePreset %d", id)
}

func (b *Backend) ReapplyActivePreset(_ context.Context, id int) error {
	return b.record("ReapplyActivePreset %d", id)
}

func (b *Backend) TriggerRandomMove(_ context.Context, id int) error {
	return b.record("TriggerRandomMove %d", id)
}

func (b *Backend) TriggerPresetMove(_ context.Context, id int) error {
	return b.record("TriggerPresetMove %d", id)
}

func (b *Backend) StopAutoMove(_ context.Context, id int) error {
	return b.record("StopAutoMove %d", id)
}

func (b *Backend) ReturnToHome(_ context.Context, id int) error {
	return b.record("ReturnToHome %d", id)
}

func (b *Backend) ExitSteadyMode(_ context.Context, id int) error {
	return b.record("ExitSteadyMode %d", id)
}

func (b *Backend) SetAutoCut(_ context.Context, running bool) error {
	if err := b.record("SetAutoCut %t", running); err != nil {
		return err
	}
	b.mu.Lock()
	b.AutoCut = running
	b.mu.Unlock()
	return nil
}

func (b *Backend) CutTo(_ context.Context, input string) error {
	return b.record("CutTo %s", input)
}
