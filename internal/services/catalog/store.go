// Package catalog caches the devices, presets, faces and live state fetched
// from the MiruSuite server.
package catalog

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bbernstein/mirusuite-bridge/internal/miru"
)

// Source loads catalog data from the server. *miru.Client implements it.
type Source interface {
	Devices(ctx context.Context) ([]miru.Device, error)
	Faces(ctx context.Context) ([]miru.Face, error)
	ActivePresetMap(ctx context.Context) (map[int]miru.ActivePreset, error)
	Presets(ctx context.Context) ([]miru.Preset, error)
	LiveInputs(ctx context.Context) ([]string, error)
	AutoCutRunning(ctx context.Context) (bool, error)
}

// Store holds the latest catalog snapshot. Lookups never fail: missing data
// yields nil or false.
type Store struct {
	refreshMu sync.Mutex // one refresh at a time
	source    Source

	snapshot atomic.Pointer[Snapshot]
	offline  atomic.Bool
}

// NewStore creates an empty store.
func NewStore(source Source) *Store {
	s := &Store{source: source}
	s.snapshot.Store(newSnapshot(Snapshot{}))
	return s
}

// SetSource replaces the data source, e.g. after the server address changed.
// The current snapshot is kept until the next refresh.
func (s *Store) SetSource(source Source) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	s.source = source
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Offline reports whether the last full refresh failed.
func (s *Store) Offline() bool {
	return s.offline.Load()
}

// Refresh reloads the whole catalog. On failure the previous snapshot is kept,
// the store is marked offline and the error is returned.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	next, err := s.load(ctx)
	if err != nil {
		s.offline.Store(true)
		return err
	}
	s.snapshot.Store(next)
	s.offline.Store(false)
	log.Printf("Catalog refreshed: %d devices, %d presets, %d faces", len(next.Devices), len(next.Presets), len(next.Faces))
	return nil
}

func (s *Store) load(ctx context.Context) (*Snapshot, error) {
	if s.source == nil {
		return nil, fmt.Errorf("catalog source not configured")
	}

	var (
		next Snapshot
		err  error
	)
	if next.Devices, err = s.source.Devices(ctx); err != nil {
		return nil, fmt.Errorf("failed to load devices: %w", err)
	}
	if next.Faces, err = s.source.Faces(ctx); err != nil {
		return nil, fmt.Errorf("failed to load faces: %w", err)
	}
	if next.ActivePresets, err = s.source.ActivePresetMap(ctx); err != nil {
		return nil, fmt.Errorf("failed to load active presets: %w", err)
	}
	if next.Presets, err = s.source.Presets(ctx); err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}
	if next.LiveInputs, err = s.source.LiveInputs(ctx); err != nil {
		return nil, fmt.Errorf("failed to load live inputs: %w", err)
	}
	if next.AutoCut, err = s.source.AutoCutRunning(ctx); err != nil {
		return nil, fmt.Errorf("failed to load autocut status: %w", err)
	}
	next.LoadedAt = time.Now()
	return newSnapshot(next), nil
}

// update applies fn to a copy of the current snapshot and stores the result.
func (s *Store) update(ctx context.Context, what string, fn func(ctx context.Context, next *Snapshot) error) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.source == nil {
		return fmt.Errorf("catalog source not configured")
	}
	next := *s.snapshot.Load()
	if err := fn(ctx, &next); err != nil {
		return fmt.Errorf("failed to load %s: %w", what, err)
	}
	next.LoadedAt = time.Now()
	s.snapshot.Store(newSnapshot(next))
	return nil
}

// RefreshDevices reloads only the device list.
func (s *Store) RefreshDevices(ctx context.Context) error {
	return s.update(ctx, "devices", func(ctx context.Context, next *Snapshot) (err error) {
		next.Devices, err = s.source.Devices(ctx)
		return err
	})
}

// RefreshPresets reloads the presets and the active preset map.
func (s *Store) RefreshPresets(ctx context.Context) error {
	return s.update(ctx, "presets", func(ctx context.Context, next *Snapshot) (err error) {
		if next.Presets, err = s.source.Presets(ctx); err != nil {
			return err
		}
		next.ActivePresets, err = s.source.ActivePresetMap(ctx)
		return err
	})
}

// RefreshActivePresets reloads only the active preset map.
func (s *Store) RefreshActivePresets(ctx context.Context) error {
	return s.update(ctx, "active presets", func(ctx context.Context, next *Snapshot) (err error) {
		next.ActivePresets, err = s.source.ActivePresetMap(ctx)
		return err
	})
}

// RefreshLiveInputs reloads the switcher program inputs.
func (s *Store) RefreshLiveInputs(ctx context.Context) error {
	return s.update(ctx, "live inputs", func(ctx context.Context, next *Snapshot) (err error) {
		next.LiveInputs, err = s.source.LiveInputs(ctx)
		return err
	})
}

// RefreshAutoCut reloads the AutoCut running state.
func (s *Store) RefreshAutoCut(ctx context.Context) error {
	return s.update(ctx, "autocut status", func(ctx context.Context, next *Snapshot) (err error) {
		next.AutoCut, err = s.source.AutoCutRunning(ctx)
		return err
	})
}

// Devices returns every device.
func (s *Store) Devices() []miru.Device {
	return s.snapshot.Load().Devices
}

// VideoDevices returns the devices with a video input.
func (s *Store) VideoDevices() []miru.Device {
	var out []miru.Device
	for _, d := range s.snapshot.Load().Devices {
		if d.IsVideoDevice() {
			out = append(out, d)
		}
	}
	return out
}

// DeviceByID returns a device or nil. The result must not be modified.
func (s *Store) DeviceByID(id int) *miru.Device {
	return s.snapshot.Load().device(id)
}

// DeviceInput returns the switcher input of a device or "".
func (s *Store) DeviceInput(id int) string {
	return s.snapshot.Load().deviceInputs[id]
}

// Faces returns the persistent faces.
func (s *Store) Faces() []miru.Face {
	return s.snapshot.Load().Faces
}

// Presets returns the preset list of the current snapshot. The slice must not
// be modified.
func (s *Store) Presets() []miru.Preset {
	return s.snapshot.Load().Presets
}

// PresetByID returns a preset or nil.
func (s *Store) PresetByID(id int) *miru.Preset {
	return s.snapshot.Load().preset(id)
}

// IsPresetActive reports whether the preset is the active preset of any device.
func (s *Store) IsPresetActive(presetID int) bool {
	return s.snapshot.Load().activePresets[presetID]
}

// IsPresetLive reports whether any device moved by the preset is on program.
func (s *Store) IsPresetLive(presetID int) bool {
	snap := s.snapshot.Load()
	p := snap.preset(presetID)
	if p == nil {
		return false
	}
	for _, id := range p.AffectedDeviceIDs() {
		if snap.deviceLive(id) {
			return true
		}
	}
	return false
}

// IsDeviceLive reports whether the device's switcher input is on program.
func (s *Store) IsDeviceLive(deviceID int) bool {
	return s.snapshot.Load().deviceLive(deviceID)
}

// IsInputLive reports whether a switcher input is on program.
func (s *Store) IsInputLive(input string) bool {
	return s.snapshot.Load().liveInputSet[input]
}

// AutoCutRunning reports the cached AutoCut state.
func (s *Store) AutoCutRunning() bool {
	return s.snapshot.Load().AutoCut
}
