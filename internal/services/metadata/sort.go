package metadata

import (
	"cmp"
	"slices"
	"strings"

	"github.com/bbernstein/mirusuite-bridge/internal/miru"
)

// ComparePresets orders presets by instrument, then shot size, then the
// lowest affected device id, then name (byte-wise).
func ComparePresets(a, b miru.Preset) int {
	if c := cmp.Compare(InstrumentRank(a.Instrument()), InstrumentRank(b.Instrument())); c != 0 {
		return c
	}
	if c := cmp.Compare(ShotSizeRank(a.ShotSize()), ShotSizeRank(b.ShotSize())); c != 0 {
		return c
	}
	if c := cmp.Compare(MinDeviceID(a.AffectedDeviceIDs()), MinDeviceID(b.AffectedDeviceIDs())); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// SortPresets returns a sorted copy of presets.
func SortPresets(presets []miru.Preset) []miru.Preset {
	out := slices.Clone(presets)
	slices.SortStableFunc(out, ComparePresets)
	return out
}
