package autolearn

import (
	"context"
	"slices"

	"github.com/bbernstein/mirusuite-bridge/internal/miru"
	"github.com/bbernstein/mirusuite-bridge/internal/services/metadata"
)

// AllGroups is the instrument group selection meaning "no filter".
const AllGroups = "All"

// PresetSource provides the current preset catalog.
type PresetSource interface {
	Presets() []miru.Preset
}

// Resolver maps learned buttons to presets. The filtered and sorted preset
// list is derived from the catalog on every call, so bindings follow catalog
// changes without invalidation.
type Resolver struct {
	bindings *Bindings
	presets  PresetSource
}

// NewResolver creates a resolver over a binding store and a preset source.
func NewResolver(bindings *Bindings, presets PresetSource) *Resolver {
	return &Resolver{bindings: bindings, presets: presets}
}

// instrumentFilter expands instrument groups into the set of accepted
// instruments. A nil result means no filter.
func instrumentFilter(groups []string) map[string]bool {
	if len(groups) == 0 || slices.Contains(groups, AllGroups) {
		return nil
	}
	accepted := make(map[string]bool)
	for _, group := range groups {
		instruments := metadata.InstrumentsForGroup(group)
		if len(instruments) == 0 {
			// Allow a single instrument in place of a group.
			accepted[group] = true
			continue
		}
		for _, instrument := range instruments {
			accepted[instrument] = true
		}
	}
	return accepted
}

// FilterPresets keeps the presets eligible for a bank: at least one affected
// device in the bank's device selection and an instrument in its instrument
// groups. Empty selections do not filter.
func FilterPresets(presets []miru.Preset, bank Bank) []miru.Preset {
	instruments := instrumentFilter(bank.SelectedInstrumentGroups)
	out := make([]miru.Preset, 0, len(presets))
	for _, p := range presets {
		if len(bank.SelectedDevices) > 0 && !affectsAny(p, bank.SelectedDevices) {
			continue
		}
		if instruments != nil && !instruments[p.Instrument()] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func affectsAny(p miru.Preset, deviceIDs []int) bool {
	for _, id := range p.AffectedDeviceIDs() {
		if slices.Contains(deviceIDs, id) {
			return true
		}
	}
	return false
}

// OrderedPresets filters and sorts presets for a bank.
func OrderedPresets(presets []miru.Preset, bank Bank) []miru.Preset {
	return metadata.SortPresets(FilterPresets(presets, bank))
}

// FilteredOrderedPresets returns the presets a bank's buttons bind to, in
// binding order.
func (r *Resolver) FilteredOrderedPresets(ctx context.Context, bankID string) ([]miru.Preset, error) {
	bank, err := r.bindings.GetBank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	return OrderedPresets(r.presets.Presets(), bank), nil
}

// PresetForButton returns the preset bound to a control of a bank, or nil if
// the control is not learned by the bank or its position has no preset.
func (r *Resolver) PresetForButton(ctx context.Context, bankID, controlID string) (*miru.Preset, error) {
	index, err := r.bindings.LocateInBank(ctx, bankID, controlID)
	if err != nil || index < 0 {
		return nil, err
	}
	presets, err := r.FilteredOrderedPresets(ctx, bankID)
	if err != nil {
		return nil, err
	}
	if index >= len(presets) {
		return nil, nil
	}
	return &presets[index], nil
}

// Resolve locates a control in any bank and returns its bound preset. The
// location is returned even when no preset is bound.
func (r *Resolver) Resolve(ctx context.Context, controlID string) (*miru.Preset, Location, error) {
	loc, err := r.bindings.Locate(ctx, controlID)
	if err != nil || !loc.Found() {
		return nil, loc, err
	}
	preset, err := r.PresetForButton(ctx, loc.BankID, controlID)
	return preset, loc, err
}

// BankSummary counts the learned buttons and eligible presets of a bank.
type BankSummary struct {
	Learned []string `json:"learned"`
	Presets int      `json:"presets"`
}

// Summaries returns a summary per stored bank.
func (r *Resolver) Summaries(ctx context.Context) (map[string]BankSummary, error) {
	banks, err := r.bindings.Banks(ctx)
	if err != nil {
		return nil, err
	}
	presets := r.presets.Presets()
	out := make(map[string]BankSummary, len(banks))
	for _, bank := range banks {
		learned := bank.LearnedButtons
		if learned == nil {
			learned = []string{}
		}
		out[bank.ID] = BankSummary{
			Learned: learned,
			Presets: len(FilterPresets(presets, bank)),
		}
	}
	return out, nil
}
