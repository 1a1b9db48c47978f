// Package metadata holds the static preset metadata tables: known
// instruments and shot sizes in display order, instrument groups and their
// colors, and the preset ordering used by auto preset banks.
package metadata

import (
	"math"
	"slices"
	"strings"
)

// Value is one known metadata value.
type Value struct {
	Value string
	Name  string
	Extra string // additional search text
}

// ShotSizes in display order.
var ShotSizes = []Value{
	{Value: "wide", Name: "Wide"},
	{Value: "medium", Name: "Medium"},
	{Value: "close", Name: "Close up"},
}

// Instruments in score order.
var Instruments = []Value{
	{Value: "1st violin", Name: "First violin", Extra: "1"},
	{Value: "2nd violin", Name: "Second violin", Extra: "2"},
	{Value: "viola", Name: "Viola"},
	{Value: "cello", Name: "Cello", Extra: "violoncello"},
	{Value: "double bass", Name: "Double bass", Extra: "contrabass"},
	{Value: "piccolo", Name: "Piccolo", Extra: "flute"},
	{Value: "flute", Name: "Flute"},
	{Value: "oboe", Name: "Oboe"},
	{Value: "cor anglais", Name: "Cor anglais"},
	{Value: "clarinet", Name: "Clarinet"},
	{Value: "bass clarinet", Name: "Bass clarinet"},
	{Value: "bassoon", Name: "Bassoon"},
	{Value: "trumpet", Name: "Trumpet"},
	{Value: "trombone", Name: "Trombone"},
	{Value: "french horn", Name: "French horn"},
	{Value: "tuba", Name: "Tuba"},
	{Value: "timpani", Name: "Timpani"},
	{Value: "tam tam", Name: "Tam tam"},
	{Value: "bass drum", Name: "Bass drum"},
	{Value: "cymbals", Name: "Cymbals"},
	{Value: "xylophone", Name: "Xylophone"},
	{Value: "vibraphone", Name: "Vibraphone"},
	{Value: "marimba", Name: "Marimba"},
	{Value: "chimes", Name: "Chimes"},
	{Value: "snare drum", Name: "Snare drum"},
	{Value: "tubular bells", Name: "Tubular bells"},
	{Value: "harp", Name: "Harp"},
	{Value: "piano", Name: "Piano"},
	{Value: "conductor", Name: "Conductor"},
}

// Instrument groups.
const (
	GroupStrings    = "strings"
	GroupWoodwinds  = "woodwinds"
	GroupBrass      = "brass"
	GroupPercussion = "percussion"
	GroupOther      = "other"
)

var groupOrder = []string{GroupStrings, GroupWoodwinds, GroupBrass, GroupPercussion, GroupOther}

var instrumentGroups = map[string]string{
	"1st violin":    GroupStrings,
	"2nd violin":    GroupStrings,
	"viola":         GroupStrings,
	"cello":         GroupStrings,
	"double bass":   GroupStrings,
	"piccolo":       GroupWoodwinds,
	"flute":         GroupWoodwinds,
	"oboe":          GroupWoodwinds,
	"cor anglais":   GroupWoodwinds,
	"clarinet":      GroupWoodwinds,
	"bass clarinet": GroupWoodwinds,
	"bassoon":       GroupWoodwinds,
	"trumpet":       GroupBrass,
	"trombone":      GroupBrass,
	"french horn":   GroupBrass,
	"tuba":          GroupBrass,
	"timpani":       GroupPercussion,
	"tam tam":       GroupPercussion,
	"bass drum":     GroupPercussion,
	"cymbals":       GroupPercussion,
	"xylophone":     GroupPercussion,
	"vibraphone":    GroupPercussion,
	"marimba":       GroupPercussion,
	"chimes":        GroupPercussion,
	"snare drum":    GroupPercussion,
	"tubular bells": GroupPercussion,
	"harp":          GroupOther,
	"piano":         GroupOther,
	"conductor":     GroupOther,
}

// GroupColors are the button background colors per instrument group.
var GroupColors = map[string][3]uint8{
	GroupStrings:    {56, 80, 56},
	GroupWoodwinds:  {77, 0, 80},
	GroupBrass:      {125, 108, 0},
	GroupPercussion: {0, 13, 80},
	GroupOther:      {0, 0, 0},
}

var (
	instrumentRank = rankOf(Instruments)
	shotSizeRank   = rankOf(ShotSizes)
)

func rankOf(values []Value) map[string]int {
	m := make(map[string]int, len(values))
	for i, v := range values {
		m[v.Value] = i
	}
	return m
}

// InstrumentRank returns the score position of an instrument; unknown
// instruments rank after every known one.
func InstrumentRank(instrument string) int {
	if r, ok := instrumentRank[instrument]; ok {
		return r
	}
	return len(Instruments)
}

// ShotSizeRank returns the position of a shot size; missing or unknown sizes
// rank last.
func ShotSizeRank(shotSize string) int {
	if r, ok := shotSizeRank[shotSize]; ok {
		return r
	}
	return len(ShotSizes)
}

// GroupForInstrument returns the group of an instrument, "other" if unknown.
func GroupForInstrument(instrument string) string {
	if g, ok := instrumentGroups[instrument]; ok {
		return g
	}
	return GroupOther
}

// InstrumentsForGroup returns the instruments of a group in score order.
func InstrumentsForGroup(group string) []string {
	var out []string
	for _, v := range Instruments {
		if instrumentGroups[v.Value] == group {
			out = append(out, v.Value)
		}
	}
	return out
}

// Groups returns every instrument group in score order.
func Groups() []string {
	return slices.Clone(groupOrder)
}

// ColorForInstrument returns the background color of an instrument's group.
// Unknown instruments and the "other" group are black.
func ColorForInstrument(instrument string) (r, g, b uint8) {
	group := GroupForInstrument(instrument)
	c, ok := GroupColors[group]
	if !ok || group == GroupOther {
		return 0, 0, 0
	}
	return c[0], c[1], c[2]
}

// Matches reports whether a metadata value matches a case-insensitive search.
func (v Value) Matches(search string) bool {
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(v.Value), search) ||
		strings.Contains(strings.ToLower(v.Name), search) ||
		(v.Extra != "" && strings.Contains(strings.ToLower(v.Extra), search))
}

// DisplayName returns the human readable name of an instrument.
func DisplayName(instrument string) string {
	if r, ok := instrumentRank[instrument]; ok {
		return Instruments[r].Name
	}
	return instrument
}

// MinDeviceID returns the smallest id in ids, or math.MaxInt when empty.
func MinDeviceID(ids []int) int {
	if len(ids) == 0 {
		return math.MaxInt
	}
	return slices.Min(ids)
}
