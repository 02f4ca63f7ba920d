// Package chart parses text chart files and compiles them into the timed
// form the game consumes. The format is line oriented: `//` comments, a
// TAG line opening a section, then one record per line until the next tag.
package chart

import "fmt"

// MusicPosition locates an event inside the piece: a zero-based measure
// plus a fractional offset into it, in [0, 1).
type MusicPosition struct {
	Measure uint32
	Offset  float32
}

// TimeSignature is the usual numerator over denominator pair.
type TimeSignature struct {
	NumBeats  uint32
	NoteValue uint32
}

// NoteKind is the input gesture a note asks for.
type NoteKind uint8

const (
	NoteTap1 NoteKind = iota
	NoteTap2
	NoteTap3
	NoteTap4
	NoteTapMove1
	NoteTapMove2
	NoteTapWidth
)

var noteKindNames = map[string]NoteKind{
	"T1":  NoteTap1,
	"T2":  NoteTap2,
	"T3":  NoteTap3,
	"T4":  NoteTap4,
	"TM1": NoteTapMove1,
	"TM2": NoteTapMove2,
	"TW":  NoteTapWidth,
}

func noteKindFromString(s string) (NoteKind, error) {
	kind, ok := noteKindNames[s]
	if !ok {
		return 0, fmt.Errorf("unknown note kind %q", s)
	}
	return kind, nil
}

// Note is a chart-authored hit object. Cell is the leftmost lane cell the
// note occupies; Width is how many cells it spans.
type Note struct {
	Position MusicPosition
	Kind     NoteKind
	Cell     uint32
	Width    uint32
}

// BPMChange takes effect at its music position.
type BPMChange struct {
	Position MusicPosition
	BPM      uint32
}

// MeasureChange switches the time signature at its music position.
type MeasureChange struct {
	Position  MusicPosition
	Signature TimeSignature
}

// PlayfieldSpeedChange is a cosmetic scroll speed ramp.
type PlayfieldSpeedChange struct {
	Position   MusicPosition
	Duration   float32
	Multiplier float32
}

// PlatformKind selects the platform geometry generator.
type PlatformKind uint8

const (
	// PlatformQuad is a flat quad interpolating placement and width
	// between its start and end positions.
	PlatformQuad PlatformKind = iota
	// PlatformChecker is a quad rendered with a checker pattern.
	PlatformChecker
)

var platformKindNames = map[string]PlatformKind{
	"DQ": PlatformQuad,
	"CQ": PlatformChecker,
}

func platformKindFromString(s string) (PlatformKind, error) {
	kind, ok := platformKindNames[s]
	if !ok {
		return 0, fmt.Errorf("unknown platform kind %q", s)
	}
	return kind, nil
}

// Platform is a chart-authored runner surface spanning a time range.
// Placement is the x position of the platform's left edge.
type Platform struct {
	Kind           PlatformKind
	Start          MusicPosition
	End            MusicPosition
	StartPlacement float32
	StartWidth     float32
	EndPlacement   float32
	EndWidth       float32
}

// Info is the parsed chart file, still in musical time.
type Info struct {
	// Resolution is the tick grid per measure; record offsets are
	// authored in ticks of this grid.
	Resolution      uint32
	StartingBPM     uint32
	StartingMeasure TimeSignature

	BPMChanges      []BPMChange
	MeasureChanges  []MeasureChange
	PlayfieldSpeeds []PlayfieldSpeedChange
	Notes           []Note
	Platforms       []Platform

	MusicFilePath string
	// MusicStartingOffset is the gap in seconds before measure zero.
	MusicStartingOffset float32
}
