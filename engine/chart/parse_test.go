package chart

import (
	"math"
	"strings"
	"testing"
)

const sampleChart = `
// Tutorial chart.
RESOLUTION
480

STARTING_BPM
120

STARTING_MEASURE
4 4

MUSIC_FILE_PATH
music/tutorial.wav

MUSIC_STARTING_OFFSET
1.5

NOTES
T1 0 0 2 2
T2 0 240 4 2
TW 1 0 0 8

PLATFORMS
DQ 0 0 2 0 -1.0 2.0 -1.0 2.0
`

func parseSample(t *testing.T, text string) *Info {
	t.Helper()
	info, err := Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return info
}

func TestParseSampleChart(t *testing.T) {
	info := parseSample(t, sampleChart)

	if info.Resolution != 480 {
		t.Errorf("resolution = %d, want 480", info.Resolution)
	}
	if info.StartingBPM != 120 {
		t.Errorf("starting bpm = %d, want 120", info.StartingBPM)
	}
	if info.StartingMeasure.NumBeats != 4 || info.StartingMeasure.NoteValue != 4 {
		t.Errorf("starting measure = %+v, want 4/4", info.StartingMeasure)
	}
	if info.MusicFilePath != "music/tutorial.wav" {
		t.Errorf("music file path = %q", info.MusicFilePath)
	}
	if info.MusicStartingOffset != 1.5 {
		t.Errorf("starting offset = %f, want 1.5", info.MusicStartingOffset)
	}

	if len(info.Notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(info.Notes))
	}
	second := info.Notes[1]
	if second.Kind != NoteTap2 {
		t.Errorf("second note kind = %d, want NoteTap2", second.Kind)
	}
	if second.Position.Measure != 0 || second.Position.Offset != 0.5 {
		t.Errorf("second note position = %+v, want measure 0 offset 0.5", second.Position)
	}
	if second.Cell != 4 || second.Width != 2 {
		t.Errorf("second note cell/width = %d/%d, want 4/2", second.Cell, second.Width)
	}

	if len(info.Platforms) != 1 {
		t.Fatalf("got %d platforms, want 1", len(info.Platforms))
	}
	platform := info.Platforms[0]
	if platform.Kind != PlatformQuad {
		t.Errorf("platform kind = %d, want PlatformQuad", platform.Kind)
	}
	if platform.End.Measure != 2 {
		t.Errorf("platform end measure = %d, want 2", platform.End.Measure)
	}
	if platform.StartPlacement != -1.0 || platform.StartWidth != 2.0 {
		t.Errorf("platform placement/width = %f/%f", platform.StartPlacement, platform.StartWidth)
	}
}

func TestParseRejections(t *testing.T) {
	cases := []struct {
		name  string
		chart string
	}{
		{"record before any tag", "480\nRESOLUTION\n480\nSTARTING_BPM\n120\nSTARTING_MEASURE\n4 4\n"},
		{"missing resolution", "STARTING_BPM\n120\nSTARTING_MEASURE\n4 4\n"},
		{"missing starting bpm", "RESOLUTION\n480\nSTARTING_MEASURE\n4 4\n"},
		{"missing starting measure", "RESOLUTION\n480\nSTARTING_BPM\n120\n"},
		{"unknown note kind", sampleChart + "\nNOTES\nXX 0 0 0 1\n"},
		{"zero note width", sampleChart + "\nNOTES\nT1 0 0 0 0\n"},
		{"tick outside resolution", sampleChart + "\nNOTES\nT1 0 480 0 1\n"},
		{"short note record", sampleChart + "\nNOTES\nT1 0 0 0\n"},
		{"unknown platform kind", sampleChart + "\nPLATFORMS\nZZ 0 0 1 0 0 1 0 1\n"},
		{"position before resolution", "STARTING_BPM\n120\nBPM_CHANGES\n1 0 140\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tc.chart)); err == nil {
				t.Error("expected a parse error")
			}
		})
	}
}

func TestParseCommentsAndBlankLinesIgnored(t *testing.T) {
	info := parseSample(t, "// header\n\nRESOLUTION\n// grid\n192\nSTARTING_BPM\n90\nSTARTING_MEASURE\n3 4\n")
	if info.Resolution != 192 || info.StartingBPM != 90 {
		t.Errorf("parsed %d/%d, want 192/90", info.Resolution, info.StartingBPM)
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestCompileConstantTempo(t *testing.T) {
	info := parseSample(t, sampleChart)
	compiled, err := Compile(info)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	// At 120 bpm in 4/4 a measure lasts two seconds, after the 1.5s lead-in.
	wantOffsets := []float64{1.5, 2.5, 3.5}
	if len(compiled.Notes) != len(wantOffsets) {
		t.Fatalf("got %d notes, want %d", len(compiled.Notes), len(wantOffsets))
	}
	for i, want := range wantOffsets {
		if !almostEqual(compiled.Notes[i].Offset, want) {
			t.Errorf("note %d offset = %f, want %f", i, compiled.Notes[i].Offset, want)
		}
	}

	platform := compiled.Platforms[0]
	if !almostEqual(platform.StartSeconds, 1.5) || !almostEqual(platform.EndSeconds, 5.5) {
		t.Errorf("platform spans [%f, %f], want [1.5, 5.5]", platform.StartSeconds, platform.EndSeconds)
	}
	if !almostEqual(compiled.Duration(), 5.5) {
		t.Errorf("duration = %f, want 5.5", compiled.Duration())
	}
}

func TestCompileAppliesBPMChanges(t *testing.T) {
	text := `
RESOLUTION
480
STARTING_BPM
120
STARTING_MEASURE
4 4
BPM_CHANGES
1 0 240
NOTES
T1 0 0 0 1
T1 1 0 0 1
T1 2 0 0 1
`
	compiled, err := Compile(parseSample(t, text))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	// Measure 0 lasts 2s at 120 bpm; measure 1 lasts 1s at 240 bpm.
	wantOffsets := []float64{0, 2, 3}
	for i, want := range wantOffsets {
		if !almostEqual(compiled.Notes[i].Offset, want) {
			t.Errorf("note %d offset = %f, want %f", i, compiled.Notes[i].Offset, want)
		}
	}
}

func TestCompileAppliesMeasureChanges(t *testing.T) {
	text := `
RESOLUTION
480
STARTING_BPM
120
STARTING_MEASURE
4 4
MEASURE_CHANGES
1 0 3 4
NOTES
T1 1 0 0 1
T1 2 0 0 1
`
	compiled, err := Compile(parseSample(t, text))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	// A 3/4 measure at 120 bpm lasts 1.5s.
	if !almostEqual(compiled.Notes[0].Offset, 2) {
		t.Errorf("note 0 offset = %f, want 2", compiled.Notes[0].Offset)
	}
	if !almostEqual(compiled.Notes[1].Offset, 3.5) {
		t.Errorf("note 1 offset = %f, want 3.5", compiled.Notes[1].Offset)
	}
}

func TestCompileSortsNotesByTime(t *testing.T) {
	text := `
RESOLUTION
480
STARTING_BPM
120
STARTING_MEASURE
4 4
NOTES
T1 3 0 0 1
T1 0 0 0 1
T1 1 240 0 1
`
	compiled, err := Compile(parseSample(t, text))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	for i := 1; i < len(compiled.Notes); i++ {
		if compiled.Notes[i].Offset < compiled.Notes[i-1].Offset {
			t.Fatalf("notes out of order at %d: %f < %f", i, compiled.Notes[i].Offset, compiled.Notes[i-1].Offset)
		}
	}
}

func TestCompileRejectsInvertedPlatform(t *testing.T) {
	text := `
RESOLUTION
480
STARTING_BPM
120
STARTING_MEASURE
4 4
PLATFORMS
DQ 2 0 1 0 0 1 0 1
`
	if _, err := Compile(parseSample(t, text)); err == nil {
		t.Error("expected an error for a platform that ends before it starts")
	}
}

func TestCompileRejectsZeroBPMChange(t *testing.T) {
	info := parseSample(t, sampleChart)
	info.BPMChanges = append(info.BPMChanges, BPMChange{Position: MusicPosition{Measure: 1}, BPM: 0})
	if _, err := Compile(info); err == nil {
		t.Error("expected an error for a zero bpm change")
	}
}

func TestCompileAssignsUniqueIDs(t *testing.T) {
	compiled, err := Compile(parseSample(t, sampleChart))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	seen := make(map[string]bool)
	for _, note := range compiled.Notes {
		if seen[note.ID.String()] {
			t.Fatalf("duplicate note id %s", note.ID)
		}
		seen[note.ID.String()] = true
	}
}
