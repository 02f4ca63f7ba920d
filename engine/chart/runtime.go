package chart

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// RuntimeNote is a note with its hit time resolved to seconds from the
// start of the piece.
type RuntimeNote struct {
	ID     uuid.UUID
	Offset float64
	Kind   NoteKind
	Cell   uint32
	Width  uint32
}

// RuntimePlatform is a platform with both ends resolved to seconds.
type RuntimePlatform struct {
	ID           uuid.UUID
	Kind         PlatformKind
	StartSeconds float64
	EndSeconds   float64

	StartPlacement float32
	StartWidth     float32
	EndPlacement   float32
	EndWidth       float32
}

// RuntimeChart is the timed form the game consumes.
type RuntimeChart struct {
	Info      *Info
	Notes     []RuntimeNote
	Platforms []RuntimePlatform
	timeline  timeline
}

// timelineSegment covers measures from StartMeasures (fractional) onward at
// a constant tempo.
type timelineSegment struct {
	startMeasures     float64
	startSeconds      float64
	secondsPerMeasure float64
}

type timeline struct {
	segments []timelineSegment
}

func (p MusicPosition) measures() float64 {
	return float64(p.Measure) + float64(p.Offset)
}

func secondsPerMeasure(bpm uint32, signature TimeSignature) float64 {
	return 60.0 * float64(signature.NumBeats) / float64(bpm)
}

// buildTimeline folds the BPM and time-signature change lists into a sorted
// list of constant-tempo segments.
func buildTimeline(info *Info) (timeline, error) {
	type tempoEvent struct {
		at        float64
		bpm       uint32
		signature *TimeSignature
	}

	events := make([]tempoEvent, 0, len(info.BPMChanges)+len(info.MeasureChanges))
	for _, change := range info.BPMChanges {
		if change.BPM == 0 {
			return timeline{}, fmt.Errorf("bpm change at measure %d has zero bpm", change.Position.Measure)
		}
		events = append(events, tempoEvent{at: change.Position.measures(), bpm: change.BPM})
	}
	for _, change := range info.MeasureChanges {
		if change.Signature.NumBeats == 0 || change.Signature.NoteValue == 0 {
			return timeline{}, fmt.Errorf("measure change at measure %d has zero signature", change.Position.Measure)
		}
		signature := change.Signature
		events = append(events, tempoEvent{at: change.Position.measures(), signature: &signature})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].at < events[j].at
	})

	bpm := info.StartingBPM
	signature := info.StartingMeasure
	segments := []timelineSegment{{
		startMeasures:     0,
		startSeconds:      float64(info.MusicStartingOffset),
		secondsPerMeasure: secondsPerMeasure(bpm, signature),
	}}

	for _, event := range events {
		last := segments[len(segments)-1]
		startSeconds := last.startSeconds + (event.at-last.startMeasures)*last.secondsPerMeasure

		if event.bpm != 0 {
			bpm = event.bpm
		}
		if event.signature != nil {
			signature = *event.signature
		}
		segment := timelineSegment{
			startMeasures:     event.at,
			startSeconds:      startSeconds,
			secondsPerMeasure: secondsPerMeasure(bpm, signature),
		}
		// Coincident changes collapse into the rightmost segment.
		if event.at == last.startMeasures {
			segments[len(segments)-1] = segment
		} else {
			segments = append(segments, segment)
		}
	}
	return timeline{segments: segments}, nil
}

// seconds resolves a music position against the tempo timeline.
func (t *timeline) seconds(position MusicPosition) float64 {
	at := position.measures()
	segment := t.segments[0]
	for _, candidate := range t.segments[1:] {
		if candidate.startMeasures > at {
			break
		}
		segment = candidate
	}
	return segment.startSeconds + (at-segment.startMeasures)*segment.secondsPerMeasure
}

// Compile resolves every positioned object to seconds and assigns runtime
// identities. Notes come out sorted by hit time.
func Compile(info *Info) (*RuntimeChart, error) {
	tl, err := buildTimeline(info)
	if err != nil {
		return nil, fmt.Errorf("compile chart: %w", err)
	}

	notes := make([]RuntimeNote, len(info.Notes))
	for i, note := range info.Notes {
		notes[i] = RuntimeNote{
			ID:     uuid.New(),
			Offset: tl.seconds(note.Position),
			Kind:   note.Kind,
			Cell:   note.Cell,
			Width:  note.Width,
		}
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Offset < notes[j].Offset
	})

	platforms := make([]RuntimePlatform, len(info.Platforms))
	for i, platform := range info.Platforms {
		start := tl.seconds(platform.Start)
		end := tl.seconds(platform.End)
		if end <= start {
			return nil, fmt.Errorf("compile chart: platform %d ends at %.3fs before it starts at %.3fs", i, end, start)
		}
		platforms[i] = RuntimePlatform{
			ID:             uuid.New(),
			Kind:           platform.Kind,
			StartSeconds:   start,
			EndSeconds:     end,
			StartPlacement: platform.StartPlacement,
			StartWidth:     platform.StartWidth,
			EndPlacement:   platform.EndPlacement,
			EndWidth:       platform.EndWidth,
		}
	}

	return &RuntimeChart{
		Info:      info,
		Notes:     notes,
		Platforms: platforms,
		timeline:  tl,
	}, nil
}

// PositionToSeconds exposes the tempo timeline for consumers that place
// their own objects, such as the playfield speed ramps.
func (c *RuntimeChart) PositionToSeconds(position MusicPosition) float64 {
	return c.timeline.seconds(position)
}

// Duration reports the time of the last note or platform end, whichever is
// later.
func (c *RuntimeChart) Duration() float64 {
	var last float64
	if n := len(c.Notes); n > 0 {
		last = c.Notes[n-1].Offset
	}
	for _, platform := range c.Platforms {
		if platform.EndSeconds > last {
			last = platform.EndSeconds
		}
	}
	return last
}
