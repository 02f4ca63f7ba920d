package chart

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const commentPrefix = "//"

type tag uint8

const (
	tagNone tag = iota
	tagResolution
	tagStartingBPM
	tagStartingMeasure
	tagBPMChanges
	tagMeasureChanges
	tagPlayfieldChanges
	tagNotes
	tagPlatforms
	tagMusicFilePath
	tagMusicStartingOffset
)

var tagNames = map[string]tag{
	"RESOLUTION":            tagResolution,
	"STARTING_BPM":          tagStartingBPM,
	"STARTING_MEASURE":      tagStartingMeasure,
	"BPM_CHANGES":           tagBPMChanges,
	"MEASURE_CHANGES":       tagMeasureChanges,
	"PLAYFIELD_CHANGES":     tagPlayfieldChanges,
	"NOTES":                 tagNotes,
	"PLATFORMS":             tagPlatforms,
	"MUSIC_FILE_PATH":       tagMusicFilePath,
	"MUSIC_STARTING_OFFSET": tagMusicStartingOffset,
}

// ParseFile parses the chart at path.
func ParseFile(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chart: %w", err)
	}
	defer f.Close()

	info, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse chart %s: %w", path, err)
	}
	return info, nil
}

// Parse reads a chart in the text format. Records are whitespace separated
// fields; their offsets are authored in ticks of the RESOLUTION grid and
// converted to fractional measures here.
func Parse(r io.Reader) (*Info, error) {
	info := &Info{}
	current := tagNone
	scanner := bufio.NewScanner(r)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}

		if next, isTag := tagNames[line]; isTag {
			current = next
			continue
		}
		if current == tagNone {
			return nil, fmt.Errorf("line %d: record %q before any tag", lineNumber, line)
		}

		if err := parseRecord(info, current, strings.Fields(line)); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if info.Resolution == 0 {
		return nil, fmt.Errorf("missing or zero RESOLUTION")
	}
	if info.StartingBPM == 0 {
		return nil, fmt.Errorf("missing or zero STARTING_BPM")
	}
	if info.StartingMeasure.NumBeats == 0 || info.StartingMeasure.NoteValue == 0 {
		return nil, fmt.Errorf("missing STARTING_MEASURE")
	}
	return info, nil
}

func parseRecord(info *Info, current tag, fields []string) error {
	switch current {
	case tagResolution:
		return parseUint32Field(fields, 0, &info.Resolution)

	case tagStartingBPM:
		return parseUint32Field(fields, 0, &info.StartingBPM)

	case tagStartingMeasure:
		if len(fields) != 2 {
			return fmt.Errorf("STARTING_MEASURE wants 2 fields, got %d", len(fields))
		}
		if err := parseUint32Field(fields, 0, &info.StartingMeasure.NumBeats); err != nil {
			return err
		}
		return parseUint32Field(fields, 1, &info.StartingMeasure.NoteValue)

	case tagBPMChanges:
		if len(fields) != 3 {
			return fmt.Errorf("BPM_CHANGES record wants 3 fields, got %d", len(fields))
		}
		position, err := parsePosition(info, fields[0], fields[1])
		if err != nil {
			return err
		}
		var bpm uint32
		if err := parseUint32Field(fields, 2, &bpm); err != nil {
			return err
		}
		info.BPMChanges = append(info.BPMChanges, BPMChange{Position: position, BPM: bpm})
		return nil

	case tagMeasureChanges:
		if len(fields) != 4 {
			return fmt.Errorf("MEASURE_CHANGES record wants 4 fields, got %d", len(fields))
		}
		position, err := parsePosition(info, fields[0], fields[1])
		if err != nil {
			return err
		}
		var signature TimeSignature
		if err := parseUint32Field(fields, 2, &signature.NumBeats); err != nil {
			return err
		}
		if err := parseUint32Field(fields, 3, &signature.NoteValue); err != nil {
			return err
		}
		info.MeasureChanges = append(info.MeasureChanges, MeasureChange{Position: position, Signature: signature})
		return nil

	case tagPlayfieldChanges:
		if len(fields) != 4 {
			return fmt.Errorf("PLAYFIELD_CHANGES record wants 4 fields, got %d", len(fields))
		}
		position, err := parsePosition(info, fields[0], fields[1])
		if err != nil {
			return err
		}
		duration, err := parseFloat32(fields[2])
		if err != nil {
			return err
		}
		multiplier, err := parseFloat32(fields[3])
		if err != nil {
			return err
		}
		info.PlayfieldSpeeds = append(info.PlayfieldSpeeds, PlayfieldSpeedChange{
			Position:   position,
			Duration:   duration,
			Multiplier: multiplier,
		})
		return nil

	case tagNotes:
		if len(fields) != 5 {
			return fmt.Errorf("NOTES record wants 5 fields, got %d", len(fields))
		}
		kind, err := noteKindFromString(fields[0])
		if err != nil {
			return err
		}
		position, err := parsePosition(info, fields[1], fields[2])
		if err != nil {
			return err
		}
		note := Note{Position: position, Kind: kind}
		if err := parseUint32Field(fields, 3, &note.Cell); err != nil {
			return err
		}
		if err := parseUint32Field(fields, 4, &note.Width); err != nil {
			return err
		}
		if note.Width == 0 {
			return fmt.Errorf("note width must be non-zero")
		}
		info.Notes = append(info.Notes, note)
		return nil

	case tagPlatforms:
		if len(fields) != 9 {
			return fmt.Errorf("PLATFORMS record wants 9 fields, got %d", len(fields))
		}
		kind, err := platformKindFromString(fields[0])
		if err != nil {
			return err
		}
		start, err := parsePosition(info, fields[1], fields[2])
		if err != nil {
			return err
		}
		end, err := parsePosition(info, fields[3], fields[4])
		if err != nil {
			return err
		}
		platform := Platform{Kind: kind, Start: start, End: end}
		floats := []*float32{
			&platform.StartPlacement, &platform.StartWidth,
			&platform.EndPlacement, &platform.EndWidth,
		}
		for i, dst := range floats {
			value, err := parseFloat32(fields[5+i])
			if err != nil {
				return err
			}
			*dst = value
		}
		info.Platforms = append(info.Platforms, platform)
		return nil

	case tagMusicFilePath:
		if len(fields) != 1 {
			return fmt.Errorf("MUSIC_FILE_PATH wants 1 field, got %d", len(fields))
		}
		info.MusicFilePath = fields[0]
		return nil

	case tagMusicStartingOffset:
		if len(fields) != 1 {
			return fmt.Errorf("MUSIC_STARTING_OFFSET wants 1 field, got %d", len(fields))
		}
		offset, err := parseFloat32(fields[0])
		if err != nil {
			return err
		}
		info.MusicStartingOffset = offset
		return nil
	}
	return fmt.Errorf("unhandled tag %d", current)
}

func parsePosition(info *Info, measureField, tickField string) (MusicPosition, error) {
	measure, err := strconv.ParseUint(measureField, 10, 32)
	if err != nil {
		return MusicPosition{}, fmt.Errorf("measure %q: %w", measureField, err)
	}
	tick, err := strconv.ParseUint(tickField, 10, 32)
	if err != nil {
		return MusicPosition{}, fmt.Errorf("tick %q: %w", tickField, err)
	}
	if info.Resolution == 0 {
		return MusicPosition{}, fmt.Errorf("RESOLUTION must appear before positioned records")
	}
	if uint32(tick) >= info.Resolution {
		return MusicPosition{}, fmt.Errorf("tick %d outside resolution %d", tick, info.Resolution)
	}
	return MusicPosition{
		Measure: uint32(measure),
		Offset:  float32(tick) / float32(info.Resolution),
	}, nil
}

func parseUint32Field(fields []string, index int, dst *uint32) error {
	if index >= len(fields) {
		return fmt.Errorf("missing field %d", index)
	}
	value, err := strconv.ParseUint(fields[index], 10, 32)
	if err != nil {
		return fmt.Errorf("field %q: %w", fields[index], err)
	}
	*dst = uint32(value)
	return nil
}

func parseFloat32(field string) (float32, error) {
	value, err := strconv.ParseFloat(field, 32)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}
	return float32(value), nil
}
