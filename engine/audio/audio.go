// Package audio plays the chart's music track and exposes a sample-accurate
// playback position for the conductor to follow.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"github.com/yumekawa-dev/kanade/engine/core"
)

// Player owns the speaker and at most one music stream at a time.
type Player struct {
	mu          sync.Mutex
	format      beep.Format
	streamer    beep.StreamSeekCloser
	initialized bool
	playing     bool
}

func NewPlayer() *Player {
	return &Player{}
}

func decodeByExtension(path string, f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return wav.Decode(f)
	case ".mp3":
		return mp3.Decode(f)
	case ".flac":
		return flac.Decode(f)
	}
	return nil, beep.Format{}, fmt.Errorf("unsupported audio format %q", filepath.Ext(path))
}

// Load opens and decodes a music file, initializing the speaker for its
// sample rate on first use. Any previously loaded track is closed.
func (p *Player) Load(path string, bufferSize time.Duration) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open music file: %w", err)
	}

	streamer, format, err := decodeByExtension(path, f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode music file %s: %w", path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer != nil {
		p.streamer.Close()
	}

	if !p.initialized {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(bufferSize)); err != nil {
			streamer.Close()
			return fmt.Errorf("initialize speaker: %w", err)
		}
		p.initialized = true
	}

	p.streamer = streamer
	p.format = format
	p.playing = false
	core.LogInfo("loaded music track %s (%d Hz)", path, format.SampleRate)
	return nil
}

// Play starts playback from the given offset into the track.
func (p *Player) Play(offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return fmt.Errorf("no music track loaded")
	}
	if err := p.streamer.Seek(p.format.SampleRate.N(offset)); err != nil {
		return fmt.Errorf("seek music track: %w", err)
	}

	speaker.Play(beep.Seq(p.streamer, beep.Callback(func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	})))
	p.playing = true
	return nil
}

// Position reports how far into the track playback currently is.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := p.streamer.Position()
	speaker.Unlock()
	return p.format.SampleRate.D(pos)
}

// Playing reports whether the track is still streaming.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamer != nil {
		speaker.Clear()
		p.streamer.Close()
		p.streamer = nil
	}
	p.playing = false
}
