package runner

import (
	"time"

	"github.com/yumekawa-dev/kanade/engine/platform"
)

// PositionSource is where the conductor reads musical time from, usually
// the audio player.
type PositionSource interface {
	Position() time.Duration
	Playing() bool
}

// Conductor turns the audio stream position into a smooth song position.
// The audio clock only advances in buffer-sized steps, so between polls
// the conductor extrapolates with wall time and resynchronizes whenever
// the audio clock moves. The reported position never goes backwards.
type Conductor struct {
	source PositionSource
	// now returns wall time in seconds; swapped out in tests.
	now func() float64

	started       bool
	lastAudio     time.Duration
	lastAudioWall float64
	position      float64
}

func NewConductor(source PositionSource) *Conductor {
	return &Conductor{
		source: source,
		now:    platform.GetAbsoluteTime,
	}
}

// Start arms the conductor at the source's current position.
func (c *Conductor) Start() {
	c.started = true
	c.lastAudio = c.source.Position()
	c.lastAudioWall = c.now()
	c.position = c.lastAudio.Seconds()
}

// Update polls the source and returns the current song position in
// seconds.
func (c *Conductor) Update() float64 {
	if !c.started {
		return 0
	}

	audio := c.source.Position()
	wall := c.now()

	if audio != c.lastAudio {
		c.lastAudio = audio
		c.lastAudioWall = wall
	}

	estimated := c.lastAudio.Seconds() + (wall - c.lastAudioWall)
	if estimated > c.position {
		c.position = estimated
	}
	return c.position
}

// Position returns the last computed song position without polling.
func (c *Conductor) Position() float64 {
	return c.position
}

// Finished reports whether the track has stopped playing.
func (c *Conductor) Finished() bool {
	return c.started && !c.source.Playing()
}
