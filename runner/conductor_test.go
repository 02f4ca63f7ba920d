package runner

import (
	"math"
	"testing"
	"time"
)

type fakeSource struct {
	position time.Duration
	playing  bool
}

func (f *fakeSource) Position() time.Duration { return f.position }
func (f *fakeSource) Playing() bool           { return f.playing }

// testConductor returns a conductor driven by a controllable wall clock.
func testConductor(source *fakeSource) (*Conductor, *float64) {
	wall := new(float64)
	c := NewConductor(source)
	c.now = func() float64 { return *wall }
	return c, wall
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestConductorExtrapolatesBetweenAudioPolls(t *testing.T) {
	source := &fakeSource{position: time.Second, playing: true}
	c, wall := testConductor(source)

	*wall = 10.0
	c.Start()
	if !almostEqual(c.Position(), 1.0) {
		t.Fatalf("start position = %f, want 1.0", c.Position())
	}

	// The audio clock has not moved, but wall time has.
	*wall = 10.25
	if got := c.Update(); !almostEqual(got, 1.25) {
		t.Errorf("extrapolated position = %f, want 1.25", got)
	}
}

func TestConductorResyncsWhenAudioAdvances(t *testing.T) {
	source := &fakeSource{position: time.Second, playing: true}
	c, wall := testConductor(source)

	*wall = 10.0
	c.Start()

	*wall = 10.5
	source.position = 1400 * time.Millisecond
	if got := c.Update(); !almostEqual(got, 1.4) {
		t.Errorf("resynced position = %f, want 1.4", got)
	}

	// Extrapolation resumes from the new audio anchor.
	*wall = 10.6
	if got := c.Update(); !almostEqual(got, 1.5) {
		t.Errorf("position after resync = %f, want 1.5", got)
	}
}

func TestConductorNeverMovesBackwards(t *testing.T) {
	source := &fakeSource{position: time.Second, playing: true}
	c, wall := testConductor(source)

	*wall = 10.0
	c.Start()

	// Wall time ran ahead of the audio clock.
	*wall = 10.5
	if got := c.Update(); !almostEqual(got, 1.5) {
		t.Fatalf("extrapolated position = %f, want 1.5", got)
	}

	// The audio clock then reports a smaller position than the estimate.
	source.position = 1200 * time.Millisecond
	if got := c.Update(); got < 1.5 {
		t.Errorf("position went backwards: %f < 1.5", got)
	}

	// But once audio catches up, it wins again.
	*wall = 11.0
	source.position = 1900 * time.Millisecond
	if got := c.Update(); !almostEqual(got, 1.9) {
		t.Errorf("position = %f, want 1.9", got)
	}
}

func TestConductorBeforeStart(t *testing.T) {
	source := &fakeSource{position: time.Second, playing: true}
	c, _ := testConductor(source)
	if got := c.Update(); got != 0 {
		t.Errorf("update before start = %f, want 0", got)
	}
	if c.Finished() {
		t.Error("unstarted conductor reports finished")
	}
}

func TestConductorFinished(t *testing.T) {
	source := &fakeSource{playing: true}
	c, _ := testConductor(source)
	c.Start()
	if c.Finished() {
		t.Error("playing track reports finished")
	}
	source.playing = false
	if !c.Finished() {
		t.Error("stopped track does not report finished")
	}
}
