// Package runner is the rhythm-runner game: it loads a chart, conducts the
// music, maps keys to lanes and feeds the scene renderer.
package runner

import (
	"fmt"
	"math"
	"time"

	"github.com/yumekawa-dev/kanade/engine"
	"github.com/yumekawa-dev/kanade/engine/assets"
	"github.com/yumekawa-dev/kanade/engine/audio"
	"github.com/yumekawa-dev/kanade/engine/chart"
	"github.com/yumekawa-dev/kanade/engine/config"
	"github.com/yumekawa-dev/kanade/engine/core"
	"github.com/yumekawa-dev/kanade/engine/platform"
	"github.com/yumekawa-dev/kanade/engine/renderer/mesh"
)

// hitWindow is how far from a note's time a key press still counts, in
// seconds.
const hitWindow = 0.15

type state struct {
	cfg    *config.Config
	engine *engine.Engine

	player    *audio.Player
	conductor *Conductor
	compiled  *chart.RuntimeChart
	watcher   *assets.Watcher

	// laneKeys[i] is the key bound to lane column i*2 (each binding
	// covers two of the track's cells).
	laneKeys []core.KeyCode

	// noteCursor indexes the first note not yet judged or passed.
	noteCursor int
}

// New builds the game instance handed to the engine.
func New(cfg *config.Config) (*engine.Game, error) {
	s := &state{
		cfg:    cfg,
		player: audio.NewPlayer(),
	}

	for _, letter := range cfg.Game.LaneKeys {
		code, ok := platform.KeyCodeForLetter(letter[0])
		if !ok {
			return nil, fmt.Errorf("lane key %q is not a letter", letter)
		}
		s.laneKeys = append(s.laneKeys, code)
	}

	return &engine.Game{
		ApplicationConfig: cfg,
		State:             s,
		FnInitialize:      s.initialize,
		FnUpdate:          s.update,
		FnRender:          s.render,
		FnOnResize:        s.onResize,
		FnShutdown:        s.shutdown,
	}, nil
}

func (s *state) initialize(e *engine.Engine) error {
	s.engine = e

	if err := s.loadChart(); err != nil {
		return err
	}

	var err error
	s.watcher, err = assets.NewWatcher()
	if err != nil {
		return err
	}
	if err := s.watcher.Watch(s.chartPath()); err != nil {
		return err
	}
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, s.onAssetChanged)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, s.onKeyPressed)

	if s.compiled.Info.MusicFilePath != "" {
		musicPath := s.engine.Assets().Resolve(s.compiled.Info.MusicFilePath)
		bufferSize := time.Duration(s.cfg.Audio.BufferSizeMS) * time.Millisecond
		if err := s.player.Load(musicPath, bufferSize); err != nil {
			return err
		}
		if err := s.player.Play(0); err != nil {
			return err
		}
	}

	s.conductor = NewConductor(s.player)
	s.conductor.Start()
	return nil
}

func (s *state) chartPath() string {
	return s.cfg.Game.ChartPath
}

func (s *state) loadChart() error {
	info, err := chart.ParseFile(s.chartPath())
	if err != nil {
		return err
	}
	compiled, err := chart.Compile(info)
	if err != nil {
		return err
	}
	if err := s.engine.Renderer().SetChart(compiled); err != nil {
		return err
	}
	s.compiled = compiled
	s.noteCursor = 0
	core.LogInfo("chart loaded: %d notes, %.1fs long", len(compiled.Notes), compiled.Duration())
	return nil
}

func (s *state) update(deltaTime float64) error {
	position := s.conductor.Update()

	// Let unjudged notes scroll past once they are out of the window.
	for s.noteCursor < len(s.compiled.Notes) {
		note := s.compiled.Notes[s.noteCursor]
		if note.Offset+hitWindow >= position {
			break
		}
		core.LogDebug("note %s missed at %.3fs", note.ID, note.Offset)
		s.noteCursor++
	}

	if s.conductor.Finished() && position > s.compiled.Duration()+2 {
		s.engine.RequestQuit()
	}
	return nil
}

func (s *state) render(deltaTime float64) error {
	runnerPosition := float32(s.conductor.Position()) * s.cfg.Game.ScrollSpeed
	return s.engine.Renderer().RenderFrame(runnerPosition)
}

func (s *state) onResize(width, height uint32) error {
	return nil
}

func (s *state) shutdown() error {
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.player.Close()
	return nil
}

// onKeyPressed judges the nearest in-window note on the pressed key's
// lanes. Scoring is out of scope; hits are consumed and logged.
func (s *state) onKeyPressed(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return false
	}
	lane := -1
	for i, code := range s.laneKeys {
		if code == ke.KeyCode {
			lane = i
			break
		}
	}
	if lane < 0 {
		return false
	}

	// Each binding covers a contiguous span of cells.
	cellsPerKey := mesh.NumLanes / len(s.laneKeys)
	firstCell := uint32(lane * cellsPerKey)
	lastCell := firstCell + uint32(cellsPerKey) - 1

	position := s.conductor.Position()
	for i := s.noteCursor; i < len(s.compiled.Notes); i++ {
		note := s.compiled.Notes[i]
		if note.Offset-position > hitWindow {
			break
		}
		if math.Abs(note.Offset-position) > hitWindow {
			continue
		}
		noteLast := note.Cell + note.Width - 1
		if note.Cell > lastCell || noteLast < firstCell {
			continue
		}
		core.LogDebug("note %s hit at %+.3fs", note.ID, position-note.Offset)
		// Swap the hit note out of the unjudged window.
		s.compiled.Notes[i] = s.compiled.Notes[s.noteCursor]
		s.noteCursor++
		return true
	}
	return false
}

func (s *state) onAssetChanged(context core.EventContext) bool {
	ae, ok := context.Data.(*core.AssetChangedEvent)
	if !ok {
		return false
	}
	core.LogInfo("chart file %s changed, reloading", ae.Path)
	if err := s.loadChart(); err != nil {
		core.LogError("chart reload failed: %v", err)
	}
	return true
}
