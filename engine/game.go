package engine

import (
	"github.com/yumekawa-dev/kanade/engine/config"
)

// Game supplies the application callbacks the engine drives. State is
// whatever the game wants to carry between callbacks.
type Game struct {
	ApplicationConfig *config.Config
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func(engine *Engine) error
type Update func(deltaTime float64) error
type Render func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
