package engine

import (
	"fmt"

	"github.com/yumekawa-dev/kanade/engine/assets"
	"github.com/yumekawa-dev/kanade/engine/core"
	"github.com/yumekawa-dev/kanade/engine/platform"
	"github.com/yumekawa-dev/kanade/engine/renderer"
	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
	"github.com/yumekawa-dev/kanade/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool

	platform     *platform.Platform
	assetManager *assets.Manager
	backend      *vulkan.Backend
	device       *gpu.Device
	renderer     *renderer.Renderer

	width  uint32
	height uint32
	clock  *core.Clock
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		return nil, fmt.Errorf("game has no application config")
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		platform:     platform.New(),
		isRunning:    true,
		width:        g.ApplicationConfig.Window.Width,
		height:       g.ApplicationConfig.Window.Height,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	cfg := e.gameInstance.ApplicationConfig
	core.SetLogLevel(cfg.LogLevel)

	if err := core.InputInitialize(); err != nil {
		return err
	}
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)

	if err := e.platform.Startup(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height); err != nil {
		return err
	}

	var err error
	e.assetManager, err = assets.NewManager("")
	if err != nil {
		return err
	}

	e.backend = vulkan.New(e.platform.Window, cfg.Renderer.ValidationLayers)
	fbWidth, fbHeight := e.platform.FramebufferSize()
	if err := e.backend.Initialize(cfg.Window.Title, fbWidth, fbHeight); err != nil {
		return fmt.Errorf("initialize graphics backend: %w", err)
	}

	e.device, err = gpu.NewDevice(e.backend, gpu.DeviceOptions{
		CommandBuffersPerPool:    cfg.Renderer.CommandBuffersPerPool,
		DescriptorMaxSets:        cfg.Renderer.DescriptorMaxSets,
		DescriptorUniformBuffers: cfg.Renderer.DescriptorMaxSets * 2,
		DescriptorStorageBuffers: cfg.Renderer.DescriptorMaxSets,
		MemoryBudget:             cfg.MemoryBudgetBytes(),
	})
	if err != nil {
		return fmt.Errorf("create gpu device: %w", err)
	}

	e.renderer, err = renderer.New(e.device, e.assetManager, renderer.Options{
		ScrollSpeed: cfg.Game.ScrollSpeed,
		ClearColor:  [4]float32{0.02, 0.02, 0.05, 1.0},
	})
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	if err := e.gameInstance.FnInitialize(e); err != nil {
		return err
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	lastTime := e.clock.Elapsed()

	for e.isRunning {
		if !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		core.EventPump()

		if e.isSuspended {
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - lastTime
		lastTime = currentTime

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("game update failed, shutting down: %v", err)
			e.isRunning = false
			break
		}
		if err := e.gameInstance.FnRender(delta); err != nil {
			core.LogError("game render failed, shutting down: %v", err)
			e.isRunning = false
			break
		}

		// Input snapshots roll over last, after the game has read them.
		core.InputUpdate()
	}

	return e.Shutdown()
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	core.LogInfo("shutting down")

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown: %v", err)
		}
	}

	if e.device != nil {
		if err := e.backend.DeviceWaitIdle(); err != nil {
			core.LogError("device idle wait: %v", err)
		}
		if e.renderer != nil {
			e.renderer.Shutdown()
		}
		if err := e.device.Shutdown(); err != nil {
			core.LogError("gpu device shutdown: %v", err)
		}
	}
	if e.backend != nil {
		e.backend.Shutdown()
	}
	e.platform.Shutdown()
	core.EventSystemShutdown()
	core.InputShutdown()
	return nil
}

// Renderer exposes the scene renderer to game callbacks.
func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

// Assets exposes the asset manager to game callbacks.
func (e *Engine) Assets() *assets.Manager {
	return e.assetManager
}

// RequestQuit stops the run loop at the next frame boundary.
func (e *Engine) RequestQuit() {
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

func (e *Engine) onEvent(context core.EventContext) bool {
	if context.Type == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("quit requested, shutting down")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event data for event type %d", context.Type)
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	re, ok := context.Data.(*core.ResizeEvent)
	if !ok {
		core.LogError("wrong event data for event type %d", context.Type)
		return false
	}

	if re.Width == e.width && re.Height == e.height {
		return false
	}
	e.width = re.Width
	e.height = re.Height

	if re.Width == 0 || re.Height == 0 {
		core.LogInfo("window minimized, suspending")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("window restored, resuming")
		e.isSuspended = false
	}

	e.renderer.Resize(re.Width, re.Height)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(re.Width, re.Height); err != nil {
			core.LogError("resize callback: %v", err)
		}
	}
	return false
}
