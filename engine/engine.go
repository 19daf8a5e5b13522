package engine

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/anima-blit/engine/core"
	"github.com/spaghettifunk/anima-blit/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageBooting:
		return "booting"
	case EngineStageBootComplete:
		return "boot-complete"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting-down"
	}
	return "unknown"
}

type Engine struct {
	currentStage Stage
	config       *ApplicationConfig
	isRunning    atomic.Bool
	clock        *core.Clock

	renderer  *vulkan.VulkanRenderer
	selfCheck *SelfCheck
}

func New(config *ApplicationConfig) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       config,
		clock:        core.NewClock(),
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Config() *ApplicationConfig {
	return e.config
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return errors.Newf("engine cannot be initialized while %s", e.currentStage)
	}
	e.currentStage = EngineStageBooting
	core.SetLogLevel(e.config.LogLevel)

	if !core.EventInitialize() {
		return errors.New("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, e, e.onConfigReloaded)
	core.EventRegister(core.EVENT_CODE_BLIT_SUBMITTED, e, e.onBlitSubmitted)

	if err := core.MetricsInitialize(); err != nil {
		return err
	}
	e.currentStage = EngineStageBootComplete

	e.currentStage = EngineStageInitializing
	e.renderer = vulkan.New(e.config.VulkanConfig())
	if err := e.renderer.Initialize(); err != nil {
		core.LogError("failed to initialize the renderer: %s", err)
		return err
	}

	sc, err := NewSelfCheck(e.renderer, e.config.SelfCheck)
	if err != nil {
		return err
	}
	e.selfCheck = sc

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized")
	return nil
}

// Run executes the self check selfcheck.iterations times, or until ctx is
// cancelled when iterations is 0. Configurations received on reloads are
// applied between iterations.
func (e *Engine) Run(ctx context.Context, reloads <-chan *ApplicationConfig) error {
	if e.currentStage != EngineStageInitialized {
		return errors.Newf("engine cannot run while %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)
	e.clock.Start()
	defer e.clock.Stop()

	iterations := e.config.SelfCheck.Iterations
	completed := 0
	for e.isRunning.Load() && (iterations == 0 || completed < iterations) {
		select {
		case <-ctx.Done():
			core.LogInfo("context cancelled after %d iterations", completed)
			e.isRunning.Store(false)
			continue
		case cfg := <-reloads:
			core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, e, core.EventContext{Data: cfg})
		default:
		}

		if err := e.selfCheck.Run(); err != nil {
			core.LogError("self check failed: %s", err)
			return err
		}
		completed++
	}

	e.clock.Update()
	core.LogInfo("%d self check iterations in %s, %d blits, %d resolves, %d slow resolves, average %s",
		completed, e.clock.Elapsed(),
		core.MetricsCount(vulkan.BlitKindFastBlit.String()),
		core.MetricsCount(vulkan.BlitKindFastResolve.String()),
		core.MetricsCount(vulkan.BlitKindSlowResolve.String()),
		core.MetricsAverage())

	if e.config.SelfCheck.Dump != "" && completed > 0 {
		if err := e.selfCheck.Dump(e.config.SelfCheck.Dump); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	if e.selfCheck != nil {
		e.selfCheck.Destroy()
		e.selfCheck = nil
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			return err
		}
		e.renderer = nil
	}

	core.EventUnregister(core.EVENT_CODE_APPLICATION_QUIT, e)
	core.EventUnregister(core.EVENT_CODE_CONFIG_RELOADED, e)
	core.EventUnregister(core.EVENT_CODE_BLIT_SUBMITTED, e)
	if err := core.EventShutdown(); err != nil {
		return err
	}
	e.currentStage = EngineStageUninitialized
	return nil
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onConfigReloaded(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	cfg, ok := context.Data.(*ApplicationConfig)
	if !ok || cfg == nil {
		core.LogError("wrong data associated with event code `%d`", code)
		return false
	}
	if cfg.LogLevel != e.config.LogLevel {
		core.LogInfo("log level %s -> %s", e.config.LogLevel, cfg.LogLevel)
		core.SetLogLevel(cfg.LogLevel)
		e.config.LogLevel = cfg.LogLevel
	}
	if cfg.Renderer.CheckBlitFormat != e.config.Renderer.CheckBlitFormat {
		core.LogInfo("blit format check enabled: %t", cfg.Renderer.CheckBlitFormat)
		e.config.Renderer.CheckBlitFormat = cfg.Renderer.CheckBlitFormat
		if e.renderer != nil && e.renderer.Blitter() != nil {
			e.renderer.Blitter().SetCheckBlitFormat(cfg.Renderer.CheckBlitFormat)
		}
	}
	return false
}

func (e *Engine) onBlitSubmitted(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	report, ok := context.Data.(core.BlitReport)
	if !ok {
		core.LogError("wrong data associated with event code `%d`", code)
		return false
	}
	core.LogDebug("%s: %s recorded and submitted in %s", report.Scenario, report.Kind, report.Elapsed)
	return false
}
