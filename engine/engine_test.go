package engine

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/spaghettifunk/anima-blit/engine/core"
)

func TestStageString(t *testing.T) {
	tests := map[Stage]string{
		EngineStageUninitialized: "uninitialized",
		EngineStageBooting:       "booting",
		EngineStageBootComplete:  "boot-complete",
		EngineStageInitializing:  "initializing",
		EngineStageInitialized:   "initialized",
		EngineStageRunning:       "running",
		EngineStageShuttingDown:  "shutting-down",
		Stage(42):                "unknown",
	}
	for stage, want := range tests {
		if got := stage.String(); got != want {
			t.Errorf("Stage(%d).String() = %q, want %q", stage, got, want)
		}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	e, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil) failed: %v", err)
	}
	if e.Stage() != EngineStageUninitialized || e.Config().Name != DefaultConfig().Name {
		t.Fatalf("unexpected engine state %s %+v", e.Stage(), e.Config())
	}

	cfg := DefaultConfig()
	cfg.SelfCheck.Samples = 6
	if _, err := New(cfg); err == nil {
		t.Fatal("expected invalid samples to be rejected")
	}

	cfg = DefaultConfig()
	cfg.LogLevel = " Debug "
	e, err = New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if e.Config().LogLevel != core.LogLevelDebug {
		t.Fatalf("log level not normalized: %q", e.Config().LogLevel)
	}
}

func TestRunRequiresInitialize(t *testing.T) {
	e, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background(), nil); err == nil {
		t.Fatal("expected Run to fail before Initialize")
	}
}

func TestConfigReloadEvent(t *testing.T) {
	if !core.EventInitialize() {
		t.Fatal("event system already initialized")
	}
	defer core.EventShutdown()

	e, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, e, e.onConfigReloaded)
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)

	reloaded := DefaultConfig()
	reloaded.LogLevel = core.LogLevelWarn
	reloaded.Renderer.CheckBlitFormat = true
	reloaded.SelfCheck.Width = 4096
	if core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, nil, core.EventContext{Data: reloaded}) {
		t.Error("config reload should not be consumed")
	}
	defer core.SetLogLevel(core.LogLevelInfo)

	if e.Config().LogLevel != core.LogLevelWarn || !e.Config().Renderer.CheckBlitFormat {
		t.Errorf("hot reloadable fields not applied: %+v", e.Config())
	}
	if e.Config().SelfCheck.Width != DefaultConfig().SelfCheck.Width {
		t.Errorf("selfcheck size must not change on reload, got %d", e.Config().SelfCheck.Width)
	}

	// Wrong payloads are ignored.
	core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, nil, core.EventContext{Data: "nope"})

	e.isRunning.Store(true)
	if !core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{}) {
		t.Error("quit should be handled by the engine")
	}
	if e.isRunning.Load() {
		t.Error("quit did not stop the engine")
	}
}

func TestCheckPixels(t *testing.T) {
	good := []byte{255, 128, 64, 255, 254, 127, 63, 255}
	if err := checkPixels(good, seedColor); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	bad := []byte{255, 128, 64, 255, 0, 0, 0, 255}
	if err := checkPixels(bad, seedColor); err == nil {
		t.Error("expected a mismatch on the second texel")
	}
}

func TestCheckDepth(t *testing.T) {
	texels := make([]byte, 8)
	binary.LittleEndian.PutUint32(texels, math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(texels[4:], math.Float32bits(0.25001))
	if err := checkDepth(texels, 0.25); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	binary.LittleEndian.PutUint32(texels[4:], math.Float32bits(1.0))
	if err := checkDepth(texels, 0.25); err == nil {
		t.Error("expected a mismatch")
	}
}

func TestPixelsToImage(t *testing.T) {
	pixels := []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		9, 10, 11, 12, 13, 14, 15, 16,
	}
	img := pixelsToImage(pixels, 2, 2)
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds %v", b)
	}
	if c := img.NRGBAAt(1, 1); c.R != 13 || c.A != 16 {
		t.Errorf("texel (1,1) = %v", c)
	}
	if c := img.NRGBAAt(1, 0); c.R != 5 || c.B != 7 {
		t.Errorf("texel (1,0) = %v", c)
	}
}
