/*
anima-blit boots a headless Vulkan device and runs the blitter self check:
multisampled color and depth resolves plus a scaled color blit, each recorded
in its own command buffer and verified by reading the result back.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spaghettifunk/anima-blit/engine"
	"github.com/spaghettifunk/anima-blit/engine/core"
	"golang.org/x/sync/errgroup"
)

func init() {
	// glfw and some Vulkan loaders expect calls from the main thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "anima-blit.toml", "path to the TOML configuration")
	dump := flag.String("dump", "", "write the resolved color image to this .png, .bmp or .tiff file")
	iterations := flag.Int("iterations", -1, "self check iterations, 0 runs until interrupted")
	flag.Parse()

	if err := run(*configPath, *dump, *iterations); err != nil {
		core.LogError("%+v", err)
		os.Exit(1)
	}
}

func run(configPath, dump string, iterations int) error {
	config, err := engine.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if dump != "" {
		config.SelfCheck.Dump = dump
	}
	if iterations >= 0 {
		config.SelfCheck.Iterations = iterations
	}

	e, err := engine.New(config)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	watchCtx, stopWatching := context.WithCancel(gctx)
	reloads := make(chan *engine.ApplicationConfig, 1)

	if _, err := os.Stat(configPath); err == nil {
		g.Go(func() error {
			return engine.WatchConfig(watchCtx, configPath, reloads)
		})
	}

	runErr := e.Run(gctx, reloads)
	stopWatching()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	if err := e.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
