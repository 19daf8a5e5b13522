package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/anima-blit/engine/core"
	amath "github.com/spaghettifunk/anima-blit/engine/math"
	"github.com/spaghettifunk/anima-blit/engine/renderer/vulkan"
	"golang.org/x/exp/slices"
)

const maxSamples = 64

type ApplicationConfig struct {
	// The application name handed to the Vulkan instance.
	Name      string          `toml:"name"`
	LogLevel  core.LogLevel   `toml:"log_level"`
	Renderer  RendererConfig  `toml:"renderer"`
	SelfCheck SelfCheckConfig `toml:"selfcheck"`
}

type RendererConfig struct {
	Headless   bool `toml:"headless"`
	Validation bool `toml:"validation"`
	// "system" or "glfw".
	Loader                  string `toml:"loader"`
	CheckBlitFormat         bool   `toml:"check_blit_format"`
	PipelineCacheCapacity   int    `toml:"pipeline_cache_capacity"`
	DescriptorCacheCapacity int    `toml:"descriptor_cache_capacity"`
}

type SelfCheckConfig struct {
	Width   uint32 `toml:"width"`
	Height  uint32 `toml:"height"`
	Samples uint32 `toml:"samples"`
	// Where the resolved color image is written; the extension picks the
	// encoder (.png, .bmp, .tiff). Empty disables the dump.
	Dump       string `toml:"dump"`
	Iterations int    `toml:"iterations"`
}

func DefaultConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:     "anima-blit",
		LogLevel: core.LogLevelInfo,
		Renderer: RendererConfig{
			Headless:                true,
			Validation:              false,
			Loader:                  vulkan.LoaderSystem,
			CheckBlitFormat:         false,
			PipelineCacheCapacity:   vulkan.DefaultPipelineCacheCapacity,
			DescriptorCacheCapacity: vulkan.DefaultDescriptorCacheCapacity,
		},
		SelfCheck: SelfCheckConfig{
			Width:      64,
			Height:     64,
			Samples:    4,
			Iterations: 1,
		},
	}
}

func (c *ApplicationConfig) Validate() error {
	level, err := core.ParseLogLevel(string(c.LogLevel))
	if err != nil {
		return err
	}
	c.LogLevel = level
	if !slices.Contains([]string{vulkan.LoaderSystem, vulkan.LoaderGLFW}, c.Renderer.Loader) {
		return errors.Wrapf(core.ErrInvalidConfig, "renderer.loader must be %q or %q, got %q",
			vulkan.LoaderSystem, vulkan.LoaderGLFW, c.Renderer.Loader)
	}
	if c.Renderer.PipelineCacheCapacity <= 0 || c.Renderer.DescriptorCacheCapacity <= 0 {
		return errors.Wrapf(core.ErrInvalidConfig, "cache capacities must be positive, got %d and %d",
			c.Renderer.PipelineCacheCapacity, c.Renderer.DescriptorCacheCapacity)
	}
	if c.SelfCheck.Width == 0 || c.SelfCheck.Height == 0 {
		return errors.Wrapf(core.ErrInvalidConfig, "selfcheck size %dx%d", c.SelfCheck.Width, c.SelfCheck.Height)
	}
	if !amath.IsPowerOfTwo(c.SelfCheck.Samples) || c.SelfCheck.Samples > maxSamples {
		return errors.Wrapf(core.ErrInvalidConfig, "selfcheck.samples must be a power of two up to %d, got %d",
			maxSamples, c.SelfCheck.Samples)
	}
	if c.SelfCheck.Iterations < 0 {
		return errors.Wrapf(core.ErrInvalidConfig, "selfcheck.iterations %d", c.SelfCheck.Iterations)
	}
	switch dumpFormat(c.SelfCheck.Dump) {
	case "", "png", "bmp", "tiff":
	default:
		return errors.Wrapf(core.ErrInvalidConfig, "unsupported dump format %q", c.SelfCheck.Dump)
	}
	return nil
}

// VulkanConfig converts the configuration into what the Vulkan renderer
// is created from.
func (c *ApplicationConfig) VulkanConfig() vulkan.VulkanRendererConfig {
	return vulkan.VulkanRendererConfig{
		AppName:                 c.Name,
		Loader:                  c.Renderer.Loader,
		Validation:              c.Renderer.Validation,
		Headless:                c.Renderer.Headless,
		Width:                   c.SelfCheck.Width,
		Height:                  c.SelfCheck.Height,
		Samples:                 c.SelfCheck.Samples,
		PipelineCacheCapacity:   c.Renderer.PipelineCacheCapacity,
		DescriptorCacheCapacity: c.Renderer.DescriptorCacheCapacity,
		CheckBlitFormat:         c.Renderer.CheckBlitFormat,
	}
}
