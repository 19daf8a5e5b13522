package metadata

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

/** @brief Holds bit flags describing how a texture is used by the renderer. */
type TextureUsage uint16

const (
	/** @brief No declared usage. */
	TextureUsageNone TextureUsage = 0x00
	/** @brief The texture is rendered to as a color attachment. */
	TextureUsageColorAttachment TextureUsage = 0x01
	/** @brief The texture is rendered to as a depth attachment. */
	TextureUsageDepthAttachment TextureUsage = 0x02
	/** @brief The texture is rendered to as a stencil attachment. */
	TextureUsageStencilAttachment TextureUsage = 0x04
	/** @brief The texture content can be uploaded from the CPU. */
	TextureUsageUploadable TextureUsage = 0x08
	/** @brief The texture is sampled from shaders. */
	TextureUsageSampleable TextureUsage = 0x10
	/** @brief The texture is read as a subpass input. */
	TextureUsageSubpassInput TextureUsage = 0x20

	TextureUsageDefault = TextureUsageUploadable | TextureUsageSampleable
)

func (u TextureUsage) Has(flag TextureUsage) bool {
	return u&flag != 0
}

func (u TextureUsage) String() string {
	if u == TextureUsageNone {
		return "none"
	}
	names := []string{}
	for _, f := range []struct {
		flag TextureUsage
		name string
	}{
		{TextureUsageColorAttachment, "color"},
		{TextureUsageDepthAttachment, "depth"},
		{TextureUsageStencilAttachment, "stencil"},
		{TextureUsageUploadable, "uploadable"},
		{TextureUsageSampleable, "sampleable"},
		{TextureUsageSubpassInput, "subpass-input"},
	} {
		if u.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "|")
}

/**
 * @brief Represents various types of textures.
 */
type TextureType int

const (
	/** @brief A standard two-dimensional texture. */
	TextureType2d TextureType = iota
	/** @brief A two-dimensional texture with several layers. */
	TextureType2dArray
	/** @brief A cube texture, used for cubemaps. */
	TextureTypeCube
)

/** @brief Represents supported texture filtering modes. */
type TextureFilter int

const (
	/** @brief Nearest-neighbor filtering. */
	TextureFilterModeNearest TextureFilter = 0x0
	/** @brief Linear (i.e. bilinear) filtering.*/
	TextureFilterModeLinear TextureFilter = 0x1
)

/**
 * @brief Represents a texture owned by the frontend. Attachments created from
 * a texture keep a reference to it; the default render target has none.
 */
type Texture struct {
	/** @brief The unique texture identifier. */
	ID uuid.UUID
	/** @brief The texture Name. */
	Name string
	/** @brief The texture type. */
	TextureType TextureType
	/** @brief The texture Width. */
	Width uint32
	/** @brief The texture Height. */
	Height uint32
	/** @brief Number of mip levels. */
	Levels uint32
	/** @brief Number of array layers. */
	Layers uint32
	/** @brief Samples per texel, 1 for single-sampled textures. */
	Samples uint32
	/** @brief Declared usage, drives the layout the texture rests in. */
	Usage TextureUsage
	/** @brief The texture Generation. Incremented every time the data is reloaded. */
	Generation uint32
}

// NewTexture describes a single-level, single-layer 2D texture.
func NewTexture(name string, width, height, samples uint32, usage TextureUsage) *Texture {
	if samples == 0 {
		samples = 1
	}
	return &Texture{
		ID:          uuid.New(),
		Name:        name,
		TextureType: TextureType2d,
		Width:       width,
		Height:      height,
		Levels:      1,
		Layers:      1,
		Samples:     samples,
		Usage:       usage,
	}
}

func (t *Texture) String() string {
	return fmt.Sprintf("%s(%s %dx%d s%d %s)", t.Name, t.ID.String()[:8], t.Width, t.Height, t.Samples, t.Usage)
}
