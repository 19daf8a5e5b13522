package vulkan

import (
	"testing"

	"github.com/spaghettifunk/anima-blit/engine/renderer/metadata"
)

func TestAttachmentPredicates(t *testing.T) {
	texture := metadata.NewTexture("color", 8, 8, 4, metadata.TextureUsageColorAttachment)
	tests := []struct {
		name             string
		attachment       VulkanAttachment
		wantDefault      bool
		wantMultisampled bool
	}{
		{"surface", VulkanAttachment{Samples: 1}, true, false},
		{"offscreen single sample", VulkanAttachment{Samples: 1, Texture: texture}, false, false},
		{"offscreen multisampled", VulkanAttachment{Samples: 4, Texture: texture}, false, true},
		{"zero samples", VulkanAttachment{Texture: texture}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.attachment.IsDefault(); got != tt.wantDefault {
				t.Errorf("IsDefault = %t, want %t", got, tt.wantDefault)
			}
			if got := tt.attachment.IsMultisampled(); got != tt.wantMultisampled {
				t.Errorf("IsMultisampled = %t, want %t", got, tt.wantMultisampled)
			}
		})
	}
}

func TestRenderTargetGetColorOutOfRange(t *testing.T) {
	target := colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment)
	for _, index := range []int{-1, 1, 5} {
		if got := target.GetColor(index); got.Image != nil || !got.IsDefault() {
			t.Errorf("GetColor(%d) = %+v, want the zero attachment", index, got)
		}
	}
	if got := target.GetColor(0); got.Image == nil {
		t.Errorf("GetColor(0) has no image")
	}
}
