//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

const shaderDir = "engine/renderer/vulkan/shaders"

type Build mg.Namespace

// Compiles the depth resolve shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the anima-blit binary into bin/.
func (Build) Binary() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/anima-blit", "."), withStream())
	return err
}

func buildShaders() error {
	for _, stage := range []string{"vert", "frag"} {
		src := shaderDir + "/blitdepth." + stage
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}
