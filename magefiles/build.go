//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderNames = []string{"lane", "platform", "hit"}

// Compiles all GLSL shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	for _, name := range shaderNames {
		for _, stage := range []string{"vert", "frag"} {
			source := fmt.Sprintf("assets/shaders/%s.%s", name, stage)
			output := fmt.Sprintf("assets/shaders/%s.%s.spv", name, stage)
			if _, err := executeCmd("glslc", withArgs(source, "-o", output), withStream()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Runs the full test suite.
func (Build) Test() error {
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
