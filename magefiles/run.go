//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles shaders and runs the game client.
func (Run) Game() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run kanade...")
	if _, err := executeCmd("go", withArgs("run", "main.go"), withStream()); err != nil {
		return err
	}
	return nil
}
