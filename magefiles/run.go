//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the headless self check once and dumps the resolved image.
func (Run) Check() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run self check...")
	_, err := executeCmd("go", withArgs("run", ".", "-iterations", "1", "-dump", "selfcheck.png"), withStream())
	return err
}

type Test mg.Namespace

// Runs every unit test.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
