//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Library builds every package in the module, catching compile errors
// without running tests.
func (Build) Library() error {
	fmt.Println("Build library...")
	_, err := executeCmd("go", withArgs("build", "./..."), withStream())
	return err
}
