//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Unit runs the module's test suite.
func (Test) Unit() error {
	fmt.Println("Run tests...")
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Translator runs only the translator package's tests, useful when
// iterating on AIR/SPIR-V lowering in isolation.
func (Test) Translator() error {
	fmt.Println("Run translator tests...")
	_, err := executeCmd("go", withArgs("test", "-race", "./translator/..."), withStream())
	return err
}
