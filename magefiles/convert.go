//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Convert builds the CLI and converts every PDF in input/.
func Convert() error {
	mg.Deps(Init, Build)
	fmt.Println("[convert] OCR input/*.pdf into output/markdown and output/images.")
	return sh.RunV("bin/docflow", "convert", "--dir", "input")
}

// DryRun checks every PDF in input/ locally without calling any service.
func DryRun() error {
	mg.Deps(Build)
	return sh.RunV("bin/docflow", "convert", "--dir", "input", "--dry-run")
}
