//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, unit, race, cover, golden).
type Test mg.Namespace

// slowPackages hit real sockets, file watchers or SQLite and are left out
// of test:unit.
var slowPackages = []string{
	"/internal/remote/file",
	"/internal/remote/sqlite",
	"/internal/cli",
}

// All runs all tests.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs the fast packages only.
func (Test) Unit() error {
	pkgs, err := sh.Output(binGo, "list", "./...")
	if err != nil {
		return err
	}
	var unitPkgs []string
	for pkg := range strings.SplitSeq(pkgs, "\n") {
		if pkg == "" || strings.HasSuffix(pkg, "/magefiles") || isSlow(pkg) {
			continue
		}
		unitPkgs = append(unitPkgs, pkg)
	}
	if len(unitPkgs) == 0 {
		fmt.Println("No unit test packages found.")
		return nil
	}
	args := append([]string{"test", "-v"}, unitPkgs...)
	return sh.RunV(binGo, args...)
}

func isSlow(pkg string) bool {
	for _, s := range slowPackages {
		if strings.HasSuffix(pkg, s) {
			return true
		}
	}
	return false
}

// Race runs all tests with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes a coverage profile to bin/coverage.out and prints the
// per-function summary.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile="+profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+profile)
}

// Golden regenerates the CSV golden files under internal/tablestore/testdata.
func (Test) Golden() error {
	return sh.RunV(binGo, "test", "./internal/tablestore/", "-run", "Golden", "-update")
}
