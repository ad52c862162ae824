//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the planner project using Mage.
//
// Usage:
//
//	mage build          Compile planner binary to bin/
//	mage test:all       Run all tests
//	mage test:unit      Run tests without the race detector, skipping slow packages
//	mage test:race      Run all tests with the race detector
//	mage test:cover     Write a coverage profile to bin/coverage.out
//	mage test:golden    Regenerate the CSV golden files
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install planner to GOPATH/bin
//	mage stats          Print Go LOC and documentation word counts
package main
