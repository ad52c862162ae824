// Package main provides the planner CLI.
package main

import "github.com/mesh-intelligence/planner/internal/cli"

func main() {
	cli.Execute()
}
