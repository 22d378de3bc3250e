// Package main is the entry point for the episoded application.
package main

import (
	"os"

	"github.com/episoded/episoded/cmd/episoded/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
