// Package main provides a terminal client for taking part in readyups.
package main

import (
	"os"

	"github.com/xiaot623/readyup/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
