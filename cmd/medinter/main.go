// Package main provides the medinter CLI, a point-of-care translation client.
//
// Usage:
//
//	medinter [flags] <command> [args]
//
// Commands:
//
//	run       - Stream audio through a live translation session
//	text      - Drive a session with typed text
//	health    - Report service health
//	sessions  - List active sessions on the service
//	languages - List the supported language catalog
package main

import (
	"fmt"
	"os"

	"github.com/dbrezina/medinter/cmd/medinter/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
