// Package main is the entry point for the voicebridge server.
//
// Usage:
//
//	voicebridge [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve        - Run the Twilio webhook server
//	config       - Check and print the effective configuration
//	transcripts  - Inspect archived call transcripts
//	version      - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/voicebridge/cmd/voicebridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
