// Command audit is a terminal client for the multi-stage audit pipeline.
//
// Usage:
//
//	AUDIT_TOKEN=... audit [flags]                 interactive chat (default)
//	AUDIT_TOKEN=... audit ask [flags] question    one-shot report on stdout
//	GEMINI_API_KEY=... audit upload [flags]       upload documents, print YAML
//
// Configuration is read from flags, then AUDIT_ENDPOINT, AUDIT_TOKEN and
// GEMINI_API_KEY, then ~/.audit/config.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Handle OS signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	// Env vars are read here and passed as values.
	env := environment{
		Endpoint:  os.Getenv("AUDIT_ENDPOINT"),
		Token:     os.Getenv("AUDIT_TOKEN"),
		GeminiKey: os.Getenv("GEMINI_API_KEY"),
		Home:      home,
	}
	return newRootCmd(env).ExecuteContext(ctx)
}
