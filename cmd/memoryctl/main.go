// cmd/memoryctl is an operator CLI for the subject memory pipeline. It records
// user turns, runs extraction synchronously, and inspects or edits what was
// stored.
//
// Configuration comes from SAFESPACE_ environment variables. With no
// SAFESPACE_EXTRACTION_URL set, every extract run uses the local heuristic
// extractor.
//
// Logging goes to stderr; command output goes to stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "memoryctl:", err)
		stop()
		os.Exit(1)
	}
}
