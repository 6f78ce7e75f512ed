package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"genshin-autobot/internal/cli"
	"genshin-autobot/internal/observability"
)

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := cli.Execute(ctx)
	stop()
	observability.Sync()
	os.Exit(code)
}

// handlePanic keeps a crash from vanishing into a closed terminal: the trace
// goes to stderr and the process exits like any other fatal runtime failure.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()
		fmt.Fprintf(os.Stderr, "panic: %v\n\n%s", r, debug.Stack())
		os.Exit(2)
	}
}
