// Command ambientwx reads stations and observations from the Ambient Weather REST API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
