package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"winmaint/internal/cli"
)

// version is overridden at build time via -ldflags when building releases.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.New(version, os.Stdout, os.Stderr, isElevated)
	code := app.Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
