// Command infact evaluates object descriptions against the built-in
// example types.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NoelToby/refr/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.New().Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
