// Command bsrctl uploads bus service registration CSV files to the
// registration API's staging area and confirms or discards the result.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCLI()
	err := newRootCmd(c).ExecuteContext(ctx)
	c.shutdown()
	if err != nil {
		stop()
		os.Exit(1)
	}
}
