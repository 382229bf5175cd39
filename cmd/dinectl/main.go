// cmd/dinectl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], newConsole(os.Stdin, os.Stdout, os.Stderr)); err != nil {
		fmt.Fprintln(os.Stderr, "dinectl:", err)
		os.Exit(1)
	}
}
