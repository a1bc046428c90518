package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"qarzhy/internal/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand(commands.Options{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
