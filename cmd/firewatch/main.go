package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"firewatch/internal/app"
)

func main() {
	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = application.Run(ctx)
	stop()
	application.Close()

	if err != nil {
		log.Fatalf("Firewatch stopped: %v", err)
	}
}
