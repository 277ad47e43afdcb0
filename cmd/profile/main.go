package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	server "github.com/louisbranch/homebase/internal/services/profile/app"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.SetPrefix("[PROFILE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
