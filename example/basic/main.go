package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/benjaminesse/DroneSpec"
)

func main() {
	cfg, err := dronespec.LoadConfig("../../config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := dronespec.NewUnitRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("unit runtime exited: %v", err)
	}
}
