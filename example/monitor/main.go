package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/benjaminesse/DroneSpec"
)

// Connects to a unit, starts acquisition, and prints each ledger update as
// it lands. Equivalent to `dronespec watch` without the CLI wrapping.
func main() {
	op, err := dronespec.LoadOperator("./operator.yaml")
	if err != nil {
		log.Fatalf("load operator config: %v", err)
	}
	op.Password = os.Getenv("DRONESPEC_PASSWORD")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := dronespec.Connect(ctx, op)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer session.Close()

	if err := session.Start(ctx); err != nil {
		log.Fatalf("start acquisition: %v", err)
	}

	mon := session.Monitor()
	go mon.Run(ctx)

	for ev := range mon.Events() {
		if plot, ok := ev.(dronespec.PlotUpdate); ok {
			fmt.Printf("%d measurements so far\n", len(plot.Times))
		}
	}
}
