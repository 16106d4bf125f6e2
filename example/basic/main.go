// Demonstrates embedding the entropyd pipeline in another process: a
// crypto/rand source feeding a plain file target, with the standard
// FIPS battery in between.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"entropyd"
)

func main() {
	feeder, err := entropyd.NewDevWriterFeeder(os.DevNull)
	if err != nil {
		log.Fatalf("open feeder: %v", err)
	}

	cfg := entropyd.DefaultConfig()
	cfg.Metrics.Addr = ":9100"

	rt, err := entropyd.New(cfg,
		entropyd.WithSource(entropyd.NewRandSource(entropyd.BlockBytes), 0),
		entropyd.WithFeeder(feeder),
	)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Printf("state=%s fed=%d bytes", rt.State(), feeder.Stats().BytesFed)
			}
		}
	}()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
