package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"market-scannerv1/config"
	"market-scannerv1/internal/scanner"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	log.Printf("[scanner] symbols: %v, timeframes: %v, provider: %s",
		cfg.ParseSymbols(), cfg.ParseTimeframes(), cfg.Provider)

	svc, err := scanner.New(cfg)
	if err != nil {
		log.Fatalf("[scanner] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[scanner] fatal: %v", err)
	}
}
