package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/config"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "YAML config file (optional)")
		outDir  = flag.String("out", "", "Output directory holding contexts_full.csv or contexts.csv")
		force   = flag.Bool("force", false, "Recompute every annotation, not only missing or failed ones")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := ethnoscan.New(ctx, ethnoscan.Options{Config: cfg})
	if err != nil {
		log.Fatalf("init pipeline: %v", err)
	}
	defer p.Close()

	rep, err := p.Rerun(ctx, *force)
	if err != nil {
		log.Fatalf("rerun: %v", err)
	}
	log.Printf("rerun complete: %s", rep)
}
