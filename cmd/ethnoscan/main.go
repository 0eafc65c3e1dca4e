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
		cfgPath   = flag.String("config", "", "YAML config file (optional)")
		textsDir  = flag.String("texts", "", "Directory of travelogue texts")
		metadata  = flag.String("metadata", "", "Metadata CSV")
		terms     = flag.String("terms", "", "Term list (text or YAML)")
		stopwords = flag.String("stopwords", "", "Stopword list")
		outDir    = flag.String("out", "", "Output directory")
		window    = flag.Int("window", -1, "Sentences of context on each side")
		minWords  = flag.Int("min-words", -1, "Drop windows shorter than this many words")
		backend   = flag.String("cache-backend", "", "Annotation cache: jsonl, sqlite or memory")
		cachePath = flag.String("cache", "", "Annotation cache path")
		noLexical = flag.Bool("no-lexical", false, "Skip the lexical pass")
	)
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	setIf(&cfg.TextsDir, *textsDir)
	setIf(&cfg.MetadataPath, *metadata)
	setIf(&cfg.TermsPath, *terms)
	setIf(&cfg.StopwordsPath, *stopwords)
	setIf(&cfg.OutputDir, *outDir)
	setIf(&cfg.Cache.Backend, *backend)
	setIf(&cfg.Cache.Path, *cachePath)
	if *window >= 0 {
		cfg.Window = *window
	}
	if *minWords >= 0 {
		cfg.MinWords = *minWords
	}
	if *noLexical {
		cfg.Lexical.Enabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := ethnoscan.New(ctx, ethnoscan.Options{Config: cfg})
	if err != nil {
		log.Fatalf("init pipeline: %v", err)
	}
	defer p.Close()

	res, err := p.Run(ctx)
	if err != nil {
		log.Fatalf("run: %v", err)
	}
	log.Printf("done: %d documents, %d contexts (%d kept), %d collocations",
		res.Documents, res.Contexts, res.Kept, res.Collocations)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
