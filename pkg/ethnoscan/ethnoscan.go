// Package ethnoscan wires corpus loading, context extraction, annotation
// and the lexical pass into the end-to-end pipeline.
package ethnoscan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cognicore/ethnoscan/internal/llm"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/annotate"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/cache"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/cache/jsonl"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/cache/memstore"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/cache/sqlite"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/config"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/corpus"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/extract"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/lexical"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/orchestrate"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/report"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/segment"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/stoplist"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/table"
)

// Output file names.
const (
	ContextsFile     = "contexts.csv"
	ContextsFullFile = "contexts_full.csv"
	CollocationsFile = "collocations.csv"
	AssociationsFile = "associations.csv"
	PIROFile         = "piro_table.csv"
	SummaryJSONFile  = "summary.json"
	SummaryTextFile  = "summary.txt"
)

// legacyTextColumn is the window column name of older contexts files.
const legacyTextColumn = "context"

// Pipeline runs the full analysis over one configuration.
type Pipeline struct {
	cfg       config.Config
	store     cache.Store
	annotator *annotate.Annotator
	splitter  segment.Splitter
	tagger    lexical.Tagger
}

// Options configures a Pipeline. Zero fields are built from Config.
type Options struct {
	Config config.Config

	Store     cache.Store
	Completer annotate.Completer
	Splitter  segment.Splitter
	Tagger    lexical.Tagger

	// Sleep overrides the wait between annotation attempts.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New validates the configuration and opens the cache.
func New(ctx context.Context, opts Options) (*Pipeline, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store := opts.Store
	if store == nil {
		var err error
		if store, err = OpenStore(ctx, cfg.Cache); err != nil {
			return nil, err
		}
	}
	completer := opts.Completer
	if completer == nil {
		completer = NewCompleter(cfg)
	}
	a := annotate.New(store, completer, annotate.Options{
		Attempts:      cfg.API.Attempts,
		Delay:         cfg.API.Delay,
		Timeout:       cfg.API.Timeout,
		CacheFailures: cfg.API.CacheFailures,
		Group:         cfg.Prompts.Group,
		Language:      cfg.Prompts.Language,
		Sleep:         opts.Sleep,
	})
	splitter := opts.Splitter
	if splitter == nil {
		splitter = segment.Prose{}
	}
	return &Pipeline{cfg: cfg, store: store, annotator: a, splitter: splitter, tagger: opts.Tagger}, nil
}

// Close releases the cache.
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// Annotator exposes the cached annotator.
func (p *Pipeline) Annotator() *annotate.Annotator { return p.annotator }

// OpenStore opens the configured cache backend. For sqlite, a configured
// JSONL file is imported first.
func OpenStore(ctx context.Context, c config.Cache) (cache.Store, error) {
	switch c.Backend {
	case config.BackendMemory:
		return memstore.New(), nil
	case config.BackendSQLite:
		s, err := sqlite.OpenSQLite(ctx, c.Path)
		if err != nil {
			return nil, err
		}
		if c.Import != "" {
			n, err := s.Import(ctx, c.Import)
			switch {
			case errors.Is(err, os.ErrNotExist):
				log.Printf("cache import file %s not found", c.Import)
			case err != nil:
				s.Close()
				return nil, fmt.Errorf("import %s: %w", c.Import, err)
			default:
				log.Printf("imported %d cached responses from %s", n, c.Import)
			}
		}
		return s, nil
	case config.BackendJSONL, "":
		return jsonl.Open(c.Path), nil
	}
	return nil, fmt.Errorf("%w: unknown cache backend %q", internalerr.ErrInvalidConfig, c.Backend)
}

// NewCompleter returns the API client, or nil when no key is configured.
func NewCompleter(cfg config.Config) annotate.Completer {
	key := cfg.APIKey()
	if key == "" {
		return nil
	}
	return &llm.Client{BaseURL: cfg.BaseURL(), APIKey: key, Model: cfg.API.Model}
}

// Result describes what Run produced.
type Result struct {
	Documents    int
	Contexts     int
	Kept         int
	Annotation   orchestrate.Report
	Collocations int
	Summary      report.Summary
}

// Run executes the pipeline: load, extract, clean, annotate, analyze and
// report. Empty intermediate results end the run early without error.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	var res Result
	cfg := p.cfg

	docs, err := corpus.LoadTexts(cfg.TextsDir, cfg.MetadataPath)
	if err != nil {
		return res, err
	}
	res.Documents = len(docs)
	if len(docs) == 0 {
		log.Printf("no texts found in %s", cfg.TextsDir)
		return res, nil
	}
	terms, err := corpus.LoadTerms(cfg.TermsPath)
	if err != nil {
		return res, err
	}
	stops, err := p.stopwords()
	if err != nil {
		return res, err
	}

	ex := &extract.Extractor{Splitter: p.splitter, Window: cfg.Window}
	contexts, err := ex.Extract(ctx, docs, terms)
	if err != nil {
		return res, err
	}
	res.Contexts = len(contexts)
	if err := extract.Save(cfg.OutputPath(ContextsFile), contexts); err != nil {
		return res, err
	}
	if len(contexts) == 0 {
		log.Printf("no contexts found for %d terms", len(terms))
		return res, nil
	}

	t := extract.Clean(extract.Table(contexts), extract.ColWindowText, cfg.MinWords)
	res.Kept = t.Len()
	if t.Len() == 0 {
		log.Printf("no contexts left after cleaning (min words %d)", cfg.MinWords)
		return res, nil
	}

	orch := orchestrate.New(p.annotator, extract.ColWindowText)
	res.Annotation, err = orch.Annotate(ctx, t)
	if err != nil {
		return res, err
	}

	var notes []report.NamedTable
	if cfg.Lexical.Enabled {
		colloc, err := p.lexical(ctx, t, stops)
		if err != nil {
			return res, err
		}
		res.Collocations = colloc.Len()
		notes = append(notes, report.NamedTable{Title: "Collocations", Table: colloc})
	}

	piro := report.PIRO(t, extract.ColWindowText)
	if err := report.WritePIRO(cfg.OutputPath(PIROFile), piro); err != nil {
		return res, err
	}
	notes = append(notes, report.NamedTable{Title: "PIRO table", Table: piro})

	if err := table.WriteCSV(cfg.OutputPath(ContextsFullFile), t); err != nil {
		return res, err
	}
	log.Printf("saved annotated contexts to %s", cfg.OutputPath(ContextsFullFile))

	res.Summary = report.Summarize(t, res.Annotation.RunID)
	if err := report.WriteJSON(cfg.OutputPath(SummaryJSONFile), res.Summary); err != nil {
		return res, err
	}
	tw := report.TextWriter{Commenter: p.annotator}
	if err := tw.Write(ctx, cfg.OutputPath(SummaryTextFile), res.Summary, notes); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Pipeline) stopwords() (*stoplist.Manager, error) {
	words, err := corpus.LoadStopwords(p.cfg.StopwordsPath)
	if err != nil {
		return nil, err
	}
	m := stoplist.NewManager(words)
	for _, w := range p.cfg.Lexical.Stopwords {
		m.Add(w, stoplist.FromConfig)
	}
	return m, nil
}

func (p *Pipeline) lexical(ctx context.Context, t *table.Table, stops *stoplist.Manager) (*table.Table, error) {
	tagger := p.tagger
	if tagger == nil {
		pt, err := lexical.NewProseTagger()
		if err != nil {
			return nil, err
		}
		tagger = pt
	}
	an := &lexical.Analyzer{Tagger: tagger, Stopwords: stops, TextColumn: extract.ColWindowText}
	res, err := an.Analyze(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := lexical.WriteCollocations(p.cfg.OutputPath(CollocationsFile), res.Collocations); err != nil {
		return nil, err
	}
	if len(res.Associations) > 0 {
		path := p.cfg.OutputPath(AssociationsFile)
		if err := table.WriteCSV(path, lexical.AssociationTable(res.Associations)); err != nil {
			return nil, err
		}
		log.Printf("saved %d term associations to %s", len(res.Associations), path)
	}
	return res.Collocations, nil
}

// Rerun fills missing or failed annotations in the existing contexts file.
// The annotated file is preferred over the plain one; the result is written
// back to it and mirrored to the annotated file.
func (p *Pipeline) Rerun(ctx context.Context, force bool) (orchestrate.Report, error) {
	path, err := p.resolveContexts()
	if err != nil {
		return orchestrate.Report{}, err
	}
	t, err := table.ReadCSV(path)
	if err != nil {
		return orchestrate.Report{}, fmt.Errorf("read %s: %w", path, err)
	}
	log.Printf("loaded %d contexts from %s", t.Len(), path)

	textCol := extract.ColWindowText
	if !t.Has(textCol) && t.Has(legacyTextColumn) {
		textCol = legacyTextColumn
	}
	rep, err := orchestrate.New(p.annotator, textCol).Rerun(ctx, t, force)
	if err != nil {
		return rep, err
	}

	if err := table.WriteCSV(path, t); err != nil {
		return rep, err
	}
	if full := p.cfg.OutputPath(ContextsFullFile); full != path {
		if err := table.WriteCSV(full, t); err != nil {
			return rep, err
		}
	}
	log.Printf("saved updated contexts to %s", path)
	return rep, nil
}

func (p *Pipeline) resolveContexts() (string, error) {
	for _, name := range []string{ContextsFullFile, ContextsFile} {
		path := p.cfg.OutputPath(name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no %s or %s in %s", internalerr.ErrNotFound,
		ContextsFullFile, ContextsFile, p.cfg.OutputDir)
}
