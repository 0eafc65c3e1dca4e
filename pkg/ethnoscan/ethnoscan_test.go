package ethnoscan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/annotate"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/config"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/lexical"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/segment"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/table"
)

type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return "", errors.New("service down")
	}
	switch {
	case strings.HasPrefix(user, "Classify"):
		return "Ethnographic description", nil
	case strings.HasPrefix(user, "Determine"):
		return "neutral", nil
	case strings.HasPrefix(user, "Provide"):
		return "Kalmyks traded horses on the steppe.", nil
	case strings.HasPrefix(user, "Translate"):
		return "перевод", nil
	}
	return "interpretive note", nil
}

func (f *fakeCompleter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var sentenceSplitter = segment.Func(func(text string) []string {
	var out []string
	for _, part := range strings.SplitAfter(text, ". ") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
})

type wordTagger struct{}

func (wordTagger) Tag(text string) (lexical.Analysis, error) {
	pos := map[string]string{"wide": lexical.ADJ, "felt": lexical.ADJ, "traded": lexical.VERB, "lived": lexical.VERB}
	lemma := map[string]string{"traded": "trade", "lived": "live"}
	var a lexical.Analysis
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,")
		l := strings.ToLower(w)
		if v, ok := lemma[l]; ok {
			l = v
		}
		p := pos[strings.ToLower(w)]
		if p == "" {
			p = lexical.OTHER
		}
		a.Tokens = append(a.Tokens, lexical.Token{Text: w, Lemma: l, POS: p, Alpha: true})
		if w == "Volga" {
			a.Entities = append(a.Entities, lexical.Entity{Text: w, Label: "GPE"})
		}
	}
	return a, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "texts", "bell_1763_journey.txt"),
		"The Kalmyk people traded horses across the wide steppe. They lived near the Volga river in felt tents. "+
			"Russian officials recorded many of their customs.")
	writeFile(t, filepath.Join(dir, "terms.txt"), "Kalmyk\n")
	writeFile(t, filepath.Join(dir, "meta.csv"), "filename,author,year,title\nbell_1763_journey.txt,Bell,1763,Journey\n")

	cfg := config.Default()
	cfg.TextsDir = filepath.Join(dir, "texts")
	cfg.MetadataPath = filepath.Join(dir, "meta.csv")
	cfg.TermsPath = filepath.Join(dir, "terms.txt")
	cfg.StopwordsPath = filepath.Join(dir, "missing-stopwords.txt")
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.Window = 1
	cfg.MinWords = 5
	cfg.Cache.Backend = config.BackendMemory
	cfg.API.Delay = 0
	cfg.Lexical.Stopwords = []string{"felt"}
	return cfg
}

func newPipeline(t *testing.T, cfg config.Config, c annotate.Completer) *Pipeline {
	t.Helper()
	p, err := New(context.Background(), Options{Config: cfg, Completer: c, Splitter: sentenceSplitter, Tagger: wordTagger{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestRunWritesEveryOutput(t *testing.T) {
	cfg := testConfig(t)
	fc := &fakeCompleter{}
	res, err := newPipeline(t, cfg, fc).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Documents != 1 || res.Contexts != 1 || res.Kept != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Annotation.CellsWritten != 6 || res.Annotation.Calls != 6 {
		t.Fatalf("unexpected annotation report %+v", res.Annotation)
	}
	if res.Collocations != 3 {
		t.Fatalf("expected 3 collocation rows, got %d", res.Collocations)
	}

	for _, name := range []string{ContextsFile, ContextsFullFile, CollocationsFile, PIROFile, SummaryJSONFile, SummaryTextFile} {
		if _, err := os.Stat(cfg.OutputPath(name)); err != nil {
			t.Fatalf("missing output %s: %v", name, err)
		}
	}

	full, err := table.ReadCSV(cfg.OutputPath(ContextsFullFile))
	if err != nil {
		t.Fatalf("read contexts: %v", err)
	}
	row := full.Row(0)
	if row["semantic_label"] != "ethnographic" || row["attitude"] != "neutral" || row["summary_ru"] != "перевод" {
		t.Fatalf("unexpected annotations %v", row)
	}
	if row["author"] != "Bell" || row["toponyms"] != `["Volga"]` {
		t.Fatalf("unexpected metadata or features %v", row)
	}
	if strings.Contains(row["adjectives"], "felt") {
		t.Fatalf("config stopword kept: %s", row["adjectives"])
	}

	summary, _ := os.ReadFile(cfg.OutputPath(SummaryTextFile))
	if !strings.Contains(string(summary), "Interpretive notes:\ninterpretive note") {
		t.Fatalf("unexpected summary text:\n%s", summary)
	}
}

func TestRunWithoutCredentialsDegrades(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.KeyEnv = "ETHNOSCAN_TEST_KEY_THAT_IS_NOT_SET"
	cfg.API.EnvFile = ""
	p, err := New(context.Background(), Options{Config: cfg, Splitter: sentenceSplitter, Tagger: wordTagger{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Annotation.Calls != 0 {
		t.Fatalf("expected no external calls, got %d", res.Annotation.Calls)
	}
	if res.Summary.AttitudeCounts[annotate.Unavailable] != 1 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
}

func TestRunStopsEarlyWithoutContexts(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.TermsPath, "Buryat\n")
	fc := &fakeCompleter{}
	res, err := newPipeline(t, cfg, fc).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Contexts != 0 || fc.count() != 0 {
		t.Fatalf("unexpected result %+v after %d calls", res, fc.count())
	}
	if _, err := os.Stat(cfg.OutputPath(ContextsFullFile)); !os.IsNotExist(err) {
		t.Fatal("annotated contexts must not be written")
	}
}

func TestRunMissingTexts(t *testing.T) {
	cfg := testConfig(t)
	cfg.TextsDir = filepath.Join(t.TempDir(), "nope")
	_, err := newPipeline(t, cfg, &fakeCompleter{}).Run(context.Background())
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRerunFillsFailedCells(t *testing.T) {
	cfg := testConfig(t)
	if _, err := newPipeline(t, cfg, &fakeCompleter{}).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	path := cfg.OutputPath(ContextsFullFile)
	full, err := table.ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	full.Set(0, "summary_ru", annotate.NoData)
	if err := table.WriteCSV(path, full); err != nil {
		t.Fatal(err)
	}

	fc := &fakeCompleter{}
	rep, err := newPipeline(t, cfg, fc).Rerun(context.Background(), false)
	if err != nil {
		t.Fatalf("Rerun: %v", err)
	}
	if rep.RowsUpdated != 1 || rep.CellsWritten != 1 || fc.count() != 1 {
		t.Fatalf("unexpected rerun %+v after %d calls", rep, fc.count())
	}
	back, _ := table.ReadCSV(path)
	if back.Get(0, "summary_ru") != "перевод" {
		t.Fatalf("summary_ru not refilled: %q", back.Get(0, "summary_ru"))
	}
}

func TestRerunLegacyContextsFile(t *testing.T) {
	cfg := testConfig(t)
	legacy := table.New("context_id", "context")
	legacy.Append(map[string]string{"context_id": "x", "context": "The Kalmyk camp stood by the river."})
	if err := table.WriteCSV(cfg.OutputPath(ContextsFile), legacy); err != nil {
		t.Fatal(err)
	}

	rep, err := newPipeline(t, cfg, &fakeCompleter{}).Rerun(context.Background(), false)
	if err != nil {
		t.Fatalf("Rerun: %v", err)
	}
	if rep.CellsWritten != 6 {
		t.Fatalf("expected every column filled, got %+v", rep)
	}
	for _, name := range []string{ContextsFile, ContextsFullFile} {
		back, err := table.ReadCSV(cfg.OutputPath(name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if back.Get(0, "semantic_label") != "ethnographic" {
			t.Fatalf("%s not updated", name)
		}
	}
}

func TestRerunWithoutContexts(t *testing.T) {
	cfg := testConfig(t)
	_, err := newPipeline(t, cfg, &fakeCompleter{}).Rerun(context.Background(), false)
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenStoreSQLiteImport(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.jsonl")
	writeFile(t, seed, `{"key":"k1","response":"ethnographic"}`+"\n")

	s, err := OpenStore(context.Background(), config.Cache{
		Backend: config.BackendSQLite,
		Path:    filepath.Join(dir, "cache.db"),
		Import:  seed,
	})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()
	v, ok, err := s.Get(context.Background(), "k1")
	if err != nil || !ok || v != "ethnographic" {
		t.Fatalf("unexpected lookup %q %v %v", v, ok, err)
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), config.Cache{Backend: "redis"})
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
