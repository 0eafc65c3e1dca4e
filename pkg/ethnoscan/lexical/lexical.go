// Package lexical adds adjective, verb and place-name features to contexts
// and aggregates lemma collocations per term.
package lexical

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"sort"
	"strings"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/assoc"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/stoplist"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/table"
)

// Columns added to the contexts table.
const (
	ColAdjectives = "adjectives"
	ColVerbs      = "verbs"
	ColToponyms   = "toponyms"
)

// LemmaCount is one entry of a frequency-ranked lemma list.
type LemmaCount struct {
	Lemma string `json:"lemma"`
	Count int    `json:"count"`
}

// Features are the lexical features of one context.
type Features struct {
	Adjectives []LemmaCount
	Verbs      []LemmaCount
	Toponyms   []string
}

// Analyzer runs a Tagger over the text column of a contexts table.
type Analyzer struct {
	Tagger     Tagger
	Stopwords  *stoplist.Manager
	TextColumn string
}

// Result holds the side tables of one pass.
type Result struct {
	Collocations *table.Table
	Associations []assoc.Score
}

// Features tags text and keeps alphabetic, non-stopword adjectives and verbs
// plus place entities.
func (a *Analyzer) Features(text string) (Features, error) {
	f, _, err := a.features(text)
	return f, err
}

func (a *Analyzer) features(text string) (Features, []collocation, error) {
	an, err := a.Tagger.Tag(text)
	if err != nil {
		return Features{}, nil, err
	}
	adj := newRanker()
	verbs := newRanker()
	var hits []collocation
	for _, tok := range an.Tokens {
		if !tok.Alpha {
			continue
		}
		lemma := strings.ToLower(tok.Lemma)
		if lemma == "" || a.Stopwords.IsStop(lemma) {
			continue
		}
		switch tok.POS {
		case ADJ:
			adj.add(lemma)
		case VERB:
			verbs.add(lemma)
		default:
			continue
		}
		hits = append(hits, collocation{lemma: lemma, pos: tok.POS})
	}
	places := make(map[string]bool)
	for _, ent := range an.Entities {
		if ent.Label == "GPE" {
			places[ent.Text] = true
		}
	}
	toponyms := make([]string, 0, len(places))
	for p := range places {
		toponyms = append(toponyms, p)
	}
	sort.Strings(toponyms)
	return Features{Adjectives: adj.ranked(), Verbs: verbs.ranked(), Toponyms: toponyms}, hits, nil
}

// Analyze adds the feature columns to t and returns the collocation table
// and term/lemma associations. Rows whose tagging fails keep empty features.
func (a *Analyzer) Analyze(ctx context.Context, t *table.Table) (Result, error) {
	t.AddColumn("context_id", "")
	t.AddColumn(ColAdjectives, "[]")
	t.AddColumn(ColVerbs, "[]")
	t.AddColumn(ColToponyms, "[]")

	textCol := a.TextColumn
	if textCol == "" {
		textCol = "window_text"
	}
	agg := make(map[collocationKey]int)
	var order []collocationKey
	counter := assoc.NewCounter()

	for i := 0; i < t.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		text := t.Get(i, textCol)
		id := t.Get(i, "context_id")
		if id == "" {
			id = hashText(text)
			t.Set(i, "context_id", id)
		}
		f, hits, err := a.features(text)
		if err != nil {
			log.Printf("lexical: context %s: %v", id, err)
			continue
		}
		t.Set(i, ColAdjectives, mustJSON(f.Adjectives))
		t.Set(i, ColVerbs, mustJSON(f.Verbs))
		t.Set(i, ColToponyms, mustJSON(f.Toponyms))

		term := termOf(t, i)
		lemmas := make([]assoc.Lemma, 0, len(hits))
		for _, h := range hits {
			k := collocationKey{
				contextID: id,
				lemma:     h.lemma,
				pos:       h.pos,
				term:      term,
				author:    t.Get(i, "author"),
				year:      t.Get(i, "year"),
			}
			if _, ok := agg[k]; !ok {
				order = append(order, k)
			}
			agg[k]++
			lemmas = append(lemmas, assoc.Lemma{Text: h.lemma, POS: h.pos})
		}
		counter.AddContext(term, lemmas)
	}

	return Result{
		Collocations: collocationTable(order, agg),
		Associations: counter.Scores(assoc.Calculator{}, 2),
	}, nil
}

func termOf(t *table.Table, i int) string {
	for _, c := range []string{"normalized_term", "matched_term", "ethnonym_normalised", "ethnonym"} {
		if v := t.Get(i, c); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ranker counts lemmas and ranks them by count, ties by first appearance.
type ranker struct {
	counts map[string]int
	order  []string
}

func newRanker() *ranker { return &ranker{counts: make(map[string]int)} }

func (r *ranker) add(lemma string) {
	if _, ok := r.counts[lemma]; !ok {
		r.order = append(r.order, lemma)
	}
	r.counts[lemma]++
}

func (r *ranker) ranked() []LemmaCount {
	out := make([]LemmaCount, 0, len(r.order))
	for _, l := range r.order {
		out = append(out, LemmaCount{Lemma: l, Count: r.counts[l]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// ParseLemmaCounts decodes an adjectives or verbs cell.
func ParseLemmaCounts(cell string) []LemmaCount {
	var out []LemmaCount
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(cell), &out); err != nil {
		return nil
	}
	return out
}

// ParseToponyms decodes a toponyms cell.
func ParseToponyms(cell string) []string {
	var out []string
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(cell), &out); err != nil {
		return nil
	}
	return out
}
