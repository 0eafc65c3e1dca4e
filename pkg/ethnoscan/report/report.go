// Package report writes the run summaries and the PIRO table.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/lexical"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/table"
)

// Summary is written to summary.json.
type Summary struct {
	RunID               string         `json:"run_id,omitempty"`
	TotalContexts       int            `json:"total_contexts"`
	SemanticLabelCounts map[string]int `json:"semantic_label_counts"`
	AttitudeCounts      map[string]int `json:"attitude_counts"`
	Authors             int            `json:"authors"`
}

// Summarize counts labels, attitudes and distinct authors.
func Summarize(t *table.Table, runID string) Summary {
	s := Summary{
		RunID:               runID,
		TotalContexts:       t.Len(),
		SemanticLabelCounts: make(map[string]int),
		AttitudeCounts:      make(map[string]int),
	}
	authors := make(map[string]bool)
	for i := 0; i < t.Len(); i++ {
		if v := t.Get(i, "semantic_label"); v != "" {
			s.SemanticLabelCounts[v]++
		}
		if v := t.Get(i, "attitude"); v != "" {
			s.AttitudeCounts[v]++
		}
		if a := strings.TrimSpace(t.Get(i, "author")); a != "" {
			authors[a] = true
		}
	}
	s.Authors = len(authors)
	return s
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(path, append(data, '\n')); err != nil {
		return err
	}
	log.Printf("saved summary to %s", path)
	return nil
}

// Commenter produces interpretive text. annotate.Annotator implements it.
type Commenter interface {
	Commentary(ctx context.Context, prompt string) string
	InterpretTable(ctx context.Context, title, sample string) string
	InterpretVisual(ctx context.Context, title, hint, sample string) string
}

// DefaultCommentaryPrompt asks for a short scholarly overview in Russian.
const DefaultCommentaryPrompt = "Сформулируй краткое (5–6 предложений) научное резюме общих тенденций " +
	"представления калмыков во всех травелогах. Пиши по-русски, придерживаясь академического стиля."

// NamedTable is a side table interpreted in the text summary.
type NamedTable struct {
	Title string
	Table *table.Table
}

// TextWriter renders summary.txt.
type TextWriter struct {
	Commenter Commenter
	Heading   string
	Prompt    string
	// SampleRows bounds the table preview sent for interpretation.
	SampleRows int
}

// Write renders the distributions, an interpretation of the label
// distribution, notes on each table and the overall commentary.
func (w TextWriter) Write(ctx context.Context, path string, s Summary, tables []NamedTable) error {
	heading := w.Heading
	if heading == "" {
		heading = "Summary of Kalmyk Image Analysis"
	}
	prompt := w.Prompt
	if prompt == "" {
		prompt = DefaultCommentaryPrompt
	}
	rows := w.SampleRows
	if rows <= 0 {
		rows = 10
	}

	labels := countsJSON(s.SemanticLabelCounts)
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== %s ===\n", heading)
	fmt.Fprintf(&buf, "Total contexts: %d\n", s.TotalContexts)
	fmt.Fprintf(&buf, "Semantic label distribution:\n%s\n\n", labels)
	fmt.Fprintf(&buf, "Attitude distribution:\n%s\n", countsJSON(s.AttitudeCounts))

	if w.Commenter != nil {
		fmt.Fprintf(&buf, "\nLabel distribution notes:\n%s\n",
			w.Commenter.InterpretVisual(ctx, "Semantic label distribution",
				"Share of contexts per semantic category across all travelogues.", labels))
		for _, nt := range tables {
			if nt.Table == nil || nt.Table.Len() == 0 {
				continue
			}
			fmt.Fprintf(&buf, "\n%s notes:\n%s\n", nt.Title,
				w.Commenter.InterpretTable(ctx, nt.Title, preview(nt.Table, rows)))
		}
		fmt.Fprintf(&buf, "\nInterpretive notes:\n%s\n", w.Commenter.Commentary(ctx, prompt))
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return err
	}
	log.Printf("saved detailed summary to %s", path)
	return nil
}

// countsJSON renders counts as indented JSON with keys ordered by count.
func countsJSON(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{\n")
	for i, k := range keys {
		name, _ := json.Marshal(k)
		fmt.Fprintf(&b, "  %s: %d", name, counts[k])
		if i < len(keys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

func preview(t *table.Table, n int) string {
	head := t.Filter(func(i int) bool { return i < n })
	var buf bytes.Buffer
	if err := head.Encode(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// PIROColumns is the header of the PIRO table.
var PIROColumns = []string{
	"context_id", "author", "year", "title", "source", "term",
	"Place", "Identity", "Representation", "Representation_ru",
	"Otherness", "Otherness_ru", "Summary_en", "Summary_ru", "Context",
}

// PIRO builds the Place / Identity / Representation / Otherness table.
func PIRO(t *table.Table, textColumn string) *table.Table {
	out := table.New(PIROColumns...)
	for i := 0; i < t.Len(); i++ {
		identity := t.Get(i, "normalized_term")
		if identity == "" {
			identity = t.Get(i, "matched_term")
		}
		out.Append(map[string]string{
			"context_id":        t.Get(i, "context_id"),
			"author":            t.Get(i, "author"),
			"year":              t.Get(i, "year"),
			"title":             t.Get(i, "title"),
			"source":            t.Get(i, "source"),
			"term":              t.Get(i, "matched_term"),
			"Place":             strings.Join(lexical.ParseToponyms(t.Get(i, lexical.ColToponyms)), "; "),
			"Identity":          identity,
			"Representation":    t.Get(i, "semantic_label"),
			"Representation_ru": t.Get(i, "semantic_label_ru"),
			"Otherness":         t.Get(i, "attitude"),
			"Otherness_ru":      t.Get(i, "attitude_ru"),
			"Summary_en":        t.Get(i, "summary_en"),
			"Summary_ru":        t.Get(i, "summary_ru"),
			"Context":           t.Get(i, textColumn),
		})
	}
	return out
}

// WritePIRO writes the PIRO table unless t is empty.
func WritePIRO(path string, t *table.Table) error {
	if t.Len() == 0 {
		log.Printf("no contexts; PIRO table not created")
		return nil
	}
	if err := table.WriteCSV(path, t); err != nil {
		return err
	}
	log.Printf("PIRO table saved to %s (%d rows)", path, t.Len())
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
