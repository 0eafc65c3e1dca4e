// Package orchestrate fills annotation columns of a contexts table, either
// for every row or only for rows whose values are missing or failed.
package orchestrate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/annotate"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/table"
)

// Annotator is the subset of annotate.Annotator the orchestrator uses.
type Annotator interface {
	Annotate(ctx context.Context, task annotate.Task, text string) string
	Calls() int64
}

// Column describes one annotation column. Primary columns read the text
// column; derived columns read another annotation column.
type Column struct {
	Name      string
	Task      annotate.Task
	Input     string // "" means the text column
	Default   string
	Normalize func(string) string
}

func (c Column) derived() bool { return c.Input != "" }

// DefaultColumns returns the label, attitude and summary columns with their
// translations.
func DefaultColumns() []Column {
	return []Column{
		{Name: "semantic_label", Task: annotate.Classify, Normalize: annotate.NormalizeLabel},
		{Name: "attitude", Task: annotate.Sentiment, Normalize: annotate.NormalizeAttitude},
		{Name: "summary_en", Task: annotate.Summarize},
		{Name: "semantic_label_ru", Task: annotate.Translate, Input: "semantic_label", Default: annotate.NoData},
		{Name: "attitude_ru", Task: annotate.Translate, Input: "attitude", Default: annotate.NoData},
		{Name: "summary_ru", Task: annotate.Translate, Input: "summary_en", Default: annotate.NoData},
	}
}

// Orchestrator drives the annotator over a table.
type Orchestrator struct {
	Annotator  Annotator
	TextColumn string
	Columns    []Column

	// ProgressEvery logs progress after this many updated rows; 0 disables.
	ProgressEvery int
}

// New returns an orchestrator with the default columns.
func New(a Annotator, textColumn string) *Orchestrator {
	return &Orchestrator{Annotator: a, TextColumn: textColumn, Columns: DefaultColumns(), ProgressEvery: 50}
}

// Report summarizes one pass.
type Report struct {
	RunID        string
	Mode         string
	Rows         int
	RowsUpdated  int
	CellsWritten int
	// Unresolved counts written cells that still hold the unavailable
	// sentinel after the pass.
	Unresolved int
	Calls      int64
}

func (r Report) String() string {
	return fmt.Sprintf("run %s (%s): %d/%d rows updated, %d cells written, %d unresolved, %d external calls",
		r.RunID, r.Mode, r.RowsUpdated, r.Rows, r.CellsWritten, r.Unresolved, r.Calls)
}

// CacheOnly reports whether rows were selected but every value came from
// the cache, so cached failures could not be recovered.
func (r Report) CacheOnly() bool {
	return r.RowsUpdated > 0 && r.Calls == 0
}

// Annotate computes every column for every row.
func (o *Orchestrator) Annotate(ctx context.Context, t *table.Table) (Report, error) {
	if err := o.check(t); err != nil {
		return Report{}, err
	}
	needs := make(map[string][]bool, len(o.Columns))
	for _, c := range o.Columns {
		t.AddColumn(c.Name, c.Default)
		needs[c.Name] = fill(t.Len(), true)
	}
	return o.pass(ctx, t, "annotate", needs)
}

// Rerun computes only cells that are absent, empty or failed. With force
// every cell is recomputed. Cells that are not recomputed are left as-is.
func (o *Orchestrator) Rerun(ctx context.Context, t *table.Table, force bool) (Report, error) {
	if err := o.check(t); err != nil {
		return Report{}, err
	}
	needs := make(map[string][]bool, len(o.Columns))
	for _, c := range o.Columns {
		if !t.Has(c.Name) {
			t.AddColumn(c.Name, c.Default)
			needs[c.Name] = fill(t.Len(), true)
			continue
		}
		col := make([]bool, t.Len())
		for i := range col {
			col[i] = force || NeedsUpdate(t.Get(i, c.Name), c.derived())
		}
		needs[c.Name] = col
	}
	return o.pass(ctx, t, "rerun", needs)
}

// NeedsUpdate reports whether a stored value should be recomputed. Derived
// columns also treat the no-data marker as missing.
func NeedsUpdate(value string, derived bool) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "", "nan", annotate.Unavailable:
		return true
	case annotate.NoData:
		return derived
	}
	return false
}

func (o *Orchestrator) check(t *table.Table) error {
	if o.Annotator == nil {
		return fmt.Errorf("%w: annotator required", internalerr.ErrInvalidConfig)
	}
	if !t.Has(o.TextColumn) {
		return fmt.Errorf("%w: table has no %q column", internalerr.ErrInvalidInput, o.TextColumn)
	}
	return nil
}

func (o *Orchestrator) pass(ctx context.Context, t *table.Table, mode string, needs map[string][]bool) (Report, error) {
	rep := Report{RunID: ulid.Make().String(), Mode: mode, Rows: t.Len()}
	startCalls := o.Annotator.Calls()

	var rows []int
	for i := 0; i < t.Len(); i++ {
		for _, c := range o.Columns {
			if needs[c.Name][i] {
				rows = append(rows, i)
				break
			}
		}
	}
	if len(rows) == 0 {
		log.Printf("run %s: no contexts require updates", rep.RunID)
		return rep, nil
	}
	log.Printf("run %s: updating annotations for %d/%d contexts", rep.RunID, len(rows), t.Len())

	for n, i := range rows {
		if err := ctx.Err(); err != nil {
			rep.Calls = o.Annotator.Calls() - startCalls
			return rep, err
		}
		written, unresolved := o.annotateRow(ctx, t, i, needs)
		rep.CellsWritten += written
		rep.Unresolved += unresolved
		rep.RowsUpdated++
		if o.ProgressEvery > 0 && (n+1)%o.ProgressEvery == 0 {
			log.Printf("run %s: %d/%d contexts", rep.RunID, n+1, len(rows))
		}
	}
	rep.Calls = o.Annotator.Calls() - startCalls
	log.Printf("%s", rep)
	if rep.CacheOnly() && rep.Unresolved > 0 {
		log.Printf("run %s: %d cells still %q and no requests were made; cached failures are only retried with cache_failures: false",
			rep.RunID, rep.Unresolved, annotate.Unavailable)
	}
	return rep, nil
}

// annotateRow fills one row: primary columns first, then the derived
// columns whose input was recomputed or which are missing themselves.
func (o *Orchestrator) annotateRow(ctx context.Context, t *table.Table, i int, needs map[string][]bool) (written, unresolved int) {
	recomputed := make(map[string]bool)
	text := t.Get(i, o.TextColumn)
	for _, c := range o.Columns {
		if c.derived() || !needs[c.Name][i] {
			continue
		}
		v := o.Annotator.Annotate(ctx, c.Task, text)
		if c.Normalize != nil {
			v = c.Normalize(v)
		}
		t.Set(i, c.Name, v)
		recomputed[c.Name] = true
		written++
		if v == annotate.Unavailable {
			unresolved++
		}
	}
	for _, c := range o.Columns {
		if !c.derived() || !(needs[c.Name][i] || recomputed[c.Input]) {
			continue
		}
		v := o.Annotator.Annotate(ctx, c.Task, t.Get(i, c.Input))
		t.Set(i, c.Name, v)
		recomputed[c.Name] = true
		written++
		if v == annotate.Unavailable {
			unresolved++
		}
	}
	return written, unresolved
}

func fill(n int, v bool) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}
