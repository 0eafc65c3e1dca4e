package lexical

import (
	"log"
	"sort"
	"strconv"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/assoc"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/table"
)

// CollocationColumns is the header of collocations.csv.
var CollocationColumns = []string{"context_id", "lemma", "part_of_speech", "term", "author", "year", "count"}

// AssociationColumns is the header of associations.csv.
var AssociationColumns = []string{"term", "lemma", "part_of_speech", "contexts", "npmi"}

type collocation struct {
	lemma string
	pos   string
}

type collocationKey struct {
	contextID string
	lemma     string
	pos       string
	term      string
	author    string
	year      string
}

// collocationTable sorts by year (unknown last), author, term, part of
// speech and descending count.
func collocationTable(keys []collocationKey, counts map[collocationKey]int) *table.Table {
	sorted := make([]collocationKey, len(keys))
	copy(sorted, keys)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if less, ok := yearLess(a.year, b.year); ok {
			return less
		}
		if a.author != b.author {
			return a.author < b.author
		}
		if a.term != b.term {
			return a.term < b.term
		}
		if a.pos != b.pos {
			return a.pos < b.pos
		}
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		if a.contextID != b.contextID {
			return a.contextID < b.contextID
		}
		return a.lemma < b.lemma
	})
	t := table.New(CollocationColumns...)
	for _, k := range sorted {
		t.Append(map[string]string{
			"context_id":     k.contextID,
			"lemma":          k.lemma,
			"part_of_speech": k.pos,
			"term":           k.term,
			"author":         k.author,
			"year":           k.year,
			"count":          strconv.Itoa(counts[k]),
		})
	}
	return t
}

// WriteCollocations writes the collocation table. Nothing is written when
// there are no rows.
func WriteCollocations(path string, t *table.Table) error {
	if t == nil || t.Len() == 0 {
		log.Printf("no collocations identified; skipping %s", path)
		return nil
	}
	if err := table.WriteCSV(path, t); err != nil {
		return err
	}
	log.Printf("saved collocation statistics to %s (%d rows)", path, t.Len())
	return nil
}

// AssociationTable renders association scores.
func AssociationTable(scores []assoc.Score) *table.Table {
	t := table.New(AssociationColumns...)
	for _, s := range scores {
		t.Append(map[string]string{
			"term":           s.Term,
			"lemma":          s.Lemma,
			"part_of_speech": s.POS,
			"contexts":       strconv.FormatInt(s.Contexts, 10),
			"npmi":           strconv.FormatFloat(s.NPMI, 'f', 4, 64),
		})
	}
	return t
}

func yearLess(a, b string) (less, decided bool) {
	if a == b {
		return false, false
	}
	if a == "" {
		return false, true
	}
	if b == "" {
		return true, true
	}
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi, true
	}
	return a < b, true
}
