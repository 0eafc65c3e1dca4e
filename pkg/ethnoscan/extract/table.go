package extract

import (
	"log"
	"strconv"
	"strings"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/table"
)

// Column names of the contexts table.
const (
	ColContextID           = "context_id"
	ColDocumentID          = "document_id"
	ColFilename            = "filename"
	ColAuthor              = "author"
	ColYear                = "year"
	ColTitle               = "title"
	ColSource              = "source"
	ColMatchedTerm         = "matched_term"
	ColNormalizedTerm      = "normalized_term"
	ColSentenceIndex       = "sentence_index"
	ColOccurrenceIndex     = "occurrence_index"
	ColTargetSentence      = "target_sentence"
	ColPreContext          = "pre_context"
	ColPostContext         = "post_context"
	ColWindowText          = "window_text"
	ColWindowSentenceCount = "window_sentence_count"
	ColWordCount           = "word_count"
)

// Columns is the header order of the contexts table.
var Columns = []string{
	ColContextID, ColDocumentID, ColFilename, ColAuthor, ColYear, ColTitle, ColSource,
	ColMatchedTerm, ColNormalizedTerm, ColSentenceIndex, ColOccurrenceIndex,
	ColTargetSentence, ColWindowText, ColPreContext, ColPostContext, ColWindowSentenceCount,
}

// DefaultMinWords is the shortest window kept by Clean.
const DefaultMinWords = 20

// Table renders contexts in order.
func Table(contexts []Context) *table.Table {
	t := table.New(Columns...)
	for _, c := range contexts {
		t.Append(map[string]string{
			ColContextID:           c.ID,
			ColDocumentID:          c.DocumentID,
			ColFilename:            c.Filename,
			ColAuthor:              c.Author,
			ColYear:                c.Year,
			ColTitle:               c.Title,
			ColSource:              c.Source,
			ColMatchedTerm:         c.MatchedTerm,
			ColNormalizedTerm:      c.NormalizedTerm,
			ColSentenceIndex:       strconv.Itoa(c.SentenceIndex),
			ColOccurrenceIndex:     strconv.Itoa(c.OccurrenceIndex),
			ColTargetSentence:      c.TargetSentence,
			ColWindowText:          c.WindowText,
			ColPreContext:          c.PreContext,
			ColPostContext:         c.PostContext,
			ColWindowSentenceCount: strconv.Itoa(c.WindowSentenceCount),
		})
	}
	return t
}

// Save writes the contexts table to path, replacing any previous file.
func Save(path string, contexts []Context) error {
	if err := table.WriteCSV(path, Table(contexts)); err != nil {
		return err
	}
	log.Printf("saved %d contexts to %s", len(contexts), path)
	return nil
}

// Clean collapses whitespace in the window column, records its word count
// and drops rows shorter than minWords. minWords <= 0 keeps every row.
func Clean(t *table.Table, column string, minWords int) *table.Table {
	t.AddColumn(ColWordCount, "0")
	for i := 0; i < t.Len(); i++ {
		fields := strings.Fields(t.Get(i, column))
		t.Set(i, column, strings.Join(fields, " "))
		t.Set(i, ColWordCount, strconv.Itoa(len(fields)))
	}
	out := t.Filter(func(i int) bool {
		return minWords <= 0 || len(strings.Fields(t.Get(i, column))) >= minWords
	})
	log.Printf("filtered contexts: %d of %d (removed %d)", out.Len(), t.Len(), t.Len()-out.Len())
	return out
}
