package lexical

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/jdkato/prose/v2"
)

// Universal part-of-speech tags the analyzer cares about.
const (
	ADJ   = "ADJ"
	VERB  = "VERB"
	AUX   = "AUX"
	OTHER = "X"
)

// Token is one tagged word.
type Token struct {
	Text  string
	Lemma string
	POS   string
	Alpha bool
}

// Entity is a named-entity span.
type Entity struct {
	Text  string
	Label string
}

// Analysis is the tagger output for one text.
type Analysis struct {
	Tokens   []Token
	Entities []Entity
}

// Tagger assigns lemmas, parts of speech and entities.
type Tagger interface {
	Tag(text string) (Analysis, error)
}

// ProseTagger tags with prose and lemmatizes with golem's English dictionary.
type ProseTagger struct {
	lemmatizer *golem.Lemmatizer
}

// NewProseTagger loads the lemmatizer dictionary.
func NewProseTagger() (*ProseTagger, error) {
	lm, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load lemmatizer: %w", err)
	}
	return &ProseTagger{lemmatizer: lm}, nil
}

// Tag implements Tagger.
func (p *ProseTagger) Tag(text string) (Analysis, error) {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return Analysis{}, err
	}
	var out Analysis
	for _, tok := range doc.Tokens() {
		lemma := strings.ToLower(p.lemmatizer.Lemma(tok.Text))
		out.Tokens = append(out.Tokens, Token{
			Text:  tok.Text,
			Lemma: lemma,
			POS:   universalPOS(tok.Tag, lemma),
			Alpha: isAlpha(tok.Text),
		})
	}
	for _, ent := range doc.Entities() {
		out.Entities = append(out.Entities, Entity{Text: ent.Text, Label: ent.Label})
	}
	return out, nil
}

// universalPOS maps Penn Treebank tags onto the coarse tags used here.
// Forms of "be" and modals count as auxiliaries.
func universalPOS(tag, lemma string) string {
	switch {
	case strings.HasPrefix(tag, "JJ"):
		return ADJ
	case tag == "MD":
		return AUX
	case strings.HasPrefix(tag, "VB"):
		if lemma == "be" {
			return AUX
		}
		return VERB
	}
	return OTHER
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
