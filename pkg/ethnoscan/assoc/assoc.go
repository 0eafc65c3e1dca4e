// Package assoc scores how strongly lemmas are tied to the term matched in
// a context, using normalized pointwise mutual information over contexts.
package assoc

import (
	"math"
	"sort"
)

// Calculator computes PMI scores from context counts.
type Calculator struct {
	// Epsilon smooths the joint count. Zero disables smoothing.
	Epsilon float64
}

// PMI(a,b) = log((n_ab + ε) * N / (n_a * n_b))
func (c Calculator) PMI(nAB, nA, nB, n int64) float64 {
	if n == 0 || nA == 0 || nB == 0 {
		return 0
	}
	return math.Log((float64(nAB) + c.Epsilon) * float64(n) / (float64(nA) * float64(nB)))
}

// NPMI normalizes PMI into [-1, 1]. Pairs that never co-occur score -1.
func (c Calculator) NPMI(nAB, nA, nB, n int64) float64 {
	if n == 0 {
		return 0
	}
	if nAB == 0 && c.Epsilon == 0 {
		return -1
	}
	pAB := (float64(nAB) + c.Epsilon) / float64(n)
	if pAB >= 1 {
		return 1
	}
	v := c.PMI(nAB, nA, nB, n) / -math.Log(pAB)
	return math.Max(-1, math.Min(1, v))
}

// Lemma is a lemma with its part of speech.
type Lemma struct {
	Text string
	POS  string
}

type pair struct {
	term  string
	lemma Lemma
}

// Counter accumulates per-context presence counts.
type Counter struct {
	n      int64
	terms  map[string]int64
	lemmas map[Lemma]int64
	pairs  map[pair]int64
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{
		terms:  make(map[string]int64),
		lemmas: make(map[Lemma]int64),
		pairs:  make(map[pair]int64),
	}
}

// AddContext records one context. Repeated lemmas count once.
func (c *Counter) AddContext(term string, lemmas []Lemma) {
	c.n++
	c.terms[term]++
	seen := make(map[Lemma]bool, len(lemmas))
	for _, l := range lemmas {
		if seen[l] {
			continue
		}
		seen[l] = true
		c.lemmas[l]++
		c.pairs[pair{term, l}]++
	}
}

// Contexts returns the number of contexts recorded.
func (c *Counter) Contexts() int64 { return c.n }

// Score is the association of one lemma with one term.
type Score struct {
	Term     string
	Lemma    string
	POS      string
	Contexts int64
	NPMI     float64
}

// Scores returns every pair seen in at least minContexts contexts, ordered
// by term, descending NPMI, then lemma and part of speech.
func (c *Counter) Scores(calc Calculator, minContexts int64) []Score {
	var out []Score
	for p, nAB := range c.pairs {
		if nAB < minContexts {
			continue
		}
		out = append(out, Score{
			Term:     p.term,
			Lemma:    p.lemma.Text,
			POS:      p.lemma.POS,
			Contexts: nAB,
			NPMI:     calc.NPMI(nAB, c.terms[p.term], c.lemmas[p.lemma], c.n),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Term != b.Term {
			return a.Term < b.Term
		}
		if a.NPMI != b.NPMI {
			return a.NPMI > b.NPMI
		}
		if a.Lemma != b.Lemma {
			return a.Lemma < b.Lemma
		}
		return a.POS < b.POS
	})
	return out
}
