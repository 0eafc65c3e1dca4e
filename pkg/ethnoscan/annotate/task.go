package annotate

import (
	"fmt"
	"strings"
)

// Task is a kind of annotation request. The set of tasks is closed: callers
// use the exported values and cannot mint new ones.
type Task struct {
	name string
}

var (
	Classify        = Task{"classify"}
	Sentiment       = Task{"sentiment"}
	Summarize       = Task{"summary"}
	Translate       = Task{"translate"}
	Commentary      = Task{"commentary"}
	InterpretTable  = Task{"interpret-table"}
	InterpretVisual = Task{"interpret-visual"}
)

// Tasks lists every task in a stable order.
func Tasks() []Task {
	return []Task{Classify, Sentiment, Summarize, Translate, Commentary, InterpretTable, InterpretVisual}
}

// ParseTask resolves a task by its cache name.
func ParseTask(name string) (Task, bool) {
	for _, t := range Tasks() {
		if t.name == name {
			return t, true
		}
	}
	return Task{}, false
}

// String returns the name used in cache keys.
func (t Task) String() string { return t.name }

func (t Task) valid() bool { return t.name != "" }

// Categories is the closed set of semantic labels.
var Categories = []string{"ethnographic", "functional", "evaluative", "religious", "imperial"}

// SystemPrompt is sent with every request.
const SystemPrompt = "You are a semantic analyzer for historical English texts."

const visualSampleLimit = 800

type prompter struct {
	group    string
	language string
}

func (p prompter) prompt(t Task, text string) string {
	switch t {
	case Classify:
		return fmt.Sprintf("Classify this text about %s into one of ['%s'].\nText: %s",
			p.group, strings.Join(Categories, "', '"), text)
	case Sentiment:
		return fmt.Sprintf("Determine the overall attitude toward %s (positive, neutral, negative, or ambivalent).\nText: %s",
			p.group, text)
	case Summarize:
		return fmt.Sprintf("Provide a short, factual summary (1–2 sentences) of this text about %s.\nText: %s",
			p.group, text)
	case Translate:
		return fmt.Sprintf("Translate this text into %s, preserving scientific tone:\n%s", p.language, text)
	case InterpretTable:
		return p.tablePrompt("", text)
	case InterpretVisual:
		return p.visualPrompt("", "", text)
	default:
		return text
	}
}

func (p prompter) tablePrompt(title, sample string) string {
	return fmt.Sprintf("Summarize the key trends in the table '%s' in 4–5 sentences, using a scholarly and analytical tone. "+
		"Do not restate the data. Identify what the results mean in cultural, historical, or linguistic terms. "+
		"Write concisely, as for an academic report. Table preview:\n%s", title, sample)
}

func (p prompter) visualPrompt(title, hint, sample string) string {
	return fmt.Sprintf("You are an academic analyst working on a Digital Humanities project "+
		"about representations of %s in 19th–20th century English travelogues.\n\n"+
		"Task: Provide a concise scholarly interpretation (5–6 sentences) of the visualization titled '%s'.\n"+
		"Explain what trends or cultural implications the data show, how they should be read, "+
		"and what they reveal about British views of the %s or Siberia.\n"+
		"Respond in %s, adopting a formal academic tone that could appear in a research article.\n\n"+
		"Contextual description: %s\n\nSample data preview:\n%s",
		p.group, title, p.group, p.language, hint, truncate(sample, visualSampleLimit))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
