// Package analysis defines the downstream stages the pipeline feeds:
// per-document analysis and per-batch report fragments. Both are
// consumed as black boxes; the built-in local implementation keeps the
// binary runnable without any external model backend.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Document is one analysis input: extracted, possibly truncated text
// plus the identifiers needed to attribute the result.
type Document struct {
	ObjectID  string
	Name      string
	Text      string
	Truncated bool
}

// Result is the structured output of the analysis stage.
type Result struct {
	ObjectID  string
	Name      string
	WordCount int
	Summary   string
}

// Analyzer produces one Result per document.
type Analyzer interface {
	Analyze(ctx context.Context, doc Document) (Result, error)
}

// Reporter turns a batch's analysis results into one report fragment.
type Reporter interface {
	Fragment(ctx context.Context, batchNumber int, results []Result) (string, error)
}

// Local is a self-contained Analyzer and Reporter: whitespace word
// counts and lead-sentence summaries, no network calls.
type Local struct {
	SummarySentences int
}

func NewLocal() *Local {
	return &Local{SummarySentences: 3}
}

func (l *Local) Analyze(_ context.Context, doc Document) (Result, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return Result{}, fmt.Errorf("document %s has no extractable text", doc.Name)
	}
	return Result{
		ObjectID:  doc.ObjectID,
		Name:      doc.Name,
		WordCount: len(strings.Fields(doc.Text)),
		Summary:   leadSentences(doc.Text, l.SummarySentences),
	}, nil
}

func (l *Local) Fragment(_ context.Context, batchNumber int, results []Result) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "## Batch %d (%d documents)\n", batchNumber, len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "\n### %s\n- words: %d\n- summary: %s\n", r.Name, r.WordCount, r.Summary)
	}
	return b.String(), nil
}

// leadSentences returns the first n sentences of text, collapsed to
// single-space whitespace.
func leadSentences(text string, n int) string {
	if n <= 0 {
		n = 1
	}
	collapsed := strings.Join(strings.Fields(text), " ")
	count := 0
	for i, r := range collapsed {
		if r == '.' || r == '!' || r == '?' {
			count++
			if count == n {
				return collapsed[:i+1]
			}
		}
	}
	if len(collapsed) > 500 {
		cut := 500
		for cut > 0 && !utf8.RuneStart(collapsed[cut]) {
			cut--
		}
		return collapsed[:cut]
	}
	return collapsed
}
