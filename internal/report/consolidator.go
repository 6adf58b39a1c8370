// Package report merges per-batch fragments into the single run
// artifact.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/docpipe/docpipe/pkg/logger"
)

const fragmentSeparator = "\n\n---\n\n"

// Fragment is one batch's contribution to the final report. Every batch
// produces exactly one, even if it is only a placeholder, so fragment
// count always reconciles with batch count.
type Fragment struct {
	BatchNumber int
	Content     string
}

// Placeholder builds the fragment recorded for a batch that produced
// zero successful analyses.
func Placeholder(batchNumber int, reason string) Fragment {
	return Fragment{
		BatchNumber: batchNumber,
		Content:     fmt.Sprintf("## Batch %d\nNo successful analyses: %s\n", batchNumber, reason),
	}
}

// Consolidator accumulates fragments and writes the final artifact.
type Consolidator struct {
	dir string
	now func() time.Time
	log zerolog.Logger
}

func NewConsolidator(dir string) *Consolidator {
	return &Consolidator{
		dir: dir,
		now: time.Now,
		log: logger.Component("report"),
	}
}

// Render is a pure function of the fragments: title, generation
// timestamp, then each fragment demarcated with its batch number.
func (c *Consolidator) Render(fragments []Fragment) string {
	var b strings.Builder
	b.WriteString("# Consolidated Document Analysis Report\n")
	fmt.Fprintf(&b, "*Generated at: %s*\n\n", c.now().Format("2006-01-02 15:04:05"))

	sections := make([]string, 0, len(fragments))
	for _, f := range fragments {
		sections = append(sections, fmt.Sprintf("<!-- batch %d -->\n%s", f.BatchNumber, f.Content))
	}
	b.WriteString(strings.Join(sections, fragmentSeparator))
	return b.String()
}

// Consolidate writes the rendered report once, under a timestamped
// name. A failed write is retried once from the in-memory content; if
// that fails too, the error names the fragment count so nothing is
// silently dropped.
func (c *Consolidator) Consolidate(fragments []Fragment) (string, error) {
	if len(fragments) == 0 {
		return "", fmt.Errorf("no report fragments to consolidate")
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir %s: %w", c.dir, err)
	}

	name := fmt.Sprintf("consolidated_report_%s.md", c.now().Format("20060102_150405"))
	path := filepath.Join(c.dir, name)
	content := []byte(c.Render(fragments))

	err := os.WriteFile(path, content, 0o644)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("report write failed, retrying once")
		err = os.WriteFile(path, content, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("failed to write report with %d fragments to %s: %w",
			len(fragments), path, err)
	}

	c.log.Info().Str("path", path).Int("fragments", len(fragments)).Msg("final report written")
	return path, nil
}
