package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCountsAndSummarizes(t *testing.T) {
	l := NewLocal()

	res, err := l.Analyze(context.Background(), Document{
		ObjectID: "obj-1",
		Name:     "memo.txt",
		Text:     "First point. Second point. Third point. Fourth point.",
	})
	require.NoError(t, err)

	assert.Equal(t, "obj-1", res.ObjectID)
	assert.Equal(t, "memo.txt", res.Name)
	assert.Equal(t, 8, res.WordCount)
	assert.Equal(t, "First point. Second point. Third point.", res.Summary)
}

func TestAnalyzeRejectsEmptyText(t *testing.T) {
	l := NewLocal()

	_, err := l.Analyze(context.Background(), Document{Name: "empty.txt", Text: "   \n "})
	assert.ErrorContains(t, err, "no extractable text")
}

func TestAnalyzeCollapsesWhitespaceInSummary(t *testing.T) {
	l := NewLocal()

	res, err := l.Analyze(context.Background(), Document{
		Name: "wrapped.txt",
		Text: "Line one\ncontinues   here. Next sentence. Third one. Fourth.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Line one continues here. Next sentence. Third one.", res.Summary)
}

func TestAnalyzeCapsUnpunctuatedText(t *testing.T) {
	l := NewLocal()

	res, err := l.Analyze(context.Background(), Document{
		Name: "raw.txt",
		Text: strings.Repeat("word ", 300),
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Summary), 500)
	assert.NotEmpty(t, res.Summary)
}

func TestFragmentListsEveryResult(t *testing.T) {
	l := NewLocal()

	content, err := l.Fragment(context.Background(), 2, []Result{
		{Name: "a.txt", WordCount: 10, Summary: "About a."},
		{Name: "b.pdf", WordCount: 42, Summary: "About b."},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(content, "## Batch 2 (2 documents)\n"))
	assert.Contains(t, content, "### a.txt")
	assert.Contains(t, content, "### b.pdf")
	assert.Contains(t, content, "- words: 42")
	// Results appear in input order.
	assert.Less(t, strings.Index(content, "a.txt"), strings.Index(content, "b.pdf"))
}
