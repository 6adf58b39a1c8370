// Package extract pulls plain text out of staged files so the analysis
// stage never sees raw document bytes.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// TruncationMarker is appended whenever content is cut to the budget,
// so truncation is never silent.
const TruncationMarker = "\n\n[... content truncated to fit the character budget ...]"

// Content is extracted text plus a simple whitespace word count.
type Content struct {
	Text      string
	WordCount int
	Truncated bool
}

// File extracts text from path by extension and truncates the result to
// maxChars. Unknown extensions are read as UTF-8 text with invalid
// bytes dropped rather than rejected.
func File(path string, maxChars int) (Content, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = fromPDF(path)
	case ".xlsx":
		text, err = fromXLSX(path)
	default:
		text, err = fromText(path)
	}
	if err != nil {
		return Content{}, err
	}

	words := len(strings.Fields(text))
	text, truncated := Truncate(text, maxChars)
	return Content{Text: text, WordCount: words, Truncated: truncated}, nil
}

// Truncate cuts text to maxChars and appends the truncation marker. The
// result, marker included, never exceeds the budget. maxChars <= 0
// disables truncation.
func Truncate(text string, maxChars int) (string, bool) {
	if maxChars <= 0 || len(text) <= maxChars {
		return text, false
	}
	cut := maxChars - len(TruncationMarker)
	if cut < 0 {
		cut = 0
	}
	// Avoid splitting a multi-byte rune at the cut point.
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + TruncationMarker, true
}

func fromPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", fmt.Errorf("failed to read pdf text from %s: %w", path, err)
	}
	return buf.String(), nil
}

func fromXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open xlsx file %s: %w", path, err)
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.Rows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
		}
		for rows.Next() {
			record, err := rows.Columns()
			if err != nil {
				rows.Close()
				return "", fmt.Errorf("failed to read row from %s: %w", path, err)
			}
			var cells []string
			for _, cell := range record {
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) > 0 {
				parts = append(parts, strings.Join(cells, " "))
			}
		}
		if err := rows.Close(); err != nil {
			return "", fmt.Errorf("error iterating rows in %s: %w", path, err)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func fromText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.ToValidUTF8(string(raw), ""), nil
}
