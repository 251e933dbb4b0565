// Package batch parses tabular uploads into prompt rows.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxRows is the largest number of valid rows a batch may carry.
const MaxRows = 50

const (
	columnPrompt   = "prompt"
	columnKeywords = "keywords"
)

// Row is one prompt with its own keyword set.
type Row struct {
	Prompt   string   `json:"prompt"`
	Keywords []string `json:"keywords"`
}

// Parse reads a CSV table with a header row naming the prompt and keywords
// columns. Rows with an empty prompt or no keywords are skipped. The whole
// table is rejected when no rows remain or more than MaxRows do.
func Parse(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingColumns
	}
	if err != nil {
		return nil, fmt.Errorf("read batch header: %w", err)
	}
	promptIdx, keywordsIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case columnPrompt:
			promptIdx = i
		case columnKeywords:
			keywordsIdx = i
		}
	}
	if promptIdx < 0 || keywordsIdx < 0 {
		return nil, ErrMissingColumns
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read batch line %d: %w", line, err)
		}
		prompt := strings.TrimSpace(field(record, promptIdx))
		keywords := SplitKeywords(field(record, keywordsIdx))
		if prompt == "" || len(keywords) == 0 {
			continue
		}
		rows = append(rows, Row{Prompt: prompt, Keywords: keywords})
	}

	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	if len(rows) > MaxRows {
		return nil, fmt.Errorf("%w: %d rows, max %d", ErrTooManyRows, len(rows), MaxRows)
	}
	return rows, nil
}

// SplitKeywords splits a comma-separated keyword cell.
func SplitKeywords(raw string) []string {
	return NormalizeKeywords(strings.Split(raw, ","))
}

// NormalizeKeywords trims keywords, drops blanks and removes case-insensitive
// duplicates while keeping first-seen order.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}

func field(record []string, idx int) string {
	if idx < len(record) {
		return record[idx]
	}
	return ""
}
