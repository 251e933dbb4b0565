// Package matcher scans generated text for configured keywords.
package matcher

import (
	"regexp"
	"unicode/utf8"
)

// KeywordMatch records every occurrence of one keyword in a response.
// Positions are zero-based offsets counted in characters (Unicode code points).
type KeywordMatch struct {
	Keyword   string `json:"keyword"`
	Count     int    `json:"count"`
	Positions []int  `json:"positions"`
}

// Match finds case-insensitive, non-overlapping occurrences of each keyword in text.
// Keywords are literal text. The result keeps keyword order and omits keywords
// that do not occur.
func Match(text string, keywords []string) []KeywordMatch {
	out := make([]KeywordMatch, 0, len(keywords))
	if text == "" {
		return out
	}
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		re, err := compile(keyword)
		if err != nil {
			continue
		}
		spans := re.FindAllStringIndex(text, -1)
		if len(spans) == 0 {
			continue
		}
		out = append(out, KeywordMatch{
			Keyword:   keyword,
			Count:     len(spans),
			Positions: runeOffsets(text, spans),
		})
	}
	return out
}

// Total sums the counts of all matches.
func Total(matches []KeywordMatch) int {
	total := 0
	for _, m := range matches {
		total += m.Count
	}
	return total
}

func compile(keyword string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + regexp.QuoteMeta(keyword))
}

// runeOffsets converts ascending byte offsets into character offsets in one pass.
func runeOffsets(text string, spans [][]int) []int {
	positions := make([]int, 0, len(spans))
	byteIdx, runeIdx := 0, 0
	for _, span := range spans {
		runeIdx += utf8.RuneCountInString(text[byteIdx:span[0]])
		byteIdx = span[0]
		positions = append(positions, runeIdx)
	}
	return positions
}
