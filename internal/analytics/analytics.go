// Package analytics summarizes the items of a session.
package analytics

import (
	"math"
	"time"
	"unicode/utf8"

	"promptscan-backend/internal/sessions"
)

// Data is recomputed from session state on every call and never stored.
// ProcessingTimeMs is end minus start, or now minus start while running.
type Data struct {
	TotalPrompts          int            `json:"totalPrompts"`
	TotalResponses        int            `json:"totalResponses"`
	TotalErrors           int            `json:"totalErrors"`
	TotalKeywordMatches   int            `json:"totalKeywordMatches"`
	AverageResponseLength int            `json:"averageResponseLength"`
	KeywordFrequency      map[string]int `json:"keywordFrequency"`
	ProcessingTimeMs      int64          `json:"processingTime"`
}

// Summarize projects items into analytics using the current time for running sessions.
func Summarize(items []sessions.PromptItem, session sessions.Session) Data {
	return SummarizeAt(items, session, time.Now().UTC())
}

// SummarizeAt is Summarize with an explicit clock.
func SummarizeAt(items []sessions.PromptItem, session sessions.Session, now time.Time) Data {
	data := Data{
		TotalPrompts:     len(items),
		KeywordFrequency: map[string]int{},
	}

	totalLength := 0
	for _, item := range items {
		switch item.Status {
		case sessions.ItemCompleted:
			data.TotalResponses++
			totalLength += utf8.RuneCountInString(item.Response)
		case sessions.ItemError:
			data.TotalErrors++
		}
		for _, m := range item.Matches {
			data.TotalKeywordMatches += m.Count
			data.KeywordFrequency[m.Keyword] += m.Count
		}
	}
	if data.TotalResponses > 0 {
		// math.Round rounds half away from zero.
		data.AverageResponseLength = int(math.Round(float64(totalLength) / float64(data.TotalResponses)))
	}
	data.ProcessingTimeMs = processingTime(session, now)
	return data
}

// ForSession summarizes the items of session.
func ForSession(session sessions.Session) Data {
	return Summarize(session.Items, session)
}

func processingTime(session sessions.Session, now time.Time) int64 {
	if session.StartTime.IsZero() {
		return 0
	}
	end := now
	if session.EndTime != nil {
		end = *session.EndTime
	}
	if end.Before(session.StartTime) {
		return 0
	}
	return end.Sub(session.StartTime).Milliseconds()
}
