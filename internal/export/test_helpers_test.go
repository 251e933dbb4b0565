package export

import (
	"testing"
	"time"

	"promptscan-backend/internal/matcher"
	"promptscan-backend/internal/sessions"
)

func sampleSession(t *testing.T) sessions.Session {
	t.Helper()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)

	ok := sessions.PromptItem{ID: "item-1", Prompt: "p1", Status: sessions.ItemPending, CreatedAt: start}
	if err := ok.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := ok.Complete("AI in the cloud", matcher.Match("AI in the cloud", []string{"ai", "cloud"})); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	bad := sessions.PromptItem{ID: "item-2", Prompt: "p2", Status: sessions.ItemPending, CreatedAt: start}
	if err := bad.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := bad.Fail("quota exceeded"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	return sessions.Session{
		ID:        "session-1",
		Lane:      sessions.LaneManual,
		StartTime: start,
		EndTime:   &end,
		Prompts:   []string{"p1", "p2"},
		Keywords:  []string{"ai", "cloud"},
		Items:     []sessions.PromptItem{ok, bad},
		Status:    sessions.SessionCompleted,
	}
}

func sampleSessionWithoutID() sessions.Session {
	return sessions.Session{Lane: sessions.LaneManual}
}
