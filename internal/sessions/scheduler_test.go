package sessions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"promptscan-backend/internal/batch"
	"promptscan-backend/internal/llm"
)

func TestRunContinuesPastFailedItem(t *testing.T) {
	provider := &scriptedProvider{
		responses: map[string]string{
			"p1": "AI runs in the cloud",
			"p3": "cloud cloud and no more",
		},
		failures: map[string]error{"p2": errors.New("quota exceeded")},
	}
	rec := &sleepRecorder{}
	s := newTestScheduler(provider, rec)

	var events []Event
	session, err := s.Run(context.Background(), []string{"p1", "p2", "p3"}, []string{"ai", "cloud"}, func(ev Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if session.Status != SessionCompleted {
		t.Fatalf("expected completed session, got %s", session.Status)
	}
	if session.EndTime == nil {
		t.Fatalf("expected end time")
	}
	if got := session.Items[0]; got.Status != ItemCompleted || len(got.Matches) != 2 || got.Matches[0].Keyword != "ai" {
		t.Fatalf("unexpected item 0: %+v", got)
	}
	if got := session.Items[1]; got.Status != ItemError || got.Error != "quota exceeded" || got.Response != "" {
		t.Fatalf("unexpected item 1: %+v", got)
	}
	if got := session.Items[2]; got.Status != ItemCompleted || len(got.Matches) != 1 || got.Matches[0].Count != 2 {
		t.Fatalf("unexpected item 2: %+v", got)
	}

	if len(rec.delays) != 2 {
		t.Fatalf("expected 2 delays between 3 calls, got %d", len(rec.delays))
	}
	for _, d := range rec.delays {
		if d != DefaultDelay {
			t.Fatalf("expected delay %s, got %s", DefaultDelay, d)
		}
	}

	// started + (processing + terminal) per item + finished
	if len(events) != 8 {
		t.Fatalf("expected 8 events, got %d", len(events))
	}
	if events[0].Type != EventSessionStarted || events[len(events)-1].Type != EventSessionFinished {
		t.Fatalf("unexpected event order: first=%s last=%s", events[0].Type, events[len(events)-1].Type)
	}
	if events[0].Session == nil || len(events[0].Session.Items) != 3 || events[0].Session.Items[2].Status != ItemPending {
		t.Fatalf("expected all items pending in the initial snapshot")
	}
}

func TestRunPassesFixedGenerationBudget(t *testing.T) {
	provider := &scriptedProvider{responses: map[string]string{"a": "x", "b": "y"}}
	s := newTestScheduler(provider, &sleepRecorder{})

	if _, err := s.Run(context.Background(), []string{"a", "b"}, []string{"x"}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, opts := range provider.opts {
		if opts.MaxOutputTokens != 1000 || opts.Temperature != 0.7 || opts.Model != "test-model" {
			t.Fatalf("unexpected options %+v", opts)
		}
	}
}

func TestRunIsStrictlySequentialAndOrdered(t *testing.T) {
	prompts := []string{"one", "two", "three", "four"}
	responses := map[string]string{}
	for _, p := range prompts {
		responses[p] = "reply to " + p
	}
	provider := &scriptedProvider{responses: responses}
	s := newTestScheduler(provider, &sleepRecorder{})

	var terminalOrder []int
	_, err := s.Run(context.Background(), prompts, []string{"reply"}, func(ev Event) {
		if ev.Item != nil && ev.Item.Status.Terminal() {
			terminalOrder = append(terminalOrder, ev.Index)
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if provider.maxActive != 1 {
		t.Fatalf("expected at most one in-flight call, got %d", provider.maxActive)
	}
	if strings.Join(provider.Calls(), ",") != "one,two,three,four" {
		t.Fatalf("unexpected call order %v", provider.Calls())
	}
	for i, idx := range terminalOrder {
		if idx != i {
			t.Fatalf("items completed out of order: %v", terminalOrder)
		}
	}
}

func TestRunAllItemsFailStillCompletes(t *testing.T) {
	s := newTestScheduler(llm.PlaceholderClient{}, &sleepRecorder{})
	session, err := s.Run(context.Background(), []string{"a", "b"}, []string{"k"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if session.Status != SessionCompleted {
		t.Fatalf("expected completed, got %s", session.Status)
	}
	for _, it := range session.Items {
		if it.Status != ItemError || it.Error == "" {
			t.Fatalf("expected error item, got %+v", it)
		}
	}
}

func TestRunTreatsEmptyResponseAsFailure(t *testing.T) {
	provider := &scriptedProvider{responses: map[string]string{"a": "  "}}
	s := newTestScheduler(provider, &sleepRecorder{})
	session, err := s.Run(context.Background(), []string{"a"}, []string{"k"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if session.Items[0].Status != ItemError || !strings.Contains(session.Items[0].Error, "empty response") {
		t.Fatalf("unexpected item %+v", session.Items[0])
	}
}

func TestRunPreconditions(t *testing.T) {
	provider := &scriptedProvider{}
	s := newTestScheduler(provider, &sleepRecorder{})

	tests := []struct {
		name     string
		prompts  []string
		keywords []string
		want     error
	}{
		{name: "no prompts", prompts: nil, keywords: []string{"k"}, want: ErrNoPrompts},
		{name: "blank prompts", prompts: []string{" ", ""}, keywords: []string{"k"}, want: ErrNoPrompts},
		{name: "no keywords", prompts: []string{"p"}, keywords: []string{" "}, want: ErrNoKeywords},
		{name: "too many prompts", prompts: strings.Split("a,b,c,d,e,f,g,h,i,j,k", ","), keywords: []string{"k"}, want: ErrTooManyPrompts},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Run(context.Background(), tt.prompts, tt.keywords, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(provider.Calls()) != 0 {
		t.Fatalf("expected no provider calls, got %v", provider.Calls())
	}
}

func TestNewSessionSnapshotsInput(t *testing.T) {
	s := newTestScheduler(&scriptedProvider{}, nil)
	session, err := s.NewSession([]string{" first ", "", "second"}, []string{"AI", "ai", " cloud "})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if len(session.Items) != 2 || len(session.Prompts) != 2 {
		t.Fatalf("expected 2 items, got %d", len(session.Items))
	}
	if strings.Join(session.Keywords, "|") != "AI|cloud" {
		t.Fatalf("unexpected keywords %v", session.Keywords)
	}
	if session.Items[0].ID == session.Items[1].ID {
		t.Fatalf("expected unique item ids")
	}
	for i, it := range session.Items {
		if it.Status != ItemPending || it.Response != "" || it.Error != "" || len(it.Matches) != 0 {
			t.Fatalf("item %d not a clean pending placeholder: %+v", i, it)
		}
		if it.Prompt != session.Prompts[i] {
			t.Fatalf("item %d not index-aligned with prompts", i)
		}
	}
}

func TestRunBatchUsesRowKeywords(t *testing.T) {
	provider := &scriptedProvider{responses: map[string]string{
		"r1": "apples and pears",
		"r2": "apples only",
	}}
	s := newTestScheduler(provider, &sleepRecorder{})
	rows := []batch.Row{
		{Prompt: "r1", Keywords: []string{"pears"}},
		{Prompt: "r2", Keywords: []string{"apples"}},
	}
	session, err := s.RunBatch(context.Background(), rows, nil)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if session.Lane != LaneBatch || len(session.Keywords) != 0 {
		t.Fatalf("expected batch session with empty keywords, got lane=%s keywords=%v", session.Lane, session.Keywords)
	}
	if m := session.Items[0].Matches; len(m) != 1 || m[0].Keyword != "pears" {
		t.Fatalf("unexpected row 1 matches %+v", m)
	}
	if m := session.Items[1].Matches; len(m) != 1 || m[0].Keyword != "apples" {
		t.Fatalf("unexpected row 2 matches %+v", m)
	}
}

func TestRunBatchRejectsOverLimitBeforeCreatingItems(t *testing.T) {
	provider := &scriptedProvider{}
	s := newTestScheduler(provider, &sleepRecorder{})
	rows := make([]batch.Row, batch.MaxRows+1)
	for i := range rows {
		rows[i] = batch.Row{Prompt: "p", Keywords: []string{"k"}}
	}
	session, err := s.RunBatch(context.Background(), rows, nil)
	if !errors.Is(err, ErrTooManyRows) {
		t.Fatalf("expected ErrTooManyRows, got %v", err)
	}
	if len(session.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(session.Items))
	}
	if len(provider.Calls()) != 0 {
		t.Fatalf("expected no provider calls")
	}
}

func TestDriveAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &scriptedProvider{responses: map[string]string{"a": "x", "b": "y", "c": "z"}}
	s := newTestScheduler(provider, nil)
	s.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	session, err := s.Run(ctx, []string{"a", "b", "c"}, []string{"x"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if session.Status != SessionError {
		t.Fatalf("expected session error, got %s", session.Status)
	}
	if session.Items[0].Status != ItemCompleted {
		t.Fatalf("expected first item completed, got %s", session.Items[0].Status)
	}
	if session.Items[1].Status != ItemPending || session.Items[2].Status != ItemPending {
		t.Fatalf("expected remaining items pending")
	}
	if len(provider.Calls()) != 1 {
		t.Fatalf("expected one provider call, got %d", len(provider.Calls()))
	}
}

func TestDriveRecoversPanicAsSessionError(t *testing.T) {
	provider := llm.ProviderFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		panic("provider exploded")
	})
	s := newTestScheduler(provider, &sleepRecorder{})
	session, err := s.Run(context.Background(), []string{"a", "b"}, []string{"x"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if session.Status != SessionError || !strings.Contains(session.Error, "provider exploded") {
		t.Fatalf("expected session-level error, got %s %q", session.Status, session.Error)
	}
	if session.Items[0].Status != ItemError {
		t.Fatalf("expected in-flight item to be failed, got %s", session.Items[0].Status)
	}
	if session.Items[1].Status != ItemPending {
		t.Fatalf("expected untouched item pending, got %s", session.Items[1].Status)
	}
}

func TestSanitizeError(t *testing.T) {
	long := strings.Repeat("x", 600)
	msg := sanitizeError(errors.New("line1\nline2\r" + long))
	if strings.ContainsAny(msg, "\r\n") {
		t.Fatalf("expected single line message")
	}
	if len(msg) != 500 {
		t.Fatalf("expected truncation to 500, got %d", len(msg))
	}
}

func TestSanitizeErrorKeepsRunesWhole(t *testing.T) {
	// 499 ASCII bytes put the 3-byte rune across the 500-byte cap.
	msg := sanitizeError(errors.New(strings.Repeat("x", 499) + strings.Repeat("€", 10)))
	if !utf8.ValidString(msg) {
		t.Fatalf("expected valid UTF-8 after truncation")
	}
	if len(msg) != 499 {
		t.Fatalf("expected cut before the split rune at 499 bytes, got %d", len(msg))
	}
}
