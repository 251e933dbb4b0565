package sessions

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"promptscan-backend/internal/batch"
	"promptscan-backend/internal/llm"
	"promptscan-backend/internal/matcher"
	"promptscan-backend/internal/shared/metrics"
	"promptscan-backend/internal/shared/telemetry"
)

// DefaultDelay is the pause between two provider calls of one session.
const DefaultDelay = time.Second

// Scheduler drives sessions one prompt at a time against a provider.
type Scheduler struct {
	Provider llm.Provider
	Options  llm.Options
	Delay    time.Duration
	// Sleep waits d or until ctx ends. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// NewScheduler returns a scheduler with the default delay.
func NewScheduler(provider llm.Provider, opts llm.Options) *Scheduler {
	return &Scheduler{Provider: provider, Options: opts, Delay: DefaultDelay}
}

// NewSession validates manual input and builds a session with pending items.
// Blank prompts are dropped and keywords are trimmed and de-duplicated.
func (s *Scheduler) NewSession(prompts, keywords []string) (Session, error) {
	cleaned := make([]string, 0, len(prompts))
	for _, p := range prompts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return Session{}, ErrNoPrompts
	}
	if len(cleaned) > MaxPrompts {
		return Session{}, fmt.Errorf("%w: %d prompts, max %d", ErrTooManyPrompts, len(cleaned), MaxPrompts)
	}
	kws := batch.NormalizeKeywords(keywords)
	if len(kws) == 0 {
		return Session{}, ErrNoKeywords
	}

	now := s.now()
	session := Session{
		ID:        uuid.NewString(),
		Lane:      LaneManual,
		StartTime: now,
		Prompts:   cleaned,
		Keywords:  kws,
		Items:     make([]PromptItem, 0, len(cleaned)),
		Status:    SessionIdle,
	}
	for _, p := range cleaned {
		session.Items = append(session.Items, newItem(p, nil, now))
	}
	return session, nil
}

// NewBatchSession builds a session from parsed rows. Each item carries its
// row's keywords and the session keyword snapshot stays empty.
func (s *Scheduler) NewBatchSession(rows []batch.Row) (Session, error) {
	if len(rows) == 0 {
		return Session{}, ErrNoPrompts
	}
	if len(rows) > batch.MaxRows {
		return Session{}, fmt.Errorf("%w: %d rows, max %d", ErrTooManyRows, len(rows), batch.MaxRows)
	}
	now := s.now()
	session := Session{
		ID:        uuid.NewString(),
		Lane:      LaneBatch,
		StartTime: now,
		Prompts:   make([]string, 0, len(rows)),
		Keywords:  []string{},
		Items:     make([]PromptItem, 0, len(rows)),
		Status:    SessionIdle,
	}
	for i, row := range rows {
		prompt := strings.TrimSpace(row.Prompt)
		kws := batch.NormalizeKeywords(row.Keywords)
		if prompt == "" || len(kws) == 0 {
			return Session{}, fmt.Errorf("row %d: %w", i+1, batch.ErrNoRows)
		}
		session.Prompts = append(session.Prompts, prompt)
		session.Items = append(session.Items, newItem(prompt, kws, now))
	}
	return session, nil
}

// Run validates input and drives a manual session to completion.
func (s *Scheduler) Run(ctx context.Context, prompts, keywords []string, emit EmitFunc) (Session, error) {
	session, err := s.NewSession(prompts, keywords)
	if err != nil {
		return Session{}, err
	}
	return s.Drive(ctx, session, emit), nil
}

// RunBatch drives a batch session to completion.
func (s *Scheduler) RunBatch(ctx context.Context, rows []batch.Row, emit EmitFunc) (Session, error) {
	session, err := s.NewBatchSession(rows)
	if err != nil {
		return Session{}, err
	}
	return s.Drive(ctx, session, emit), nil
}

// Drive processes the items of session strictly in order. A failing prompt is
// recorded on its item and the run continues. Cancellation of ctx or a panic
// aborts the run and leaves the session in SessionError.
func (s *Scheduler) Drive(ctx context.Context, session Session, emit EmitFunc) (out Session) {
	if emit == nil {
		emit = func(Event) {}
	}
	requestID := requestIDFromContext(ctx)
	session.Status = SessionRunning
	metrics.IncSessionStarted()
	telemetry.Info("session.status", map[string]any{
		"request_id":        requestID,
		"session_id":        session.ID,
		"lane":              session.Lane,
		"items":             len(session.Items),
		"status":            SessionRunning,
		"status_transition": "idle->running",
	})
	emit(sessionEvent(EventSessionStarted, session))

	current := -1
	defer func() {
		if r := recover(); r != nil {
			s.abort(&session, current, fmt.Sprintf("panic: %v", r), requestID)
			emit(sessionEvent(EventSessionFinished, session))
			out = session
		}
	}()

	for i := range session.Items {
		if err := ctx.Err(); err != nil {
			s.abort(&session, -1, "aborted: "+err.Error(), requestID)
			emit(sessionEvent(EventSessionFinished, session))
			return session
		}
		current = i
		s.process(ctx, &session, i, requestID, emit)
		current = -1

		if i < len(session.Items)-1 {
			if err := s.sleep(ctx, s.Delay); err != nil {
				s.abort(&session, -1, "aborted: "+err.Error(), requestID)
				emit(sessionEvent(EventSessionFinished, session))
				return session
			}
		}
	}

	end := s.now()
	session.EndTime = &end
	session.Status = SessionCompleted
	metrics.IncSessionCompleted()
	telemetry.Info("session.status", map[string]any{
		"request_id":        requestID,
		"session_id":        session.ID,
		"lane":              session.Lane,
		"status":            SessionCompleted,
		"status_transition": "running->completed",
		"duration_ms":       durationMs(session.StartTime, end),
	})
	emit(sessionEvent(EventSessionFinished, session))
	return session
}

func (s *Scheduler) process(ctx context.Context, session *Session, i int, requestID string, emit EmitFunc) {
	item := &session.Items[i]
	keywords := item.Keywords
	if len(keywords) == 0 {
		keywords = session.Keywords
	}

	if err := item.Start(); err != nil {
		panic(err)
	}
	emit(itemEvent(session.ID, i, *item))

	startedAt := s.now()
	metrics.IncPromptStarted()
	text, err := s.generate(ctx, item.Prompt)
	completedAt := s.now()
	metrics.ObservePromptDurationMs(durationMs(startedAt, completedAt))

	fields := map[string]any{
		"request_id":  requestID,
		"session_id":  session.ID,
		"lane":        session.Lane,
		"item_id":     item.ID,
		"index":       i,
		"duration_ms": durationMs(startedAt, completedAt),
	}
	if err != nil {
		_ = item.Fail(sanitizeError(err))
		metrics.IncPromptFailed()
		fields["status"] = ItemError
		fields["status_transition"] = "processing->error"
		fields["error"] = item.Error
		telemetry.Warn("prompt.status", fields)
	} else {
		matches := matcher.Match(text, keywords)
		if cerr := item.Complete(text, matches); cerr != nil {
			panic(cerr)
		}
		metrics.IncPromptCompleted()
		fields["status"] = ItemCompleted
		fields["status_transition"] = "processing->completed"
		fields["matches"] = matcher.Total(matches)
		telemetry.Info("prompt.status", fields)
	}
	emit(itemEvent(session.ID, i, *item))
}

func (s *Scheduler) generate(ctx context.Context, prompt string) (string, error) {
	if s.Provider == nil {
		return "", llm.ErrNotConfigured
	}
	text, err := s.Provider.GenerateText(ctx, prompt, s.Options)
	if err != nil {
		return "", err
	}
	return llm.RequireText("", text)
}

func (s *Scheduler) abort(session *Session, current int, reason, requestID string) {
	if current >= 0 && current < len(session.Items) && !session.Items[current].Status.Terminal() {
		_ = session.Items[current].Fail(reason)
	}
	end := s.now()
	session.EndTime = &end
	session.Status = SessionError
	session.Error = reason
	metrics.IncSessionAborted()
	telemetry.Error("session.status", map[string]any{
		"request_id":        requestID,
		"session_id":        session.ID,
		"lane":              session.Lane,
		"status":            SessionError,
		"status_transition": "running->error",
		"error":             reason,
		"duration_ms":       durationMs(session.StartTime, end),
	})
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func durationMs(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
