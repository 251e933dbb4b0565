package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"promptscan-backend/internal/export"
	"promptscan-backend/internal/llm"
	"promptscan-backend/internal/queue"
	"promptscan-backend/internal/sessions"
	"promptscan-backend/internal/shared/storage/object/local"
)

const sampleCSV = "prompt,keywords\ncats,answer\ndogs,\"answer,dogs\"\n"

type recordingQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (q *recordingQueue) Send(ctx context.Context, msg queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordingQueue) Messages() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Message(nil), q.msgs...)
}

type countingProvider struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (p *countingProvider) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.fail {
		return "", errors.New("provider down")
	}
	return "answer about " + prompt, nil
}

func (p *countingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestService(t *testing.T, q queue.Client, provider llm.Provider) *Service {
	t.Helper()
	store := local.New(t.TempDir())
	sch := sessions.NewScheduler(provider, llm.Options{})
	sch.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return &Service{
		Repo:      NewMemoryRepo(),
		Store:     store,
		Queue:     q,
		Scheduler: sch,
		Exports:   &export.Service{Repo: export.NewMemoryRepo(), Store: store},
	}
}
