package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"promptscan-backend/internal/llm"
)

type scriptedProvider struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     []string
	opts      []llm.Options
	active    int
	maxActive int
}

func (p *scriptedProvider) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, prompt)
	p.opts = append(p.opts, opts)
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	if err, ok := p.failures[prompt]; ok {
		return "", err
	}
	if text, ok := p.responses[prompt]; ok {
		return text, nil
	}
	return "", errors.New("no scripted response")
}

func (p *scriptedProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestScheduler(p llm.Provider, rec *sleepRecorder) *Scheduler {
	s := NewScheduler(p, llm.Options{Model: "test-model", MaxOutputTokens: 1000, Temperature: 0.7})
	if rec != nil {
		s.Sleep = rec.Sleep
	}
	return s
}
