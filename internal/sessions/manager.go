package sessions

import (
	"context"
	"sync"

	"promptscan-backend/internal/batch"
	"promptscan-backend/internal/shared/telemetry"
)

// Manager owns the live session of one lane. Every start or reset bumps a
// generation counter; updates emitted by an older run are dropped so a late
// provider response never touches the newer session.
type Manager struct {
	Lane      string
	Scheduler *Scheduler

	mu          sync.Mutex
	generation  uint64
	current     *Session
	cancel      context.CancelFunc
	done        chan struct{}
	subscribers map[int]EmitFunc
	nextSubID   int
}

// NewManager returns a manager for lane backed by scheduler.
func NewManager(lane string, scheduler *Scheduler) *Manager {
	return &Manager{
		Lane:        lane,
		Scheduler:   scheduler,
		subscribers: map[int]EmitFunc{},
	}
}

// Start replaces any current session with a new manual run and returns its
// initial snapshot. The run continues in the background.
func (m *Manager) Start(ctx context.Context, prompts, keywords []string) (Session, error) {
	session, err := m.Scheduler.NewSession(prompts, keywords)
	if err != nil {
		return Session{}, err
	}
	return m.launch(ctx, session), nil
}

// StartBatch replaces any current session with a batch run over rows.
func (m *Manager) StartBatch(ctx context.Context, rows []batch.Row) (Session, error) {
	session, err := m.Scheduler.NewBatchSession(rows)
	if err != nil {
		return Session{}, err
	}
	return m.launch(ctx, session), nil
}

func (m *Manager) launch(ctx context.Context, session Session) Session {
	session.Status = SessionRunning
	// The run outlives the request but keeps its values (request id).
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	m.mu.Lock()
	m.stopLocked()
	m.generation++
	gen := m.generation
	snapshot := session.Clone()
	m.current = &snapshot
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		m.Scheduler.Drive(runCtx, session, func(ev Event) { m.apply(gen, ev) })
	}()
	return session.Clone()
}

// Reset discards the current session. An in-flight run is cancelled and any
// result it still produces is ignored.
func (m *Manager) Reset() {
	m.mu.Lock()
	var previousID string
	if m.current != nil {
		previousID = m.current.ID
	}
	m.stopLocked()
	m.generation++
	m.current = nil
	subs := m.subscribersLocked()
	m.mu.Unlock()

	if previousID == "" {
		return
	}
	telemetry.Info("session.reset", map[string]any{"lane": m.Lane, "session_id": previousID})
	ev := Event{Type: EventSessionReset, Lane: m.Lane, SessionID: previousID, Index: -1}
	for _, fn := range subs {
		fn(ev)
	}
}

// Current returns a deep copy of the live session.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return m.current.Clone(), true
}

// Wait blocks until the current run finishes or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn for every accepted event of this lane.
func (m *Manager) Subscribe(fn EmitFunc) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) apply(gen uint64, ev Event) {
	m.mu.Lock()
	if gen != m.generation || m.current == nil || m.current.ID != ev.SessionID {
		m.mu.Unlock()
		telemetry.Debug("session.stale_update_dropped", map[string]any{
			"lane":       m.Lane,
			"session_id": ev.SessionID,
			"type":       string(ev.Type),
			"index":      ev.Index,
		})
		return
	}
	switch {
	case ev.Item != nil && ev.Index >= 0 && ev.Index < len(m.current.Items):
		m.current.Items[ev.Index] = ev.Item.Clone()
	case ev.Session != nil:
		snapshot := ev.Session.Clone()
		m.current = &snapshot
	}
	subs := m.subscribersLocked()
	m.mu.Unlock()

	ev.Lane = m.Lane
	for _, fn := range subs {
		fn(ev)
	}
}

func (m *Manager) stopLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Manager) subscribersLocked() []EmitFunc {
	out := make([]EmitFunc, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		out = append(out, fn)
	}
	return out
}
