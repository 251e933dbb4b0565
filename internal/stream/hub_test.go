package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"promptscan-backend/internal/llm"
	"promptscan-backend/internal/sessions"
)

func TestHubDeliversOnlyToLane(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	manual := hub.NewConnection(nil, sessions.LaneManual)
	batch := hub.NewConnection(nil, sessions.LaneBatch)
	hub.Register(manual)
	hub.Register(batch)

	hub.Publish(sessions.Event{Type: sessions.EventSessionReset, Lane: sessions.LaneManual, SessionID: "s1"})

	select {
	case data := <-manual.Send:
		var ev sessions.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.SessionID != "s1" {
			t.Fatalf("unexpected payload %s", data)
		}
	case <-time.After(time.Second):
		t.Fatalf("manual connection got nothing")
	}
	select {
	case data := <-batch.Send:
		t.Fatalf("batch connection received %s", data)
	case <-time.After(50 * time.Millisecond):
	}

	hub.Unregister(manual)
	if _, ok := <-manual.Send; ok {
		t.Fatalf("expected send channel closed after unregister")
	}
}

func TestHubRegisterAfterStopClosesConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	conn := hub.NewConnection(nil, sessions.LaneManual)
	hub.Register(conn)
	if _, ok := <-conn.Send; ok {
		t.Fatalf("expected closed send channel")
	}
	hub.Unregister(conn)
}

func TestHubSnapshotPrecedesLaterEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	conn := hub.NewConnection(nil, sessions.LaneManual)
	hub.RegisterWithSnapshot(conn, func() []byte {
		// An update landing right after the snapshot is read.
		hub.Publish(sessions.Event{Type: sessions.EventItemUpdated, Lane: sessions.LaneManual, SessionID: "s1", Index: 0})
		data, _ := json.Marshal(sessions.SnapshotEvent(sessions.LaneManual, sessions.Session{ID: "s1", Lane: sessions.LaneManual}))
		return data
	})

	var got []sessions.EventType
	for len(got) < 2 {
		select {
		case data := <-conn.Send:
			var ev sessions.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("decode: %v", err)
			}
			got = append(got, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[0] != sessions.EventSessionSnapshot || got[1] != sessions.EventItemUpdated {
		t.Fatalf("expected snapshot then item update, got %v", got)
	}
}

func TestHubSnapshotSkippedWhenEmpty(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	conn := hub.NewConnection(nil, sessions.LaneBatch)
	hub.RegisterWithSnapshot(conn, func() []byte { return nil })
	hub.Publish(sessions.Event{Type: sessions.EventSessionReset, Lane: sessions.LaneBatch})

	select {
	case data := <-conn.Send:
		var ev sessions.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type != sessions.EventSessionReset {
			t.Fatalf("expected reset event first, got %s", data)
		}
	case <-time.After(time.Second):
		t.Fatalf("connection got nothing")
	}
}

func TestStreamEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	provider := llm.ProviderFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		return "reply with ai", nil
	})
	scheduler := sessions.NewScheduler(provider, llm.Options{})
	scheduler.Delay = 0
	manager := sessions.NewManager(sessions.LaneManual, scheduler)
	manager.Subscribe(hub.Publish)

	r := gin.New()
	NewHandler(hub, map[string]*sessions.Manager{sessions.LaneManual: manager}, nil).RegisterRoutes(r.Group("/api/v1"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream?lane=manual"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := manager.Start(context.Background(), []string{"a", "b"}, []string{"ai"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var types []sessions.EventType
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (got %v)", err, types)
		}
		var ev sessions.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		types = append(types, ev.Type)
		if ev.Type == sessions.EventSessionFinished {
			if ev.Session == nil || ev.Session.Status != sessions.SessionCompleted {
				t.Fatalf("unexpected final session %+v", ev.Session)
			}
			break
		}
	}
	if types[0] != sessions.EventSessionStarted {
		t.Fatalf("expected started first, got %v", types)
	}
}

func TestStreamRejectsUnknownLane(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewHub(), map[string]*sessions.Manager{}, nil).RegisterRoutes(r.Group("/api/v1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/stream?lane=other", nil))
	if w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
