package sessions

type EventType string

const (
	EventSessionStarted  EventType = "session.started"
	EventItemUpdated     EventType = "item.updated"
	EventSessionFinished EventType = "session.finished"
	EventSessionReset    EventType = "session.reset"
	// EventSessionSnapshot carries the full current session to a new subscriber.
	EventSessionSnapshot EventType = "session.snapshot"
)

// Event is one observable change of a session.
// Item is set for item updates, Session for session-level events.
type Event struct {
	Type      EventType   `json:"type"`
	Lane      string      `json:"lane,omitempty"`
	SessionID string      `json:"sessionId"`
	Index     int         `json:"index"`
	Item      *PromptItem `json:"item,omitempty"`
	Session   *Session    `json:"session,omitempty"`
}

// EmitFunc receives events in the order they happen.
type EmitFunc func(Event)

func itemEvent(sessionID string, index int, item PromptItem) Event {
	clone := item.Clone()
	return Event{Type: EventItemUpdated, SessionID: sessionID, Index: index, Item: &clone}
}

func sessionEvent(t EventType, session Session) Event {
	clone := session.Clone()
	return Event{Type: t, SessionID: session.ID, Index: -1, Session: &clone}
}

// SnapshotEvent wraps the current session of a lane for a new subscriber.
func SnapshotEvent(lane string, session Session) Event {
	ev := sessionEvent(EventSessionSnapshot, session)
	ev.Lane = lane
	return ev
}
