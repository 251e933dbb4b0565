// Package export serializes session snapshots into downloadable artifacts.
package export

import (
	"encoding/json"
	"time"

	"promptscan-backend/internal/analytics"
	"promptscan-backend/internal/sessions"
)

// Artifact is the JSON document written for a session.
type Artifact struct {
	Session    sessions.Session      `json:"session"`
	Analyses   []sessions.PromptItem `json:"analyses"`
	Analytics  analytics.Data        `json:"analytics"`
	ExportedAt time.Time             `json:"exportedAt"`
}

// Build snapshots session at exportedAt.
func Build(session sessions.Session, exportedAt time.Time) Artifact {
	snapshot := session.Clone()
	return Artifact{
		Session:    snapshot,
		Analyses:   snapshot.Clone().Items,
		Analytics:  analytics.SummarizeAt(snapshot.Items, snapshot, exportedAt),
		ExportedAt: exportedAt.UTC(),
	}
}

// Encode renders the artifact as indented JSON.
func (a Artifact) Encode() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// FileName is the attachment name offered for a session export.
func FileName(sessionID string) string {
	return "analysis-" + sessionID + ".json"
}
