// Package health reports whether the service and its dependencies are usable.
package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Status is the /health payload.
type Status struct {
	OK          bool   `json:"ok"`
	Database    string `json:"database"`
	ObjectStore string `json:"objectStore"`
	LLMProvider string `json:"llmProvider"`
	BatchQueue  bool   `json:"batchQueue"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB          *sql.DB
	ObjectStore string
	LLMProvider string
	BatchQueue  bool
}

// Status pings the database when one is configured. Without a database the
// export index lives in memory and the service is still healthy.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{
		OK:          true,
		Database:    "memory",
		ObjectStore: s.ObjectStore,
		LLMProvider: s.LLMProvider,
		BatchQueue:  s.BatchQueue,
	}
	if s.DB == nil {
		return st
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		st.OK = false
		st.Database = "unreachable"
		return st
	}
	st.Database = "postgres"
	return st
}
