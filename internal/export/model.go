package export

import "time"

// Record indexes one stored artifact.
type Record struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Lane       string    `json:"lane"`
	StorageKey string    `json:"storageKey"`
	SizeBytes  int64     `json:"sizeBytes"`
	ItemCount  int       `json:"itemCount"`
	Checksum   string    `json:"checksum"`
	ExportedAt time.Time `json:"exportedAt"`
}
