package queue

import "encoding/json"

// MessageVersion is written into every message produced by this build.
const MessageVersion = 1

// Message asks a worker to run one stored batch upload.
type Message struct {
	JobID      string `json:"jobId"`
	StorageKey string `json:"storageKey"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
