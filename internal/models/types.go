package models

import (
	"encoding/json"
	"time"
)

// UploadResponse is returned from POST /upload.
type UploadResponse struct {
	SessionID string          `json:"sessionId"`
	Analysis  string          `json:"analysis"`
	Tree      json.RawMessage `json:"tree"`
}

// AskRequest is the body for POST /ask. SessionID defaults to the current session.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId,omitempty"`
}

// AskResponse is returned from POST /ask.
type AskResponse struct {
	SessionID string `json:"sessionId"`
	Response  string `json:"response"`
}

// ExampleResponse is returned from GET /example.
type ExampleResponse struct {
	SessionID string          `json:"sessionId"`
	Analysis  string          `json:"analysis"`
	Tree      json.RawMessage `json:"tree"`
	Objective string          `json:"objective"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status      string       `json:"status"`
	Checkpoints ServiceCheck `json:"checkpoints"`
	Sandbox     ServiceCheck `json:"sandbox"`
	Directories ServiceCheck `json:"directories"`
}

type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ExampleRecord is the cached result of the last upload, replayed by GET /example.
type ExampleRecord struct {
	Analysis      string
	Tree          json.RawMessage
	Objective     string
	SystemMessage string
}

// ExampleManifest is the yaml sidecar written next to an ExampleRecord.
type ExampleManifest struct {
	SessionID  string            `yaml:"session_id,omitempty"`
	RecordedAt time.Time         `yaml:"recorded_at"`
	Files      map[string]string `yaml:"files"`
}
