package models

import "time"

// SessionStatus represents the status of an import session.
type SessionStatus string

const (
	SessionStatusLoaded  SessionStatus = "loaded"
	SessionStatusCreated SessionStatus = "created"
	SessionStatusError   SessionStatus = "error"
)

// ImportSession holds a loaded interchange document and its editable views.
type ImportSession struct {
	ID         string            `json:"id"`
	SourcePath string            `json:"sourcePath"`
	Status     SessionStatus     `json:"status"`
	Batch      *ExportBatch      `json:"batch,omitempty"`
	Views      []*PlacementView  `json:"views"`
	Settings   PlacementSettings `json:"settings"`
	Warnings   []string          `json:"warnings,omitempty"`
	Created    int               `json:"created,omitempty"`
	Error      string            `json:"error,omitempty"`
	LoadedAt   time.Time         `json:"loadedAt"`
}
