package model

import "time"

// RunStatus tracks a generation run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the persisted record of one budget generation request.
type Run struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	Provider  string    `json:"provider,omitempty"`
	Status    RunStatus `json:"status"`
	Budget    *Budget   `json:"budget,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
