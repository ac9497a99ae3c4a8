package model

// EventStage names a pipeline stage in a progress event.
type EventStage string

const (
	StageReceived   EventStage = "received"
	StageExtracting EventStage = "extracting"
	StageResolving  EventStage = "resolving"
	StageMatching   EventStage = "matching"
	StagePricing    EventStage = "pricing"
	StagePersisting EventStage = "persisting"
	StageCompleted  EventStage = "completed"
	StageFailed     EventStage = "failed"
)

// EventStatus is the lifecycle status carried by a progress event.
type EventStatus string

const (
	StatusStarted   EventStatus = "started"
	StatusCompleted EventStatus = "completed"
	StatusFailed    EventStatus = "failed"
)

// ProgressEvent is one entry in the ordered event feed of a generation run.
// Seq is strictly increasing and gapless within a run.
type ProgressEvent struct {
	Seq      int         `json:"seq"`
	Stage    EventStage  `json:"stage"`
	Status   EventStatus `json:"status"`
	Message  string      `json:"message,omitempty"`
	Progress float64     `json:"progress"`
	Data     any         `json:"data,omitempty"`
}
