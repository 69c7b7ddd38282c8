package model

import "time"

// RunStatus represents the current state of a training run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// TrainingRun records one training pass.
type TrainingRun struct {
	ID          string      `json:"id"`
	Status      RunStatus   `json:"status"`
	WithHousing bool        `json:"with_housing"`
	Summary     *RunSummary `json:"summary,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RunFilter controls ListRuns results.
type RunFilter struct {
	Status RunStatus
	Limit  int
	Offset int
}

// Headline is the single most informative metric of a task result.
type Headline struct {
	Kind    ResultKind `json:"kind"`
	Metric  string     `json:"metric"`
	Value   Rate       `json:"value"`
	Samples int        `json:"samples"`
}

// RunSummary condenses a training pass for storage.
type RunSummary struct {
	Districts int                 `json:"districts"`
	Tasks     map[string]Headline `json:"tasks"`
	Skipped   []string            `json:"skipped,omitempty"`
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatSession is a persisted Q&A conversation.
type ChatSession struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatMessage is one turn in a chat session.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
