// Package journal persists the inference session id, the local API token and
// an audit trail of pipeline runs.
package journal

import "time"

// Config keys.
const (
	KeySessionID = "session_id"
	KeyAuthToken = "auth_token"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one handled chat message.
type Run struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Message      string    `json:"message"`
	Tools        []string  `json:"tools"`
	Status       string    `json:"status"`
	ResponseText string    `json:"response_text,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CommandRecord is the outcome of one command within a run.
type CommandRecord struct {
	RunID   string `json:"run_id"`
	Index   int    `json:"index"`
	Action  string `json:"action"`
	Status  string `json:"status"`
	Applied int    `json:"applied"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// DecisionRecord is one review decision on a silent range.
type DecisionRecord struct {
	RunID     string    `json:"run_id"`
	Index     int       `json:"index"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Decision  string    `json:"decision"`
	DecidedAt time.Time `json:"decided_at"`
}
