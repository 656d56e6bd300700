package mq

import "time"

// Routing keys on the events exchange.
const (
	RoutingKeyTaskCreated = "task.created"
	RoutingKeyTaskUpdated = "task.updated"
	RoutingKeyTaskDeleted = "task.deleted"
)

// TaskEventPayload is published after every successful task mutation.
// Deleted events only carry the identifiers.
type TaskEventPayload struct {
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	Priority   string    `json:"priority,omitempty"`
	DueDate    string    `json:"due_date,omitempty"`
	Fields     []string  `json:"fields,omitempty"` // updated fields, task.updated only
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
