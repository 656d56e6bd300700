package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of a due date.
const DateLayout = "2006-01-02"

type Priority string

const (
	PriorityLow      Priority = "Baixa"
	PriorityMedium   Priority = "Média"
	PriorityHigh     Priority = "Alta"
	PriorityCritical Priority = "Crítica"
)

// Priorities is ordered from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

var priorityAliases = map[string]Priority{
	"low":      PriorityLow,
	"medium":   PriorityMedium,
	"high":     PriorityHigh,
	"critical": PriorityCritical,
}

// ParsePriority accepts the canonical value or its English alias, ignoring case.
func ParsePriority(s string) (Priority, bool) {
	s = strings.TrimSpace(s)
	for _, p := range Priorities {
		if strings.EqualFold(s, string(p)) {
			return p, true
		}
	}
	p, ok := priorityAliases[strings.ToLower(s)]
	return p, ok
}

// Rank is the position in the ordered set, 0 for unknown values.
func (p Priority) Rank() int {
	for i, v := range Priorities {
		if v == p {
			return i + 1
		}
	}
	return 0
}

type Status string

const (
	StatusTodo       Status = "A Fazer"
	StatusInProgress Status = "Em Progresso"
	StatusDone       Status = "Concluída"
)

var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

var statusAliases = map[string]Status{
	"to do":       StatusTodo,
	"todo":        StatusTodo,
	"in progress": StatusInProgress,
	"done":        StatusDone,
}

func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	st, ok := statusAliases[strings.ToLower(s)]
	return st, ok
}

func (s Status) Rank() int {
	for i, v := range Statuses {
		if v == s {
			return i + 1
		}
	}
	return 0
}

type Task struct {
	ID          uuid.UUID `json:"_id"`
	UserID      uuid.UUID `json:"user"`
	Title       string    `json:"titulo"`
	Description string    `json:"descricao"`
	DueDate     *string   `json:"prazo,omitempty"`
	Priority    Priority  `json:"prioridade"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskPatch holds the fields of a partial update; nil means "leave as is".
type TaskPatch struct {
	Title        *string
	Description  *string
	DueDate      *string
	ClearDueDate bool
	Priority     *Priority
	Status       *Status
}

type SortField string

const (
	SortDueDate   SortField = "prazo"
	SortPriority  SortField = "prioridade"
	SortStatus    SortField = "status"
	SortTitle     SortField = "titulo"
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
)

var sortFieldAliases = map[string]SortField{
	"prazo":      SortDueDate,
	"duedate":    SortDueDate,
	"prioridade": SortPriority,
	"priority":   SortPriority,
	"status":     SortStatus,
	"titulo":     SortTitle,
	"title":      SortTitle,
	"createdat":  SortCreatedAt,
	"updatedat":  SortUpdatedAt,
}

func ParseSortField(s string) (SortField, bool) {
	f, ok := sortFieldAliases[strings.ToLower(strings.TrimSpace(s))]
	return f, ok
}

type TaskSort struct {
	Field SortField
	Desc  bool
}

// DefaultTaskSort orders by nearest due date first.
var DefaultTaskSort = TaskSort{Field: SortDueDate}

// TaskFilter is always scoped to one owner.
type TaskFilter struct {
	UserID   uuid.UUID
	Query    string
	Status   *Status
	Priority *Priority
	Sort     TaskSort
}
