package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"taskmanager/internal/apperr"
	"taskmanager/internal/model"
	"taskmanager/internal/validation"
)

// OptionalString tells an absent JSON key apart from an explicit null.
type OptionalString struct {
	Set   bool
	Null  bool
	Value string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Blank reports whether the key was sent as null or an empty string.
func (o OptionalString) Blank() bool {
	return o.Null || strings.TrimSpace(o.Value) == ""
}

// Input is the request body of create and update. Unknown keys are ignored.
type Input struct {
	Title       OptionalString `json:"titulo"`
	Description OptionalString `json:"descricao"`
	DueDate     OptionalString `json:"prazo"`
	Priority    OptionalString `json:"prioridade"`
	Status      OptionalString `json:"status"`
}

// ListQuery carries the raw query-string filters.
type ListQuery struct {
	Q        string
	Status   string
	Priority string
	Sort     string
}

type issueList []apperr.FieldIssue

func (l *issueList) add(field, message string) {
	*l = append(*l, apperr.FieldIssue{Field: field, Message: message})
}

func (l *issueList) check(field string, value any, tag string) {
	*l = append(*l, validation.Var(field, value, tag)...)
}

func (l issueList) err() error {
	if len(l) == 0 {
		return nil
	}
	return apperr.Validation(l...)
}

func oneOf[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return "must be one of: " + strings.Join(parts, ", ")
}

// toPatch validates in and converts it into a patch. With create set, the
// title becomes mandatory and omitted enums take their defaults.
func (in Input) toPatch(create bool) (model.TaskPatch, error) {
	var (
		patch  model.TaskPatch
		issues issueList
	)

	switch {
	case in.Title.Set && !in.Title.Null:
		title := strings.TrimSpace(in.Title.Value)
		issues.check("titulo", title, "required")
		patch.Title = &title
	case in.Title.Set || create:
		issues.add("titulo", "is required")
	}

	if in.Description.Set {
		desc := strings.TrimSpace(in.Description.Value)
		patch.Description = &desc
	} else if create {
		empty := ""
		patch.Description = &empty
	}

	if in.DueDate.Set {
		if in.DueDate.Blank() {
			patch.ClearDueDate = !create
		} else {
			due := strings.TrimSpace(in.DueDate.Value)
			issues.check("prazo", due, "datetime="+model.DateLayout)
			// year 0000 parses but PostgreSQL dates start at 0001
			if d, err := time.Parse(model.DateLayout, due); err == nil && d.Year() < 1 {
				issues.add("prazo", "year must be 0001 or later")
			}
			patch.DueDate = &due
		}
	}

	switch {
	case in.Priority.Set:
		if p, ok := model.ParsePriority(in.Priority.Value); ok && !in.Priority.Null {
			patch.Priority = &p
		} else {
			issues.add("prioridade", oneOf(model.Priorities))
		}
	case create:
		p := model.PriorityMedium
		patch.Priority = &p
	}

	switch {
	case in.Status.Set:
		if st, ok := model.ParseStatus(in.Status.Value); ok && !in.Status.Null {
			patch.Status = &st
		} else {
			issues.add("status", oneOf(model.Statuses))
		}
	case create:
		st := model.StatusTodo
		patch.Status = &st
	}

	if err := issues.err(); err != nil {
		return model.TaskPatch{}, err
	}
	return patch, nil
}

// toFilter validates the query string. Empty values mean "no filter".
func (q ListQuery) toFilter() (model.TaskFilter, error) {
	var (
		f      model.TaskFilter
		issues issueList
	)
	f.Query = strings.TrimSpace(q.Q)

	if s := strings.TrimSpace(q.Status); s != "" {
		if st, ok := model.ParseStatus(s); ok {
			f.Status = &st
		} else {
			issues.add("status", oneOf(model.Statuses))
		}
	}
	if s := strings.TrimSpace(q.Priority); s != "" {
		if p, ok := model.ParsePriority(s); ok {
			f.Priority = &p
		} else {
			issues.add("prioridade", oneOf(model.Priorities))
		}
	}

	f.Sort = model.DefaultTaskSort
	if s := strings.TrimSpace(q.Sort); s != "" {
		name, dir, _ := strings.Cut(s, ":")
		if field, ok := model.ParseSortField(name); ok {
			f.Sort = model.TaskSort{Field: field, Desc: strings.EqualFold(strings.TrimSpace(dir), "desc")}
		} else {
			issues.add("sort", fmt.Sprintf("unknown sort field %q", name))
		}
	}

	if err := issues.err(); err != nil {
		return model.TaskFilter{}, err
	}
	return f, nil
}
