package model

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority returns medium for anything it does not recognise.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityMedium
	}
}

type Task struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	Priority    Priority   `json:"priority"`
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}

// TaskInput is what a caller supplies to create a task.
type TaskInput struct {
	Text     string `json:"text"`
	DueDate  string `json:"dueDate,omitempty"`
	Priority string `json:"priority,omitempty"`
}

type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterCompleted Filter = "completed"
)

// ParseFilter maps unknown values to FilterAll.
func ParseFilter(s string) Filter {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterPending, FilterCompleted:
		return f
	default:
		return FilterAll
	}
}

// Match reports whether t belongs to the subset selected by f.
func (f Filter) Match(t Task) bool {
	switch f {
	case FilterPending:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// StatsOf counts tasks; Pending is always Total - Completed.
func StatsOf(tasks []Task) Stats {
	st := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			st.Completed++
		}
	}
	st.Pending = st.Total - st.Completed
	return st
}
