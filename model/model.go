package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidFilter = errors.New("invalid filter")

// Filter represents which tasks are shown.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter validates a persisted or user supplied filter value.
func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FilterAll, FilterActive, FilterCompleted:
		return f, nil
	default:
		return FilterAll, fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
}

// Next cycles all -> active -> completed -> all.
func (f Filter) Next() Filter {
	switch f {
	case FilterAll:
		return FilterActive
	case FilterActive:
		return FilterCompleted
	default:
		return FilterAll
	}
}

// Selects reports whether task is visible under f. Unknown filters select everything.
func (f Filter) Selects(task Task) bool {
	switch f {
	case FilterActive:
		return !task.Completed
	case FilterCompleted:
		return task.Completed
	default:
		return true
	}
}

// FilterTasks returns the tasks selected by f in their original order.
func FilterTasks(tasks []Task, f Filter) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Selects(t) {
			out = append(out, t)
		}
	}
	return out
}

// Task is an individual todo item.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewTask returns an active task with a fresh id.
func NewTask(title, description string) Task {
	now := time.Now().UTC()
	return Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// WithCompleted returns a copy of t with the completion flag set.
func (t Task) WithCompleted(completed bool) Task {
	t.Completed = completed
	t.UpdatedAt = time.Now().UTC()
	return t
}

func (t Task) IsActive() bool {
	return !t.Completed
}

func (t Task) IsEmpty() bool {
	return strings.TrimSpace(t.Title) == "" && strings.TrimSpace(t.Description) == ""
}

// TitleForList falls back to the description for untitled tasks.
func (t Task) TitleForList() string {
	if strings.TrimSpace(t.Title) != "" {
		return t.Title
	}
	return t.Description
}

// Snapshot is the full persisted state of a file-backed store.
type Snapshot struct {
	Tasks    []Task            `json:"tasks"`
	Filters  map[string]Filter `json:"filters,omitempty"`
	Metadata Metadata          `json:"metadata,omitempty"`
}

// Metadata is app-level metadata persisted alongside the snapshot.
type Metadata struct {
	Version int `json:"version"`
}

// NewSnapshot returns an initialized empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		Tasks:    []Task{},
		Filters:  map[string]Filter{},
		Metadata: Metadata{Version: 1},
	}
}
