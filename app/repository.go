package app

import (
	"context"

	"tasklist/model"
)

// DefaultFilterKey is the key under which the active filter is persisted.
const DefaultFilterKey = "TASKS_FILTER_SAVED_STATE_KEY"

// Repository is the durable task store consulted by the processor.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Tasks returns every task in display order.
	Tasks(ctx context.Context) ([]model.Task, error)
	// Task returns a single task by id.
	Task(ctx context.Context, id string) (model.Task, error)
	Add(ctx context.Context, tasks ...model.Task) error
	SetCompleted(ctx context.Context, id string, completed bool) error
	ClearCompleted(ctx context.Context) error
}

// FilterStore persists the active filter across restarts.
type FilterStore interface {
	// Filter returns the stored filter; ok is false when nothing is stored.
	Filter(ctx context.Context, key string) (f model.Filter, ok bool, err error)
	SetFilter(ctx context.Context, key string, f model.Filter) error
}
