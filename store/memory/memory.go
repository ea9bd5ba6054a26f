// Package memory holds in-process implementations of the task repository and
// filter store. They are safe for concurrent use and are what the tests run
// against.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tasklist/model"
	"tasklist/store"
)

// ErrForced is returned by every operation while the repository is set to fail.
var ErrForced = errors.New("forced repository failure")

// Repository keeps tasks in insertion order.
type Repository struct {
	mu         sync.RWMutex
	tasks      []model.Task
	shouldFail bool
	fetchHook  func(ctx context.Context) error
}

// NewRepository returns a repository seeded with tasks.
func NewRepository(seed ...model.Task) *Repository {
	r := &Repository{tasks: []model.Task{}}
	r.upsert(seed)
	return r
}

// SetShouldFail makes every following call return ErrForced.
func (r *Repository) SetShouldFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shouldFail = fail
}

// SetFetchHook installs fn to run at the start of every Tasks call. A non-nil
// error from fn is returned by Tasks. Passing nil removes the hook.
func (r *Repository) SetFetchHook(fn func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchHook = fn
}

func (r *Repository) Tasks(ctx context.Context) ([]model.Task, error) {
	r.mu.RLock()
	hook := r.fetchHook
	r.mu.RUnlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.shouldFail {
		return nil, ErrForced
	}
	out := make([]model.Task, len(r.tasks))
	copy(out, r.tasks)
	return out, nil
}

func (r *Repository) Task(ctx context.Context, id string) (model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.shouldFail {
		return model.Task{}, ErrForced
	}
	if i := r.indexOf(id); i >= 0 {
		return r.tasks[i], nil
	}
	return model.Task{}, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
}

// ByID is a non-failing lookup for assertions.
func (r *Repository) ByID(id string) (model.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.tasks[i], true
	}
	return model.Task{}, false
}

// Add inserts tasks, replacing any task with the same id in place.
func (r *Repository) Add(ctx context.Context, tasks ...model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shouldFail {
		return ErrForced
	}
	for _, t := range tasks {
		if t.ID == "" {
			return store.ErrInvalidTask
		}
	}
	r.upsert(tasks)
	return nil
}

func (r *Repository) SetCompleted(ctx context.Context, id string, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shouldFail {
		return ErrForced
	}
	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}
	r.tasks[i] = r.tasks[i].WithCompleted(completed)
	return nil
}

func (r *Repository) ClearCompleted(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shouldFail {
		return ErrForced
	}
	kept := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	r.tasks = kept
	return nil
}

func (r *Repository) upsert(tasks []model.Task) {
	now := time.Now().UTC()
	for _, t := range tasks {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
		if i := r.indexOf(t.ID); i >= 0 {
			r.tasks[i] = t
			continue
		}
		r.tasks = append(r.tasks, t)
	}
}

func (r *Repository) indexOf(id string) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// FilterStore is a map-backed filter store.
type FilterStore struct {
	mu      sync.Mutex
	filters map[string]model.Filter
	err     error
}

func NewFilterStore() *FilterStore {
	return &FilterStore{filters: map[string]model.Filter{}}
}

// SetError makes every following call return err. Passing nil clears it.
func (s *FilterStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *FilterStore) Filter(ctx context.Context, key string) (model.Filter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", false, s.err
	}
	f, ok := s.filters[key]
	return f, ok, nil
}

func (s *FilterStore) SetFilter(ctx context.Context, key string, f model.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.filters[key] = f
	return nil
}
