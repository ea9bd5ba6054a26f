package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tasklist/model"
)

// FileStore is a task repository and filter store backed by one JSON snapshot.
// Every mutation is written with Autosave before it returns.
type FileStore struct {
	path string

	mu   sync.RWMutex
	snap model.Snapshot
}

// OpenFile loads path, recovering from a corrupt snapshot when possible.
// note is non-empty when recovery happened.
func OpenFile(path string) (fs *FileStore, note string, err error) {
	snap, note, err := LoadWithRecovery(path)
	if err != nil {
		return nil, "", err
	}
	return &FileStore{path: path, snap: snap}, note, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Tasks(ctx context.Context) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, len(s.snap.Tasks))
	copy(out, s.snap.Tasks)
	return out, nil
}

func (s *FileStore) Task(ctx context.Context, id string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.snap.Tasks[i], nil
	}
	return model.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

func (s *FileStore) Add(ctx context.Context, tasks ...model.Task) error {
	for _, t := range tasks {
		if t.ID == "" {
			return ErrInvalidTask
		}
	}
	return s.mutate(func(snap *model.Snapshot) error {
		now := time.Now().UTC()
		for _, t := range tasks {
			if t.CreatedAt.IsZero() {
				t.CreatedAt = now
			}
			if t.UpdatedAt.IsZero() {
				t.UpdatedAt = t.CreatedAt
			}
			if i := s.indexOf(t.ID); i >= 0 {
				snap.Tasks[i] = t
				continue
			}
			snap.Tasks = append(snap.Tasks, t)
		}
		return nil
	})
}

func (s *FileStore) SetCompleted(ctx context.Context, id string, completed bool) error {
	return s.mutate(func(snap *model.Snapshot) error {
		i := s.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		snap.Tasks[i] = snap.Tasks[i].WithCompleted(completed)
		return nil
	})
}

func (s *FileStore) ClearCompleted(ctx context.Context) error {
	return s.mutate(func(snap *model.Snapshot) error {
		kept := make([]model.Task, 0, len(snap.Tasks))
		for _, t := range snap.Tasks {
			if !t.Completed {
				kept = append(kept, t)
			}
		}
		snap.Tasks = kept
		return nil
	})
}

func (s *FileStore) Filter(ctx context.Context, key string) (model.Filter, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.snap.Filters[key]
	return f, ok, nil
}

func (s *FileStore) SetFilter(ctx context.Context, key string, f model.Filter) error {
	if _, err := model.ParseFilter(string(f)); err != nil {
		return err
	}
	return s.mutate(func(snap *model.Snapshot) error {
		snap.Filters[key] = f
		return nil
	})
}

// mutate applies fn to a copy of the snapshot and keeps it only if Autosave succeeds.
func (s *FileStore) mutate(fn func(snap *model.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := copySnapshot(s.snap)
	prev := s.snap
	s.snap = next
	if err := fn(&s.snap); err != nil {
		s.snap = prev
		return err
	}
	if err := Autosave(s.path, s.snap); err != nil {
		s.snap = prev
		return fmt.Errorf("autosave: %w", err)
	}
	return nil
}

func (s *FileStore) indexOf(id string) int {
	for i := range s.snap.Tasks {
		if s.snap.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func copySnapshot(snap model.Snapshot) model.Snapshot {
	tasks := make([]model.Task, len(snap.Tasks))
	copy(tasks, snap.Tasks)
	filters := make(map[string]model.Filter, len(snap.Filters))
	for k, v := range snap.Filters {
		filters[k] = v
	}

	out := snap
	out.Tasks = tasks
	out.Filters = filters
	return out
}
