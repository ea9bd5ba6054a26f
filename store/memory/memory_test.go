package memory

import (
	"context"
	"errors"
	"testing"

	"tasklist/model"
	"tasklist/store"
)

func TestRepositoryKeepsInsertionOrderAndUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(
		model.Task{ID: "1", Title: "one"},
		model.Task{ID: "2", Title: "two"},
	)
	if err := repo.Add(ctx, model.Task{ID: "1", Title: "uno"}, model.Task{ID: "3", Title: "three"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	tasks, err := repo.Tasks(ctx)
	if err != nil {
		t.Fatalf("tasks failed: %v", err)
	}
	if len(tasks) != 3 || tasks[0].Title != "uno" || tasks[1].ID != "2" || tasks[2].ID != "3" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}

	tasks[0].Title = "mutated"
	if got, _ := repo.ByID("1"); got.Title != "uno" {
		t.Fatalf("expected repository to hand out copies, got %q", got.Title)
	}
}

func TestRepositorySetCompletedAndClear(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(
		model.Task{ID: "a", Title: "A"},
		model.Task{ID: "b", Title: "B"},
	)
	if err := repo.SetCompleted(ctx, "a", true); err != nil {
		t.Fatalf("set completed failed: %v", err)
	}
	if got, _ := repo.ByID("a"); !got.Completed {
		t.Fatalf("expected a to be completed")
	}
	if err := repo.SetCompleted(ctx, "missing", true); !errors.Is(err, store.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}

	if err := repo.ClearCompleted(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok := repo.ByID("a"); ok {
		t.Fatalf("expected completed task removed")
	}
	if _, err := repo.Task(ctx, "b"); err != nil {
		t.Fatalf("expected b to remain: %v", err)
	}
}

func TestRepositoryForcedFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(model.Task{ID: "a"})
	repo.SetShouldFail(true)

	if _, err := repo.Tasks(ctx); !errors.Is(err, ErrForced) {
		t.Fatalf("expected ErrForced from Tasks, got %v", err)
	}
	if err := repo.ClearCompleted(ctx); !errors.Is(err, ErrForced) {
		t.Fatalf("expected ErrForced from ClearCompleted, got %v", err)
	}

	repo.SetShouldFail(false)
	if _, err := repo.Tasks(ctx); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}

func TestFilterStore(t *testing.T) {
	ctx := context.Background()
	s := NewFilterStore()
	if _, ok, err := s.Filter(ctx, "k"); ok || err != nil {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	if err := s.SetFilter(ctx, "k", model.FilterCompleted); err != nil {
		t.Fatalf("set filter failed: %v", err)
	}
	f, ok, err := s.Filter(ctx, "k")
	if err != nil || !ok || f != model.FilterCompleted {
		t.Fatalf("unexpected filter %q ok=%v err=%v", f, ok, err)
	}
}
