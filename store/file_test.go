package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tasklist/model"
)

func openTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, note, err := OpenFile(filepath.Join(t.TempDir(), "tasks.json"))
	if err != nil {
		t.Fatalf("open file store failed: %v", err)
	}
	if note != "" {
		t.Fatalf("unexpected recovery note %q", note)
	}
	return fs
}

func TestFileStorePersistsMutationsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	fs := openTestFileStore(t)

	a := model.NewTask("Title1", "Description1")
	b := model.NewTask("Title2", "Description2")
	if err := fs.Add(ctx, a, b); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := fs.SetCompleted(ctx, b.ID, true); err != nil {
		t.Fatalf("set completed failed: %v", err)
	}
	if err := fs.SetFilter(ctx, "key", model.FilterCompleted); err != nil {
		t.Fatalf("set filter failed: %v", err)
	}

	reopened, _, err := OpenFile(fs.Path())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	tasks, err := reopened.Tasks(ctx)
	if err != nil {
		t.Fatalf("tasks failed: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != a.ID || tasks[1].ID != b.ID {
		t.Fatalf("unexpected tasks after reopen %+v", tasks)
	}
	if !tasks[1].Completed {
		t.Fatalf("expected completion to survive reopen")
	}
	f, ok, err := reopened.Filter(ctx, "key")
	if err != nil || !ok || f != model.FilterCompleted {
		t.Fatalf("unexpected persisted filter %q ok=%v err=%v", f, ok, err)
	}
}

func TestFileStoreClearCompleted(t *testing.T) {
	ctx := context.Background()
	fs := openTestFileStore(t)

	active := model.NewTask("Active", "")
	done := model.NewTask("Done", "").WithCompleted(true)
	if err := fs.Add(ctx, active, done); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := fs.ClearCompleted(ctx); err != nil {
		t.Fatalf("clear completed failed: %v", err)
	}
	if _, err := fs.Task(ctx, done.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound for cleared task, got %v", err)
	}
	if got, err := fs.Task(ctx, active.ID); err != nil || got.Completed {
		t.Fatalf("expected active task to remain, got %+v err=%v", got, err)
	}
}

func TestFileStoreRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	fs := openTestFileStore(t)

	if err := fs.Add(ctx, model.Task{Title: "no id"}); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask, got %v", err)
	}
	if err := fs.SetCompleted(ctx, "missing", true); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := fs.SetFilter(ctx, "key", model.Filter("done")); !errors.Is(err, model.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
	if _, ok, _ := fs.Filter(ctx, "key"); ok {
		t.Fatalf("expected rejected filter not to be stored")
	}
}
