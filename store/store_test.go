package store

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"tasklist/model"
)

func sampleSnapshot(label string) model.Snapshot {
	now := time.Date(2026, 2, 19, 12, 30, 0, 0, time.UTC)
	return model.Snapshot{
		Tasks: []model.Task{{
			ID:          "task-" + label,
			Title:       "Task-" + label,
			Description: "Desc-" + label,
			Completed:   false,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, {
			ID:        "done-" + label,
			Title:     "Done-" + label,
			Completed: true,
			CreatedAt: now,
			UpdatedAt: now,
		}},
		Filters:  map[string]model.Filter{"filter": model.FilterActive},
		Metadata: model.Metadata{Version: 1},
	}
}

func TestLoadMissingFileReturnsEmptyState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")

	snap, err := Load(path)
	if err != nil {
		t.Fatalf("load missing file failed: %v", err)
	}

	want := model.NewSnapshot()
	if !reflect.DeepEqual(want, snap) {
		t.Fatalf("unexpected snapshot for missing file\nwant=%+v\ngot=%+v", want, snap)
	}
}

func TestSaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	want := sampleSnapshot("a")

	if err := Save(path, want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if !reflect.DeepEqual(want, got) {
		t.Fatalf("save/load mismatch\nwant=%+v\ngot=%+v", want, got)
	}
}

func TestAutosaveCreatesBackupAndPersistsLatestSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	initial := sampleSnapshot("old")
	updated := sampleSnapshot("new")

	if err := Save(path, initial); err != nil {
		t.Fatalf("initial save failed: %v", err)
	}
	if err := Autosave(path, updated); err != nil {
		t.Fatalf("autosave failed: %v", err)
	}

	gotLatest, err := Load(path)
	if err != nil {
		t.Fatalf("load latest failed: %v", err)
	}
	if !reflect.DeepEqual(updated, gotLatest) {
		t.Fatalf("latest snapshot mismatch\nwant=%+v\ngot=%+v", updated, gotLatest)
	}

	gotBackup, err := Load(path + ".bak")
	if err != nil {
		t.Fatalf("load backup failed: %v", err)
	}
	if !reflect.DeepEqual(initial, gotBackup) {
		t.Fatalf("backup mismatch\nwant=%+v\ngot=%+v", initial, gotBackup)
	}
}

func TestAutosaveRotatingBackupsArePruned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")

	if err := Save(path, sampleSnapshot("seed")); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	for i := 0; i < 15; i++ {
		if err := Autosave(path, sampleSnapshot(fmt.Sprintf("%d", i))); err != nil {
			t.Fatalf("autosave %d failed: %v", i, err)
		}
		time.Sleep(1 * time.Millisecond)
	}

	files, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		t.Fatalf("glob rotating backups failed: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("expected rotating backups, found none")
	}
	if len(files) > maxRotatingBackups {
		t.Fatalf("expected at most %d rotating backups, got %d", maxRotatingBackups, len(files))
	}
}

func TestLoadWithRecoveryRestoresFromBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	v1 := sampleSnapshot("v1")
	v2 := sampleSnapshot("v2")
	v3 := sampleSnapshot("v3")

	if err := Save(path, v1); err != nil {
		t.Fatalf("save v1 failed: %v", err)
	}
	if err := Autosave(path, v2); err != nil {
		t.Fatalf("autosave v2 failed: %v", err)
	}
	if err := Autosave(path, v3); err != nil {
		t.Fatalf("autosave v3 failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("{invalid"), 0o644); err != nil {
		t.Fatalf("corrupt write failed: %v", err)
	}

	recovered, status, err := LoadWithRecovery(path)
	if err != nil {
		t.Fatalf("load with recovery failed: %v", err)
	}
	if status == "" {
		t.Fatalf("expected recovery status message, got empty")
	}
	if !reflect.DeepEqual(v2, recovered) {
		t.Fatalf("expected recovery from latest backup (v2), got %+v", recovered)
	}

	persisted, err := Load(path)
	if err != nil {
		t.Fatalf("load persisted recovered snapshot failed: %v", err)
	}
	if !reflect.DeepEqual(v2, persisted) {
		t.Fatalf("expected persisted recovered snapshot to match v2")
	}

	corruptFiles, err := filepath.Glob(filepath.Join(dir, "tasks.corrupt-*.json"))
	if err != nil {
		t.Fatalf("glob corrupt files failed: %v", err)
	}
	if len(corruptFiles) != 1 {
		t.Fatalf("expected exactly one moved corrupt file, got %d", len(corruptFiles))
	}
}

func TestLoadWithRecoveryWithoutBackupStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	if err := os.WriteFile(path, []byte("{bad json"), 0o644); err != nil {
		t.Fatalf("write corrupt snapshot failed: %v", err)
	}

	recovered, status, err := LoadWithRecovery(path)
	if err != nil {
		t.Fatalf("load with recovery failed: %v", err)
	}
	if status == "" {
		t.Fatalf("expected recovery status message")
	}
	if !reflect.DeepEqual(model.NewSnapshot(), recovered) {
		t.Fatalf("expected empty snapshot when no valid backup")
	}

	persisted, err := Load(path)
	if err != nil {
		t.Fatalf("load persisted empty snapshot failed: %v", err)
	}
	if !reflect.DeepEqual(model.NewSnapshot(), persisted) {
		t.Fatalf("expected persisted empty snapshot after recovery")
	}
}

func TestLoadDropsInvalidFiltersAndDefaultsFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.json")
	partial := `{
  "tasks": [
    {
      "id": "t1",
      "title": "partial task",
      "completed": true,
      "createdAt": "2026-02-19T12:01:00Z",
      "updatedAt": "2026-02-19T12:01:00Z"
    }
  ],
  "filters": {"TASKS_FILTER_SAVED_STATE_KEY": "done", "other": "active"}
}`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatalf("write partial file failed: %v", err)
	}

	snap, err := Load(path)
	if err != nil {
		t.Fatalf("load partial snapshot failed: %v", err)
	}

	if snap.Metadata.Version != 1 {
		t.Fatalf("expected default metadata version 1, got %d", snap.Metadata.Version)
	}
	if _, ok := snap.Filters["TASKS_FILTER_SAVED_STATE_KEY"]; ok {
		t.Fatalf("expected invalid filter to be dropped")
	}
	if snap.Filters["other"] != model.FilterActive {
		t.Fatalf("expected valid filter to be kept, got %+v", snap.Filters)
	}
	if len(snap.Tasks) != 1 || !snap.Tasks[0].Completed {
		t.Fatalf("expected one completed task, got %+v", snap.Tasks)
	}
}

func TestLoadWithRecoveryFallsBackToRotatingBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	v2 := sampleSnapshot("v2")

	if err := Save(path, sampleSnapshot("v1")); err != nil {
		t.Fatalf("save v1 failed: %v", err)
	}
	if err := Autosave(path, v2); err != nil {
		t.Fatalf("autosave v2 failed: %v", err)
	}
	time.Sleep(1 * time.Millisecond)
	if err := Autosave(path, sampleSnapshot("v3")); err != nil {
		t.Fatalf("autosave v3 failed: %v", err)
	}

	for _, p := range []string{path, path + ".bak"} {
		if err := os.WriteFile(p, []byte("{broken"), 0o644); err != nil {
			t.Fatalf("corrupt %s failed: %v", p, err)
		}
	}

	recovered, status, err := LoadWithRecovery(path)
	if err != nil {
		t.Fatalf("load with recovery failed: %v", err)
	}
	if !strings.Contains(status, ".bak.") {
		t.Fatalf("expected recovery from a rotating backup, got %q", status)
	}
	if !reflect.DeepEqual(v2, recovered) {
		t.Fatalf("expected newest rotating backup (v2), got %+v", recovered)
	}
}
