// Package sqlite stores tasks and preferences in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"tasklist/model"
	"tasklist/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

const timeLayout = time.RFC3339Nano

// Open runs pending migrations on path and opens it.
func Open(path string) (*sql.DB, error) {
	if err := RunMigrations(path); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	return db, nil
}

// RunMigrations applies all embedded up migrations to the database at path.
func RunMigrations(path string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, fmt.Sprintf("sqlite3://%s?_foreign_keys=on", path))
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// TaskRepo is a task repository and filter store over db.
type TaskRepo struct {
	db *sql.DB
}

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{db: db} }

func (r *TaskRepo) Tasks(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, title, description, completed, created_at, updated_at
	FROM tasks ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TaskRepo) Task(ctx context.Context, id string) (model.Task, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, title, description, completed, created_at, updated_at
	FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}
	return t, err
}

// Add upserts tasks by id; an existing task keeps its position.
func (r *TaskRepo) Add(ctx context.Context, tasks ...model.Task) error {
	for _, t := range tasks {
		if t.ID == "" {
			return store.ErrInvalidTask
		}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, t := range tasks {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO tasks(id, title, description, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			description=excluded.description,
			completed=excluded.completed,
			updated_at=excluded.updated_at;
		`, t.ID, t.Title, t.Description, t.Completed, t.CreatedAt.UTC().Format(timeLayout), t.UpdatedAt.UTC().Format(timeLayout))
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *TaskRepo) SetCompleted(ctx context.Context, id string, completed bool) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE tasks SET completed = ?, updated_at = ? WHERE id = ?`,
		completed, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}
	return nil
}

func (r *TaskRepo) ClearCompleted(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE completed = 1`)
	return err
}

func (r *TaskRepo) Filter(ctx context.Context, key string) (model.Filter, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	f, err := model.ParseFilter(value)
	if err != nil {
		return "", false, err
	}
	return f, true, nil
}

func (r *TaskRepo) SetFilter(ctx context.Context, key string, f model.Filter) error {
	if _, err := model.ParseFilter(string(f)); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO preferences(key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value=excluded.value;
	`, key, string(f))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var (
		t                model.Task
		created, updated string
	)
	if err := s.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &created, &updated); err != nil {
		return model.Task{}, err
	}
	var err error
	if t.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return model.Task{}, fmt.Errorf("parse created_at for %s: %w", t.ID, err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return model.Task{}, fmt.Errorf("parse updated_at for %s: %w", t.ID, err)
	}
	return t, nil
}
