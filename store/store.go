package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tasklist/model"
)

const maxRotatingBackups = 10

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidTask  = errors.New("task id must not be empty")

	errNoValidBackup = errors.New("no valid backup found")
)

// Load reads a snapshot from a JSON file.
// If file does not exist, it returns an initialized empty snapshot.
func Load(path string) (model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.NewSnapshot(), nil
		}
		return model.Snapshot{}, err
	}
	return decodeSnapshot(data)
}

// LoadWithRecovery loads a snapshot. When the file holds broken JSON it is moved
// aside and the newest readable backup takes its place; with no usable backup
// the store starts empty. The returned note says what happened.
func LoadWithRecovery(path string) (model.Snapshot, string, error) {
	snap, err := Load(path)
	if err == nil {
		return snap, "", nil
	}
	if !isCorruptSnapshot(err) {
		return model.Snapshot{}, "", err
	}

	sf := snapshotFile(path)
	quarantined, err := sf.quarantine(time.Now().UTC())
	if err != nil {
		return model.Snapshot{}, "", fmt.Errorf("move corrupt snapshot: %w", err)
	}
	suffix := ""
	if quarantined != "" {
		suffix = fmt.Sprintf(" (bad file moved to %s)", filepath.Base(quarantined))
	}

	restored, from, err := sf.newestValidBackup()
	switch {
	case err == nil:
		if err := Save(path, restored); err != nil {
			return model.Snapshot{}, "", fmt.Errorf("restore backup: %w", err)
		}
		return restored, fmt.Sprintf("corrupt snapshot recovered from %s%s", filepath.Base(from), suffix), nil
	case !errors.Is(err, errNoValidBackup):
		return model.Snapshot{}, "", fmt.Errorf("inspect backups: %w", err)
	}

	empty := model.NewSnapshot()
	if err := Save(path, empty); err != nil {
		return model.Snapshot{}, "", fmt.Errorf("initialize empty snapshot after corruption: %w", err)
	}
	return empty, "corrupt snapshot without a valid backup; started empty" + suffix, nil
}

// Save writes a snapshot to path as indented JSON.
func Save(path string, snap model.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Autosave replaces the snapshot at path atomically. The previous content is
// kept as path.bak and as a timestamped rotating copy.
func Autosave(path string, snap model.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	sf := snapshotFile(path)
	if err := os.MkdirAll(sf.dir(), 0o755); err != nil {
		return err
	}
	if err := sf.keepPrevious(time.Now().UTC()); err != nil {
		return fmt.Errorf("backup snapshot: %w", err)
	}
	return sf.replace(data)
}

func encodeSnapshot(snap model.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(normalize(snap), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decodeSnapshot(data []byte) (model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, err
	}
	return normalize(snap), nil
}

func normalize(snap model.Snapshot) model.Snapshot {
	if snap.Tasks == nil {
		snap.Tasks = []model.Task{}
	}
	filters := make(map[string]model.Filter, len(snap.Filters))
	for key, f := range snap.Filters {
		if _, err := model.ParseFilter(string(f)); err == nil && strings.TrimSpace(key) != "" {
			filters[key] = f
		}
	}
	snap.Filters = filters
	if snap.Metadata.Version == 0 {
		snap.Metadata.Version = 1
	}
	return snap
}

func isCorruptSnapshot(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// snapshotFile names a snapshot on disk and the files kept around it:
// path.bak holds the previous snapshot, path.bak.<stamp> the rotating history
// and <name>.corrupt-<stamp><ext> any snapshot that failed to parse.
type snapshotFile string

const stampLayout = "20060102-150405.000000000"

func (sf snapshotFile) dir() string { return filepath.Dir(string(sf)) }
func (sf snapshotFile) latestBackup() string { return string(sf) + ".bak" }

func (sf snapshotFile) rotating() ([]string, error) {
	files, err := filepath.Glob(string(sf) + ".bak.*")
	if err != nil {
		return nil, err
	}
	// Stamps sort lexically, so newest first is a reverse string sort.
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

// keepPrevious copies the current snapshot, if any, into the backup set and
// trims the rotating history to maxRotatingBackups.
func (sf snapshotFile) keepPrevious(now time.Time) error {
	data, err := os.ReadFile(string(sf))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, dst := range []string{sf.latestBackup(), string(sf) + ".bak." + now.Format(stampLayout)} {
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
	}

	history, err := sf.rotating()
	if err != nil {
		return err
	}
	if len(history) <= maxRotatingBackups {
		return nil
	}
	for _, old := range history[maxRotatingBackups:] {
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// replace writes data to a temp file next to the snapshot and renames it over.
func (sf snapshotFile) replace(data []byte) error {
	tmp, err := os.CreateTemp(sf.dir(), filepath.Base(string(sf))+".tmp-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), string(sf))
}

// newestValidBackup returns the first backup that parses, checking path.bak
// before the rotating history.
func (sf snapshotFile) newestValidBackup() (model.Snapshot, string, error) {
	history, err := sf.rotating()
	if err != nil {
		return model.Snapshot{}, "", err
	}
	for _, candidate := range append([]string{sf.latestBackup()}, history...) {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if snap, err := decodeSnapshot(data); err == nil {
			return snap, candidate, nil
		}
	}
	return model.Snapshot{}, "", errNoValidBackup
}

// quarantine moves the snapshot aside and returns its new path. A missing
// snapshot is not an error and yields "".
func (sf snapshotFile) quarantine(now time.Time) (string, error) {
	if _, err := os.Stat(string(sf)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	base := filepath.Base(string(sf))
	ext := filepath.Ext(base)
	moved := filepath.Join(sf.dir(), fmt.Sprintf("%s.corrupt-%s%s", strings.TrimSuffix(base, ext), now.Format("20060102-150405"), ext))
	if err := os.Rename(string(sf), moved); err != nil {
		return "", err
	}
	return moved, nil
}
