package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"horse.fit/gigradar/internal/event"
)

var (
	// ErrRead means prior snapshots could not be read. The run continues as if none existed.
	ErrRead = errors.New("snapshot read failed")
	// ErrWrite means the current snapshot was not persisted.
	ErrWrite = errors.New("snapshot write failed")
)

const (
	filePrefix     = "events_"
	fileSuffix     = ".json"
	fileTimeLayout = "20060102T150405Z"
)

// Snapshot is the immutable output of one run.
type Snapshot struct {
	ID          string        `json:"id"`
	CapturedAt  time.Time     `json:"captured_at"`
	Events      []event.Event `json:"events"`
	InterestSet []string      `json:"interest_set,omitempty"`
}

func New(capturedAt time.Time, events []event.Event, interestSet []string) Snapshot {
	return Snapshot{
		ID:          uuid.NewString(),
		CapturedAt:  capturedAt.UTC().Truncate(time.Second),
		Events:      events,
		InterestSet: interestSet,
	}
}

// Info describes a stored snapshot without loading its events.
type Info struct {
	Name       string    `json:"name"`
	CapturedAt time.Time `json:"captured_at"`
	SizeBytes  int64     `json:"size_bytes"`
}

type Store interface {
	Write(ctx context.Context, snap Snapshot) error
	// Latest returns up to n snapshots, newest first.
	Latest(ctx context.Context, n int) ([]Snapshot, error)
	List(ctx context.Context) ([]Info, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// FileStore keeps one JSON file per snapshot in a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	clean := strings.TrimSpace(dir)
	if clean == "" {
		return nil, fmt.Errorf("snapshot directory is empty")
	}
	return &FileStore{dir: filepath.Clean(clean)}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

// Write persists the snapshot through a temp file and rename so readers never see a
// partial file.
func (s *FileStore) Write(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if snap.CapturedAt.IsZero() {
		return fmt.Errorf("%w: captured_at is required", ErrWrite)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory %s: %v", ErrWrite, s.dir, err)
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", ErrWrite, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrWrite, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync temp file: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", ErrWrite, err)
	}

	target := filepath.Join(s.dir, fileName(snap.CapturedAt))
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("%w: rename into place: %v", ErrWrite, err)
	}
	committed = true
	return nil
}

func (s *FileStore) Latest(ctx context.Context, n int) ([]Snapshot, error) {
	if n <= 0 {
		return nil, nil
	}
	infos, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Snapshot, 0, n)
	for i := len(infos) - 1; i >= 0 && len(out) < n; i-- {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRead, err)
		}
		snap, err := s.read(infos[i].Name)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// List returns stored snapshots, oldest first. A missing directory holds no snapshots.
func (s *FileStore) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read directory %s: %v", ErrRead, s.dir, err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		capturedAt, ok := parseFileName(entry.Name())
		if !ok {
			continue
		}
		info := Info{Name: entry.Name(), CapturedAt: capturedAt}
		if stat, err := entry.Info(); err == nil {
			info.SizeBytes = stat.Size()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CapturedAt.Before(infos[j].CapturedAt)
	})
	return infos, nil
}

func (s *FileStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	var errs []error
	for _, info := range infos {
		if !info.CapturedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, info.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", info.Name, err))
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

func (s *FileStore) read(name string) (Snapshot, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: read %s: %v", ErrRead, name, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode %s: %v", ErrRead, name, err)
	}
	return snap, nil
}

func fileName(capturedAt time.Time) string {
	return filePrefix + capturedAt.UTC().Format(fileTimeLayout) + fileSuffix
}

func parseFileName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	capturedAt, err := time.Parse(fileTimeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return capturedAt, true
}
