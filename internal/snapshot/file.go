package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pathwise/mri-engine/internal/metrics"
)

// Lines scanned from the tail of a source-kind log on lookup. Keeps reads
// bounded as logs grow; anything older is past every TTL we use anyway.
const fileScanWindow = 512

// FileStore persists snapshot records as JSON lines, one file per source
// kind, under a directory. Appends only; nothing is ever rewritten.
type FileStore struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewFileStore creates (if needed) the snapshot directory and returns a
// store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory %q: %w", dir, err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// WithClock overrides the store's time source. Intended for tests.
func (s *FileStore) WithClock(now func() time.Time) *FileStore {
	s.now = now
	return s
}

func (s *FileStore) path(sourceKind string) string {
	name := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(sourceKind)
	return filepath.Join(s.dir, name+".jsonl")
}

// Put appends a record line to the source kind's log file.
func (s *FileStore) Put(_ context.Context, sourceKind, key string, payload any) (*Record, error) {
	rec, err := newRecord(sourceKind, key, s.now().UTC(), payload)
	if err != nil {
		return nil, err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path(sourceKind), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("appending snapshot record: %w", err)
	}
	return rec, nil
}

// Get scans the tail window of the source kind's log for the freshest record
// matching key within maxAge.
func (s *FileStore) Get(_ context.Context, sourceKind, key string, maxAge time.Duration) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path(sourceKind))
	if err != nil {
		if os.IsNotExist(err) {
			metrics.SnapshotLookup(sourceKind, "miss")
			return nil, fmt.Errorf("%s/%s: %w", sourceKind, key, ErrNoSnapshot)
		}
		return nil, fmt.Errorf("opening snapshot log: %w", err)
	}
	defer file.Close()

	window := make([]string, 0, fileScanWindow)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		window = append(window, scanner.Text())
		if len(window) > fileScanWindow {
			window = window[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot log: %w", err)
	}

	now := s.now()
	expiredSeen := false
	for i := len(window) - 1; i >= 0; i-- {
		var rec Record
		if err := json.Unmarshal([]byte(window[i]), &rec); err != nil {
			// A torn write at the log tail should not poison older records.
			continue
		}
		if rec.CacheKey != key {
			continue
		}
		if rec.Age(now) <= maxAge {
			metrics.SnapshotLookup(sourceKind, "hit")
			return &rec, nil
		}
		expiredSeen = true
	}

	if expiredSeen {
		metrics.SnapshotLookup(sourceKind, "expired")
	} else {
		metrics.SnapshotLookup(sourceKind, "miss")
	}
	return nil, fmt.Errorf("%s/%s within %s: %w", sourceKind, key, maxAge, ErrNoSnapshot)
}
